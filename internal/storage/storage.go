// Package storage defines the local persistence interfaces and their SQLite
// implementation.
package storage

import (
	"context"
	"time"

	"inspirepixel/internal/model"
)

// KV is the local persistent key-value store. Values are plain strings,
// JSON-encoded by callers where structured.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Account is a row of the local-only account registry.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Entitlement  model.Entitlement
	Favorites    []string
	CreatedAt    time.Time
	UpgradedAt   *time.Time
}

// Accounts is the local account registry used when no remote store is
// configured.
type Accounts interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
}

// Storage is the full set of local persistence operations.
type Storage interface {
	KV
	Accounts
	Close() error
}
