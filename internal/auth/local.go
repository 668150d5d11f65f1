package auth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"inspirepixel/internal/model"
	"inspirepixel/internal/storage"
)

const sessionKey = "session_uid"

// LocalBackend keeps accounts in the local database. It is used when no
// remote store is configured.
type LocalBackend struct {
	accounts storage.Accounts
	kv       storage.KV
	cost     int

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewLocalBackend creates a backend over the account registry and session
// key-value store.
func NewLocalBackend(accounts storage.Accounts, kv storage.KV) *LocalBackend {
	return &LocalBackend{
		accounts: accounts,
		kv:       kv,
		cost:     bcrypt.DefaultCost,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetCost overrides the bcrypt cost of new password hashes.
func (b *LocalBackend) SetCost(cost int) {
	b.cost = cost
}

func (b *LocalBackend) newID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), b.entropy).String()
}

// SignIn checks the password against the stored hash.
func (b *LocalBackend) SignIn(ctx context.Context, c model.Credentials) (string, error) {
	a, err := b.accounts.GetAccountByEmail(ctx, normalizeEmail(c.Email))
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(c.Password)); err != nil {
		return "", fmt.Errorf("sign in %s: %w", a.Email, model.ErrBadCredentials)
	}
	if err := b.kv.Set(ctx, sessionKey, a.ID); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	return a.ID, nil
}

// SignUp registers a free account with no favorites.
func (b *LocalBackend) SignUp(ctx context.Context, r model.Registration) (string, error) {
	email := normalizeEmail(r.Email)
	if email == "" || r.Password == "" {
		return "", errors.New("email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	a := storage.Account{
		ID:           b.newID(),
		Name:         strings.TrimSpace(r.Name),
		Email:        email,
		PasswordHash: string(hash),
		Entitlement:  model.EntitlementFree,
	}
	if err := b.accounts.CreateAccount(ctx, &a); err != nil {
		return "", err
	}
	if err := b.kv.Set(ctx, sessionKey, a.ID); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	return a.ID, nil
}

// SignOut closes the session.
func (b *LocalBackend) SignOut(ctx context.Context) error {
	return b.kv.Delete(ctx, sessionKey)
}

// CurrentUser returns the user id of the open session.
func (b *LocalBackend) CurrentUser(ctx context.Context) (string, error) {
	uid, _, err := b.kv.Get(ctx, sessionKey)
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	return uid, nil
}

// GetProfile returns the user document stored with the account.
func (b *LocalBackend) GetProfile(ctx context.Context, uid string) (model.Profile, error) {
	a, err := b.accounts.GetAccount(ctx, uid)
	if err != nil {
		return model.Profile{}, err
	}
	return model.Profile{
		Name:        a.Name,
		Email:       a.Email,
		Entitlement: a.Entitlement,
		Favorites:   a.Favorites,
		CreatedAt:   a.CreatedAt,
	}, nil
}

// CreateProfile overwrites the document fields of the account.
func (b *LocalBackend) CreateProfile(ctx context.Context, uid string, p model.Profile) error {
	return b.update(ctx, uid, func(a *storage.Account) {
		a.Name = p.Name
		a.Entitlement = p.Entitlement
		a.Favorites = p.Favorites
	})
}

// SetEntitlement changes the access tier and records the upgrade time.
func (b *LocalBackend) SetEntitlement(ctx context.Context, uid string, e model.Entitlement) error {
	return b.update(ctx, uid, func(a *storage.Account) {
		a.Entitlement = e
		if e == model.EntitlementPro && a.UpgradedAt == nil {
			now := time.Now().UTC()
			a.UpgradedAt = &now
		}
	})
}

// SetFavorites replaces the favorite list.
func (b *LocalBackend) SetFavorites(ctx context.Context, uid string, favorites []string) error {
	return b.update(ctx, uid, func(a *storage.Account) { a.Favorites = favorites })
}

// UpdateName changes the display name.
func (b *LocalBackend) UpdateName(ctx context.Context, uid, name string) error {
	return b.update(ctx, uid, func(a *storage.Account) { a.Name = name })
}

func (b *LocalBackend) update(ctx context.Context, uid string, fn func(*storage.Account)) error {
	a, err := b.accounts.GetAccount(ctx, uid)
	if err != nil {
		return err
	}
	fn(a)
	return b.accounts.UpdateAccount(ctx, a)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
