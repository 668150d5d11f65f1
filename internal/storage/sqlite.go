package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"inspirepixel/internal/model"
	"inspirepixel/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// CreateAccount inserts a new account and populates its CreatedAt.
// It fails with model.ErrAlreadyExists when the email is taken.
func (s *SQLite) CreateAccount(ctx context.Context, a *Account) error {
	favs, err := encodeFavorites(a.Favorites)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE email = ?`, a.Email).Scan(&count); err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("account %q: %w", a.Email, model.ErrAlreadyExists)
	}

	now := time.Now().UTC().Format(timeLayout)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, entitlement, favorites, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.PasswordHash, string(model.ParseEntitlement(string(a.Entitlement))), favs, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("account %q: %w", a.Email, model.ErrAlreadyExists)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	a.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetAccount returns a single account by its ID.
func (s *SQLite) GetAccount(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, entitlement, favorites, created_at, upgraded_at
		 FROM accounts WHERE id = ?`, id,
	)
	return scanAccount(row)
}

// GetAccountByEmail returns the account registered with email.
func (s *SQLite) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, entitlement, favorites, created_at, upgraded_at
		 FROM accounts WHERE email = ?`, email,
	)
	return scanAccount(row)
}

// UpdateAccount persists name, entitlement, favorites and upgrade time.
func (s *SQLite) UpdateAccount(ctx context.Context, a *Account) error {
	favs, err := encodeFavorites(a.Favorites)
	if err != nil {
		return err
	}
	var upgraded *string
	if a.UpgradedAt != nil {
		v := a.UpgradedAt.UTC().Format(timeLayout)
		upgraded = &v
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, entitlement = ?, favorites = ?, upgraded_at = ? WHERE id = ?`,
		a.Name, string(model.ParseEntitlement(string(a.Entitlement))), favs, upgraded, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %q: %w", a.ID, model.ErrNotFound)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAccount(row scannable) (*Account, error) {
	var a Account
	var entitlement, favs, created string
	var upgraded sql.NullString
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &entitlement, &favs, &created, &upgraded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan account: %w", model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Entitlement = model.ParseEntitlement(entitlement)
	if err := json.Unmarshal([]byte(favs), &a.Favorites); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	a.CreatedAt, _ = time.Parse(timeLayout, created)
	if upgraded.Valid {
		t, _ := time.Parse(timeLayout, upgraded.String)
		a.UpgradedAt = &t
	}
	return &a, nil
}

func encodeFavorites(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode favorites: %w", err)
	}
	return string(b), nil
}
