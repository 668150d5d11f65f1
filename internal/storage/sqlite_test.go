package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"inspirepixel/internal/model"
)

var ignoreAccountTS = cmpopts.IgnoreFields(Account{}, "CreatedAt", "UpgradedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want not found", ok, err)
	}

	if err := s.Set(ctx, "desc_42", "A quiet lake."); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := s.Get(ctx, "desc_42")
	if err != nil || !ok {
		t.Fatalf("get: ok %v, err %v", ok, err)
	}
	if diff := cmp.Diff("A quiet lake.", got); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}

	if err := s.Set(ctx, "desc_42", "Replaced."); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = s.Get(ctx, "desc_42")
	if diff := cmp.Diff("Replaced.", got); diff != "" {
		t.Errorf("overwrite mismatch (-want +got):\n%s", diff)
	}

	if err := s.Delete(ctx, "desc_42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "desc_42"); ok {
		t.Error("expected key to be deleted")
	}
	if err := s.Delete(ctx, "desc_42"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestAccountCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tests := []struct {
		name    string
		account Account
	}{
		{
			name: "free account without favorites",
			account: Account{
				ID: "01HZX0", Name: "Ana", Email: "ana@example.com", PasswordHash: "h1",
				Entitlement: model.EntitlementFree,
			},
		},
		{
			name: "pro account with favorites",
			account: Account{
				ID: "01HZX1", Name: "Bo", Email: "bo@example.com", PasswordHash: "h2",
				Entitlement: model.EntitlementPro, Favorites: []string{"1", "7"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.account
			if err := s.CreateAccount(ctx, &a); err != nil {
				t.Fatalf("create: %v", err)
			}
			if a.CreatedAt.IsZero() {
				t.Error("expected CreatedAt to be set")
			}

			byID, err := s.GetAccount(ctx, a.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if diff := cmp.Diff(tt.account, *byID, ignoreAccountTS, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("GetAccount mismatch (-want +got):\n%s", diff)
			}

			byEmail, err := s.GetAccountByEmail(ctx, a.Email)
			if err != nil {
				t.Fatalf("get by email: %v", err)
			}
			if diff := cmp.Diff(byID, byEmail); diff != "" {
				t.Errorf("GetAccountByEmail mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreateAccountDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	first := Account{ID: "a", Name: "A", Email: "dup@example.com", PasswordHash: "x"}
	if err := s.CreateAccount(ctx, &first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := Account{ID: "b", Name: "B", Email: "dup@example.com", PasswordHash: "y"}
	err := s.CreateAccount(ctx, &second)
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	if _, err := s.GetAccount(ctx, "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetAccount: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetAccountByEmail(ctx, "nope@example.com"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetAccountByEmail: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	a := Account{ID: "u1", Name: "Old", Email: "u1@example.com", PasswordHash: "x"}
	if err := s.CreateAccount(ctx, &a); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	a.Name = "New"
	a.Entitlement = model.EntitlementPro
	a.Favorites = []string{"9"}
	a.UpgradedAt = &now
	if err := s.UpdateAccount(ctx, &a); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := Account{ID: "u1", Name: "New", Email: "u1@example.com", PasswordHash: "x", Entitlement: model.EntitlementPro, Favorites: []string{"9"}}
	if diff := cmp.Diff(want, *got, ignoreAccountTS); diff != "" {
		t.Errorf("updated account mismatch (-want +got):\n%s", diff)
	}
	if got.UpgradedAt == nil || !got.UpgradedAt.Equal(now) {
		t.Errorf("UpgradedAt = %v, want %v", got.UpgradedAt, now)
	}

	missing := Account{ID: "ghost"}
	if err := s.UpdateAccount(ctx, &missing); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing account, got %v", err)
	}
}
