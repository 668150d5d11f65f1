// Package auth tracks the current user's identity, entitlement and favorites
// and keeps them in sync with an account backend.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"inspirepixel/internal/model"
	"inspirepixel/internal/storage"
)

// Snapshot keys in the local key-value store.
const (
	snapshotUserKey        = "user"
	snapshotEntitlementKey = "entitlement"
)

// Gate owns the process-wide user state. Mutations are serialized; reads
// never block on backend I/O.
type Gate struct {
	backend Backend
	kv      storage.KV
	log     *slog.Logger

	// op serializes mutations and reconciliation.
	op sync.Mutex

	mu          sync.RWMutex
	user        *model.User
	entitlement model.Entitlement
	favorites   model.FavoriteSet

	ready     chan struct{}
	readyOnce sync.Once
}

// NewGate creates a gate seeded from the local snapshot. The seeded state is
// provisional until the first Reconcile completes.
func NewGate(ctx context.Context, backend Backend, kv storage.KV, log *slog.Logger) *Gate {
	g := &Gate{
		backend:     backend,
		kv:          kv,
		log:         log,
		entitlement: model.EntitlementFree,
		ready:       make(chan struct{}),
	}
	g.restore(ctx)
	return g
}

func (g *Gate) restore(ctx context.Context) {
	raw, ok, err := g.kv.Get(ctx, snapshotUserKey)
	if err != nil {
		g.log.Warn("read user snapshot", "error", err)
		return
	}
	if !ok {
		return
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		g.log.Warn("discarding corrupt user snapshot", "error", err)
		return
	}
	u.Entitlement = model.ParseEntitlement(string(u.Entitlement))
	if e, ok, err := g.kv.Get(ctx, snapshotEntitlementKey); err == nil && ok {
		u.Entitlement = model.ParseEntitlement(e)
	}
	g.user = &u
	g.entitlement = u.Entitlement
	g.log.Debug("restored session snapshot", "user_id", u.ID, "entitlement", u.Entitlement)
}

// Login signs in and loads the user's entitlement and favorites.
func (g *Gate) Login(ctx context.Context, c model.Credentials) error {
	g.op.Lock()
	defer g.op.Unlock()

	uid, err := g.backend.SignIn(ctx, c)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	p, err := g.backend.GetProfile(ctx, uid)
	switch {
	case errors.Is(err, model.ErrNotFound):
		p = model.Profile{Email: c.Email, Entitlement: model.EntitlementFree}
	case err != nil:
		g.signOutQuietly(ctx)
		return fmt.Errorf("load profile: %w", err)
	}
	g.setSession(ctx, uid, p)
	g.log.Info("user logged in", "user_id", uid)
	return nil
}

// Register creates a free account with no favorites and logs the user in.
func (g *Gate) Register(ctx context.Context, r model.Registration) error {
	g.op.Lock()
	defer g.op.Unlock()

	uid, err := g.backend.SignUp(ctx, r)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	p := model.Profile{
		Name:        strings.TrimSpace(r.Name),
		Email:       strings.TrimSpace(r.Email),
		Entitlement: model.EntitlementFree,
		Favorites:   []string{},
		CreatedAt:   time.Now().UTC(),
	}
	if err := g.backend.CreateProfile(ctx, uid, p); err != nil {
		g.signOutQuietly(ctx)
		return fmt.Errorf("create profile: %w: %w", model.ErrRemoteWrite, err)
	}
	g.setSession(ctx, uid, p)
	g.log.Info("user registered", "user_id", uid)
	return nil
}

// Logout clears the local user state. A failed backend sign-out is logged
// and does not prevent it.
func (g *Gate) Logout(ctx context.Context) {
	g.op.Lock()
	defer g.op.Unlock()

	g.signOutQuietly(ctx)
	g.clearSession(ctx)
	g.log.Info("user logged out")
}

// Upgrade sets the entitlement to pro in the backend and locally.
func (g *Gate) Upgrade(ctx context.Context) error {
	g.op.Lock()
	defer g.op.Unlock()

	uid, ok := g.uid()
	if !ok {
		return fmt.Errorf("upgrade: %w", model.ErrUnauthenticated)
	}
	if err := g.backend.SetEntitlement(ctx, uid, model.EntitlementPro); err != nil {
		return fmt.Errorf("upgrade: %w: %w", model.ErrRemoteWrite, err)
	}

	g.mu.Lock()
	g.entitlement = model.EntitlementPro
	g.user.Entitlement = model.EntitlementPro
	g.mu.Unlock()
	g.writeSnapshot(ctx)
	g.log.Info("user upgraded", "user_id", uid)
	return nil
}

// ToggleFavorite flips imageID in the favorite set and persists the new set.
// On a failed write the local flip is rolled back. It reports whether the
// image is a favorite afterwards.
func (g *Gate) ToggleFavorite(ctx context.Context, imageID string) (bool, error) {
	g.op.Lock()
	defer g.op.Unlock()

	g.mu.Lock()
	if g.user == nil {
		g.mu.Unlock()
		return false, fmt.Errorf("toggle favorite: %w", model.ErrUnauthenticated)
	}
	uid := g.user.ID
	prev := g.favorites
	next := prev.Toggle(imageID)
	g.favorites = next
	g.mu.Unlock()

	if err := g.backend.SetFavorites(ctx, uid, next); err != nil {
		g.mu.Lock()
		g.favorites = prev
		g.mu.Unlock()
		g.log.Warn("favorite write failed, rolled back", "user_id", uid, "image_id", imageID, "error", err)
		return prev.Contains(imageID), fmt.Errorf("toggle favorite %s: %w: %w", imageID, model.ErrRemoteWrite, err)
	}
	return next.Contains(imageID), nil
}

// UpdateName changes the user's display name.
func (g *Gate) UpdateName(ctx context.Context, name string) error {
	g.op.Lock()
	defer g.op.Unlock()

	uid, ok := g.uid()
	if !ok {
		return fmt.Errorf("update name: %w", model.ErrUnauthenticated)
	}
	name = strings.TrimSpace(name)
	if err := g.backend.UpdateName(ctx, uid, name); err != nil {
		return fmt.Errorf("update name: %w: %w", model.ErrRemoteWrite, err)
	}
	g.mu.Lock()
	g.user.Name = name
	g.mu.Unlock()
	g.writeSnapshot(ctx)
	return nil
}

// Reconcile replaces the provisional local state with the backend's view of
// the session. Ready is closed after the first call returns.
func (g *Gate) Reconcile(ctx context.Context) error {
	g.op.Lock()
	defer g.op.Unlock()
	defer g.readyOnce.Do(func() { close(g.ready) })

	uid, err := g.backend.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("reconcile session: %w", err)
	}
	if uid == "" {
		if g.IsAuthenticated() {
			g.log.Info("session ended remotely")
		}
		g.clearSession(ctx)
		return nil
	}

	p, err := g.backend.GetProfile(ctx, uid)
	if errors.Is(err, model.ErrNotFound) {
		g.log.Warn("session without profile", "user_id", uid)
		g.clearSession(ctx)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile profile: %w", err)
	}
	g.setSession(ctx, uid, p)
	return nil
}

// Ready is closed once the first reconciliation has finished.
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

// User returns the current user.
func (g *Gate) User() (model.User, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.user == nil {
		return model.User{}, false
	}
	return *g.user, true
}

// IsAuthenticated reports whether a user is signed in.
func (g *Gate) IsAuthenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.user != nil
}

// Entitlement returns the current access tier.
func (g *Gate) Entitlement() model.Entitlement {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entitlement
}

// IsPro reports whether the current tier is pro.
func (g *Gate) IsPro() bool {
	return g.Entitlement() == model.EntitlementPro
}

// Favorites returns a copy of the favorite set.
func (g *Gate) Favorites() model.FavoriteSet {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.favorites)
}

// IsFavorite reports whether imageID is a favorite.
func (g *Gate) IsFavorite(imageID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.favorites.Contains(imageID)
}

func (g *Gate) uid() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.user == nil {
		return "", false
	}
	return g.user.ID, true
}

func (g *Gate) setSession(ctx context.Context, uid string, p model.Profile) {
	e := model.ParseEntitlement(string(p.Entitlement))
	g.mu.Lock()
	g.user = &model.User{ID: uid, Name: p.Name, Email: p.Email, Entitlement: e}
	g.entitlement = e
	g.favorites = model.FavoriteSet(slices.Clone(p.Favorites))
	g.mu.Unlock()
	g.writeSnapshot(ctx)
}

func (g *Gate) clearSession(ctx context.Context) {
	g.mu.Lock()
	g.user = nil
	g.entitlement = model.EntitlementFree
	g.favorites = nil
	g.mu.Unlock()

	if err := g.kv.Delete(ctx, snapshotUserKey); err != nil {
		g.log.Warn("delete user snapshot", "error", err)
	}
	if err := g.kv.Set(ctx, snapshotEntitlementKey, string(model.EntitlementFree)); err != nil {
		g.log.Warn("write entitlement snapshot", "error", err)
	}
}

func (g *Gate) writeSnapshot(ctx context.Context) {
	u, ok := g.User()
	if !ok {
		return
	}
	raw, err := json.Marshal(u)
	if err != nil {
		g.log.Warn("encode user snapshot", "error", err)
		return
	}
	if err := g.kv.Set(ctx, snapshotUserKey, string(raw)); err != nil {
		g.log.Warn("write user snapshot", "error", err)
	}
	if err := g.kv.Set(ctx, snapshotEntitlementKey, string(u.Entitlement)); err != nil {
		g.log.Warn("write entitlement snapshot", "error", err)
	}
}

func (g *Gate) signOutQuietly(ctx context.Context) {
	if err := g.backend.SignOut(ctx); err != nil {
		g.log.Warn("sign out failed", "error", err)
	}
}
