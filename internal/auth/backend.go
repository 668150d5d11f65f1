package auth

import (
	"context"

	"inspirepixel/internal/model"
)

// Backend is the account service and user document store the gate
// synchronizes with. Implementations map their failures onto the model
// error taxonomy.
type Backend interface {
	// SignIn verifies credentials and opens a session, returning the user id.
	SignIn(ctx context.Context, c model.Credentials) (string, error)
	// SignUp creates an account, opens a session and returns the user id.
	SignUp(ctx context.Context, r model.Registration) (string, error)
	SignOut(ctx context.Context) error
	// CurrentUser returns the id of the signed-in user, or "" when signed out.
	CurrentUser(ctx context.Context) (string, error)

	GetProfile(ctx context.Context, uid string) (model.Profile, error)
	CreateProfile(ctx context.Context, uid string, p model.Profile) error
	SetEntitlement(ctx context.Context, uid string, e model.Entitlement) error
	SetFavorites(ctx context.Context, uid string, favorites []string) error
	UpdateName(ctx context.Context, uid, name string) error
}
