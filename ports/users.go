package ports

import (
	"context"

	"github.com/layer-3/warden/core"
)

// UserStore gives access to user records owned by the surrounding application
type UserStore interface {
	// FindByEmail returns the user with the given email or core.ErrNotFound
	FindByEmail(ctx context.Context, email string) (*core.User, error)

	// FindByID returns the user with the given ID or core.ErrNotFound
	FindByID(ctx context.Context, id string) (*core.User, error)

	// Update applies the non-nil fields of upd and returns the updated user
	Update(ctx context.Context, id string, upd core.UserUpdate) (*core.User, error)

	// Create stores a new user; core.ErrConflict if the email is taken
	Create(ctx context.Context, user *core.User) (*core.User, error)
}
