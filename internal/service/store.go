package service

import (
	"context"
	"time"

	"github.com/hase-lab/accountd/internal/models"
)

// UserRepository defines the user persistence operations required by
// AccountService.
type UserRepository interface {
	// ListUsers returns every user in store order.
	ListUsers(ctx context.Context) ([]models.User, error)
	// CreateUser inserts user and returns it with the store-assigned ID.
	// A taken username yields common.ErrAlreadyExists.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	// GetUserByUsername returns common.ErrNotFound when no user matches.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// GetUserByID returns common.ErrNotFound when no user matches.
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	// UpdateUser saves name, password hash, token and status of user.
	UpdateUser(ctx context.Context, user *models.User) error
}

// SessionRepository defines the session persistence operations required by
// AccountService.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *models.Session) error
	// GetSession returns common.ErrNotFound for an unknown token.
	GetSession(ctx context.Context, token string) (*models.Session, error)
	// RevokeSession marks a single session revoked at the given time.
	RevokeSession(ctx context.Context, token string, at time.Time) error
	// RevokeUserSessions revokes every live session of a user.
	RevokeUserSessions(ctx context.Context, userID int64, at time.Time) error
}

// Store groups the repositories and the transaction boundary.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	// WithTx runs fn against a transactional view of the store. Writes made
	// through tx become durable only when fn returns nil. Calling WithTx on
	// a transactional view runs fn inside the already open transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
