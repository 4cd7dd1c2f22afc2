package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hase-lab/accountd/internal/dbx"
	"github.com/hase-lab/accountd/internal/service"
)

// PostgresStore bundles the PostgreSQL repositories behind service.Store.
type PostgresStore struct {
	// db is nil on the transactional view handed to WithTx callbacks.
	db *sql.DB
	q  dbx.DBTX
}

// NewPostgresStore creates a PostgresStore over db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// Users returns the user repository bound to the current handle.
func (s *PostgresStore) Users() service.UserRepository {
	return NewPostgresUserRepository(s.q)
}

// Sessions returns the session repository bound to the current handle.
func (s *PostgresStore) Sessions() service.SessionRepository {
	return NewPostgresSessionRepository(s.q)
}

// WithTx runs fn in a database transaction and commits when it returns nil.
// On a transactional view fn joins the open transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx service.Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &PostgresStore{q: tx})
	})
}

// DeleteStaleSessions removes sessions that expired or were revoked before
// cutoff.
func (s *PostgresStore) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	return NewPostgresSessionRepository(s.q).DeleteStale(ctx, cutoff)
}
