package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hase-lab/accountd/internal/common"
	"github.com/hase-lab/accountd/internal/dbx"
	"github.com/hase-lab/accountd/internal/models"
)

// PostgresSessionRepository stores issued tokens in the sessions table.
type PostgresSessionRepository struct {
	DB dbx.DBTX
}

// NewPostgresSessionRepository creates a PostgresSessionRepository bound to db.
func NewPostgresSessionRepository(db dbx.DBTX) *PostgresSessionRepository {
	return &PostgresSessionRepository{DB: db}
}

// CreateSession inserts a new live session.
func (r *PostgresSessionRepository) CreateSession(ctx context.Context, s *models.Session) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, s.Token, s.UserID, s.IssuedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetSession returns the session for token, revoked or not.
func (r *PostgresSessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var (
		s       models.Session
		revoked sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT token, user_id, issued_at, expires_at, revoked_at
		FROM sessions
		WHERE token = $1
	`, token).Scan(&s.Token, &s.UserID, &s.IssuedAt, &s.ExpiresAt, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if revoked.Valid {
		t := revoked.Time
		s.RevokedAt = &t
	}
	return &s, nil
}

// RevokeSession marks the session revoked. Already revoked sessions keep
// their original revocation time.
func (r *PostgresSessionRepository) RevokeSession(ctx context.Context, token string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE token = $1 AND revoked_at IS NULL`,
		token, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeUserSessions revokes every live session of userID.
func (r *PostgresSessionRepository) RevokeUserSessions(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteStale removes sessions that expired or were revoked before cutoff.
func (r *PostgresSessionRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM sessions
		 WHERE expires_at < $1
		    OR revoked_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
