package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hase-lab/accountd/internal/common"
	"github.com/hase-lab/accountd/internal/models"
)

func setupSessionsMock(t *testing.T) (*PostgresSessionRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	return NewPostgresSessionRepository(db), mock, func() { db.Close() }
}

func TestCreateSession(t *testing.T) {
	repo, mock, cleanup := setupSessionsMock(t)
	defer cleanup()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s := &models.Session{Token: "tok", UserID: 1, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions (token, user_id, issued_at, expires_at) VALUES ($1, $2, $3, $4)`)).
		WithArgs("tok", int64(1), now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetSession(t *testing.T) {
	query := regexp.QuoteMeta(`SELECT token, user_id, issued_at, expires_at, revoked_at FROM sessions WHERE token = $1`)
	cols := []string{"token", "user_id", "issued_at", "expires_at", "revoked_at"}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("live", func(t *testing.T) {
		repo, mock, cleanup := setupSessionsMock(t)
		defer cleanup()

		mock.ExpectQuery(query).WithArgs("tok").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("tok", int64(2), now, now.Add(time.Hour), nil))

		s, err := repo.GetSession(context.Background(), "tok")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.UserID != 2 || s.RevokedAt != nil {
			t.Errorf("unexpected session: %+v", s)
		}
	})

	t.Run("revoked", func(t *testing.T) {
		repo, mock, cleanup := setupSessionsMock(t)
		defer cleanup()

		revoked := now.Add(time.Minute)
		mock.ExpectQuery(query).WithArgs("tok").
			WillReturnRows(sqlmock.NewRows(cols).AddRow("tok", int64(2), now, now.Add(time.Hour), revoked))

		s, err := repo.GetSession(context.Background(), "tok")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.RevokedAt == nil || !s.RevokedAt.Equal(revoked) {
			t.Errorf("expected revoked at %v, got %v", revoked, s.RevokedAt)
		}
		if s.Active(now) {
			t.Errorf("revoked session must not be active")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		repo, mock, cleanup := setupSessionsMock(t)
		defer cleanup()

		mock.ExpectQuery(query).WithArgs("nope").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetSession(context.Background(), "nope")
		if !errors.Is(err, common.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRevokeSession(t *testing.T) {
	repo, mock, cleanup := setupSessionsMock(t)
	defer cleanup()

	at := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET revoked_at = $2 WHERE token = $1 AND revoked_at IS NULL`)).
		WithArgs("tok", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RevokeSession(context.Background(), "tok", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRevokeUserSessions_Error(t *testing.T) {
	repo, mock, cleanup := setupSessionsMock(t)
	defer cleanup()

	at := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`)).
		WithArgs(int64(4), at).
		WillReturnError(errors.New("update failed"))

	if err := repo.RevokeUserSessions(context.Background(), 4, at); err == nil {
		t.Errorf("expected error, got nil")
	}
}

func TestDeleteStale(t *testing.T) {
	repo, mock, cleanup := setupSessionsMock(t)
	defer cleanup()

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE expires_at < $1 OR revoked_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 deleted, got %d", n)
	}
}
