// Package repository provides persistence implementations for the account
// service: PostgreSQL-backed repositories and an in-memory store.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hase-lab/accountd/internal/common"
	"github.com/hase-lab/accountd/internal/dbx"
	"github.com/hase-lab/accountd/internal/models"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint breach.
const uniqueViolation = "23505"

const userColumns = `id, name, username, password_hash, token, status, creation_date`

// PostgresUserRepository implements user persistence against PostgreSQL.
type PostgresUserRepository struct {
	// DB is the handle queries run on; *sql.DB or *sql.Tx.
	DB dbx.DBTX
}

// NewPostgresUserRepository creates a PostgresUserRepository bound to db.
func NewPostgresUserRepository(db dbx.DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// ListUsers returns all users ordered by ID.
func (r *PostgresUserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

// CreateUser inserts user and fills in its ID. The ON CONFLICT clause makes
// the uniqueness check and the insert one statement; a taken username
// returns no row and is reported as common.ErrAlreadyExists.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	created := *user
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (name, username, password_hash, token, status, creation_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO NOTHING
		RETURNING id
	`, user.Name, user.Username, user.PasswordHash, user.Token, string(user.Status), user.CreationDate).Scan(&created.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &created, nil
}

// GetUserByUsername fetches a user by exact username.
func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanOne(row)
}

// GetUserByID fetches a user by ID.
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanOne(row)
}

// UpdateUser saves the mutable fields of user. The creation date is never
// rewritten.
func (r *PostgresUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users SET name = $2, password_hash = $3, token = $4, status = $5
		WHERE id = $1
	`, user.ID, user.Name, user.PasswordHash, user.Token, string(user.Status))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, u *models.User) error {
	var status string
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &u.Token, &status, &u.CreationDate); err != nil {
		return err
	}
	u.Status = models.UserStatus(status)
	return nil
}

func scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := scanUser(row, &u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
