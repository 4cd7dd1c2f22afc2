// Package service provides the account business logic: registration,
// login, logout and password change, delegating persistence to a Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hase-lab/accountd/internal/common"
	"github.com/hase-lab/accountd/internal/metrics"
	"github.com/hase-lab/accountd/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt hashes without truncation.
const maxPasswordBytes = 72

const (
	msgCreateBlank      = "Name, username, and password must not be blank."
	msgNotUnique        = "The %s provided %s not unique. Therefore, the user could not be created!"
	msgLoginBlank       = "Username or password is blank"
	msgBadCredentials   = "Invalid username or password"
	msgTokenBlank       = "Token is blank"
	msgInvalidToken     = "Invalid token"
	msgNewPasswordBlank = "New password is blank"
	msgPasswordTooLong  = "Password must not exceed 72 bytes"
)

// DefaultSessionTTL is the lifetime of an issued token unless overridden.
const DefaultSessionTTL = 24 * time.Hour

// NewUser carries the registration input.
type NewUser struct {
	Name     string
	Username string
	Password string
}

// AccountService implements the account workflows on top of a Store.
type AccountService struct {
	store      Store
	log        *zap.Logger
	sessionTTL time.Duration
	hashCost   int
	now        func() time.Time
	newToken   func() string
	// dummyHash is compared against when the username is unknown so that
	// failed logins take the same time either way.
	dummyHash []byte
}

// Option customizes an AccountService.
type Option func(*AccountService)

// WithSessionTTL sets how long an issued token stays valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *AccountService) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithHashCost sets the bcrypt cost used for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *AccountService) { s.hashCost = cost }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *AccountService) { s.now = now }
}

// WithTokenGenerator replaces the UUID v4 token source.
func WithTokenGenerator(gen func() string) Option {
	return func(s *AccountService) { s.newToken = gen }
}

// NewAccountService constructs an AccountService. store and log are
// required; a nil log is replaced by a no-op logger.
func NewAccountService(store Store, log *zap.Logger, opts ...Option) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &AccountService{
		store:      store,
		log:        log,
		sessionTTL: DefaultSessionTTL,
		hashCost:   bcrypt.DefaultCost,
		now:        time.Now,
		newToken:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.hashCost)
	if err != nil {
		log.Warn("invalid bcrypt cost, using default", zap.Int("cost", s.hashCost), zap.Error(err))
		s.hashCost = bcrypt.DefaultCost
		dummy, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.hashCost)
	}
	s.dummyHash = dummy
	return s
}

// ListUsers returns all users as ordered by the store.
func (s *AccountService) ListUsers(ctx context.Context) (users []models.User, err error) {
	defer func() { metrics.RecordOperation("list", err) }()

	users, err = s.store.Users().ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CreateUser registers a new account. Name, username and password must be
// non-blank; the username must not be taken. The new user is OFFLINE, has a
// fresh token backed by a session, and carries today's creation date.
func (s *AccountService) CreateUser(ctx context.Context, in NewUser) (user *models.User, err error) {
	defer func() { metrics.RecordOperation("create", err) }()

	if isBlank(in.Name) || isBlank(in.Username) || isBlank(in.Password) {
		return nil, common.InvalidArgument(msgCreateBlank)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	candidate := &models.User{
		Name:         in.Name,
		Username:     in.Username,
		PasswordHash: hash,
		Token:        s.newToken(),
		Status:       models.StatusOffline,
		CreationDate: models.Date(now),
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		created, err := tx.Users().CreateUser(ctx, candidate)
		if errors.Is(err, common.ErrAlreadyExists) {
			return common.Conflict(fmt.Sprintf(msgNotUnique, "username", "is"))
		}
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		user = created
		return s.issueSession(ctx, tx, user, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("user created", userFields(user)...)
	return user, nil
}

// LoginUser verifies the credentials, marks the user ONLINE and issues a
// new token. Every earlier token of the user stops working. Unknown user
// and wrong password produce the same Unauthorized error.
func (s *AccountService) LoginUser(ctx context.Context, username, password string) (user *models.User, err error) {
	defer func() { metrics.RecordOperation("login", err) }()

	if isBlank(username) || isBlank(password) {
		return nil, common.InvalidArgument(msgLoginBlank)
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		u, err := tx.Users().GetUserByUsername(ctx, username)
		if errors.Is(err, common.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return common.Unauthorized(msgBadCredentials)
		}
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		// bcrypt ignores everything past maxPasswordBytes, so a longer
		// input would match a stored password that is its prefix.
		if len(password) > maxPasswordBytes {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password[:maxPasswordBytes]))
			return common.Unauthorized(msgBadCredentials)
		}
		if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
			return common.Unauthorized(msgBadCredentials)
		}

		now := s.now()
		if err := tx.Sessions().RevokeUserSessions(ctx, u.ID, now); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		u.Status = models.StatusOnline
		u.Token = s.newToken()
		if err := s.issueSession(ctx, tx, u, now); err != nil {
			return err
		}
		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("user logged in", userFields(user)...)
	return user, nil
}

// LogoutUser revokes the session behind token and marks its user OFFLINE.
func (s *AccountService) LogoutUser(ctx context.Context, token string) (err error) {
	defer func() { metrics.RecordOperation("logout", err) }()

	if isBlank(token) {
		return common.InvalidArgument(msgTokenBlank)
	}

	var user *models.User
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		u, err := s.logout(ctx, tx, token)
		user = u
		return err
	})
	if err != nil {
		return err
	}

	s.log.Debug("user logged out", userFields(user)...)
	return nil
}

// ChangePassword replaces the password of the user behind token and then
// ends that session. The token is validated before the new password.
func (s *AccountService) ChangePassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { metrics.RecordOperation("change_password", err) }()

	if isBlank(token) {
		return common.InvalidArgument(msgTokenBlank)
	}

	var updated, loggedOut *models.User
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		u, err := s.authenticate(ctx, tx, token)
		if err != nil {
			return err
		}
		if isBlank(newPassword) {
			return common.InvalidArgument(msgNewPasswordBlank)
		}

		hash, err := s.hashPassword(newPassword)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		updated = u

		loggedOut, err = s.logout(ctx, tx, token)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Debug("password updated", userFields(updated)...)
	s.log.Debug("user logged out", userFields(loggedOut)...)
	return nil
}

// Authenticate resolves token to its user without changing any state. A
// blank token is InvalidArgument; unknown, revoked and expired tokens are
// Unauthorized.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if isBlank(token) {
		return nil, common.InvalidArgument(msgTokenBlank)
	}
	return s.authenticate(ctx, s.store, token)
}

// authenticate resolves token to its user. Unknown, revoked and expired
// tokens are all reported as Unauthorized.
func (s *AccountService) authenticate(ctx context.Context, tx Store, token string) (*models.User, error) {
	sess, err := tx.Sessions().GetSession(ctx, token)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.Unauthorized(msgInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if !sess.Active(s.now()) {
		return nil, common.Unauthorized(msgInvalidToken)
	}

	u, err := tx.Users().GetUserByID(ctx, sess.UserID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.Unauthorized(msgInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *AccountService) logout(ctx context.Context, tx Store, token string) (*models.User, error) {
	u, err := s.authenticate(ctx, tx, token)
	if err != nil {
		return nil, err
	}
	if err := tx.Sessions().RevokeSession(ctx, token, s.now()); err != nil {
		return nil, fmt.Errorf("revoke session: %w", err)
	}
	u.Status = models.StatusOffline
	if err := tx.Users().UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

func (s *AccountService) issueSession(ctx context.Context, tx Store, u *models.User, now time.Time) error {
	sess := &models.Session{
		Token:     u.Token,
		UserID:    u.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *AccountService) hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, common.InvalidArgument(msgPasswordTooLong)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func userFields(u *models.User) []zap.Field {
	if u == nil {
		return nil
	}
	return []zap.Field{
		zap.Int64("user_id", u.ID),
		zap.String("username", u.Username),
		zap.String("status", string(u.Status)),
	}
}
