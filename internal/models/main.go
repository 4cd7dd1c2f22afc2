// Package models defines the core data structures for user accounts and sessions.
package models

import "time"

// UserStatus is the presence flag of a user account.
type UserStatus string

const (
	// StatusOnline marks a user with a live login.
	StatusOnline UserStatus = "ONLINE"
	// StatusOffline marks a user that is registered but not logged in.
	StatusOffline UserStatus = "OFFLINE"
)

// User represents an application user with credentials.
type User struct {
	// ID is the store-assigned identifier of the user.
	ID int64
	// Name is the display name.
	Name string
	// Username is the unique login name, compared case-sensitively.
	Username string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
	// Token is the most recently issued session token.
	Token string
	// Status is ONLINE after login and OFFLINE otherwise.
	Status UserStatus
	// CreationDate is the day the account was created (UTC midnight).
	CreationDate time.Time
}

// Session is an issued bearer token bound to a user.
type Session struct {
	// Token is the opaque bearer credential.
	Token string
	// UserID references the owning user.
	UserID int64
	// IssuedAt is when the token was handed out.
	IssuedAt time.Time
	// ExpiresAt is the instant after which the token is no longer accepted.
	ExpiresAt time.Time
	// RevokedAt is set once the session is ended by logout or a later login.
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Date truncates t to midnight UTC of its calendar day in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
