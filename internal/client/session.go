package client

import (
	"encoding/json"
	"errors"
	"os"
)

// Session is what the CLI remembers between runs.
type Session struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// SessionFile persists a Session as JSON at Path.
type SessionFile struct {
	Path string
}

// Load reads the session. A missing file yields an empty session.
func (f *SessionFile) Load() (*Session, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Session{}, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the session with owner-only permissions.
func (f *SessionFile) Save(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0o600)
}

// Clear removes the session file.
func (f *SessionFile) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
