package repository

import (
	"bytes"
	"context"
	"maps"
	"sync"
	"time"

	"github.com/hase-lab/accountd/internal/common"
	"github.com/hase-lab/accountd/internal/models"
	"github.com/hase-lab/accountd/internal/service"
)

type memoryState struct {
	nextID     int64
	order      []int64
	users      map[int64]models.User
	byUsername map[string]int64
	sessions   map[string]models.Session
}

func newMemoryState() *memoryState {
	return &memoryState{
		nextID:     1,
		users:      make(map[int64]models.User),
		byUsername: make(map[string]int64),
		sessions:   make(map[string]models.Session),
	}
}

func (st *memoryState) clone() *memoryState {
	return &memoryState{
		nextID:     st.nextID,
		order:      append([]int64(nil), st.order...),
		users:      maps.Clone(st.users),
		byUsername: maps.Clone(st.byUsername),
		sessions:   maps.Clone(st.sessions),
	}
}

// MemoryStore is a process-local service.Store. Transactions work on a
// copy of the state that replaces the original only on success, so a
// failed operation leaves no partial writes behind.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
	inTx  bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (m *MemoryStore) Users() service.UserRepository       { return memoryUsers{m} }
func (m *MemoryStore) Sessions() service.SessionRepository { return memorySessions{m} }

// WithTx serializes transactions: the store lock is held until fn returns.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx service.Store) error) error {
	if m.inTx {
		return fn(ctx, m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryStore{state: m.state.clone(), inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// lock guards direct (non-transactional) access. A transactional view is
// owned by a single WithTx call and needs no locking.
func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

type memoryUsers struct{ m *MemoryStore }

func (r memoryUsers) ListUsers(ctx context.Context) ([]models.User, error) {
	defer r.m.lock()()
	st := r.m.state

	users := make([]models.User, 0, len(st.order))
	for _, id := range st.order {
		users = append(users, copyUser(st.users[id]))
	}
	return users, nil
}

func (r memoryUsers) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	defer r.m.lock()()
	st := r.m.state

	if _, taken := st.byUsername[user.Username]; taken {
		return nil, common.ErrAlreadyExists
	}
	created := copyUser(*user)
	created.ID = st.nextID
	st.nextID++

	st.users[created.ID] = created
	st.byUsername[created.Username] = created.ID
	st.order = append(st.order, created.ID)

	out := copyUser(created)
	return &out, nil
}

func (r memoryUsers) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer r.m.lock()()
	st := r.m.state

	id, ok := st.byUsername[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	u := copyUser(st.users[id])
	return &u, nil
}

func (r memoryUsers) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	defer r.m.lock()()

	stored, ok := r.m.state.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	u := copyUser(stored)
	return &u, nil
}

func (r memoryUsers) UpdateUser(ctx context.Context, user *models.User) error {
	defer r.m.lock()()
	st := r.m.state

	stored, ok := st.users[user.ID]
	if !ok {
		return common.ErrNotFound
	}
	stored.Name = user.Name
	stored.PasswordHash = bytes.Clone(user.PasswordHash)
	stored.Token = user.Token
	stored.Status = user.Status
	st.users[user.ID] = stored
	return nil
}

type memorySessions struct{ m *MemoryStore }

func (r memorySessions) CreateSession(ctx context.Context, s *models.Session) error {
	defer r.m.lock()()

	if _, exists := r.m.state.sessions[s.Token]; exists {
		return common.ErrAlreadyExists
	}
	r.m.state.sessions[s.Token] = copySession(*s)
	return nil
}

func (r memorySessions) GetSession(ctx context.Context, token string) (*models.Session, error) {
	defer r.m.lock()()

	stored, ok := r.m.state.sessions[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	s := copySession(stored)
	return &s, nil
}

func (r memorySessions) RevokeSession(ctx context.Context, token string, at time.Time) error {
	defer r.m.lock()()

	s, ok := r.m.state.sessions[token]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	s.RevokedAt = &at
	r.m.state.sessions[token] = s
	return nil
}

func (r memorySessions) RevokeUserSessions(ctx context.Context, userID int64, at time.Time) error {
	defer r.m.lock()()

	for token, s := range r.m.state.sessions {
		if s.UserID != userID || s.RevokedAt != nil {
			continue
		}
		revokedAt := at
		s.RevokedAt = &revokedAt
		r.m.state.sessions[token] = s
	}
	return nil
}

// DeleteStaleSessions drops sessions that expired or were revoked before
// cutoff and returns how many were removed.
func (m *MemoryStore) DeleteStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	defer m.lock()()

	var n int64
	for token, s := range m.state.sessions {
		if s.ExpiresAt.Before(cutoff) || (s.RevokedAt != nil && s.RevokedAt.Before(cutoff)) {
			delete(m.state.sessions, token)
			n++
		}
	}
	return n, nil
}

func copyUser(u models.User) models.User {
	u.PasswordHash = bytes.Clone(u.PasswordHash)
	return u
}

func copySession(s models.Session) models.Session {
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		s.RevokedAt = &t
	}
	return s
}
