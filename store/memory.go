package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process [Store]. One mutex guards all collections, which
// gives every method the same single-record atomicity the Mongo implementation has.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]*User
	emails        map[string]string
	tokens        map[string]*Token
	refreshTokens map[string]*RefreshToken
	sessions      map[string]*Session
	activities    []Activity

	// Now is the clock for expiry and timestamps.
	Now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*User),
		emails:        make(map[string]string),
		tokens:        make(map[string]*Token),
		refreshTokens: make(map[string]*RefreshToken),
		sessions:      make(map[string]*Session),
		Now:           time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) now() time.Time {
	return m.Now().UTC()
}

func publicUser(u *User) *User {
	out := *u
	out.PasswordHash = ""
	return &out
}

func (m *MemoryStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	return publicUser(m.users[id]), nil
}

func (m *MemoryStore) FindUserByEmailWithPassword(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m.users[id]
	return &out, nil
}

func (m *MemoryStore) FindUserByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return publicUser(u), nil
}

func (m *MemoryStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.emails[u.Email]; exists {
		return ErrDuplicate
	}

	now := m.now()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleUser
	}

	stored := *u
	m.users[u.ID] = &stored
	m.emails[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, id string, patch UserPatch) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.EmailVerified != nil {
		t := *patch.EmailVerified
		u.EmailVerified = &t
	}
	if patch.Onboarded != nil {
		u.Onboarded = *patch.Onboarded
	}
	if patch.Banned != nil {
		u.Banned = *patch.Banned
	}
	if patch.LastSeen != nil {
		t := *patch.LastSeen
		u.LastSeen = &t
	}
	u.UpdatedAt = m.now()

	return publicUser(u), nil
}

func (m *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *publicUser(u))
	}
	sortUsersNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) SearchUsers(_ context.Context, query string, limit int) ([]User, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]User, 0)
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(u.Email, q) {
			out = append(out, *publicUser(u))
		}
	}
	sortUsersNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortUsersNewestFirst(users []User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID > users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
}

func (m *MemoryStore) CreateToken(_ context.Context, userID string, typ TokenType, value string, ttl time.Duration) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tokens {
		if t.Value == value {
			return nil, ErrDuplicate
		}
	}

	now := m.now()
	t := &Token{
		ID:        uuid.NewString(),
		UserID:    userID,
		Value:     value,
		Type:      typ,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	m.tokens[t.ID] = t

	out := *t
	return &out, nil
}

func (m *MemoryStore) ConsumeToken(_ context.Context, value string, typ TokenType) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.tokens {
		if t.Value == value && t.Type == typ {
			delete(m.tokens, id)
			if t.Expired(m.now()) {
				return nil, ErrExpired
			}
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ConsumeTokenByID(_ context.Context, id string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.tokens, id)
	if t.Expired(m.now()) {
		return nil, ErrExpired
	}
	return t, nil
}

func (m *MemoryStore) FindToken(_ context.Context, userID string, typ TokenType) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var newest *Token
	for _, t := range m.tokens {
		if t.UserID != userID || t.Type != typ {
			continue
		}
		if newest == nil || t.CreatedAt.After(newest.CreatedAt) {
			newest = t
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	out := *newest
	return &out, nil
}

func (m *MemoryStore) DeleteTokensForUser(_ context.Context, userID string, types ...TokenType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.tokens {
		if t.UserID == userID && matchesType(t.Type, types) {
			delete(m.tokens, id)
		}
	}
	return nil
}

func matchesType(typ TokenType, types []TokenType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if typ == want {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateRefreshToken(_ context.Context, userID, sessionID, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rt := &RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.refreshTokens[rt.ID] = rt
	return nil
}

func (m *MemoryStore) findRefresh(value, sessionID string) (string, *RefreshToken) {
	now := m.now()
	for id, rt := range m.refreshTokens {
		if rt.Value == value && rt.SessionID == sessionID && now.Before(rt.ExpiresAt) {
			return id, rt
		}
	}
	return "", nil
}

func (m *MemoryStore) FindRefreshToken(_ context.Context, value, sessionID string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, rt := m.findRefresh(value, sessionID)
	if rt == nil {
		return nil, ErrNotFound
	}
	out := *rt
	return &out, nil
}

func (m *MemoryStore) DeleteRefreshToken(_ context.Context, value, sessionID string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, rt := m.findRefresh(value, sessionID)
	if rt == nil {
		return nil, ErrNotFound
	}
	delete(m.refreshTokens, id)
	return rt, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; exists {
		return ErrDuplicate
	}

	now := m.now()
	m.sessions[sessionID] = &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		SessionID:    sessionID,
		LastActivity: now,
		CreatedAt:    now,
	}
	return nil
}

func (m *MemoryStore) TouchSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		if now := m.now(); now.After(s.LastActivity) {
			s.LastActivity = now
		}
	}
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) ListRecentSessions(_ context.Context, since time.Time) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Session, 0)
	for _, s := range m.sessions {
		if !s.LastActivity.Before(since) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListUserSessions(_ context.Context, userID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Session, 0)
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateActivity(_ context.Context, a *Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a.ID = uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.activities = append(m.activities, *a)
	return nil
}

func (m *MemoryStore) ListActivity(_ context.Context, userID string, limit int) ([]Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Activity, 0)
	for i := len(m.activities) - 1; i >= 0; i-- {
		if m.activities[i].UserID != userID {
			continue
		}
		out = append(out, m.activities[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteUserCascade(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rt := range m.refreshTokens {
		if rt.UserID == userID {
			delete(m.refreshTokens, id)
		}
	}
	for sid, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, sid)
		}
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
