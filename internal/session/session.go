// Package session implements the in-memory session manager: issuing,
// resolving, and revoking opaque tokens bound to a (user id, role) pair.
// Sessions never touch the image and do not survive a restart.
package session

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"omnifs/internal/users"
)

// Info is what a resolved session reveals about its owner.
type Info struct {
	Token      string
	UserID     uint32
	Username   string
	Role       users.Role
	CreatedAt  time.Time
	LastActive time.Time
}

// Manager issues and tracks sessions. It owns its own lock, independent of
// the engine's, per spec.md §5's allowance for sessions to use a finer
// lock than the rest of the engine.
type Manager struct {
	mu       sync.RWMutex
	byToken  map[string]*Info
	byUserID map[uint32]map[string]struct{}
}

// New returns an empty session manager.
func New() *Manager {
	return &Manager{
		byToken:  map[string]*Info{},
		byUserID: map[uint32]map[string]struct{}{},
	}
}

// newToken returns 32 lowercase hex characters: the hex encoding of a
// version-4 UUID's 16 random bytes, which already draws from crypto/rand —
// enough entropy (128 bits) for a single-process server, per spec.md §9's
// open question on token format.
func newToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(id[:]), nil
}

// Login issues a fresh token bound to (userID, role, username). Token
// collisions are rejected and retried, per spec.md §4.5.
func (m *Manager) Login(userID uint32, username string, role users.Role, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		token, err := newToken()
		if err != nil {
			return "", err
		}
		if _, exists := m.byToken[token]; exists {
			continue
		}
		m.byToken[token] = &Info{
			Token:      token,
			UserID:     userID,
			Username:   username,
			Role:       role,
			CreatedAt:  now,
			LastActive: now,
		}
		if m.byUserID[userID] == nil {
			m.byUserID[userID] = map[string]struct{}{}
		}
		m.byUserID[userID][token] = struct{}{}
		return token, nil
	}
}

// Resolve returns the session bound to token, touching its last-activity
// time, or ok=false if the token is unknown or was revoked.
func (m *Manager) Resolve(token string, now time.Time) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.byToken[token]
	if !ok {
		return Info{}, false
	}
	info.LastActive = now
	return *info, true
}

// Invalidate revokes a single token.
func (m *Manager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateLocked(token)
}

func (m *Manager) invalidateLocked(token string) {
	info, ok := m.byToken[token]
	if !ok {
		return
	}
	delete(m.byToken, token)
	if set := m.byUserID[info.UserID]; set != nil {
		delete(set, token)
		if len(set) == 0 {
			delete(m.byUserID, info.UserID)
		}
	}
}

// InvalidateForUser revokes every session owned by userID, used by
// user_delete per spec.md §4.3.
func (m *Manager) InvalidateForUser(userID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token := range m.byUserID[userID] {
		m.invalidateLocked(token)
	}
}
