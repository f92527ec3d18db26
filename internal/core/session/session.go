// Package session is the authenticated-session provider: server-side session
// records (with a small per-session key/value store, used by the CSRF guard
// for its secret) referenced by a signed JWT cookie on the client.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/snapsolve/snapsolve/internal/core"
)

// CookieName is the session cookie set on login.
const CookieName = "snapsolve_session"

// KeyCSRFSecret is the session data key holding the CSRF secret.
const KeyCSRFSecret = "csrf_secret"

// sweepEvery is the Create-call interval between expired-session sweeps.
// Verify already evicts a session whose own cookie comes back after expiry;
// the sweep bounds growth from sessions that are simply abandoned.
const sweepEvery = 100

// Session is one authenticated browser session.
type Session struct {
	ID        string
	UserID    int64
	Data      map[string]string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Config tunes the manager. Zero MaxAge falls back to 24h.
type Config struct {
	// SigningKey signs the session cookie JWT.
	SigningKey []byte
	MaxAge     time.Duration
}

// Manager owns the in-memory session store and the cookie token codec.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	key      []byte
	maxAge   time.Duration
	creates  int
}

func NewManager(c Config) *Manager {
	if c.MaxAge == 0 {
		c.MaxAge = 24 * time.Hour
	}
	return &Manager{
		sessions: make(map[string]*Session),
		key:      c.SigningKey,
		maxAge:   c.MaxAge,
	}
}

// Create registers a new session for userID and returns it with the signed
// cookie value the client should hold.
func (m *Manager) Create(userID int64) (*Session, string, error) {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Data:      make(map[string]string),
		CreatedAt: now,
		ExpiresAt: now.Add(m.maxAge),
	}

	claims := jwt.MapClaims{
		"sid": s.ID,
		"exp": s.ExpiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.creates++
	if m.creates%sweepEvery == 0 {
		m.sweepLocked()
	}
	m.mu.Unlock()

	return s, token, nil
}

// Len returns the current session count, expired sessions included.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// sweepLocked drops every expired session. Caller holds the write lock.
func (m *Manager) sweepLocked() {
	cutoff := time.Now()
	for id, s := range m.sessions {
		if cutoff.After(s.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}

// Verify resolves a cookie value back to its live session.
func (m *Manager) Verify(tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, core.ErrAuthRequired
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil || !token.Valid {
		return nil, core.ErrSessionNotFound
	}
	sid, ok := claims["sid"].(string)
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	m.mu.RLock()
	s, ok := m.sessions[sid]
	m.mu.RUnlock()
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	if time.Now().After(s.ExpiresAt) {
		m.Destroy(sid)
		return nil, core.ErrSessionExpired
	}
	return s, nil
}

// Destroy drops a session by id; no-op if absent.
func (m *Manager) Destroy(sid string) {
	m.mu.Lock()
	delete(m.sessions, sid)
	m.mu.Unlock()
}

// GetValue reads a key from the session's data map.
func (m *Manager) GetValue(s *Session, key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := s.Data[key]
	return v, ok
}

// SetValue writes a key into the session's data map.
func (m *Manager) SetValue(s *Session, key, value string) {
	m.mu.Lock()
	s.Data[key] = value
	m.mu.Unlock()
}
