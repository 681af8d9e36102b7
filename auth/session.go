// Package auth owns sessions, password hashing, and validation of the
// registration and authentication payloads.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/errors"
	"github.com/ljpprojects/kolloquy/observability"
)

// SessionTTL bounds a session's life, measured from creation. Expiry is
// checked lazily on access; there is no background sweep.
const SessionTTL = 30 * time.Minute

// SessionCookieName is the cookie carrying the opaque session id.
const SessionCookieName = "SSID"

const sessionIDLength = 64

var sessionEncoding = base64.NewEncoding(
	"abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890+/",
).WithPadding(base64.NoPadding)

// Session binds an opaque identifier to an authenticated user snapshot.
type Session struct {
	User    domain.User
	Started time.Time
}

// SessionStore is the process-wide session registry. All operations are
// atomic; every access holds exactly one guard for its whole duration,
// so no caller ever re-acquires across the read/write boundary.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
	log      *slog.Logger
}

func NewSessionStore(log *slog.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]Session),
		now:      time.Now,
		log:      log,
	}
}

// Create opens a session for user and returns its opaque id.
func (s *SessionStore) Create(user domain.User) string {
	id := newSessionID()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = Session{User: user, Started: s.now()}
	return id
}

// Get resolves a session id. An entry past its TTL is evicted on the
// access that observes it and reported as expired exactly once; later
// lookups see not-found. Get therefore mutates the store.
func (s *SessionStore) Get(id string) (domain.User, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.User{}, time.Time{}, fmt.Errorf("%w: session", errors.ErrNotFound)
	}

	if s.now().Sub(session.Started) >= SessionTTL {
		delete(s.sessions, id)
		observability.SessionsEvicted.Inc()
		s.log.Debug("session expired", "user", session.User.UserID)
		return domain.User{}, time.Time{}, errors.ErrSessionExpired
	}

	// A valid access slides the window forward.
	session.Started = s.now()
	s.sessions[id] = session

	return session.User, session.Started, nil
}

// Invalidate removes a session (logout or forced expiry). Unknown ids
// are a no-op.
func (s *SessionStore) Invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live entries, expired ones included until
// something touches them.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func newSessionID() string {
	raw := make([]byte, sessionIDLength)
	if _, err := rand.Read(raw); err != nil {
		panic(err)
	}
	return sessionEncoding.EncodeToString(raw)[:sessionIDLength]
}
