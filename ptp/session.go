package ptp

import (
	"strings"
	"sync"
	"time"
)

// State is the authentication state of a Client.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session is the result of a successful login. It is a value: the client
// replaces it as a whole and never edits fields in place.
type Session struct {
	Token         string
	Passkey       string
	Cookies       []string
	Strategy      StrategyKind
	EstablishedAt time.Time
}

// Valid reports whether the session came from a login.
func (s Session) Valid() bool {
	return !s.EstablishedAt.IsZero()
}

// CookieHeader joins the session cookies for the Cookie header.
func (s Session) CookieHeader() string {
	return strings.Join(s.Cookies, "; ")
}

// sessionStore guards the current session and the login-in-progress flag.
type sessionStore struct {
	mu             sync.RWMutex
	session        Session
	authenticating bool
}

func (s *sessionStore) current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *sessionStore) state() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.authenticating:
		return StateAuthenticating
	case s.session.Valid():
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

func (s *sessionStore) beginLogin() {
	s.mu.Lock()
	s.authenticating = true
	s.mu.Unlock()
}

// endLogin clears the in-progress flag and, on success, swaps in the new
// session. A failed login leaves the previous session untouched.
func (s *sessionStore) endLogin(next Session, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticating = false
	if ok {
		s.session = next
	}
}

// invalidate drops the session, but only if it is still the one the
// rejected request was sent with. A response for a stale session must not
// discard a newer login.
func (s *sessionStore) invalidate(used Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.session.Valid() || !s.session.EstablishedAt.Equal(used.EstablishedAt) {
		return false
	}
	s.session = Session{}
	return true
}

func (s *sessionStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
}
