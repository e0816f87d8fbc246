// Package session holds the authenticated session of the console user and
// publishes every session transition to subscribers.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"saaskit/internal/supabase"
)

// ErrNoSession is returned when an operation needs a signed-in user.
var ErrNoSession = errors.New("session: not signed in")

// Session is an immutable snapshot of the identity-provider grant. A
// transition always produces a new value.
type Session struct {
	Token *oauth2.Token
	User  supabase.User
}

// AccessToken returns the bearer token.
func (s *Session) AccessToken() string {
	if s == nil || s.Token == nil {
		return ""
	}
	return s.Token.AccessToken
}

// UserID returns the id of the session's user.
func (s *Session) UserID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.User.ID
}

// Expired reports whether the access token is past, or within a few seconds of, its expiry.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.Token == nil {
		return true
	}
	if s.Token.Expiry.IsZero() {
		return false
	}
	return !now.Add(10 * time.Second).Before(s.Token.Expiry)
}

func fromProvider(s *supabase.Session) *Session {
	if s == nil {
		return nil
	}
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &Session{
		Token: &oauth2.Token{
			AccessToken:  s.AccessToken,
			TokenType:    tokenType,
			RefreshToken: s.RefreshToken,
			Expiry:       s.Expiry(),
		},
		User: s.User,
	}
}

// EventType names a session transition.
type EventType int

const (
	// InitialSession closes the bootstrap; the carried session may be nil.
	InitialSession EventType = iota
	SignedIn
	TokenRefreshed
	SignedOut
)

func (t EventType) String() string {
	switch t {
	case InitialSession:
		return "INITIAL_SESSION"
	case SignedIn:
		return "SIGNED_IN"
	case TokenRefreshed:
		return "TOKEN_REFRESHED"
	case SignedOut:
		return "SIGNED_OUT"
	}
	return "UNKNOWN"
}

// Event is one transition and the session that resulted from it.
type Event struct {
	Type    EventType
	Session *Session
}
