// Package authstate combines the session store and the profile cache into
// the application's authentication state.
package authstate

import (
	"saaskit/internal/profilecache"
	"saaskit/internal/profiles"
	"saaskit/internal/session"
	"saaskit/internal/supabase"
)

// Phase is the coarse lifecycle position.
type Phase int

const (
	Bootstrapping Phase = iota
	Unauthenticated
	ProfilePending
	ProfileReady
)

func (p Phase) String() string {
	switch p {
	case Bootstrapping:
		return "bootstrapping"
	case Unauthenticated:
		return "unauthenticated"
	case ProfilePending:
		return "profile_pending"
	case ProfileReady:
		return "profile_ready"
	}
	return "unknown"
}

// State is an immutable snapshot.
type State struct {
	Session *session.Session
	User    *supabase.User
	Profile *profilecache.Result
	// ProfileErr is the last profile fetch failure other than not-found.
	ProfileErr error

	bootstrapping  bool
	profilePending bool
}

// IsLoading is true while bootstrapping, or while a present user's profile
// is being fetched. It is never true once the user is known to be absent.
func (s State) IsLoading() bool {
	return s.bootstrapping || (s.User != nil && s.profilePending)
}

// HasUser reports whether a user is signed in.
func (s State) HasUser() bool {
	return s.User != nil
}

// IsAdmin is true only for a loaded profile whose role is admin.
func (s State) IsAdmin() bool {
	return s.Profile != nil && s.Profile.Profile.IsAdmin()
}

// CurrentProfile returns the loaded profile, or nil.
func (s State) CurrentProfile() *profiles.Profile {
	if s.Profile == nil {
		return nil
	}
	p := s.Profile.Profile
	return &p
}

// Phase derives the lifecycle position.
func (s State) Phase() Phase {
	switch {
	case s.bootstrapping:
		return Bootstrapping
	case s.User == nil:
		return Unauthenticated
	case s.profilePending:
		return ProfilePending
	default:
		return ProfileReady
	}
}
