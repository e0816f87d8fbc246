package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Audience is the aud claim the identity provider puts on user access tokens.
const Audience = "authenticated"

// ErrInvalidToken is returned for any bearer token that fails verification.
var ErrInvalidToken = errors.New("invalid access token")

// Principal identifies the caller of an authenticated request.
type Principal struct {
	UserID    uuid.UUID
	Email     string
	Role      string
	ExpiresAt time.Time
}

// Verifier validates bearer access tokens.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// Claims mirrors the access token payload.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

func newPrincipal(subject, email, role string, expires time.Time) (*Principal, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: id, Email: email, Role: role, ExpiresAt: expires}, nil
}
