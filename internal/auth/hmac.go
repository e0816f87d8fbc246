package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type hmacClaims struct {
	Claims
	jwt.RegisteredClaims
}

// HMACVerifier checks tokens signed with the project's shared JWT secret.
type HMACVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewHMACVerifier builds a verifier for HS256 tokens.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), now: time.Now}
}

// Verify parses token and checks signature, expiry and audience.
func (v *HMACVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	var claims hmacClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return newPrincipal(claims.Subject, claims.Email, claims.Role, expires)
}
