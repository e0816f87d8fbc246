package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// JWKSVerifier checks asymmetrically signed tokens against the project's
// published signing keys.
type JWKSVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewJWKSVerifier fetches keys lazily from the project's JWKS endpoint.
func NewJWKSVerifier(ctx context.Context, projectURL string) *JWKSVerifier {
	issuer := strings.TrimRight(projectURL, "/") + "/auth/v1"
	keys := oidc.NewRemoteKeySet(ctx, issuer+"/.well-known/jwks.json")
	return newJWKSVerifier(issuer, keys)
}

func newJWKSVerifier(issuer string, keys oidc.KeySet) *JWKSVerifier {
	return &JWKSVerifier{
		verifier: oidc.NewVerifier(issuer, keys, &oidc.Config{
			ClientID:             Audience,
			SupportedSigningAlgs: []string{oidc.ES256, oidc.RS256},
		}),
	}
}

// Verify checks signature, issuer, audience and expiry.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return newPrincipal(idToken.Subject, claims.Email, claims.Role, idToken.Expiry)
}

// Chain tries each verifier in order and accepts the first success.
type Chain []Verifier

// Verify implements Verifier.
func (c Chain) Verify(ctx context.Context, token string) (*Principal, error) {
	err := ErrInvalidToken
	for _, v := range c {
		p, verr := v.Verify(ctx, token)
		if verr == nil {
			return p, nil
		}
		err = verr
	}
	return nil, err
}

// NewVerifier combines the configured verification methods. It returns nil
// when neither a secret nor a project URL is available.
func NewVerifier(ctx context.Context, jwtSecret, projectURL string) Verifier {
	var chain Chain
	if jwtSecret != "" {
		chain = append(chain, NewHMACVerifier(jwtSecret))
	}
	if projectURL != "" {
		chain = append(chain, NewJWKSVerifier(ctx, projectURL))
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return chain
}
