package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// User is the identity-provider account.
type User struct {
	ID               uuid.UUID              `json:"id"`
	Email            string                 `json:"email"`
	Role             string                 `json:"role,omitempty"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time             `json:"last_sign_in_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UserMetadata     map[string]interface{} `json:"user_metadata,omitempty"`
	AppMetadata      map[string]interface{} `json:"app_metadata,omitempty"`
}

// Provider returns the sign-in provider recorded by the identity provider.
func (u User) Provider() string {
	if p, ok := u.AppMetadata["provider"].(string); ok {
		return p
	}
	return "email"
}

// Session is the token grant returned by sign-in, sign-up and refresh.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

// Expiry returns the absolute access-token expiry.
func (s Session) Expiry() time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return time.Time{}
}

type signUpResponse struct {
	Session
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=password",
		body:   credentials{Email: strings.TrimSpace(email), Password: password},
	}, &s)
	if err != nil {
		return nil, err
	}
	return c.stamp(&s), nil
}

// SignUp registers a new account. The returned session is nil when the
// project requires email confirmation before the first sign-in.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*Session, error) {
	path := "/auth/v1/signup"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}

	var resp signUpResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   path,
		body:   credentials{Email: strings.TrimSpace(email), Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, nil
	}
	s := resp.Session
	return c.stamp(&s), nil
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, &APIError{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Refresh token is missing"}
	}
	var s Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=refresh_token",
		body:   map[string]string{"refresh_token": refreshToken},
	}, &s)
	if err != nil {
		return nil, err
	}
	return c.stamp(&s), nil
}

// SignOut revokes the session server-side.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		bearer: accessToken,
	}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound) {
		// The token is already invalid, which is what sign-out wants.
		return nil
	}
	return err
}

// GetUser confirms an access token and returns its user.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", bearer: accessToken}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AuthorizeURL builds the provider redirect for a PKCE OAuth sign-in and
// returns the verifier the caller must keep for ExchangeCode.
func (c *Client) AuthorizeURL(provider, redirectTo string) (string, string) {
	verifier := oauth2.GenerateVerifier()
	values := url.Values{}
	values.Set("provider", provider)
	if redirectTo != "" {
		values.Set("redirect_to", redirectTo)
	}
	values.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	values.Set("code_challenge_method", "s256")
	return c.baseURL + "/auth/v1/authorize?" + values.Encode(), verifier
}

// ExchangeCode completes a PKCE OAuth sign-in.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	var s Session
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=pkce",
		body:   map[string]string{"auth_code": code, "code_verifier": verifier},
	}, &s)
	if err != nil {
		return nil, err
	}
	return c.stamp(&s), nil
}

func (c *Client) stamp(s *Session) *Session {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	return s
}
