// Package supabase is a small client for the hosted identity provider's
// auth (GoTrue) and REST (PostgREST) endpoints.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrServiceKeyMissing is returned by admin calls when no service-role key is configured.
var ErrServiceKeyMissing = errors.New("supabase: service role key not configured")

// APIError is a non-2xx answer from the identity provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("supabase returned status %d", e.Status)
}

// Client talks to a single project.
type Client struct {
	http       *http.Client
	baseURL    string
	anonKey    string
	serviceKey string
	now        func() time.Time
}

// Option configures the Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithServiceKey enables the admin endpoints.
func WithServiceKey(key string) Option {
	return func(c *Client) {
		c.serviceKey = strings.TrimSpace(key)
	}
}

// WithClock overrides the clock used to stamp session expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Client for the project at baseURL.
func New(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the project URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HasServiceKey reports whether admin calls are possible.
func (c *Client) HasServiceKey() bool {
	return c.serviceKey != ""
}

type request struct {
	method string
	path   string
	body   interface{}
	bearer string
	apiKey string
}

func (c *Client) do(ctx context.Context, r request, dest interface{}) error {
	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode supabase request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("create supabase request: %w", err)
	}
	apiKey := r.apiKey
	if apiKey == "" {
		apiKey = c.anonKey
	}
	bearer := r.bearer
	if bearer == "" {
		bearer = apiKey
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call supabase %s: %w", r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode supabase response: %w", err)
	}
	return nil
}

type errorPayload struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Error            string          `json:"error"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	ErrorDescription string          `json:"error_description"`
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var payload errorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}

	var code string
	if len(payload.Code) > 0 {
		_ = json.Unmarshal(payload.Code, &code)
	}
	apiErr.Code = firstNonEmpty(payload.ErrorCode, code, payload.Error)
	apiErr.Message = firstNonEmpty(payload.Msg, payload.Message, payload.ErrorDescription, payload.Error)
	return apiErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
