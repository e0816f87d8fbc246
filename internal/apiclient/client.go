// Package apiclient calls the saaskit backend on behalf of the signed-in user.
package apiclient

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

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"saaskit/internal/profiles"
)

// Client implements profilecache.Source against the HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
}

// New returns a Client that authenticates every request with tokens from ts.
func New(ctx context.Context, baseURL string, ts oauth2.TokenSource) *Client {
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = 15 * time.Second
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetProfile fetches one profile row.
func (c *Client) GetProfile(ctx context.Context, id uuid.UUID) (profiles.Profile, error) {
	var p profiles.Profile
	err := c.do(ctx, http.MethodGet, "/api/profiles/"+id.String(), nil, &p)
	return p, err
}

// UpdateProfile sends a partial update.
func (c *Client) UpdateProfile(ctx context.Context, id uuid.UUID, patch profiles.Patch) (profiles.Profile, error) {
	var p profiles.Profile
	err := c.do(ctx, http.MethodPatch, "/api/profiles/"+id.String(), patch, &p)
	return p, err
}

// ListProfiles returns every profile; admin only.
func (c *Client) ListProfiles(ctx context.Context) ([]profiles.Profile, error) {
	var out struct {
		Profiles []profiles.Profile `json:"profiles"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/profiles", nil, &out); err != nil {
		return nil, err
	}
	if out.Profiles == nil {
		out.Profiles = []profiles.Profile{}
	}
	return out.Profiles, nil
}

// DeleteProfile removes a profile row; admin only.
func (c *Client) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/profiles/"+id.String(), nil, nil)
}

type errorResponse struct {
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("refresh session: %w", err)
		}
		return fmt.Errorf("call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if dest == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	var payload errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return profiles.ErrNotFound
	case http.StatusBadRequest:
		msg := payload.Message
		if msg == "" {
			msg = "invalid request"
		}
		return &profiles.ValidationError{Message: msg, Fields: payload.Details}
	case http.StatusForbidden:
		return profiles.ErrForbidden
	}
	if payload.Message != "" {
		return fmt.Errorf("api returned status %d: %s", resp.StatusCode, payload.Message)
	}
	return fmt.Errorf("api returned status %d", resp.StatusCode)
}
