package supabase

import (
	"context"
	"net/http"

	"saaskit/internal/profiles"
)

type listUsersResponse struct {
	Users []User `json:"users"`
}

// ListUsers returns the first page of identity-provider accounts.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	if !c.HasServiceKey() {
		return nil, ErrServiceKeyMissing
	}
	var resp listUsersResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/admin/users?per_page=1000",
		apiKey: c.serviceKey,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Users == nil {
		resp.Users = []User{}
	}
	return resp.Users, nil
}

// DumpProfiles reads the profiles table through the REST endpoint, bypassing
// row-level security.
func (c *Client) DumpProfiles(ctx context.Context) ([]profiles.Profile, error) {
	if !c.HasServiceKey() {
		return nil, ErrServiceKeyMissing
	}
	out := make([]profiles.Profile, 0)
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/profiles?select=*&order=created_at.desc",
		apiKey: c.serviceKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}
