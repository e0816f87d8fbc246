package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"saaskit/internal/profiles"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "user-token", TokenType: "Bearer"})
	return New(context.Background(), srv.URL, ts)
}

func TestGetProfileSendsBearer(t *testing.T) {
	id := uuid.New()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/profiles/"+id.String(), r.URL.Path)
		_ = json.NewEncoder(w).Encode(profiles.Profile{ID: id, Email: "ada@example.com", Role: profiles.RoleAdmin})
	})

	p, err := c.GetProfile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.True(t, p.IsAdmin())
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{http.StatusNotFound, `{"message":"Profile not found"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, profiles.ErrNotFound)
		}},
		{http.StatusBadRequest, `{"message":"Validation failed","details":{"role":"must be one of: user, admin"}}`, func(t *testing.T, err error) {
			var vErr *profiles.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "Validation failed", vErr.Message)
			assert.Equal(t, "must be one of: user, admin", vErr.Fields["role"])
		}},
		{http.StatusForbidden, `{"message":"forbidden"}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, profiles.ErrForbidden)
		}},
		{http.StatusInternalServerError, `{"message":"Internal server error"}`, func(t *testing.T, err error) {
			assert.EqualError(t, err, "api returned status 500: Internal server error")
		}},
	}

	for _, tc := range cases {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		_, err := c.UpdateProfile(context.Background(), uuid.New(), profiles.Patch{})
		tc.check(t, err)
	}
}

func TestDeleteProfileUsesAdminRoute(t *testing.T) {
	id := uuid.New()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/admin/profiles/"+id.String(), r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.DeleteProfile(context.Background(), id))
}

func TestUpdateProfileSendsOnlySetFields(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"has_accepted_terms": true}, body)
		_ = json.NewEncoder(w).Encode(profiles.Profile{HasAcceptedTerms: true})
	})

	yes := true
	p, err := c.UpdateProfile(context.Background(), uuid.New(), profiles.Patch{HasAcceptedTerms: &yes})
	require.NoError(t, err)
	assert.True(t, p.HasAcceptedTerms)
}

func TestListProfilesUnwrapsEnvelope(t *testing.T) {
	id := uuid.New()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/admin/profiles", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"profiles": []profiles.Profile{{ID: id, Email: "a@b.com"}}})
	})

	list, err := c.ListProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}
