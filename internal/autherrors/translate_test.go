package autherrors

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"saaskit/internal/supabase"
)

func TestTranslateKnownMessage(t *testing.T) {
	tr := New("fr")
	got := tr.Translate(&supabase.APIError{Status: 400, Message: "Invalid login credentials"})
	assert.Equal(t, "Identifiants invalides", got.Title)
}

func TestTranslateByCode(t *testing.T) {
	tr := New("en")
	got := tr.Translate(&supabase.APIError{Status: 400, Code: "email_not_confirmed", Message: "whatever"})
	assert.Equal(t, "Email not confirmed", got.Title)

	got = tr.Translate(&supabase.APIError{Status: 422, Code: "anonymous_provider_disabled"})
	assert.Equal(t, "Anonymous sign-in disabled", got.Title)
}

func TestTranslateRateLimitShortcut(t *testing.T) {
	tr := New("fr")
	assert.Equal(t, "Trop de tentatives", tr.Translate(&supabase.APIError{Status: http.StatusTooManyRequests, Message: "Invalid login credentials"}).Title)
	assert.Equal(t, "Trop de tentatives", tr.Translate(&supabase.APIError{Status: 400, Code: "over_query_limit"}).Title)
}

func TestTranslateEmailFallback(t *testing.T) {
	tr := New("fr")
	got := tr.Translate(errors.New("Unable to validate EMAIL address"))
	assert.Equal(t, "Email invalide", got.Title)
}

func TestTranslateGenericFallbackKeepsRawMessage(t *testing.T) {
	tr := New("fr")
	got := tr.Translate(errors.New("kaboom"))
	assert.Equal(t, "Une erreur est survenue", got.Title)
	assert.Equal(t, "kaboom", got.Description)

	empty := tr.Translate(&supabase.APIError{Status: 500})
	assert.Equal(t, "Une erreur est survenue", empty.Title)
	assert.Contains(t, empty.Description, "support")
}

func TestTranslateNetworkFailure(t *testing.T) {
	tr := New("en")
	err := &url.Error{Op: "Post", URL: "https://demo.supabase.co/auth/v1/token", Err: errors.New("connection refused")}
	assert.Equal(t, "Network error", tr.Translate(err).Title)
}

func TestNewNormalizesLocale(t *testing.T) {
	assert.Equal(t, "en", New("en-US").locale)
	assert.Equal(t, "fr", New("de").locale)
	assert.Equal(t, "fr", New("").locale)
}
