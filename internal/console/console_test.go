package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/oauth2"

	"saaskit/internal/admin"
	"saaskit/internal/auth"
	"saaskit/internal/config"
	"saaskit/internal/guard"
	apihttp "saaskit/internal/http"
	"saaskit/internal/profiles"
	"saaskit/internal/session"
	"saaskit/internal/supabase"
)

const testSecret = "console-test-secret"

var (
	adminID = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	userID  = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

type stubProvider struct {
	signInFn   func(ctx context.Context, email, password string) (*supabase.Session, error)
	signUpFn   func(ctx context.Context, email, password, redirectTo string) (*supabase.Session, error)
	signOutFn  func(ctx context.Context, accessToken string) error
	exchangeFn func(ctx context.Context, code, verifier string) (*supabase.Session, error)
	users      map[string]supabase.User

	mu         sync.Mutex
	redirectTo string
}

func (s *stubProvider) SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error) {
	return s.signInFn(ctx, email, password)
}

func (s *stubProvider) SignUp(ctx context.Context, email, password, redirectTo string) (*supabase.Session, error) {
	return s.signUpFn(ctx, email, password, redirectTo)
}

func (s *stubProvider) RefreshSession(context.Context, string) (*supabase.Session, error) {
	return nil, &supabase.APIError{Status: http.StatusBadRequest, Code: "invalid_grant", Message: "Invalid Refresh Token"}
}

func (s *stubProvider) SignOut(ctx context.Context, accessToken string) error {
	if s.signOutFn != nil {
		return s.signOutFn(ctx, accessToken)
	}
	return nil
}

func (s *stubProvider) GetUser(_ context.Context, accessToken string) (*supabase.User, error) {
	u, ok := s.users[accessToken]
	if !ok {
		return nil, &supabase.APIError{Status: http.StatusUnauthorized, Message: "invalid JWT"}
	}
	return &u, nil
}

func (s *stubProvider) ExchangeCode(ctx context.Context, code, verifier string) (*supabase.Session, error) {
	return s.exchangeFn(ctx, code, verifier)
}

func (s *stubProvider) AuthorizeURL(provider, redirectTo string) (string, string) {
	s.mu.Lock()
	s.redirectTo = redirectTo
	s.mu.Unlock()
	return "https://idp.test/authorize?provider=" + provider, "verifier-1"
}

func (s *stubProvider) redirect() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirectTo
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	app       *App
	out       *syncBuffer
	provider  *stubProvider
	service   *profiles.Service
	persister *session.MemoryPersister
}

func accessToken(t *testing.T, id uuid.UUID) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": id.String(),
		"aud": auth.Audience,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func grant(t *testing.T, user supabase.User) *supabase.Session {
	return &supabase.Session{
		AccessToken:  accessToken(t, user.ID),
		RefreshToken: "refresh-" + user.ID.String(),
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         user,
	}
}

func seedProfiles() []profiles.Profile {
	created := time.Now().Add(-48 * time.Hour)
	name := "Ada Admin"
	return []profiles.Profile{
		{ID: adminID, Email: "ada@example.com", FullName: &name, Role: profiles.RoleAdmin, HasAcceptedTerms: true, CreatedAt: created, UpdatedAt: created},
		{ID: userID, Email: "bob@example.com", Role: profiles.RoleUser, HasAcceptedTerms: true, CreatedAt: created, UpdatedAt: created},
	}
}

// newHarness serves the real API over an in-memory repository. When
// signedIn is set, a confirmed session for that user is already persisted.
func newHarness(t *testing.T, seed []profiles.Profile, signedIn *uuid.UUID) *harness {
	t.Helper()

	svc := profiles.NewService(profiles.NewInMemoryRepository(seed))
	api := httptest.NewServer(apihttp.NewRouter(
		config.Config{Environment: "development"},
		apihttp.Dependencies{Profiles: svc, Verifier: auth.NewHMACVerifier(testSecret)},
	))
	t.Cleanup(api.Close)

	provider := &stubProvider{users: map[string]supabase.User{}}
	persister := &session.MemoryPersister{}
	if signedIn != nil {
		user := supabase.User{ID: *signedIn, Email: emailOf(seed, *signedIn)}
		token := accessToken(t, user.ID)
		provider.users[token] = user
		require.NoError(t, persister.Save(&session.Session{
			Token: &oauth2.Token{AccessToken: token, TokenType: "bearer", Expiry: time.Now().Add(time.Hour)},
			User:  user,
		}))
	}

	out := &syncBuffer{}
	app := New(context.Background(), Deps{
		Provider:     provider,
		Persister:    persister,
		APIURL:       api.URL,
		Out:          out,
		Locale:       "fr",
		RedirectURL:  "http://127.0.0.1:0/callback",
		ReadyTimeout: 3 * time.Second,
	})
	t.Cleanup(app.Close)

	return &harness{app: app, out: out, provider: provider, service: svc, persister: persister}
}

func emailOf(seed []profiles.Profile, id uuid.UUID) string {
	for _, p := range seed {
		if p.ID == id {
			return p.Email
		}
	}
	return id.String() + "@example.com"
}

func ptr[T any](v T) *T { return &v }

func TestDashboardRedirectsAnonymousUser(t *testing.T) {
	h := newHarness(t, seedProfiles(), nil)

	require.NoError(t, h.app.Dashboard(context.Background()))

	assert.Equal(t, "/login", h.app.LastPath())
	assert.Contains(t, h.out.String(), "saasctl login")
}

func TestDashboardRendersSignedInProfile(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(adminID))

	require.NoError(t, h.app.Dashboard(context.Background()))

	out := h.out.String()
	assert.Contains(t, out, "Bienvenue, Ada Admin")
	assert.Contains(t, out, "saasctl admin users")
}

func TestLoginLandsOnDashboard(t *testing.T) {
	h := newHarness(t, seedProfiles(), nil)
	bob := supabase.User{ID: userID, Email: "bob@example.com"}
	h.provider.signInFn = func(_ context.Context, email, password string) (*supabase.Session, error) {
		assert.Equal(t, "bob@example.com", email)
		assert.Equal(t, "hunter22", password)
		return grant(t, bob), nil
	}

	require.NoError(t, h.app.Login(context.Background(), "bob@example.com", "hunter22"))

	assert.Contains(t, h.out.String(), "Bon retour !")
	assert.Equal(t, "/dashboard", h.app.LastPath())
	stored, err := h.persister.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, userID, stored.UserID())
}

func TestLoginShowsTranslatedError(t *testing.T) {
	h := newHarness(t, seedProfiles(), nil)
	h.provider.signInFn = func(context.Context, string, string) (*supabase.Session, error) {
		return nil, &supabase.APIError{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}

	err := h.app.Login(context.Background(), "bob@example.com", "wrong")

	require.Error(t, err)
	assert.Contains(t, h.out.String(), "Identifiants invalides")
	assert.Empty(t, h.app.LastPath())
}

func TestLoginRedirectsWhenAlreadySignedIn(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(userID))

	require.NoError(t, h.app.Login(context.Background(), "bob@example.com", "hunter22"))

	assert.Equal(t, "/dashboard", h.app.LastPath())
}

func TestRegisterWithoutSessionAsksForConfirmation(t *testing.T) {
	h := newHarness(t, seedProfiles(), nil)
	h.provider.signUpFn = func(_ context.Context, _, _, redirectTo string) (*supabase.Session, error) {
		assert.Equal(t, "http://127.0.0.1:0/callback", redirectTo)
		return nil, nil
	}

	require.NoError(t, h.app.Register(context.Background(), "new@example.com", "hunter22"))

	assert.Contains(t, h.out.String(), "Veuillez vérifier vos emails")
	assert.Empty(t, h.app.LastPath())
}

func TestPagesWaitForTermsAcceptance(t *testing.T) {
	seed := seedProfiles()
	seed[1].HasAcceptedTerms = false
	h := newHarness(t, seed, ptr(userID))
	ctx := context.Background()

	err := h.app.Billing(ctx)
	require.ErrorIs(t, err, ErrTermsPending)
	assert.Contains(t, h.out.String(), "saasctl accept-terms")

	require.NoError(t, h.app.AcceptTerms(ctx))
	assert.Contains(t, h.out.String(), "Merci !")
	assert.Contains(t, h.out.String(), "Vous pouvez maintenant accéder à l'application.")

	stored, err := h.service.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, stored.HasAcceptedTerms)

	require.NoError(t, h.app.Billing(ctx))
	assert.Contains(t, h.out.String(), "Abonnement : Gratuit")
}

func TestNewUserSeesPlaceholderAndTermsGate(t *testing.T) {
	h := newHarness(t, seedProfiles(), nil)
	h.provider.signInFn = func(context.Context, string, string) (*supabase.Session, error) {
		return grant(t, supabase.User{ID: uuid.New(), Email: "ghost@example.com"}), nil
	}

	require.NoError(t, h.app.Login(context.Background(), "ghost@example.com", "hunter22"))
	require.NoError(t, h.app.Whoami(context.Background()))

	assert.Contains(t, h.out.String(), "profil en cours de création")
	err := h.app.Dashboard(context.Background())
	assert.ErrorIs(t, err, ErrTermsPending)
}

func TestSettingsUpdatesFullName(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(userID))
	ctx := context.Background()

	require.NoError(t, h.app.Settings(ctx, ptr("Bob Martin")))

	out := h.out.String()
	assert.Contains(t, out, "Profil mis à jour")
	assert.Contains(t, out, "Nom        : Bob Martin")
	stored, err := h.service.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, stored.FullName)
	assert.Equal(t, "Bob Martin", *stored.FullName)
}

func TestLogoutNavigatesToLogin(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(userID))
	var revoked string
	h.provider.signOutFn = func(_ context.Context, token string) error {
		revoked = token
		return nil
	}

	require.NoError(t, h.app.Logout(context.Background()))
	h.app.Close()

	assert.NotEmpty(t, revoked)
	assert.Equal(t, "/login", h.app.LastPath())
	stored, err := h.persister.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestLogoutFailureKeepsSession(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(userID))
	h.provider.signOutFn = func(context.Context, string) error {
		return errors.New("Network request failed")
	}

	require.Error(t, h.app.Logout(context.Background()))

	assert.Contains(t, h.out.String(), "Erreur réseau")
	assert.True(t, h.app.auth.Snapshot().HasUser())
}

func TestAdminPagesDenyRegularUsers(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(userID))

	require.NoError(t, h.app.AdminUsers(context.Background(), profiles.FilterOptions{}))

	assert.Contains(t, h.out.String(), "Access Denied")
	assert.NotContains(t, h.out.String(), "ada@example.com")
}

func TestAdminUsersFiltersByRole(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(adminID))

	require.NoError(t, h.app.AdminUsers(context.Background(), profiles.FilterOptions{Role: profiles.RoleFilterUser}))

	out := h.out.String()
	assert.Contains(t, out, "bob@example.com")
	assert.NotContains(t, out, "ada@example.com")
	assert.Contains(t, out, "1 utilisateur(s)")
}

func TestAdminToggleRolePromotesUser(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(adminID))
	ctx := context.Background()

	require.NoError(t, h.app.AdminToggleRole(ctx, userID))

	assert.Contains(t, h.out.String(), "Rôle mis à jour")
	stored, err := h.service.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, profiles.RoleAdmin, stored.Role)
}

func TestAdminToggleRoleRefreshesListingAndMetrics(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(adminID))
	ctx := context.Background()

	require.NoError(t, h.app.AdminMetrics(ctx))
	before, err := h.app.admin.Metrics(ctx, time.Now())
	require.NoError(t, err)
	listed, err := h.app.admin.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	require.NoError(t, h.app.AdminToggleRole(ctx, userID))

	listed, err = h.app.admin.ListProfiles(ctx)
	require.NoError(t, err)
	var role profiles.Role
	for _, p := range listed {
		if p.ID == userID {
			role = p.Role
		}
	}
	assert.Equal(t, profiles.RoleAdmin, role)

	after, err := h.app.admin.Metrics(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, before.Totals.Admins+1, after.Totals.Admins)
	assert.Equal(t, before.Totals.Total, after.Totals.Total)
}

func TestCrashScreenHidesPanicDetail(t *testing.T) {
	var out bytes.Buffer
	core, logs := observer.New(zapcore.ErrorLevel)
	g := guard.New(&navigator{out: &out}, &screen{out: &out, logger: zap.New(core)})

	err := g.Boundary(func(context.Context) error {
		panic("nil map write in /srv/app/internal/secret.go:42")
	})(context.Background())

	require.ErrorIs(t, err, guard.ErrPageCrashed)
	assert.Contains(t, out.String(), "Something went wrong.")
	assert.Contains(t, out.String(), "Return home: /")
	assert.NotContains(t, out.String(), "secret.go")

	entries := logs.FilterMessage("page crashed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "secret.go")
}

func TestAdminToggleSubscriber(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(adminID))
	ctx := context.Background()

	require.NoError(t, h.app.AdminToggleSubscriber(ctx, userID))

	stored, err := h.service.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, stored.IsSubscriber)
}

func TestAdminDeleteRequiresConfirmation(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(adminID))
	ctx := context.Background()

	err := h.app.AdminDelete(ctx, userID, "delete")
	require.ErrorIs(t, err, admin.ErrConfirmationMismatch)
	_, err = h.service.Get(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, h.app.AdminDelete(ctx, userID, admin.DeleteConfirmation))
	_, err = h.service.Get(ctx, userID)
	assert.ErrorIs(t, err, profiles.ErrNotFound)
}

func TestAdminMetricsAndExport(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(adminID))
	ctx := context.Background()

	require.NoError(t, h.app.AdminMetrics(ctx))
	assert.Contains(t, h.out.String(), "Utilisateurs : 2 (admins 1, abonnés 0)")

	var csv bytes.Buffer
	require.NoError(t, h.app.AdminExport(ctx, &csv))
	lines := strings.Split(strings.TrimSpace(csv.String()), "\n")
	assert.Len(t, lines, 3)
}

func TestLoginOAuthExchangesCallbackCode(t *testing.T) {
	h := newHarness(t, seedProfiles(), nil)
	bob := supabase.User{ID: userID, Email: "bob@example.com"}
	h.provider.exchangeFn = func(_ context.Context, code, verifier string) (*supabase.Session, error) {
		assert.Equal(t, "abc", code)
		assert.Equal(t, "verifier-1", verifier)
		return grant(t, bob), nil
	}
	h.app.openURL = func(string) {
		go func() {
			resp, err := http.Get(h.provider.redirect() + "?code=abc")
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	require.NoError(t, h.app.LoginOAuth(context.Background(), "google"))

	assert.Contains(t, h.out.String(), "https://idp.test/authorize?provider=google")
	assert.Equal(t, "/dashboard", h.app.LastPath())
}

func TestLoginOAuthReportsProviderError(t *testing.T) {
	h := newHarness(t, seedProfiles(), nil)
	h.app.openURL = func(string) {
		go func() {
			resp, err := http.Get(h.provider.redirect() + "?error=access_denied&error_description=User+cancelled")
			if err == nil {
				resp.Body.Close()
			}
		}()
	}

	err := h.app.LoginOAuth(context.Background(), "github")

	require.EqualError(t, err, "User cancelled")
	assert.Empty(t, h.app.LastPath())
}

func TestRootCommandPrintsWhoamiAsJSON(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(adminID))
	root := NewRootCommand(func(context.Context) (*App, error) { return h.app, nil })
	root.SetArgs([]string{"whoami", "--out", "json"})

	require.NoError(t, root.ExecuteContext(context.Background()))

	var got whoami
	require.NoError(t, json.Unmarshal([]byte(h.out.String()), &got))
	assert.Equal(t, adminID, got.ID)
	assert.Equal(t, "admin", got.Role)
	assert.Equal(t, "profile_ready", got.Phase)
}

func TestRootCommandRejectsUnknownOutputFormat(t *testing.T) {
	built := false
	root := NewRootCommand(func(context.Context) (*App, error) {
		built = true
		return nil, errors.New("unexpected")
	})
	root.SetArgs([]string{"whoami", "--out", "yaml"})

	err := root.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.False(t, built)
}

func TestRootCommandValidatesAdminArguments(t *testing.T) {
	h := newHarness(t, seedProfiles(), ptr(adminID))
	root := NewRootCommand(func(context.Context) (*App, error) { return h.app, nil })
	root.SetArgs([]string{"admin", "toggle-role", "not-a-uuid"})

	err := root.ExecuteContext(context.Background())

	require.EqualError(t, err, `invalid user id "not-a-uuid"`)
}

func TestPasswordOrStdin(t *testing.T) {
	pw, err := passwordOrStdin("flag", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "flag", pw)

	pw, err = passwordOrStdin("", strings.NewReader("s3cret\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	_, err = passwordOrStdin("", strings.NewReader(""))
	assert.Error(t, err)
}
