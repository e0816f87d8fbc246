// Package console is the saasctl command-line client. Every page command
// boots the auth context, waits for it to settle and renders through the
// route guard.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"saaskit/internal/admin"
	"saaskit/internal/apiclient"
	"saaskit/internal/authstate"
	"saaskit/internal/autherrors"
	"saaskit/internal/guard"
	"saaskit/internal/notify"
	"saaskit/internal/platform/cache"
	"saaskit/internal/profilecache"
	"saaskit/internal/session"
	"saaskit/internal/terms"
)

// ErrTermsPending is returned by pages while the terms gate is visible.
var ErrTermsPending = errors.New("terms of use must be accepted first")

// Provider is the identity provider as the console sees it.
type Provider interface {
	session.Provider
	AuthorizeURL(provider, redirectTo string) (string, string)
}

// Deps configures an App.
type Deps struct {
	Provider    Provider
	Persister   session.Persister
	APIURL      string
	Cache       cache.Store
	CacheTTL    time.Duration
	Out         io.Writer
	Locale      string
	RedirectURL string
	Logger      *zap.Logger
	Now         func() time.Time

	// ReadyTimeout bounds how long a command waits for the auth context.
	ReadyTimeout time.Duration
	// OpenURL is called with the OAuth authorize URL after it is printed.
	OpenURL func(string)
}

// App holds the client-side components for one command invocation.
type App struct {
	provider    Provider
	sessions    *session.Store
	profiles    *profilecache.Cache
	auth        *authstate.Context
	guard       *guard.Guard
	terms       *terms.Gate
	admin       *admin.Views
	nav         *navigator
	notifier    notify.Notifier
	translator  autherrors.Translator
	out         io.Writer
	redirectURL string
	logger      *zap.Logger
	now         func() time.Time
	timeout     time.Duration
	openURL     func(string)
	jsonOut     bool

	startOnce sync.Once
}

// New wires the components. Nothing talks to the network until a command runs.
func New(ctx context.Context, deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	timeout := deps.ReadyTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	translator := autherrors.New(deps.Locale)
	notifier := notify.NewWriter(deps.Out)
	nav := &navigator{out: deps.Out}
	sessions := session.NewStore(deps.Provider, deps.Persister, session.WithLogger(logger), session.WithClock(now))
	api := apiclient.New(ctx, deps.APIURL, sessions.TokenSource(ctx))
	profiles := profilecache.New(api, deps.Cache, ttl, logger)
	auth := authstate.New(sessions, profiles, nav, notifier,
		authstate.WithLogger(logger),
		authstate.WithTranslator(translator),
		authstate.WithClock(now),
	)

	return &App{
		provider:    deps.Provider,
		sessions:    sessions,
		profiles:    profiles,
		auth:        auth,
		guard:       guard.New(nav, &screen{out: deps.Out, logger: logger}),
		terms:       terms.New(auth, profiles, notifier, logger),
		admin:       admin.New(auth, profiles, notifier, logger),
		nav:         nav,
		notifier:    notifier,
		translator:  translator,
		out:         deps.Out,
		redirectURL: deps.RedirectURL,
		logger:      logger,
		now:         now,
		timeout:     timeout,
		openURL:     deps.OpenURL,
	}
}

// Close stops the auth context.
func (a *App) Close() {
	a.auth.Close()
}

// LastPath is the most recent navigation target.
func (a *App) LastPath() string {
	return a.nav.last()
}

func (a *App) start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.auth.Start(context.WithoutCancel(ctx))
	})
}

// ready boots the auth context and waits until it stops loading.
func (a *App) ready(ctx context.Context) (authstate.State, error) {
	a.start(ctx)
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.auth.WaitReady(ctx)
}

// waitFor blocks until cond holds for a settled state.
func (a *App) waitFor(ctx context.Context, cond func(authstate.State) bool) (authstate.State, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	states, stop := a.auth.Watch()
	defer stop()
	for {
		select {
		case s, ok := <-states:
			if !ok {
				return a.auth.Snapshot(), context.Canceled
			}
			if !s.IsLoading() && cond(s) {
				return s, nil
			}
		case <-ctx.Done():
			return a.auth.Snapshot(), ctx.Err()
		}
	}
}

// page renders a protected page after the terms gate.
func (a *App) page(ctx context.Context, req guard.Requirement, render guard.Page) error {
	state, err := a.ready(ctx)
	if err != nil {
		return fmt.Errorf("waiting for session: %w", err)
	}
	if a.terms.Visibility() == terms.Visible {
		fmt.Fprintln(a.out, "Conditions d'utilisation : vous devez les accepter avant de continuer.")
		fmt.Fprintln(a.out, "  saasctl accept-terms")
		return ErrTermsPending
	}

	decision, err := a.guard.Render(ctx, state, req, render)
	if err != nil {
		return err
	}
	if decision == guard.RedirectToLogin {
		fmt.Fprintln(a.out, "Vous devez être connecté : saasctl login")
	}
	return nil
}

func (a *App) notifyError(err error) {
	msg := a.translator.Translate(err)
	a.notifier.Notify(notify.Notification{Variant: notify.Destructive, Title: msg.Title, Description: msg.Description})
}

type navigator struct {
	mu   sync.Mutex
	out  io.Writer
	path string
}

func (n *navigator) Navigate(path string) {
	n.mu.Lock()
	n.path = path
	n.mu.Unlock()
	fmt.Fprintf(n.out, "→ %s\n", path)
}

func (n *navigator) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

type screen struct {
	out    io.Writer
	logger *zap.Logger
}

func (s *screen) Loading() {
	fmt.Fprintln(s.out, "Chargement…")
}

func (s *screen) AccessDenied(backPath string) {
	fmt.Fprintln(s.out, "Access Denied")
	fmt.Fprintln(s.out, "You do not have the required permissions to view this page. This area is restricted to administrators only.")
	fmt.Fprintf(s.out, "Return to Dashboard: %s\n", backPath)
}

// Crashed keeps the panic detail in the log; the user only sees the way out.
func (s *screen) Crashed(homePath string, err error) {
	s.logger.Error("page crashed", zap.Error(err))
	fmt.Fprintln(s.out, "Something went wrong.")
	fmt.Fprintf(s.out, "Return home: %s\n", homePath)
}
