package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"saaskit/internal/supabase"
)

// Provider is the identity-provider capability the store drives.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (*supabase.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*supabase.Session, error)
}

// Store owns the current session and fans transitions out to subscribers.
type Store struct {
	provider Provider
	persist  Persister
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *Session
	subs    map[int]*subscriber
	nextID  int

	startOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore loads any persisted session synchronously so Current is usable
// before Start confirms it.
func NewStore(provider Provider, persist Persister, opts ...Option) *Store {
	if persist == nil {
		persist = &MemoryPersister{}
	}
	s := &Store{
		provider: provider,
		persist:  persist,
		logger:   zap.NewNop(),
		now:      time.Now,
		subs:     make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(s)
	}

	cached, err := persist.Load()
	if err != nil {
		s.logger.Warn("discarding unreadable session", zap.Error(err))
		cached = nil
	}
	s.current = cached
	return s
}

// Current returns the cached session, or nil.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers for every later transition. Events arrive in emission
// order. The returned cancel is idempotent; once it returns the channel is
// closed and nothing more is delivered.
func (s *Store) Subscribe() (<-chan Event, func()) {
	sub := newSubscriber()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	go sub.run()

	cancel := func() {
		sub.once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			sub.stop()
		})
	}
	return sub.out, cancel
}

// Start confirms or refreshes the cached session in the background and
// finishes with an InitialSession event. Only the first call has an effect.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.bootstrap(ctx)
	})
}

func (s *Store) bootstrap(ctx context.Context) {
	cached := s.Current()
	if cached == nil {
		s.transition(InitialSession, nil, false)
		return
	}

	if cached.Expired(s.now()) {
		refreshed, err := s.provider.RefreshSession(ctx, cached.Token.RefreshToken)
		switch {
		case err == nil:
			s.transition(InitialSession, fromProvider(refreshed), true)
		case isRejected(err):
			s.logger.Info("stored session rejected", zap.Error(err))
			s.transition(InitialSession, nil, true)
		default:
			s.logger.Warn("session refresh failed, keeping cached session", zap.Error(err))
			s.transition(InitialSession, cached, false)
		}
		return
	}

	user, err := s.provider.GetUser(ctx, cached.AccessToken())
	switch {
	case err == nil:
		confirmed := &Session{Token: cached.Token, User: *user}
		s.transition(InitialSession, confirmed, true)
	case isRejected(err):
		s.logger.Info("stored session rejected", zap.Error(err))
		s.transition(InitialSession, nil, true)
	default:
		s.logger.Warn("session confirmation failed, keeping cached session", zap.Error(err))
		s.transition(InitialSession, cached, false)
	}
}

// SignIn authenticates with email and password.
func (s *Store) SignIn(ctx context.Context, email, password string) (*Session, error) {
	granted, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	next := fromProvider(granted)
	s.transition(SignedIn, next, true)
	return next, nil
}

// SignUp registers a new account. A nil session means the account must be
// confirmed by email first.
func (s *Store) SignUp(ctx context.Context, email, password, redirectTo string) (*Session, error) {
	granted, err := s.provider.SignUp(ctx, email, password, redirectTo)
	if err != nil {
		return nil, err
	}
	if granted == nil {
		return nil, nil
	}
	next := fromProvider(granted)
	s.transition(SignedIn, next, true)
	return next, nil
}

// CompleteOAuth finishes a PKCE sign-in.
func (s *Store) CompleteOAuth(ctx context.Context, code, verifier string) (*Session, error) {
	granted, err := s.provider.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	next := fromProvider(granted)
	s.transition(SignedIn, next, true)
	return next, nil
}

// Refresh trades the refresh token for a new session. A rejected refresh
// token signs the user out.
func (s *Store) Refresh(ctx context.Context) (*Session, error) {
	cur := s.Current()
	if cur == nil {
		return nil, ErrNoSession
	}
	granted, err := s.provider.RefreshSession(ctx, cur.Token.RefreshToken)
	if err != nil {
		if isRejected(err) {
			s.transition(SignedOut, nil, true)
		}
		return nil, err
	}
	next := fromProvider(granted)
	s.transition(TokenRefreshed, next, true)
	return next, nil
}

// SignOut revokes the session. When the provider call fails the local
// session is kept and the error returned.
func (s *Store) SignOut(ctx context.Context) error {
	cur := s.Current()
	if cur != nil {
		if err := s.provider.SignOut(ctx, cur.AccessToken()); err != nil {
			return err
		}
	}
	s.transition(SignedOut, nil, true)
	return nil
}

// TokenSource returns an oauth2.TokenSource backed by the store. Expired
// tokens are refreshed through Refresh, which emits TokenRefreshed.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, store: s}
}

type storeTokenSource struct {
	ctx   context.Context
	store *Store
}

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	cur := ts.store.Current()
	if cur == nil {
		return nil, ErrNoSession
	}
	if !cur.Expired(ts.store.now()) {
		return cur.Token, nil
	}
	refreshed, err := ts.store.Refresh(ts.ctx)
	if err != nil {
		return nil, err
	}
	return refreshed.Token, nil
}

func (s *Store) transition(kind EventType, next *Session, persist bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = next
	if persist {
		var err error
		if next == nil {
			err = s.persist.Clear()
		} else {
			err = s.persist.Save(next)
		}
		if err != nil {
			s.logger.Warn("session persistence failed", zap.String("event", kind.String()), zap.Error(err))
		}
	}

	ev := Event{Type: kind, Session: next}
	for _, sub := range s.subs {
		sub.push(ev)
	}
	s.logger.Debug("session transition", zap.String("event", kind.String()), zap.Bool("active", next != nil))
}

// isRejected reports whether the provider refused the credentials, as
// opposed to being unreachable.
func isRejected(err error) bool {
	var apiErr *supabase.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= http.StatusBadRequest && apiErr.Status < http.StatusInternalServerError &&
		apiErr.Status != http.StatusTooManyRequests
}
