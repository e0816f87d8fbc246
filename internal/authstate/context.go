package authstate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"saaskit/internal/autherrors"
	"saaskit/internal/guard"
	"saaskit/internal/notify"
	"saaskit/internal/profilecache"
	"saaskit/internal/profiles"
	"saaskit/internal/session"
)

// Sessions is the session store capability.
type Sessions interface {
	Current() *session.Session
	Subscribe() (<-chan session.Event, func())
	Start(ctx context.Context)
	SignOut(ctx context.Context) error
}

// Profiles is the profile cache capability.
type Profiles interface {
	Fetch(ctx context.Context, user *profilecache.User) (*profilecache.Result, error)
	Update(ctx context.Context, id uuid.UUID, patch profiles.Patch) (profiles.Profile, error)
	Clear(ctx context.Context)
}

type profileResult struct {
	generation uint64
	userID     uuid.UUID
	result     *profilecache.Result
	err        error
}

// Context is the single owner of authentication state. It is the only
// subscriber of the session store and processes transitions in order.
type Context struct {
	sessions   Sessions
	profiles   Profiles
	nav        guard.Navigator
	notifier   notify.Notifier
	translator autherrors.Translator
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	watchers   map[int]chan State
	nextWatch  int

	baseCtx     context.Context
	unsubscribe func()
	results     chan profileResult
	reload      chan struct{}
	done        chan struct{}
	loopDone    chan struct{}
	startOnce   sync.Once
	closeOnce   sync.Once
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTranslator sets the translator for sign-out failures.
func WithTranslator(t autherrors.Translator) Option {
	return func(c *Context) { c.translator = t }
}

// WithClock overrides the clock used for activity touches.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Context. The cached session, if any, is visible immediately
// while the state is still bootstrapping.
func New(sessions Sessions, cache Profiles, nav guard.Navigator, notifier notify.Notifier, opts ...Option) *Context {
	c := &Context{
		sessions:   sessions,
		profiles:   cache,
		nav:        nav,
		notifier:   notifier,
		translator: autherrors.New("fr"),
		logger:     zap.NewNop(),
		now:        time.Now,
		watchers:   make(map[int]chan State),
		results:    make(chan profileResult),
		reload:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	cached := sessions.Current()
	c.state = State{Session: cached, bootstrapping: true}
	if cached != nil {
		user := cached.User
		c.state.User = &user
	}
	return c
}

// Start subscribes to the session store, asks it to bootstrap and runs the
// event loop until Close.
func (c *Context) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.baseCtx = ctx
		events, unsubscribe := c.sessions.Subscribe()
		c.unsubscribe = unsubscribe
		go c.loop(events)
		c.sessions.Start(ctx)
	})
}

// Close unsubscribes synchronously and stops the loop. In-flight profile
// fetches are abandoned.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		close(c.done)
		if c.unsubscribe != nil {
			<-c.loopDone
		}

		c.mu.Lock()
		for id, ch := range c.watchers {
			close(ch)
			delete(c.watchers, id)
		}
		c.mu.Unlock()
	})
}

// Snapshot returns the current state.
func (c *Context) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Watch publishes state snapshots. Slow readers only see the latest one.
func (c *Context) Watch() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = ch
	ch <- c.state
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(ch)
			}
		})
	}
}

// WaitReady blocks until the state is no longer loading.
func (c *Context) WaitReady(ctx context.Context) (State, error) {
	states, cancel := c.Watch()
	defer cancel()
	for {
		select {
		case s, ok := <-states:
			if !ok {
				return c.Snapshot(), context.Canceled
			}
			if !s.IsLoading() {
				return s, nil
			}
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

// SignOut asks the provider to end the session. On failure the user is
// notified and local state is left for the session events to reconcile.
func (c *Context) SignOut(ctx context.Context) error {
	if err := c.sessions.SignOut(ctx); err != nil {
		msg := c.translator.Translate(err)
		c.notifier.Notify(notify.Notification{Variant: notify.Destructive, Title: msg.Title, Description: msg.Description})
		c.logger.Warn("sign out failed", zap.Error(err))
		return err
	}
	return nil
}

// ReloadProfile refetches the current user's profile through the loop.
func (c *Context) ReloadProfile() {
	select {
	case c.reload <- struct{}{}:
	default:
	}
}

func (c *Context) loop(events <-chan session.Event) {
	defer close(c.loopDone)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ev)
		case res := <-c.results:
			c.handleProfile(res)
		case <-c.reload:
			c.handleReload()
		case <-c.done:
			return
		}
	}
}

func (c *Context) handleEvent(ev session.Event) {
	if ev.Session == nil {
		c.handleSignedOut(ev)
		return
	}

	c.mu.Lock()
	prev := c.state
	user := ev.Session.User
	next := State{Session: ev.Session, User: &user}

	sameUser := prev.User != nil && prev.User.ID == user.ID
	needsFetch := !sameUser || prev.Profile == nil || ev.Type == session.SignedIn || ev.Type == session.InitialSession
	if needsFetch {
		c.generation++
		next.profilePending = true
		if sameUser {
			next.Profile = prev.Profile
		}
	} else {
		next.Profile = prev.Profile
		next.ProfileErr = prev.ProfileErr
		next.profilePending = prev.profilePending
	}
	gen := c.generation
	c.setStateLocked(next)
	c.mu.Unlock()

	c.logger.Debug("session event", zap.String("event", ev.Type.String()), zap.String("user_id", user.ID.String()))
	if needsFetch {
		c.fetchProfile(gen, user.ID, user.Email)
	}
	c.touch(user.ID)
}

func (c *Context) handleSignedOut(ev session.Event) {
	c.mu.Lock()
	hadUser := c.state.User != nil
	c.generation++
	c.setStateLocked(State{})
	c.mu.Unlock()

	// Cached profile data must be gone before anything renders the login page.
	c.profiles.Clear(c.baseCtx)
	if ev.Type == session.SignedOut || hadUser {
		c.nav.Navigate(guard.PathLogin)
	}
}

func (c *Context) handleReload() {
	c.mu.Lock()
	if c.state.User == nil {
		c.mu.Unlock()
		return
	}
	c.generation++
	gen := c.generation
	next := c.state
	next.profilePending = true
	user := *next.User
	c.setStateLocked(next)
	c.mu.Unlock()

	c.fetchProfile(gen, user.ID, user.Email)
}

func (c *Context) handleProfile(res profileResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Results for a superseded request or a different user are dropped.
	if res.generation != c.generation || c.state.User == nil || c.state.User.ID != res.userID {
		c.logger.Debug("discarding stale profile result", zap.String("user_id", res.userID.String()))
		return
	}

	next := c.state
	next.profilePending = false
	if res.err != nil {
		next.Profile = nil
		next.ProfileErr = res.err
		c.logger.Error("profile fetch failed", zap.String("user_id", res.userID.String()), zap.Error(res.err))
	} else {
		next.Profile = res.result
		next.ProfileErr = nil
	}
	c.setStateLocked(next)
}

func (c *Context) fetchProfile(gen uint64, id uuid.UUID, email string) {
	ctx := c.baseCtx
	go func() {
		res, err := c.profiles.Fetch(ctx, &profilecache.User{ID: id, Email: email})
		select {
		case c.results <- profileResult{generation: gen, userID: id, result: res, err: err}:
		case <-c.done:
		}
	}()
}

// touch records activity without blocking the loop. Failures are logged only.
func (c *Context) touch(id uuid.UUID) {
	at := c.now().UTC()
	ctx := context.WithoutCancel(c.baseCtx)
	go func() {
		if _, err := c.profiles.Update(ctx, id, profiles.Patch{LastActiveAt: &at}); err != nil {
			c.logger.Warn("last active update failed", zap.String("user_id", id.String()), zap.Error(err))
		}
	}()
}

func (c *Context) setStateLocked(next State) {
	c.state = next
	for _, ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}
