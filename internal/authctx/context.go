// Package authctx holds the signed-in administrator's session: it observes
// the identity provider, verifies every identity with the backend,
// refreshes on a timer and keeps the session store and the Principal in
// step.
package authctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"admin-console/internal/event"
	"admin-console/internal/identity"
	"admin-console/internal/metrics"
	"admin-console/internal/model"
	"admin-console/internal/session"
)

var (
	ErrClosed     = errors.New("auth context closed")
	ErrSuperseded = errors.New("verify cycle superseded by a newer event")
)

const (
	triggerIdentity = "identity"
	triggerLogin    = "login"
	triggerRefresh  = "refresh"
)

// Verifier resolves an ID token to a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Principal, error)
}

type Deps struct {
	Provider  identity.Provider
	Verifier  Verifier
	Store     session.Store
	Navigator Navigator
	Bus       event.Bus
	Metrics   *metrics.Metrics
}

type Options struct {
	RefreshInterval time.Duration
	CallTimeout     time.Duration
	SessionTTL      time.Duration
}

func (o Options) withDefaults() Options {
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 30 * time.Minute
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = 7 * 24 * time.Hour
	}
	return o
}

// Context is the only writer of the session store and the Principal.
// Every transition takes c.mu; a verify cycle is tagged with the sequence
// number current when its trigger was observed and its result is dropped
// if a newer trigger arrived meanwhile.
type Context struct {
	provider identity.Provider
	verifier Verifier
	store    session.Store
	nav      Navigator
	bus      event.Bus
	metrics  *metrics.Metrics
	opts     Options

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	seq       uint64
	state     State
	principal *model.Principal
	notice    *Notice
	version   uint64
	logins    int
	closed    bool

	unsubscribe func()
	closeOnce   sync.Once
}

func New(deps Deps, opts Options) (*Context, error) {
	if deps.Provider == nil || deps.Verifier == nil || deps.Store == nil {
		return nil, errors.New("auth context requires a provider, a verifier and a session store")
	}

	nav := deps.Navigator
	if nav == nil {
		nav = nopNavigator{}
	}

	base, cancel := context.WithCancel(context.Background())
	c := &Context{
		provider: deps.Provider,
		verifier: deps.Verifier,
		store:    deps.Store,
		nav:      nav,
		bus:      deps.Bus,
		metrics:  deps.Metrics,
		opts:     opts.withDefaults(),
		base:     base,
		cancel:   cancel,
		state:    StateLoading,
	}
	c.metrics.SetState(string(StateLoading))

	c.unsubscribe = c.provider.Subscribe(c.onIdentity)

	c.wg.Add(1)
	go c.refreshLoop()

	return c, nil
}

// Close stops the refresh timer, detaches from the provider and waits for
// in-flight cycles. It is safe to call more than once.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.unsubscribe()
		c.cancel()
		c.wg.Wait()
	})
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		State:     c.state,
		Principal: c.principal,
		Notice:    c.notice,
		Version:   c.version,
	}
}

func (c *Context) Principal() *model.Principal {
	return c.Snapshot().Principal
}

// Login signs in and verifies before returning, so the Principal is
// settled when it does. A failure after sign-in is rolled back with a
// provider sign-out.
func (c *Context) Login(ctx context.Context, email string, password string) (*model.Principal, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.logins++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.logins--
		c.mu.Unlock()
	}()

	if _, err := c.provider.SignIn(ctx, email, password); err != nil {
		slog.Info("console sign-in failed", "email", email, "error", err)
		return nil, err
	}

	seq := c.begin()
	err := c.cycle(ctx, seq, triggerLogin)
	switch {
	case err == nil:
		return c.Principal(), nil
	case errors.Is(err, ErrSuperseded):
		if p := c.Principal(); p != nil {
			return p, nil
		}
		return nil, err
	default:
		if signOutErr := c.provider.SignOut(ctx); signOutErr != nil {
			slog.Warn("rollback sign-out failed", "error", signOutErr)
		}
		return nil, err
	}
}

func (c *Context) Logout(ctx context.Context) error {
	if err := c.provider.SignOut(ctx); err != nil {
		slog.Warn("provider sign-out failed; clearing local session anyway", "error", err)
	}

	c.mu.Lock()
	c.seq++
	eff := c.settleAnonymousLocked(nil)
	c.notice = nil
	c.mu.Unlock()

	c.perform(ctx, eff)
	return nil
}

// Refresh re-runs the forced-token verify cycle. It only applies while
// authenticated.
func (c *Context) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return model.ErrNotSignedIn
	}
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	return c.cycle(ctx, seq, triggerRefresh)
}

func (c *Context) refreshLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.base.Done():
			return
		case <-ticker.C:
			err := c.Refresh(c.base)
			if err != nil && !errors.Is(err, model.ErrNotSignedIn) && !errors.Is(err, ErrClosed) {
				slog.Warn("background session refresh failed", "error", err)
			}
		}
	}
}

func (c *Context) onIdentity(current *model.Identity) {
	if current == nil {
		c.mu.Lock()
		c.seq++
		eff := c.settleAnonymousLocked(nil)
		c.mu.Unlock()

		c.perform(c.base, eff)
		return
	}

	c.mu.Lock()
	// A running Login verifies its own identity.
	if c.closed || c.logins > 0 {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		if err := c.cycle(c.base, seq, triggerIdentity); err != nil && !errors.Is(err, ErrSuperseded) {
			slog.Warn("identity verification failed", "uid", current.UID, "error", err)
		}
	}()
}

func (c *Context) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *Context) cycle(ctx context.Context, seq uint64, trigger string) error {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	token, err := c.provider.Token(callCtx, true)
	var principal *model.Principal
	if err == nil {
		principal, err = c.verifier.Verify(callCtx, token)
	}
	if err == nil && principal == nil {
		err = fmt.Errorf("%w: verifier returned no principal", model.ErrServiceUnavailable)
	}

	return c.complete(ctx, seq, trigger, token, principal, err)
}

type outcome string

const (
	outcomeAuthenticated outcome = "authenticated"
	outcomeSignedOut     outcome = "signed_out"
	outcomeUnauthorized  outcome = "unauthorized"
	outcomeForbidden     outcome = "forbidden"
	outcomeUnavailable   outcome = "unavailable"
	outcomeSuperseded    outcome = "superseded"
)

func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeAuthenticated
	case errors.Is(err, model.ErrNotSignedIn):
		return outcomeSignedOut
	case errors.Is(err, model.ErrUnauthorized):
		return outcomeUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return outcomeForbidden
	default:
		return outcomeUnavailable
	}
}

type effects struct {
	signOut  bool
	navigate string
	notice   *Notice
	states   []State
	changed  bool
}

func (c *Context) complete(ctx context.Context, seq uint64, trigger string, token string, principal *model.Principal, err error) error {
	result := classify(err)

	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		c.metrics.ObserveCycle(trigger, string(outcomeSuperseded))
		slog.Debug("discarding superseded verify cycle", "trigger", trigger, "seq", seq)
		return ErrSuperseded
	}

	var eff effects
	switch result {
	case outcomeAuthenticated:
		if c.principal == nil || c.principal.ID != principal.ID {
			// Cookies of a previous administrator must not follow into
			// this session.
			c.store.Clear()
		}
		c.state = StateAuthenticated
		c.principal = principal
		c.notice = nil
		c.version++
		c.store.Set(token, c.opts.SessionTTL)
		eff.changed = true
		eff.states = []State{StateAuthenticated}
		eff.navigate = Decide(StateAuthenticated, c.nav.Path())

	case outcomeSignedOut:
		eff = c.settleAnonymousLocked(nil)

	case outcomeUnauthorized, outcomeForbidden:
		kind := NoticeSessionExpired
		if result == outcomeForbidden {
			kind = NoticeNotAuthorized
		}
		eff = c.settleAnonymousLocked(newNotice(kind))
		eff.states = []State{StateRejected, StateAnonymous}
		eff.signOut = true

	case outcomeUnavailable:
		if c.principal != nil {
			// Keep the session through transient outages; the next tick retries.
			c.notice = newNotice(NoticeServiceUnavailable)
			eff.notice = c.notice
		} else {
			eff = c.settleAnonymousLocked(newNotice(NoticeServiceUnavailable))
		}
	}
	c.mu.Unlock()

	c.metrics.ObserveCycle(trigger, string(result))
	c.perform(ctx, eff)

	switch result {
	case outcomeAuthenticated:
		slog.Info("console session verified", "trigger", trigger, "user_id", principal.ID, "role", principal.Role)
		return nil
	case outcomeUnavailable:
		if errors.Is(err, model.ErrServiceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", model.ErrServiceUnavailable, err)
	default:
		return err
	}
}

// settleAnonymousLocked nulls the Principal and clears the store in the
// same step. notice replaces the current notice only when non-nil.
func (c *Context) settleAnonymousLocked(notice *Notice) effects {
	eff := effects{states: []State{StateAnonymous}}

	if c.principal != nil || c.state != StateAnonymous {
		eff.changed = true
	}
	if c.principal != nil {
		c.version++
	}

	c.state = StateAnonymous
	c.principal = nil
	c.store.Clear()
	if notice != nil {
		c.notice = notice
		eff.notice = notice
	}
	eff.navigate = Decide(StateAnonymous, c.nav.Path())

	return eff
}

// perform runs the side effects of a transition outside the lock. The
// provider sign-out goes last so the nested identity event sees the
// navigation already done.
func (c *Context) perform(ctx context.Context, eff effects) {
	for _, s := range eff.states {
		c.metrics.SetState(string(s))
	}

	if c.bus != nil {
		if eff.changed {
			c.bus.Publish(event.New(event.TypeSessionChanged, c.Snapshot().View()))
		}
		if eff.notice != nil {
			c.bus.Publish(event.New(event.TypeNotice, eff.notice))
		}
	}

	if eff.navigate != "" {
		c.nav.Navigate(eff.navigate)
	}

	if eff.signOut {
		if err := c.provider.SignOut(ctx); err != nil {
			slog.Warn("provider sign-out after rejection failed", "error", err)
		}
	}
}
