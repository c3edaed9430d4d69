// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package authclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/pkg/errutil"
)

// ErrNoSession is returned by operations that need a current session.
var ErrNoSession = errors.New("no current session")

// Defaults for Client options.
const (
	DefaultRefreshMargin     = 5 * time.Minute
	DefaultRefreshRetryDelay = 30 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithStore sets where the current session is persisted.
func WithStore(store SessionStore) Option {
	return func(c *Client) { c.store = store }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock overrides the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithRetryBackoff sets the backoff used for token refresh. The factory
// is called once per refresh because backoffs are stateful.
func WithRetryBackoff(factory func() retry.Backoff) Option {
	return func(c *Client) { c.backoff = factory }
}

// WithRefreshMargin sets how long before expiry auto refresh fires.
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Client) { c.refreshMargin = d }
}

// WithRefreshRetryDelay sets the wait after a failed auto refresh.
func WithRefreshRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
}

// Client holds the current session for one user of the identity provider.
type Client struct {
	provider      backend.IdentityProvider
	store         SessionStore
	logger        *slog.Logger
	now           func() time.Time
	backoff       func() retry.Backoff
	refreshMargin time.Duration
	retryDelay    time.Duration

	// mu guards current and restored, and orders publication.
	mu       sync.Mutex
	current  *backend.Session
	restored bool
	changed  chan struct{}

	subsMu sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	subsWG sync.WaitGroup
	closed bool
}

// New creates a Client for provider.
func New(provider backend.IdentityProvider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, oops.Code("AUTHCLIENT_INVALID_CONFIG").Errorf("identity provider is required")
	}
	c := &Client{
		provider:      provider,
		store:         NewMemoryStore(),
		logger:        slog.Default(),
		now:           time.Now,
		backoff:       defaultBackoff,
		refreshMargin: DefaultRefreshMargin,
		retryDelay:    DefaultRefreshRetryDelay,
		changed:       make(chan struct{}, 1),
		subs:          make(map[uint64]*subscriber),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnAuthStateChange registers cb. It first receives INITIAL_SESSION with
// the current session, then every later change.
func (c *Client) OnAuthStateChange(cb Callback) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subsMu.Lock()
	c.nextID++
	sub := newSubscriber(c.nextID, cb, c.logger)
	if c.closed {
		c.subsMu.Unlock()
		sub.stop()
		return &Subscription{sub: sub, remove: func(uint64) {}}
	}
	c.subs[sub.id] = sub
	c.subsWG.Add(1)
	c.subsMu.Unlock()

	go sub.run(&c.subsWG)
	sub.enqueue(notification{event: EventInitialSession, session: cloneSession(c.current)})

	return &Subscription{sub: sub, remove: c.removeSubscriber}
}

func (c *Client) removeSubscriber(id uint64) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	delete(c.subs, id)
}

// GetSession returns the current session, restoring it from the store on
// first use. A restored session whose access token has expired is
// refreshed; if that fails the session is discarded.
func (c *Client) GetSession(ctx context.Context) (*backend.Session, error) {
	c.mu.Lock()
	if !c.restored {
		c.restored = true
		stored, err := c.store.Load()
		if err != nil {
			errutil.LogWarn(ctx, c.logger, "discarding unreadable persisted session", err)
			c.clearStoreLocked(ctx)
		} else if stored != nil {
			c.current = stored
		}
	}
	current := cloneSession(c.current)
	c.mu.Unlock()

	if current == nil || !current.IsExpiredAt(c.now()) {
		return current, nil
	}

	refreshed, err := c.RefreshSession(ctx)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidToken) {
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

// Current returns the in-memory session without touching the store.
func (c *Client) Current() *backend.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSession(c.current)
}

// SignUp creates an identity. It does not sign in.
func (c *Client) SignUp(ctx context.Context, email, password string) (*backend.Identity, error) {
	id, err := c.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return id, nil
}

// SignInWithPassword authenticates and makes the new session current.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	s, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.publish(ctx, EventSignedIn, s)
	return cloneSession(s), nil
}

// SignOut revokes the current session. Local state is cleared and
// SIGNED_OUT published even when the provider call fails; that failure
// is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.Current()
	if current == nil {
		return nil
	}
	err := c.provider.SignOut(ctx, current.AccessToken)
	c.publish(ctx, EventSignedOut, nil)
	if err != nil {
		return oops.Code("AUTH_SIGNOUT_REMOTE_FAILED").Wrap(err)
	}
	return nil
}

// RefreshSession exchanges the refresh token for a new session, retrying
// transient failures. A rejected token signs the client out.
func (c *Client) RefreshSession(ctx context.Context) (*backend.Session, error) {
	current := c.Current()
	if current == nil || current.RefreshToken == "" {
		return nil, oops.Code("SESSION_MISSING").Wrap(ErrNoSession)
	}

	var refreshed *backend.Session
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		s, err := c.provider.Refresh(ctx, current.RefreshToken)
		if err != nil {
			if errors.Is(err, backend.ErrInvalidToken) {
				return err
			}
			c.logger.DebugContext(ctx, "token refresh failed, retrying", "error", err.Error())
			return retry.RetryableError(err)
		}
		refreshed = s
		return nil
	})
	if err != nil {
		if errors.Is(err, backend.ErrInvalidToken) {
			c.publishIfCurrent(ctx, current, EventSignedOut, nil)
		}
		return nil, err
	}

	c.publishIfCurrent(ctx, current, EventTokenRefreshed, refreshed)
	return cloneSession(refreshed), nil
}

// ReloadUser re-reads the identity behind the current access token and
// publishes USER_UPDATED.
func (c *Client) ReloadUser(ctx context.Context) (*backend.Identity, error) {
	current := c.Current()
	if current == nil {
		return nil, oops.Code("SESSION_MISSING").Wrap(ErrNoSession)
	}
	s, err := c.provider.GetSession(ctx, current.AccessToken)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidToken) {
			c.publishIfCurrent(ctx, current, EventSignedOut, nil)
		}
		return nil, err
	}
	updated := cloneSession(current)
	updated.Identity = s.Identity
	c.publishIfCurrent(ctx, current, EventUserUpdated, updated)
	return &updated.Identity, nil
}

// Close stops every subscription and waits for dispatchers to exit. It
// does not sign out.
func (c *Client) Close() {
	c.subsMu.Lock()
	c.closed = true
	subs := make([]*subscriber, 0, len(c.subs))
	for id, s := range c.subs {
		subs = append(subs, s)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	c.subsWG.Wait()
}

// publish makes s current, persists it and notifies subscribers.
func (c *Client) publish(ctx context.Context, event Event, s *backend.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishLocked(ctx, event, s)
}

// publishIfCurrent publishes only while expected is still the current
// session, so a refresh racing a sign-out cannot revive it.
func (c *Client) publishIfCurrent(ctx context.Context, expected *backend.Session, event Event, s *backend.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.AccessToken != expected.AccessToken {
		return
	}
	c.publishLocked(ctx, event, s)
}

func (c *Client) publishLocked(ctx context.Context, event Event, s *backend.Session) {
	c.restored = true
	c.current = cloneSession(s)
	if s == nil {
		c.clearStoreLocked(ctx)
	} else if err := c.store.Save(s); err != nil {
		errutil.LogWarn(ctx, c.logger, "failed to persist session", err)
	}

	select {
	case c.changed <- struct{}{}:
	default:
	}

	c.subsMu.Lock()
	for _, sub := range c.subs {
		sub.enqueue(notification{event: event, session: cloneSession(s)})
	}
	c.subsMu.Unlock()

	c.logger.DebugContext(ctx, "auth state changed", "event", string(event))
}

func (c *Client) clearStoreLocked(ctx context.Context) {
	if err := c.store.Clear(); err != nil {
		errutil.LogWarn(ctx, c.logger, "failed to clear persisted session", err)
	}
}
