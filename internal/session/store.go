// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/internal/auth"
	"github.com/downtown-montclair/downtown/internal/authclient"
	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/logging"
	"github.com/downtown-montclair/downtown/internal/observability"
)

// Errors returned by Store operations.
var (
	ErrClosed         = errors.New("session store closed")
	ErrAlreadyStarted = errors.New("session store already initialized")
	ErrNoIdentity     = errors.New("no signed-in identity")

	// ErrIdentityChanged means a different user signed in or out while
	// the operation was starting.
	ErrIdentityChanged = errors.New("signed-in identity changed")
)

// AuthClient is the part of the auth client SDK the store observes.
type AuthClient interface {
	GetSession(ctx context.Context) (*backend.Session, error)
	OnAuthStateChange(cb authclient.Callback) *authclient.Subscription
}

// ProfileLoader loads the profile of an identity.
type ProfileLoader interface {
	FetchProfile(ctx context.Context, userID string) auth.Result[*backend.Profile]
}

// EventRecorder counts applied auth state notifications.
type EventRecorder interface {
	RecordSessionEvent(event string)
}

// Snapshot is one consistent view of the signed-in state. Snapshots are
// never modified after publication; treat the pointers as read-only.
type Snapshot struct {
	Session  *backend.Session
	Identity *backend.Identity
	Profile  *backend.Profile
	Loading  bool
	// Generation increases whenever the identity changes.
	Generation uint64
}

// SignedIn reports whether the snapshot has an identity.
func (s Snapshot) SignedIn() bool { return s.Identity != nil }

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithEventRecorder counts every notification the store applies.
func WithEventRecorder(r EventRecorder) Option {
	return func(s *Store) { s.events = r }
}

// Store owns the signed-in state.
type Store struct {
	client   AuthClient
	profiles ProfileLoader
	logger   *slog.Logger
	events   EventRecorder

	state atomic.Pointer[Snapshot]

	// mu serializes writers and guards the fields below. Readers use state.
	mu       sync.Mutex
	started  bool
	closed   bool
	sub      *authclient.Subscription
	watchers map[uint64]chan Snapshot
	nextID   uint64

	// installedLoad is the sequence number of the last installed profile
	// load. Loads are numbered when they start.
	installedLoad uint64

	loadSeq atomic.Uint64

	// ctx bounds profile loads started by notifications.
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewStore creates a Store. It observes nothing until Init.
func NewStore(client AuthClient, profiles ProfileLoader, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("auth client is required")
	}
	if profiles == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("profile loader is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		client:   client,
		profiles: profiles,
		logger:   slog.Default(),
		events:   observability.Nop{},
		watchers: make(map[uint64]chan Snapshot),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(&Snapshot{Loading: true})
	return s, nil
}

// State returns the current snapshot.
func (s *Store) State() Snapshot {
	return *s.state.Load()
}

// Init restores a persisted session, loads its profile and starts
// observing auth state changes. Loading stays true until it returns.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return oops.Code("SESSION_STORE_CLOSED").Wrap(ErrClosed)
	case s.started:
		s.mu.Unlock()
		return oops.Code("SESSION_STORE_STARTED").Wrap(ErrAlreadyStarted)
	}
	s.started = true
	s.mu.Unlock()

	sess, err := s.client.GetSession(ctx)
	if err != nil {
		// A broken persisted session leaves the user signed out.
		s.logger.WarnContext(ctx, "could not restore session", "error", err.Error())
		sess = nil
	}

	gen, applied := s.applySession(sess, true)
	if applied && sess != nil {
		_ = s.loadProfile(ctx, sess.Identity.ID, gen)
	}
	s.update(func(next *Snapshot) bool {
		next.Loading = false
		return true
	})

	sub := s.client.OnAuthStateChange(s.handle)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return oops.Code("SESSION_STORE_CLOSED").Wrap(ErrClosed)
	}
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// handle applies one auth state notification. It runs on the auth
// client's dispatcher goroutine.
func (s *Store) handle(event authclient.Event, sess *backend.Session) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session store callback panicked", "event", string(event), "panic", fmt.Sprint(r))
		}
	}()

	if s.isClosed() {
		return
	}
	s.events.RecordSessionEvent(string(event))

	before := s.State()
	gen, applied := s.applySession(sess, false)
	if !applied || sess == nil {
		return
	}
	// INITIAL_SESSION repeats what Init already loaded.
	if event == authclient.EventInitialSession && gen == before.Generation && before.Profile != nil {
		return
	}
	_ = s.loadProfile(s.ctx, sess.Identity.ID, gen)
}

// RefreshProfile reloads the profile of the current identity.
func (s *Store) RefreshProfile(ctx context.Context) error {
	return s.refreshFrom(ctx, s.State())
}

// refreshFrom reloads the profile of the identity in cur, provided it is
// still the current one.
func (s *Store) refreshFrom(ctx context.Context, cur Snapshot) error {
	if cur.Identity == nil {
		return oops.Code("SESSION_NO_IDENTITY").Wrap(ErrNoIdentity)
	}
	stale := false
	if !s.update(func(next *Snapshot) bool {
		if next.Generation != cur.Generation {
			stale = true
			return false
		}
		next.Loading = true
		return true
	}) {
		if stale {
			return oops.Code("SESSION_IDENTITY_CHANGED").Wrap(ErrIdentityChanged)
		}
		return oops.Code("SESSION_STORE_CLOSED").Wrap(ErrClosed)
	}
	defer s.update(func(next *Snapshot) bool {
		next.Loading = false
		return true
	})

	return s.loadProfile(ctx, cur.Identity.ID, cur.Generation)
}

// Watch returns a channel that receives the current snapshot and then the
// latest snapshot after each change. Slow readers skip intermediate
// snapshots. The channel is closed by cancel or Close.
func (s *Store) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.nextID++
	id := s.nextID
	s.watchers[id] = ch
	ch <- *s.state.Load()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// Close stops observing auth state changes. Later notifications and
// in-flight profile loads no longer change the state. Safe to call more
// than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		sub := s.sub
		s.sub = nil
		for id, w := range s.watchers {
			delete(s.watchers, id)
			close(w)
		}
		s.mu.Unlock()

		s.cancel()
		if sub != nil {
			sub.Unsubscribe()
		}
	})
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// update copies the current snapshot, lets mutate edit it and publishes
// the copy unless mutate returns false or the store is closed.
func (s *Store) update(mutate func(next *Snapshot) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	next := *s.state.Load()
	if !mutate(&next) {
		return false
	}
	s.state.Store(&next)
	for _, w := range s.watchers {
		select {
		case <-w:
		default:
		}
		w <- next
	}
	return true
}

// applySession installs sess and returns the resulting generation. A new
// identity bumps the generation and drops the old profile.
func (s *Store) applySession(sess *backend.Session, loading bool) (uint64, bool) {
	var gen uint64
	applied := s.update(func(next *Snapshot) bool {
		if sess == nil {
			if next.Identity != nil || next.Session != nil {
				next.Generation++
			}
			next.Session, next.Identity, next.Profile = nil, nil, nil
		} else {
			if next.Identity == nil || next.Identity.ID != sess.Identity.ID {
				next.Generation++
				next.Profile = nil
			}
			sc := *sess
			id := sess.Identity
			next.Session = &sc
			next.Identity = &id
		}
		if loading {
			next.Loading = true
		}
		gen = next.Generation
		return true
	})
	return gen, applied
}

// loadProfile fetches the profile of userID and installs it if the
// identity generation is still gen.
func (s *Store) loadProfile(ctx context.Context, userID string, gen uint64) error {
	ctx = logging.WithUserID(ctx, userID)
	seq := s.loadSeq.Add(1)
	res := s.profiles.FetchProfile(ctx, userID)
	if !res.Success {
		s.logger.WarnContext(ctx, "profile load failed", "code", res.Code, "error", res.Error)
	}
	// Only a definite answer replaces the profile. Other failures keep the
	// last good one.
	definite := res.Success || res.Code == auth.CodeProfileNotFound
	installed := s.update(func(next *Snapshot) bool {
		// A load that started later already won.
		if next.Generation != gen || seq < s.installedLoad {
			return false
		}
		s.installedLoad = seq
		if !definite {
			return false
		}
		next.Profile = res.Data.Clone()
		return true
	})
	if !res.Success {
		return res.Err()
	}
	if !installed {
		s.logger.DebugContext(ctx, "dropping stale profile load")
	}
	return nil
}
