// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package session_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/downtown-montclair/downtown/internal/auth"
	"github.com/downtown-montclair/downtown/internal/authclient"
	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/backend/memory"
	"github.com/downtown-montclair/downtown/internal/observability"
	"github.com/downtown-montclair/downtown/internal/session"
)

var fastParams = backend.Argon2Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type harness struct {
	backend *memory.Backend
	client  *authclient.Client
	svc     *auth.Service
	store   *session.Store
}

func newHarness(t *testing.T, clientOpts []authclient.Option, storeOpts ...session.Option) *harness {
	t.Helper()
	b, err := memory.New(backend.NewArgon2idHasherWithParams(fastParams))
	require.NoError(t, err)
	return newHarnessWith(t, b, clientOpts, storeOpts...)
}

func newHarnessWith(t *testing.T, b *memory.Backend, clientOpts []authclient.Option, storeOpts ...session.Option) *harness {
	t.Helper()
	c, err := authclient.New(b.Provider, clientOpts...)
	require.NoError(t, err)
	svc, err := auth.NewService(c, b.Profiles)
	require.NoError(t, err)
	st, err := session.NewStore(c, svc, storeOpts...)
	require.NoError(t, err)
	return &harness{backend: b, client: c, svc: svc, store: st}
}

// close tears down explicitly so goleak sees no dispatcher goroutines.
func (h *harness) close() {
	h.store.Close()
	h.client.Close()
}

// register creates an account with a profile through the service.
func (h *harness) register(t *testing.T, email, username string) string {
	t.Helper()
	res := h.svc.RegisterUser(context.Background(), auth.RegistrationForm{
		Email: email, Password: "password123", Username: username,
	})
	require.True(t, res.Success, res.Error)
	require.Empty(t, res.Warning)
	return res.Data.Identity.ID
}

func TestNewStore_RequiresDependencies(t *testing.T) {
	_, err := session.NewStore(nil, nil)
	require.Error(t, err)
}

func TestStore_LoadingUntilInit(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, nil)
	defer h.close()

	assert.True(t, h.store.State().Loading)
	decision, _ := session.RequireAuth(h.store.State())
	assert.Equal(t, session.Wait, decision)

	require.NoError(t, h.store.Init(context.Background()))

	st := h.store.State()
	assert.False(t, st.Loading)
	assert.Nil(t, st.Identity)
	assert.Nil(t, st.Profile)
	decision, route := session.RequireAuth(st)
	assert.Equal(t, session.Redirect, decision)
	assert.Equal(t, session.AuthRoute, route)
}

func TestStore_InitRestoresPersistedSession(t *testing.T) {
	defer goleak.VerifyNone(t)
	b, err := memory.New(backend.NewArgon2idHasherWithParams(fastParams))
	require.NoError(t, err)
	file := authclient.NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	first := newHarnessWith(t, b, []authclient.Option{authclient.WithStore(file)})
	id := first.register(t, "ada@example.com", "ada")
	_, err = first.client.SignInWithPassword(context.Background(), "ada@example.com", "password123")
	require.NoError(t, err)
	first.close()

	second := newHarnessWith(t, b, []authclient.Option{authclient.WithStore(file)})
	defer second.close()
	require.NoError(t, second.store.Init(context.Background()))

	st := second.store.State()
	assert.False(t, st.Loading)
	require.NotNil(t, st.Identity)
	assert.Equal(t, id, st.Identity.ID)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "ada", st.Profile.Username)
	decision, _ := session.RequireAuth(st)
	assert.Equal(t, session.Allow, decision)
}

func TestStore_SignInThenSignOutClearsState(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, nil)
	defer h.close()
	id := h.register(t, "ada@example.com", "ada")
	require.NoError(t, h.store.Init(context.Background()))

	_, err := h.client.SignInWithPassword(context.Background(), "ada@example.com", "password123")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st := h.store.State()
		return st.Identity != nil && st.Identity.ID == id && st.Profile != nil
	}, waitFor, tick)

	require.NoError(t, h.client.SignOut(context.Background()))
	require.Eventually(t, func() bool {
		st := h.store.State()
		return st.Identity == nil && st.Profile == nil && st.Session == nil
	}, waitFor, tick)
	assert.False(t, h.store.State().Loading, "background updates do not set loading")
}

func TestStore_LoginWithMissingProfileSelfHeals(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, nil)
	defer h.close()
	identity, err := h.client.SignUp(context.Background(), "grace@example.com", "password123")
	require.NoError(t, err)
	require.NoError(t, h.store.Init(context.Background()))

	res := h.svc.SignIn(context.Background(), "grace@example.com", "password123")
	require.True(t, res.Success, res.Error)

	want := auth.SelfHealUsername(identity.ID)
	assert.Equal(t, want, res.Data.Profile.Username)
	// The SIGNED_IN load may have run before the heal; a reload settles it.
	if err := h.store.RefreshProfile(context.Background()); err != nil {
		require.ErrorIs(t, err, session.ErrNoIdentity)
	}
	require.Eventually(t, func() bool {
		p := h.store.State().Profile
		return p != nil && p.Username == want
	}, waitFor, tick)
}

func TestStore_RefreshProfile(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, nil)
	defer h.close()
	id := h.register(t, "ada@example.com", "ada")
	require.NoError(t, h.store.Init(context.Background()))

	err := h.store.RefreshProfile(context.Background())
	require.ErrorIs(t, err, session.ErrNoIdentity)

	_, err = h.client.SignInWithPassword(context.Background(), "ada@example.com", "password123")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.store.State().Profile != nil }, waitFor, tick)

	bio := "Owns the record shop"
	upd := h.svc.UpdateProfile(context.Background(), id, auth.ProfileChanges{Username: "ada_l", Bio: &bio})
	require.True(t, upd.Success, upd.Error)

	require.NoError(t, h.store.RefreshProfile(context.Background()))
	st := h.store.State()
	assert.False(t, st.Loading)
	require.NotNil(t, st.Profile)
	assert.Equal(t, "ada_l", st.Profile.Username)
	assert.Equal(t, bio, *st.Profile.Bio)
}

func TestStore_InitLifecycleErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, nil)
	defer h.close()

	require.NoError(t, h.store.Init(context.Background()))
	require.ErrorIs(t, h.store.Init(context.Background()), session.ErrAlreadyStarted)

	h.store.Close()
	h.store.Close()

	other := newHarness(t, nil)
	other.store.Close()
	require.ErrorIs(t, other.store.Init(context.Background()), session.ErrClosed)
	other.client.Close()
}

func TestStore_Watch(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, nil)
	defer h.close()
	h.register(t, "ada@example.com", "ada")

	ch, cancel := h.store.Watch()
	first := <-ch
	assert.True(t, first.Loading)

	require.NoError(t, h.store.Init(context.Background()))
	_, err := h.client.SignInWithPassword(context.Background(), "ada@example.com", "password123")
	require.NoError(t, err)

	deadline := time.After(waitFor)
	for {
		var snap session.Snapshot
		select {
		case snap = <-ch:
		case <-deadline:
			t.Fatal("never observed signed-in snapshot with profile")
		}
		if snap.SignedIn() && snap.Profile != nil {
			break
		}
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestStore_WatchClosedByClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, nil)
	defer h.close()

	ch, _ := h.store.Watch()
	<-ch
	h.store.Close()
	_, open := <-ch
	assert.False(t, open)

	late, _ := h.store.Watch()
	_, open = <-late
	assert.False(t, open)
}

func TestStore_RecordsSessionEvents(t *testing.T) {
	defer goleak.VerifyNone(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	h := newHarness(t, nil, session.WithEventRecorder(metrics))
	defer h.close()
	h.register(t, "ada@example.com", "ada")
	require.NoError(t, h.store.Init(context.Background()))

	_, err := h.client.SignInWithPassword(context.Background(), "ada@example.com", "password123")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.SessionEvents.WithLabelValues(string(authclient.EventSignedIn))) == 1
	}, waitFor, tick)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SessionEvents.WithLabelValues(string(authclient.EventInitialSession))), 0)
}

// Readers must never observe a profile that belongs to someone other than
// the identity in the same snapshot.
func TestStore_SnapshotsStayConsistentUnderConcurrentLoads(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t, nil)
	defer h.close()
	h.register(t, "ada@example.com", "ada")
	h.register(t, "grace@example.com", "grace")
	require.NoError(t, h.store.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	for range 4 {
		wg.Go(func() {
			for ctx.Err() == nil {
				st := h.store.State()
				if st.Profile != nil {
					if !assert.NotNil(t, st.Identity) {
						return
					}
					if !assert.Equal(t, st.Identity.ID, st.Profile.ID) {
						return
					}
				}
			}
		})
	}
	for range 2 {
		wg.Go(func() {
			for ctx.Err() == nil {
				_ = h.store.RefreshProfile(ctx)
			}
		})
	}

	for range 20 {
		_, err := h.client.SignInWithPassword(ctx, "ada@example.com", "password123")
		require.NoError(t, err)
		_, err = h.client.SignInWithPassword(ctx, "grace@example.com", "password123")
		require.NoError(t, err)
		require.NoError(t, h.client.SignOut(ctx))
	}

	require.Eventually(t, func() bool {
		st := h.store.State()
		return st.Identity == nil && st.Profile == nil
	}, waitFor, tick)
	cancel()
	wg.Wait()
}
