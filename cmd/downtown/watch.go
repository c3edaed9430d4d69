// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/downtown-montclair/downtown/internal/authclient"
	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/config"
	"github.com/downtown-montclair/downtown/internal/session"
)

// shutdownTimeout bounds the observability server's graceful stop.
const shutdownTimeout = 5 * time.Second

// NewWatchCmd creates the watch subcommand.
func NewWatchCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session fresh and print auth state changes",
		Long: `Restore the saved session, refresh it before it expires and print every
auth state change until interrupted. With metrics_addr set, Prometheus
metrics and health probes are served on that address.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, deps)
		},
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults(cmd)
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var ready atomic.Bool
	var rec recorder
	if cfg.MetricsAddr != "" {
		srv := deps.ObservabilityServerFactory(cfg.MetricsAddr, ready.Load, logger)
		errCh, startErr := srv.Start()
		if startErr != nil {
			return oops.Code("WATCH_FAILED").With("metrics_addr", cfg.MetricsAddr).Wrap(startErr)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if stopErr := srv.Stop(stopCtx); stopErr != nil {
				logger.Warn("failed to stop observability server", "error", stopErr)
			}
		}()
		go func() {
			if serveErr, ok := <-errCh; ok && serveErr != nil {
				logger.Error("observability server failed", "error", serveErr)
			}
		}()
		cmd.Printf("Serving metrics on %s\n", srv.Addr())
		rec = srv.Metrics()
	}

	a, err := newApp(ctx, cmd, deps, rec)
	if err != nil {
		return err
	}
	defer a.close()
	ready.Store(true)

	// Events arrive on the subscriber goroutine; keep lines whole.
	var outMu sync.Mutex
	sub := a.client.OnAuthStateChange(func(event authclient.Event, s *backend.Session) {
		outMu.Lock()
		defer outMu.Unlock()
		printEvent(cmd, event, s)
	})
	defer sub.Unsubscribe()

	if cfg.AutoRefresh {
		stopRefresh := a.client.StartAutoRefresh(ctx)
		defer stopRefresh()
	}

	if purge := a.backend.Purge; purge != nil {
		go purgeLoop(ctx, a, purge)
	}

	snaps, unwatch := a.store.Watch()
	defer unwatch()
	for {
		select {
		case <-ctx.Done():
			outMu.Lock()
			cmd.Println("Stopped")
			outMu.Unlock()
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return nil
			}
			outMu.Lock()
			printState(cmd, snap)
			outMu.Unlock()
		}
	}
}

// purgeInterval is how often watch deletes expired sessions.
const purgeInterval = time.Hour

func purgeLoop(ctx context.Context, a *app, purge func(context.Context) (int64, error)) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purge(ctx)
			if err != nil {
				a.logger.Warn("expired session purge failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}

func printEvent(cmd *cobra.Command, event authclient.Event, s *backend.Session) {
	if s == nil {
		cmd.Printf("event %s\n", event)
		return
	}
	cmd.Printf("event %s %s (expires %s)\n", event, s.Identity.Email, s.ExpiresAt.Format(time.RFC3339))
}

func printState(cmd *cobra.Command, st session.Snapshot) {
	decision, route := session.RequireAuth(st)
	switch decision {
	case session.Wait:
		cmd.Println("state loading")
	case session.Redirect:
		cmd.Printf("state signed out -> %s\n", route)
	default:
		username := "(no profile)"
		if st.Profile != nil {
			username = st.Profile.Username
		}
		cmd.Printf("state signed in %s %s generation %d\n", st.Identity.Email, username, st.Generation)
	}
}

// NewPurgeSessionsCmd creates the purge-sessions subcommand.
func NewPurgeSessionsCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete sessions whose refresh token has expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := deps.withDefaults(cmd)
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Backend != config.BackendPostgres {
				cmd.Println("Nothing to purge: the memory backend keeps no sessions between runs")
				return nil
			}
			b, err := d.BackendFactory(cmd.Context(), cfg, logger)
			if err != nil {
				return oops.Code("BACKEND_OPEN_FAILED").With("backend", cfg.Backend).Wrap(err)
			}
			if b.Close != nil {
				defer b.Close()
			}
			if b.Purge == nil {
				return oops.Code("PURGE_UNSUPPORTED").Errorf("backend %q cannot purge sessions", cfg.Backend)
			}
			n, err := b.Purge(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Purged %d expired sessions\n", n)
			return nil
		},
	}
}
