// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/downtown-montclair/downtown/internal/auth"
	"github.com/downtown-montclair/downtown/internal/authclient"
	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/backend/memory"
	"github.com/downtown-montclair/downtown/internal/backend/postgres"
	"github.com/downtown-montclair/downtown/internal/config"
	"github.com/downtown-montclair/downtown/internal/flow"
	"github.com/downtown-montclair/downtown/internal/logging"
	"github.com/downtown-montclair/downtown/internal/observability"
	"github.com/downtown-montclair/downtown/internal/session"
)

const serviceName = "downtown"

// recorder is everything the app records metrics for.
type recorder interface {
	auth.Recorder
	session.EventRecorder
}

// app is the wired account stack shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend *Backend
	client  *authclient.Client
	svc     *auth.Service
	store   *session.Store
	deps    *Deps
}

// withDefaults fills nil dependencies.
func (d *Deps) withDefaults(cmd *cobra.Command) *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.Prompter == nil {
		out.Prompter = newTerminalPrompter(os.Stdin, cmd.OutOrStdout())
	}
	if out.BackendFactory == nil {
		out.BackendFactory = openBackend
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return postgres.NewMigrator(url)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	return &out
}

// loadConfig reads the configuration and sets up logging for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(serviceName, version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel), cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newApp loads the configuration, opens the backend and restores the
// persisted session. rec may be nil.
func newApp(ctx context.Context, cmd *cobra.Command, deps *Deps, rec recorder) (*app, error) {
	deps = deps.withDefaults(cmd)
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = observability.Nop{}
	}

	b, err := deps.BackendFactory(ctx, cfg, logger)
	if err != nil {
		return nil, oops.Code("BACKEND_OPEN_FAILED").With("backend", cfg.Backend).Wrap(err)
	}

	a := &app{cfg: cfg, logger: logger, backend: b, deps: deps}
	a.client, err = authclient.New(b.Provider,
		authclient.WithStore(authclient.NewFileStore(cfg.SessionPath())),
		authclient.WithLogger(logger),
		authclient.WithRefreshMargin(cfg.Margin()),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.svc, err = auth.NewService(a.client, b.Profiles,
		auth.WithLogger(logger),
		auth.WithMetrics(rec),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store, err = session.NewStore(a.client, a.svc,
		session.WithLogger(logger),
		session.WithEventRecorder(rec),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	if err := a.store.Init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	if a.backend != nil && a.backend.Close != nil {
		a.backend.Close()
	}
}

// env connects a form to the command's output.
func (a *app) env(cmd *cobra.Command, navigated *string) flow.Env {
	return flow.Env{
		Navigator: flow.NavigatorFunc(func(route string) { *navigated = route }),
		Notifier:  flow.NotifierFunc(func(msg string) { cmd.Println(msg) }),
		Logger:    a.logger,
		Session:   a.store,
	}
}

// openBackend opens the backend named by cfg.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	hasher := backend.NewArgon2idHasher()
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b, err := postgres.New(pool, hasher, backend.WithLogger(logger))
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{
			Provider: b.Provider,
			Profiles: b.Profiles,
			Purge:    b.Provider.PurgeExpired,
			Close:    pool.Close,
		}, nil
	default:
		logger.Warn("using in-memory backend; accounts are lost when the process exits")
		b, err := memory.New(hasher, backend.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return &Backend{Provider: b.Provider, Profiles: b.Profiles, Purge: b.Provider.PurgeExpired}, nil
	}
}
