// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/config"
	"github.com/downtown-montclair/downtown/internal/observability"
)

// Deps contains injectable dependencies for every command.
// All fields with nil values use their default implementations.
type Deps struct {
	// Prompter reads user input.
	// Default: a terminal prompter on stdin that hides secrets.
	Prompter Prompter

	// BackendFactory opens the identity provider and profile table.
	// Default: openBackend
	BackendFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: postgres.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

// Backend is an opened backend.
type Backend struct {
	Provider backend.IdentityProvider
	Profiles backend.ProfileTable
	// Purge deletes expired sessions. Nil when unsupported.
	Purge func(ctx context.Context) (int64, error)
	// Close releases the backend. May be nil.
	Close func()
}

// Migrator wraps the methods the migrate command uses from postgres.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
