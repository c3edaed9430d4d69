// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/downtown-montclair/downtown/internal/config"
)

// NewMigrateCmd creates the migrate subcommand. Without a subcommand it
// applies all pending migrations.
func NewMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending database migrations to the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				pending, err := m.Pending()
				if err != nil {
					return err
				}
				cmd.Printf("Current version: %d", v)
				if dirty {
					cmd.Print(" (dirty)")
				}
				cmd.Println()
				cmd.Printf("Pending: %d\n", len(pending))
				for _, p := range pending {
					cmd.Printf("  %06d\n", p)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rolled back all migrations")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the migration version without running migrations",
		Long:  `Set the recorded migration version and clear the dirty flag. Use after fixing a failed migration by hand.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	deps = deps.withDefaults(cmd)
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Backend != config.BackendPostgres || cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("migrate needs the postgres backend; set backend: postgres and %s", config.DatabaseURLEnv)
	}

	m, err := deps.MigratorFactory(cfg.DatabaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := fn(m); err != nil {
		return oops.Code("MIGRATION_FAILED").With("command", cmd.Name()).Wrap(err)
	}
	return nil
}

// parseForceVersion parses the VERSION argument of migrate force. -1
// resets to no version.
func parseForceVersion(arg string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("version", arg).Wrap(err)
	}
	if version < -1 {
		return 0, oops.Code("INVALID_VERSION").With("version", arg).Errorf("version must be -1 or greater")
	}
	return version, nil
}
