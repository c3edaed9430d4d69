// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/downtown-montclair/downtown/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the downtown CLI. A nil deps
// uses the default implementations.
func NewRootCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downtown",
		Short: "Downtown Montclair account tools",
		Long: `downtown manages your Downtown Montclair account: register, sign in,
edit your profile and watch session state from the command line.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/downtown/config.yaml)")
	config.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRegisterCmd(deps))
	cmd.AddCommand(NewLoginCmd(deps))
	cmd.AddCommand(NewLogoutCmd(deps))
	cmd.AddCommand(NewWhoamiCmd(deps))
	cmd.AddCommand(NewProfileCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewWatchCmd(deps))
	cmd.AddCommand(NewPurgeSessionsCmd(deps))

	return cmd
}
