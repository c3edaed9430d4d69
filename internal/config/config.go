// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package config loads the downtown CLI configuration from defaults, an
// optional YAML file, the environment and command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/downtown-montclair/downtown/internal/authclient"
	"github.com/downtown-montclair/downtown/internal/xdg"
)

// Backend kinds.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// DatabaseURLEnv names the environment variable read for database_url.
const DatabaseURLEnv = "DATABASE_URL"

// Config is the CLI configuration. Keys use the koanf tag in YAML files;
// flags use the same names with hyphens.
type Config struct {
	Backend       string `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=memory,enum=postgres,description=Identity and profile backend"`
	DatabaseURL   string `koanf:"database_url" json:"database_url,omitempty" jsonschema:"description=PostgreSQL connection string for the postgres backend"`
	LogFormat     string `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text"`
	LogLevel      string `koanf:"log_level" json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	MetricsAddr   string `koanf:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"description=Metrics and health listen address; empty disables"`
	StateDir      string `koanf:"state_dir" json:"state_dir,omitempty" jsonschema:"description=Directory holding the persisted session"`
	AutoRefresh   bool   `koanf:"auto_refresh" json:"auto_refresh,omitempty" jsonschema:"description=Refresh the access token before it expires"`
	RefreshMargin string `koanf:"refresh_margin" json:"refresh_margin,omitempty" jsonschema:"pattern=^[0-9]+(ns|us|ms|s|m|h)([0-9]+(ns|us|ms|s|m|h))*$,description=How long before expiry to refresh"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend:       BackendMemory,
		LogFormat:     "text",
		LogLevel:      "info",
		AutoRefresh:   true,
		RefreshMargin: authclient.DefaultRefreshMargin.String(),
	}
}

// AddFlags registers one flag per configuration key.
func AddFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("backend", d.Backend, "backend: memory or postgres")
	flags.String("database-url", d.DatabaseURL, "PostgreSQL connection string (also $"+DatabaseURLEnv+")")
	flags.String("log-format", d.LogFormat, "log format (json or text)")
	flags.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	flags.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("state-dir", d.StateDir, "session state directory (default: XDG_STATE_HOME/downtown)")
	flags.Bool("auto-refresh", d.AutoRefresh, "refresh the session before it expires")
	flags.String("refresh-margin", d.RefreshMargin, "how long before expiry to refresh")
}

// Load reads the configuration. path is the file named by --config; when
// empty the XDG config file is used if it exists. Precedence, lowest
// first: defaults, file, $DATABASE_URL, flags explicitly set on flags.
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = xdg.ConfigFile()
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user or XDG
	switch {
	case err == nil:
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// No config file is fine.
	default:
		return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}

	if url := os.Getenv(DatabaseURLEnv); url != "" {
		if err := k.Set("database_url", url); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").
				With("key", "database_url").
				Errorf("database_url (or $%s) is required for the postgres backend", DatabaseURLEnv)
		}
	default:
		return oops.Code("CONFIG_INVALID").With("key", "backend").
			Errorf("backend must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Backend)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").With("key", "log_format").
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").With("key", "log_level").
			Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}

	d, err := time.ParseDuration(c.RefreshMargin)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "refresh_margin").Wrap(err)
	}
	if d < 0 {
		return oops.Code("CONFIG_INVALID").With("key", "refresh_margin").
			Errorf("refresh_margin must not be negative")
	}
	return nil
}

// Margin returns refresh_margin as a duration. Call after Validate.
func (c *Config) Margin() time.Duration {
	d, err := time.ParseDuration(c.RefreshMargin)
	if err != nil {
		return authclient.DefaultRefreshMargin
	}
	return d
}

// SessionPath returns where the persisted session lives.
func (c *Config) SessionPath() string {
	return xdg.SessionFile(c.StateDir)
}
