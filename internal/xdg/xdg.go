// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package xdg locates the files downtown keeps under the XDG Base
// Directory layout.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "downtown"

// File names inside the app directories.
const (
	configFileName  = "config.yaml"
	sessionFileName = "session.json"
)

// appDir returns $env/downtown, or $HOME/<fallback...>/downtown when env
// is unset.
func appDir(env string, fallback ...string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
	}
	return filepath.Join(base, appName)
}

// ConfigDir is $XDG_CONFIG_HOME/downtown, defaulting to ~/.config/downtown.
func ConfigDir() string { return appDir("XDG_CONFIG_HOME", ".config") }

// StateDir is $XDG_STATE_HOME/downtown, defaulting to
// ~/.local/state/downtown. The persisted session lives here.
func StateDir() string { return appDir("XDG_STATE_HOME", ".local", "state") }

// ConfigFile is the config file read when --config is not given.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), configFileName)
}

// SessionFile is the persisted session inside stateDir, or inside
// StateDir() when stateDir is empty.
func SessionFile(stateDir string) string {
	if stateDir == "" {
		stateDir = StateDir()
	}
	return filepath.Join(stateDir, sessionFileName)
}

// EnsureDir creates path and its parents with 0700 permissions. The
// session file holds refresh tokens, so nothing here is world-readable.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
