// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package memory provides in-process implementations of the backend
// repositories. It backs the --backend=memory dev mode and the tests of
// packages above the backend. Nothing survives the process.
package memory
