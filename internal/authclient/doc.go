// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package authclient is the client half of the identity provider. It owns
// the current session, persists it between runs, refreshes it before it
// expires and pushes auth state changes to subscribers.
//
// Each subscriber has its own dispatcher goroutine. Notifications reach a
// subscriber one at a time, in the order the client published them, and
// are never dropped.
package authclient
