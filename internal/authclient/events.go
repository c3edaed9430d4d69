// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package authclient

import "github.com/downtown-montclair/downtown/internal/backend"

// Event names an auth state change.
type Event string

// Auth state change events.
const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Callback receives auth state changes. session is nil after sign-out.
type Callback func(event Event, session *backend.Session)

type notification struct {
	event   Event
	session *backend.Session
}

func cloneSession(s *backend.Session) *backend.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
