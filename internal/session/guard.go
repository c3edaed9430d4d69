// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package session

// Routes used by the guard and the flows.
const (
	HomeRoute = "/"
	AuthRoute = "/auth"
)

// Decision is the outcome of RequireAuth.
type Decision int

// Guard decisions.
const (
	// Wait means the state is still loading; render nothing yet.
	Wait Decision = iota
	// Redirect means no one is signed in; go to the returned route.
	Redirect
	// Allow means the protected page may render.
	Allow
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// RequireAuth guards pages that need a signed-in identity. The route is
// only set for Redirect.
func RequireAuth(s Snapshot) (Decision, string) {
	switch {
	case s.Loading:
		return Wait, ""
	case s.Identity == nil:
		return Redirect, AuthRoute
	default:
		return Allow, ""
	}
}
