// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package backend

import "errors"

// Sentinel errors. Implementations wrap these with oops context; match
// with errors.Is.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken is returned when a profile write violates the
	// unique username constraint.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid login credentials")

	// ErrInvalidToken is returned for unknown, revoked or expired tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
)
