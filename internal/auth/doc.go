// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package auth is the account facade used by the sign-in, registration and
// settings flows.
//
// Service operations never return errors or panic. Each returns a Result
// whose Error field holds a message fit for display; the underlying error
// is logged with its oops code and context. Registration tolerates a failed
// profile insert: the account exists, the Result succeeds and Warning
// explains that profile setup had issues. Sign-in repairs that state by
// creating a placeholder profile (the self-heal).
package auth
