// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package flow implements the login, registration and settings forms as
// small state machines that a front end drives.
//
// A form moves idle → submitting → succeeded, or back to idle with an
// error message when the submit fails. While submitting the form is
// disabled and a second submit is rejected. Once disposed, a form drops
// any result that is still in flight.
package flow
