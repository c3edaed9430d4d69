// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/downtown-montclair/downtown/internal/session"
	"github.com/downtown-montclair/downtown/pkg/errutil"
)

// State is a form's position in the submit cycle.
type State int

// Form states.
const (
	Idle State = iota
	Submitting
	Succeeded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// Errors returned by Submit.
var (
	ErrSubmitting = errors.New("submit already in progress")
	ErrDisposed   = errors.New("form disposed")
)

// Navigator changes the current route.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(route string) { f(route) }

// Notifier shows a transient message to the user.
type Notifier interface {
	Notice(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

// Notice calls f.
func (f NotifierFunc) Notice(msg string) { f(msg) }

// Env is what a form needs from its surroundings. Nil members are no-ops.
type Env struct {
	Navigator Navigator
	Notifier  Notifier
	Logger    *slog.Logger
	// Session is reloaded after a sign-in so a profile created during the
	// sign-in reaches it even if its own load ran first.
	Session ProfileRefresher
}

func (e Env) navigate(route string) {
	if e.Navigator != nil {
		e.Navigator.Navigate(route)
	}
}

func (e Env) notice(msg string) {
	if e.Notifier != nil && msg != "" {
		e.Notifier.Notice(msg)
	}
}

func (e Env) syncProfile(ctx context.Context) {
	if e.Session == nil {
		return
	}
	// ErrNoIdentity and ErrIdentityChanged mean the sign-in notification is
	// still being applied; its own load will see the profile.
	err := e.Session.RefreshProfile(ctx)
	if err != nil && !errors.Is(err, session.ErrNoIdentity) && !errors.Is(err, session.ErrIdentityChanged) {
		errutil.LogWarn(ctx, e.logger(), "profile reload after sign in failed", err)
	}
}

func (e Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// machine is the submit cycle shared by every form.
type machine struct {
	mu       sync.Mutex
	state    State
	errMsg   string
	message  string
	disposed bool
}

// State returns the current state.
func (m *machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ErrorMessage returns the message of the last failed submit.
func (m *machine) ErrorMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Message returns the confirmation of the last successful submit.
func (m *machine) Message() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.message
}

// Disabled reports whether the form's inputs should be disabled.
func (m *machine) Disabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Submitting
}

// Dispose detaches the form. Results of a running submit are dropped.
func (m *machine) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
}

func (m *machine) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.disposed:
		return ErrDisposed
	case m.state == Submitting:
		return ErrSubmitting
	}
	m.state = Submitting
	m.errMsg = ""
	m.message = ""
	return nil
}

// fail returns the form to idle with msg. apply runs under the lock
// unless the form was disposed, in which case fail reports false.
func (m *machine) fail(msg string, apply func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return false
	}
	m.state = Idle
	m.errMsg = msg
	if apply != nil {
		apply()
	}
	return true
}

func (m *machine) succeed(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return false
	}
	m.state = Succeeded
	m.message = msg
	return true
}

// FormError is returned by Submit when the submit failed. Its message is
// the one shown on the form.
type FormError struct {
	Code    string
	Message string
}

func (e *FormError) Error() string { return e.Message }
