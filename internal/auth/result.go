// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package auth

import (
	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/pkg/errutil"
)

// Result is the outcome of a Service operation.
type Result[T any] struct {
	Success bool
	Data    T
	// Error is the user-facing failure message.
	Error string
	// Code is the oops code of the failure, when known.
	Code string
	// Warning is set on a success that completed only partially.
	Warning string
}

// Err returns the failure message as an error, or nil on success.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return &ResultError{Code: r.Code, Message: r.Error}
}

// ResultError is a failed Result viewed as an error.
type ResultError struct {
	Code    string
	Message string
}

func (e *ResultError) Error() string { return e.Message }

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](code, message string) Result[T] {
	return Result[T]{Code: code, Error: message}
}

// failErr builds a failure from err, preferring its public message and code
// over the given fallbacks.
func failErr[T any](err error, code, fallback string) Result[T] {
	if c := errutil.Code(err); c != "" {
		code = c
	}
	return fail[T](code, errutil.PublicMessage(err, fallback))
}

// Registration is the data of a successful RegisterUser.
type Registration struct {
	Identity *backend.Identity
	// Profile is nil when the account was created but the profile insert
	// failed.
	Profile *backend.Profile
}

// Login is the data of a successful SignIn.
type Login struct {
	Session *backend.Session
	Profile *backend.Profile
}

// RegistrationForm is the input of RegisterUser.
type RegistrationForm struct {
	Email       string
	Password    string
	Username    string
	DisplayName string
}

// ProfileParams is the input of CreateProfile.
type ProfileParams struct {
	ID          string
	Email       string
	Username    string
	DisplayName *string
}

// ProfileChanges is the input of UpdateProfile.
type ProfileChanges struct {
	Username    string
	DisplayName *string
	Bio         *string
}
