// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package validation checks account form input before it reaches the backend.
//
// All functions are pure and never panic. A failed check is reported as a
// Result with Valid set to false, a Code naming the rule that failed and a
// human-readable Message suitable for showing next to the form.
package validation

import (
	"regexp"

	"github.com/samber/oops"
)

// Code identifies which validation rule rejected the input.
type Code string

// Validation failure codes.
const (
	InvalidFormat     Code = "INVALID_FORMAT"
	TooShort          Code = "TOO_SHORT"
	InvalidCharacters Code = "INVALID_CHARACTERS"
	Mismatch          Code = "MISMATCH"
	Required          Code = "REQUIRED"
)

// Length constraints.
const (
	MinUsernameLength = 3
	// MinPasswordLength is the canonical password policy. An older form
	// accepted 6 characters; 8 is enforced everywhere.
	MinPasswordLength = 8
)

var (
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// Result is the outcome of a single validation check.
type Result struct {
	Valid   bool
	Code    Code
	Message string
}

// OK is the passing Result.
var OK = Result{Valid: true}

func fail(code Code, msg string) Result {
	return Result{Code: code, Message: msg}
}

// Err returns nil for a passing result, otherwise an oops error carrying
// the rule code and the message as its public text.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return oops.Code("VALIDATION_" + string(r.Code)).
		Public(r.Message).
		Errorf("%s", r.Message)
}

// ValidateEmail checks that s is shaped like local@domain.tld.
func ValidateEmail(s string) Result {
	if !emailRegex.MatchString(s) {
		return fail(InvalidFormat, "Please enter a valid email address")
	}
	return OK
}

// ValidateUsername checks length first, then the allowed alphabet
// (letters, digits, underscore).
func ValidateUsername(s string) Result {
	if len(s) < MinUsernameLength {
		return fail(TooShort, "Username must be at least 3 characters")
	}
	if !usernameRegex.MatchString(s) {
		return fail(InvalidCharacters, "Username can only contain letters, numbers, and underscores")
	}
	return OK
}

// ValidatePassword checks the password policy. When confirm is non-nil it
// must equal pw; the mismatch is reported before the length rule.
func ValidatePassword(pw string, confirm *string) Result {
	if confirm != nil && *confirm != pw {
		return fail(Mismatch, "Passwords don't match")
	}
	if len(pw) < MinPasswordLength {
		return fail(TooShort, "Password must be at least 8 characters")
	}
	return OK
}

// Registration is the input of the sign-up form.
type Registration struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	DisplayName     string
}

// ValidateRegistration runs every registration rule in form order and
// returns the first failure. DisplayName is optional and never checked.
func ValidateRegistration(r Registration) Result {
	if res := ValidateEmail(r.Email); !res.Valid {
		return res
	}
	if res := ValidateUsername(r.Username); !res.Valid {
		return res
	}
	return ValidatePassword(r.Password, &r.ConfirmPassword)
}

// ValidateLogin only requires both fields to be present; the backend is the
// authority on whether the credentials are good.
func ValidateLogin(email, password string) Result {
	if email == "" || password == "" {
		return fail(Required, "Email and password are required")
	}
	return OK
}
