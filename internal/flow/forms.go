// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package flow

import (
	"context"

	"github.com/downtown-montclair/downtown/internal/auth"
	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/session"
	"github.com/downtown-montclair/downtown/internal/validation"
	"github.com/downtown-montclair/downtown/pkg/errutil"
)

// Messages shown by the forms.
const (
	MsgLoginAfterRegister = "Account created successfully! Please log in with your new credentials."
	MsgProfileUpdated     = "Profile updated successfully!"
)

// Authenticator is the part of auth.Service used by the login and
// registration forms.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) auth.Result[*auth.Login]
	RegisterUser(ctx context.Context, form auth.RegistrationForm) auth.Result[*auth.Registration]
}

// ProfileUpdater is the part of auth.Service used by the settings form.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, userID string, changes auth.ProfileChanges) auth.Result[*backend.Profile]
}

// ProfileRefresher reloads the shared profile after an edit.
type ProfileRefresher interface {
	RefreshProfile(ctx context.Context) error
}

// LoginForm signs an existing user in.
type LoginForm struct {
	machine
	auth Authenticator
	env  Env

	Email    string
	Password string
}

// NewLoginForm creates an empty login form.
func NewLoginForm(a Authenticator, env Env) *LoginForm {
	return &LoginForm{auth: a, env: env}
}

// Submit signs in, creating the profile if it is missing, and navigates
// home. On failure the password is cleared.
func (f *LoginForm) Submit(ctx context.Context) error {
	if err := f.begin(); err != nil {
		return err
	}
	email, password := f.Email, f.Password

	if v := validation.ValidateLogin(email, password); !v.Valid {
		return f.failed(string(v.Code), v.Message)
	}

	res := f.auth.SignIn(ctx, email, password)
	if !res.Success {
		return f.failed(res.Code, res.Error)
	}
	f.env.syncProfile(ctx)
	if !f.succeed("") {
		return ErrDisposed
	}
	f.env.navigate(session.HomeRoute)
	return nil
}

func (f *LoginForm) failed(code, msg string) error {
	if !f.fail(msg, func() { f.Password = "" }) {
		return ErrDisposed
	}
	return &FormError{Code: code, Message: msg}
}

// RegistrationForm creates an account and then signs in with it.
type RegistrationForm struct {
	machine
	auth Authenticator
	env  Env

	Email           string
	Username        string
	DisplayName     string
	Password        string
	ConfirmPassword string
}

// NewRegistrationForm creates an empty registration form.
func NewRegistrationForm(a Authenticator, env Env) *RegistrationForm {
	return &RegistrationForm{auth: a, env: env}
}

// Submit validates the input, registers, and signs in. Invalid input never
// reaches the backend. A partial registration shows its warning. If the
// automatic sign-in fails the user is sent to the login page instead.
func (f *RegistrationForm) Submit(ctx context.Context) error {
	if err := f.begin(); err != nil {
		return err
	}
	in := validation.Registration{
		Email:           f.Email,
		Username:        f.Username,
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
		DisplayName:     f.DisplayName,
	}

	if v := validation.ValidateRegistration(in); !v.Valid {
		return f.failed(string(v.Code), v.Message)
	}

	reg := f.auth.RegisterUser(ctx, auth.RegistrationForm{
		Email:       in.Email,
		Password:    in.Password,
		Username:    in.Username,
		DisplayName: in.DisplayName,
	})
	if !reg.Success {
		return f.failed(reg.Code, reg.Error)
	}
	f.env.notice(reg.Warning)

	login := f.auth.SignIn(ctx, in.Email, in.Password)
	if !login.Success {
		f.env.logger().WarnContext(ctx, "sign in after registration failed",
			"code", login.Code, "error", login.Error)
		if !f.succeed(MsgLoginAfterRegister) {
			return ErrDisposed
		}
		f.env.notice(MsgLoginAfterRegister)
		f.env.navigate(session.AuthRoute)
		return nil
	}

	f.env.syncProfile(ctx)
	if !f.succeed("") {
		return ErrDisposed
	}
	f.env.navigate(session.HomeRoute)
	return nil
}

func (f *RegistrationForm) failed(code, msg string) error {
	if !f.fail(msg, func() {
		f.Password = ""
		f.ConfirmPassword = ""
	}) {
		return ErrDisposed
	}
	return &FormError{Code: code, Message: msg}
}

// SettingsForm edits the signed-in user's profile.
type SettingsForm struct {
	machine
	profiles ProfileUpdater
	store    ProfileRefresher
	env      Env
	userID   string

	Username    string
	DisplayName string
	Bio         string
}

// NewSettingsForm creates a settings form prefilled from p.
func NewSettingsForm(profiles ProfileUpdater, store ProfileRefresher, p *backend.Profile, env Env) *SettingsForm {
	f := &SettingsForm{profiles: profiles, store: store, env: env}
	if p != nil {
		f.userID = p.ID
		f.Username = p.Username
		f.DisplayName = deref(p.DisplayName)
		f.Bio = deref(p.Bio)
	}
	return f
}

// Submit saves the edit and reloads the shared profile so every page sees
// it. An empty display name or bio clears the field.
func (f *SettingsForm) Submit(ctx context.Context) error {
	if err := f.begin(); err != nil {
		return err
	}
	if f.userID == "" {
		return f.failed("SESSION_NO_IDENTITY", auth.MsgUpdateFailed)
	}
	if v := validation.ValidateUsername(f.Username); !v.Valid {
		return f.failed(string(v.Code), v.Message)
	}

	res := f.profiles.UpdateProfile(ctx, f.userID, auth.ProfileChanges{
		Username:    f.Username,
		DisplayName: optional(f.DisplayName),
		Bio:         optional(f.Bio),
	})
	if !res.Success {
		return f.failed(res.Code, res.Error)
	}

	if f.store != nil {
		if err := f.store.RefreshProfile(ctx); err != nil {
			errutil.LogWarn(ctx, f.env.logger(), "profile reload after update failed", err)
		}
	}

	if !f.succeed(MsgProfileUpdated) {
		return ErrDisposed
	}
	f.env.notice(MsgProfileUpdated)
	return nil
}

func (f *SettingsForm) failed(code, msg string) error {
	if !f.fail(msg, nil) {
		return ErrDisposed
	}
	return &FormError{Code: code, Message: msg}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

