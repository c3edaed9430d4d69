// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/internal/logging"
	"github.com/downtown-montclair/downtown/internal/observability"
	"github.com/downtown-montclair/downtown/pkg/errutil"
)

// User-facing messages.
const (
	MsgLoginFailed          = "Login failed. Please try again."
	MsgRegistrationFailed   = "Registration failed. Please try again."
	MsgUsernameTaken        = "Username already taken"
	MsgUsernameCheckFailed  = "Error checking username availability"
	MsgMissingUserID        = "Account created but user ID is missing"
	MsgProfileSetupWarning  = "Account created, but profile setup had issues. Some features may be limited until resolved."
	MsgUsernameTakenWarning = "Account created, but that username was just taken. A temporary username will be assigned when you sign in; change it in settings."
	MsgProfileNotFound      = "Profile not found"
	MsgProfileFetchFailed   = "Failed to fetch profile"
	MsgProfileCreateFailed  = "Failed to create profile"
	MsgSelfHealCreateFailed = "Account exists but profile creation failed. Please contact support."
	MsgSelfHealAccessFailed = "Account exists but profile access failed. Please contact support."
	MsgUpdateFailed         = "Failed to update profile"
	MsgSignOutFailed        = "Failed to sign out"
	MsgSignOutUnconfirmed   = "Signed out on this device, but the server did not confirm the sign-out."
)

// CodeProfileNotFound is the Result code of a fetch that found no profile
// row, as opposed to a fetch that could not tell.
const CodeProfileNotFound = "PROFILE_NOT_FOUND"

// Operation names used for logging and metrics.
const (
	OpLogin         = "login"
	OpFetchProfile  = "fetch_profile"
	OpRegister      = "register"
	OpCreateProfile = "create_profile"
	OpEnsureProfile = "ensure_profile"
	OpSignIn        = "sign_in"
	OpUpdateProfile = "update_profile"
	OpSignOut       = "sign_out"
)

// Self-heal outcomes passed to Recorder.RecordSelfHeal.
const (
	SelfHealCreated      = "created"
	SelfHealFailed       = "failed"
	SelfHealAccessFailed = "access_failed"
)

// SelfHealUsernamePrefix starts the placeholder username created for an
// identity that has no profile.
const SelfHealUsernamePrefix = "user_"

// AuthClient is the part of the auth client SDK the service needs.
type AuthClient interface {
	SignUp(ctx context.Context, email, password string) (*backend.Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error)
	SignOut(ctx context.Context) error
}

// Recorder receives operation metrics.
type Recorder interface {
	RecordOperation(operation, status string, elapsed time.Duration)
	RecordSelfHeal(result string)
	RecordPartialRegistration()
}

// Service implements the account operations.
type Service struct {
	client   AuthClient
	profiles backend.ProfileTable
	metrics  Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock overrides the time source for profile timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(client AuthClient, profiles backend.ProfileTable, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("auth client is required")
	}
	if profiles == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("profile table is required")
	}
	s := &Service{
		client:   client,
		profiles: profiles,
		metrics:  observability.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// track is deferred by every operation. It turns a panic into a failed
// result and records the operation.
func track[T any](ctx context.Context, s *Service, op, fallback string, start time.Time, res *Result[T]) {
	if r := recover(); r != nil {
		s.logger.ErrorContext(ctx, "auth operation panicked", "operation", op, "panic", fmt.Sprint(r))
		*res = fail[T]("AUTH_INTERNAL", fallback)
	}
	status := observability.StatusSuccess
	switch {
	case !res.Success:
		status = observability.StatusFailure
	case res.Warning != "":
		status = observability.StatusWarning
	}
	s.metrics.RecordOperation(op, status, time.Since(start))
}

// LoginUser signs in with email and password.
func (s *Service) LoginUser(ctx context.Context, email, password string) (res Result[*backend.Session]) {
	defer track(ctx, s, OpLogin, MsgLoginFailed, time.Now(), &res)

	sess, err := s.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidCredentials) {
			errutil.LogWarn(ctx, s.logger, "login rejected", err)
		} else {
			errutil.LogError(ctx, s.logger, "login failed", err)
		}
		return failErr[*backend.Session](err, "AUTH_LOGIN_FAILED", MsgLoginFailed)
	}
	if sess == nil {
		return fail[*backend.Session]("AUTH_LOGIN_FAILED", MsgLoginFailed)
	}
	return ok(sess)
}

// FetchProfile reads the profile of userID.
func (s *Service) FetchProfile(ctx context.Context, userID string) (res Result[*backend.Profile]) {
	ctx = logging.WithUserID(ctx, userID)
	defer track(ctx, s, OpFetchProfile, MsgProfileFetchFailed, time.Now(), &res)

	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return fail[*backend.Profile](CodeProfileNotFound, MsgProfileNotFound)
		}
		errutil.LogError(ctx, s.logger, "profile fetch failed", err)
		return fail[*backend.Profile]("PROFILE_FETCH_FAILED", MsgProfileFetchFailed)
	}
	return ok(p)
}

// RegisterUser creates an account and its profile. The username is checked
// first; a taken username never reaches sign-up. A failed profile insert,
// including a username claimed since the check, does not undo the account:
// the result succeeds with a Warning.
func (s *Service) RegisterUser(ctx context.Context, form RegistrationForm) (res Result[*Registration]) {
	defer track(ctx, s, OpRegister, MsgRegistrationFailed, time.Now(), &res)

	existing, err := s.profiles.FindByUsername(ctx, form.Username, "")
	if err != nil {
		errutil.LogError(ctx, s.logger, "username availability check failed", err)
		return fail[*Registration]("AUTH_USERNAME_CHECK_FAILED", MsgUsernameCheckFailed)
	}
	if len(existing) > 0 {
		return fail[*Registration]("AUTH_USERNAME_TAKEN", MsgUsernameTaken)
	}

	identity, err := s.client.SignUp(ctx, form.Email, form.Password)
	if err != nil {
		errutil.LogWarn(ctx, s.logger, "sign up failed", err)
		return failErr[*Registration](err, "AUTH_SIGNUP_FAILED", MsgRegistrationFailed)
	}
	if identity == nil || identity.ID == "" {
		s.logger.ErrorContext(ctx, "sign up returned no user id", "email", form.Email)
		return fail[*Registration]("AUTH_MISSING_USER_ID", MsgMissingUserID)
	}
	ctx = logging.WithUserID(ctx, identity.ID)

	var displayName *string
	if form.DisplayName != "" {
		displayName = &form.DisplayName
	}
	profile, err := s.profiles.Insert(ctx, backend.ProfileInsert{
		ID:          identity.ID,
		Email:       identity.Email,
		Username:    form.Username,
		DisplayName: displayName,
		CreatedAt:   s.now(),
	})
	if err != nil {
		// The account exists either way. Sign-in creates a placeholder
		// profile and the username can be changed in settings.
		res = ok(&Registration{Identity: identity})
		res.Warning = MsgProfileSetupWarning
		if errors.Is(err, backend.ErrUsernameTaken) {
			// Lost the race since the pre-check.
			errutil.LogWarn(ctx, s.logger, "username taken at profile insert", err)
			res.Warning = MsgUsernameTakenWarning
		} else {
			errutil.LogError(ctx, s.logger, "profile insert after sign up failed", err)
		}
		s.metrics.RecordPartialRegistration()
		return res
	}

	return ok(&Registration{Identity: identity, Profile: profile})
}

// CreateProfile inserts a profile row.
func (s *Service) CreateProfile(ctx context.Context, params ProfileParams) (res Result[*backend.Profile]) {
	ctx = logging.WithUserID(ctx, params.ID)
	defer track(ctx, s, OpCreateProfile, MsgProfileCreateFailed, time.Now(), &res)

	if params.ID == "" {
		return fail[*backend.Profile]("PROFILE_INVALID_ID", MsgProfileCreateFailed)
	}
	p, err := s.profiles.Insert(ctx, backend.ProfileInsert{
		ID:          params.ID,
		Email:       params.Email,
		Username:    params.Username,
		DisplayName: params.DisplayName,
		CreatedAt:   s.now(),
	})
	if err != nil {
		if errors.Is(err, backend.ErrUsernameTaken) {
			return fail[*backend.Profile]("AUTH_USERNAME_TAKEN", MsgUsernameTaken)
		}
		errutil.LogError(ctx, s.logger, "profile insert failed", err)
		return fail[*backend.Profile]("PROFILE_CREATE_FAILED", MsgProfileCreateFailed)
	}
	return ok(p)
}

// SelfHealUsername is the placeholder username for identity id.
func SelfHealUsername(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return SelfHealUsernamePrefix + id
}

// EnsureProfile returns the profile of identity, creating a placeholder
// when none exists.
func (s *Service) EnsureProfile(ctx context.Context, identity backend.Identity) (res Result[*backend.Profile]) {
	ctx = logging.WithUserID(ctx, identity.ID)
	defer track(ctx, s, OpEnsureProfile, MsgSelfHealAccessFailed, time.Now(), &res)

	if identity.ID == "" {
		return fail[*backend.Profile]("AUTH_MISSING_USER_ID", MsgSelfHealAccessFailed)
	}

	p, err := s.profiles.Get(ctx, identity.ID)
	if err == nil {
		return ok(p)
	}
	if !errors.Is(err, backend.ErrNotFound) {
		errutil.LogError(ctx, s.logger, "profile access failed during sign in", err)
		s.metrics.RecordSelfHeal(SelfHealAccessFailed)
		return fail[*backend.Profile]("PROFILE_ACCESS_FAILED", MsgSelfHealAccessFailed)
	}

	s.logger.InfoContext(ctx, "profile missing, creating placeholder")
	p, err = s.profiles.Insert(ctx, backend.ProfileInsert{
		ID:        identity.ID,
		Email:     identity.Email,
		Username:  SelfHealUsername(identity.ID),
		CreatedAt: s.now(),
	})
	if err != nil {
		errutil.LogError(ctx, s.logger, "placeholder profile insert failed", err)
		s.metrics.RecordSelfHeal(SelfHealFailed)
		return fail[*backend.Profile]("PROFILE_SELF_HEAL_FAILED", MsgSelfHealCreateFailed)
	}
	s.metrics.RecordSelfHeal(SelfHealCreated)
	return ok(p)
}

// SignIn logs in and makes sure the identity has a profile. When the
// profile cannot be ensured the result fails but the session stays current.
func (s *Service) SignIn(ctx context.Context, email, password string) (res Result[*Login]) {
	defer track(ctx, s, OpSignIn, MsgLoginFailed, time.Now(), &res)

	login := s.LoginUser(ctx, email, password)
	if !login.Success {
		return fail[*Login](login.Code, login.Error)
	}
	profile := s.EnsureProfile(ctx, login.Data.Identity)
	if !profile.Success {
		return fail[*Login](profile.Code, profile.Error)
	}
	return ok(&Login{Session: login.Data, Profile: profile.Data})
}

// UpdateProfile applies changes to the profile of userID and returns the
// stored row. A changed username must not belong to another profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, changes ProfileChanges) (res Result[*backend.Profile]) {
	ctx = logging.WithUserID(ctx, userID)
	defer track(ctx, s, OpUpdateProfile, MsgUpdateFailed, time.Now(), &res)

	current, err := s.profiles.Get(ctx, userID)
	if err != nil {
		errutil.LogError(ctx, s.logger, "profile read before update failed", err)
		return fail[*backend.Profile]("PROFILE_UPDATE_FAILED", MsgUpdateFailed)
	}

	if changes.Username != current.Username {
		others, err := s.profiles.FindByUsername(ctx, changes.Username, userID)
		if err != nil {
			errutil.LogError(ctx, s.logger, "username availability check failed", err)
			return fail[*backend.Profile]("AUTH_USERNAME_CHECK_FAILED", MsgUsernameCheckFailed)
		}
		if len(others) > 0 {
			return fail[*backend.Profile]("AUTH_USERNAME_TAKEN", MsgUsernameTaken)
		}
	}

	err = s.profiles.Update(ctx, userID, backend.ProfileUpdate{
		Username:    changes.Username,
		DisplayName: changes.DisplayName,
		Bio:         changes.Bio,
		UpdatedAt:   s.now(),
	})
	if err != nil {
		if errors.Is(err, backend.ErrUsernameTaken) {
			return fail[*backend.Profile]("AUTH_USERNAME_TAKEN", MsgUsernameTaken)
		}
		errutil.LogError(ctx, s.logger, "profile update failed", err)
		return fail[*backend.Profile]("PROFILE_UPDATE_FAILED", MsgUpdateFailed)
	}

	fresh, err := s.profiles.Get(ctx, userID)
	if err != nil {
		errutil.LogError(ctx, s.logger, "profile re-read after update failed", err)
		return fail[*backend.Profile]("PROFILE_UPDATE_FAILED", MsgUpdateFailed)
	}
	return ok(fresh)
}

// SignOut ends the current session. Local state is always cleared; a
// provider failure is reported as a Warning.
func (s *Service) SignOut(ctx context.Context) (res Result[struct{}]) {
	defer track(ctx, s, OpSignOut, MsgSignOutFailed, time.Now(), &res)

	if err := s.client.SignOut(ctx); err != nil {
		errutil.LogWarn(ctx, s.logger, "remote sign out failed", err)
		res = ok(struct{}{})
		res.Warning = MsgSignOutUnconfirmed
		return res
	}
	return ok(struct{}{})
}
