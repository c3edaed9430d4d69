// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/pkg/errutil"
)

// Provider implements IdentityProvider over account and session repositories.
type Provider struct {
	accounts AccountRepository
	sessions SessionRepository
	hasher   PasswordHasher
	logger   *slog.Logger
	now      func() time.Time
}

// ProviderOption customizes a Provider.
type ProviderOption func(*Provider)

// WithClock overrides the provider's time source.
func WithClock(now func() time.Time) ProviderOption {
	return func(p *Provider) { p.now = now }
}

// WithLogger sets the provider's logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = logger }
}

// NewProvider creates a Provider. All dependencies are required.
func NewProvider(accounts AccountRepository, sessions SessionRepository, hasher PasswordHasher, opts ...ProviderOption) (*Provider, error) {
	if accounts == nil {
		return nil, oops.Code("PROVIDER_INVALID_CONFIG").Errorf("accounts repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("PROVIDER_INVALID_CONFIG").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("PROVIDER_INVALID_CONFIG").Errorf("password hasher is required")
	}
	p := &Provider{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// dummyPasswordHash is verified when the email is unknown so the response
// time does not reveal whether an account exists. It matches no password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SignUp creates an account for email.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	hash, err := p.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			Public("Password is not acceptable").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(email, hash, p.now())
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			Public("Please enter a valid email address").
			Wrap(err)
	}

	if err := p.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, oops.Code("AUTH_EMAIL_TAKEN").
				Public("User already registered").
				With("email", account.Email).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	identity := account.Identity()
	return &identity, nil
}

// SignIn verifies the password and starts a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	account, lookupErr := p.accounts.GetByEmail(ctx, NormalizeEmail(email))

	targetHash := dummyPasswordHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = account.PasswordHash
		exists = true
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(lookupErr)
	}

	// Always verify so unknown emails cost the same as wrong passwords.
	valid, verifyErr := p.hasher.Verify(password, targetHash)
	if verifyErr != nil && exists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !exists || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").
			Public("Invalid login credentials").
			Wrap(ErrInvalidCredentials)
	}

	now := p.now()
	rec, tokens, err := NewSessionRecord(account.ID, now)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session record").
			Wrap(err)
	}
	if err := p.sessions.Create(ctx, rec); err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return &Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    rec.AccessExpiresAt,
		Identity:     account.Identity(),
	}, nil
}

// Refresh rotates the token pair identified by refreshToken.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Wrap(ErrInvalidToken)
	}

	rec, err := p.sessions.GetByRefreshHash(ctx, HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Public("Invalid Refresh Token").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "get session by refresh hash").
			Wrap(err)
	}

	now := p.now()
	if rec.RefreshExpiredAt(now) {
		p.deleteBestEffort(ctx, rec)
		return nil, oops.Code("SESSION_EXPIRED").Public("Refresh Token Expired").Wrap(ErrInvalidToken)
	}

	account, err := p.accounts.GetByID(ctx, rec.AccountID)
	if err != nil {
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "get account").
			With("account_id", rec.AccountID).
			Wrap(err)
	}

	tokens, err := rec.Rotate(now)
	if err != nil {
		return nil, oops.Code("SESSION_REFRESH_FAILED").With("operation", "rotate tokens").Wrap(err)
	}
	if err := p.sessions.Update(ctx, rec); err != nil {
		return nil, oops.Code("SESSION_REFRESH_FAILED").
			With("operation", "persist rotated session").
			With("session_id", rec.ID.String()).
			Wrap(err)
	}

	return &Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    rec.AccessExpiresAt,
		Identity:     account.Identity(),
	}, nil
}

// GetSession resolves an access token to its session. The returned
// session carries no plaintext tokens except the access token passed in.
func (p *Provider) GetSession(ctx context.Context, accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Wrap(ErrInvalidToken)
	}

	rec, err := p.sessions.GetByAccessHash(ctx, HashToken(accessToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by access hash").
			Wrap(err)
	}
	if rec.AccessExpiredAt(p.now()) {
		return nil, oops.Code("SESSION_EXPIRED").Wrap(ErrInvalidToken)
	}

	account, err := p.accounts.GetByID(ctx, rec.AccountID)
	if err != nil {
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get account").
			With("account_id", rec.AccountID).
			Wrap(err)
	}

	return &Session{
		AccessToken: accessToken,
		ExpiresAt:   rec.AccessExpiresAt,
		Identity:    account.Identity(),
	}, nil
}

// SignOut revokes the session. Unknown tokens are not an error: the
// caller's goal, a dead session, already holds.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	rec, err := p.sessions.GetByAccessHash(ctx, HashToken(accessToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "get session by access hash").
			Wrap(err)
	}
	if err := p.sessions.Delete(ctx, rec.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("session_id", rec.ID.String()).
			Wrap(err)
	}
	return nil
}

// PurgeExpired deletes sessions whose refresh token has expired.
func (p *Provider) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := p.sessions.DeleteExpired(ctx, p.now())
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

func (p *Provider) deleteBestEffort(ctx context.Context, rec *SessionRecord) {
	if err := p.sessions.Delete(ctx, rec.ID); err != nil && !errors.Is(err, ErrNotFound) {
		errutil.LogWarn(ctx, p.logger, "failed to delete expired session", err)
	}
}
