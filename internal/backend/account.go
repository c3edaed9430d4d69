// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package backend

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Account is the provider-side record behind an Identity.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount creates an Account with a fresh UUID. Email is normalized to
// lower case; the hash must already be computed.
func NewAccount(email, passwordHash string, now time.Time) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	return &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Identity returns the public view of the account.
func (a *Account) Identity() Identity {
	return Identity{ID: a.ID, Email: a.Email, CreatedAt: a.CreatedAt}
}

// NormalizeEmail trims and lower-cases an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. A duplicate email yields ErrEmailTaken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id string) (*Account, error)

	// GetByEmail retrieves an account by normalized email.
	GetByEmail(ctx context.Context, email string) (*Account, error)
}
