// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/internal/backend"
)

// Accounts implements backend.AccountRepository.
type Accounts struct {
	mu      sync.RWMutex
	byID    map[string]backend.Account
	byEmail map[string]string
}

// NewAccounts creates an empty account repository.
func NewAccounts() *Accounts {
	return &Accounts{
		byID:    make(map[string]backend.Account),
		byEmail: make(map[string]string),
	}
}

// Create stores a new account.
func (r *Accounts) Create(_ context.Context, account *backend.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[account.Email]; ok {
		return oops.Code("ACCOUNT_EMAIL_TAKEN").With("email", account.Email).Wrap(backend.ErrEmailTaken)
	}
	r.byID[account.ID] = *account
	r.byEmail[account.Email] = account.ID
	return nil
}

// GetByID retrieves an account by ID.
func (r *Accounts) GetByID(_ context.Context, id string) (*backend.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(backend.ErrNotFound)
	}
	return &a, nil
}

// GetByEmail retrieves an account by normalized email.
func (r *Accounts) GetByEmail(_ context.Context, email string) (*backend.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(backend.ErrNotFound)
	}
	a := r.byID[id]
	return &a, nil
}

var _ backend.AccountRepository = (*Accounts)(nil)
