// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package memory

import (
	"github.com/downtown-montclair/downtown/internal/backend"
)

// Backend bundles an in-memory identity provider and profile table.
type Backend struct {
	Accounts *Accounts
	Sessions *Sessions
	Profiles *Profiles
	Provider *backend.Provider
}

// New creates an empty in-memory backend using hasher for passwords.
func New(hasher backend.PasswordHasher, opts ...backend.ProviderOption) (*Backend, error) {
	b := &Backend{
		Accounts: NewAccounts(),
		Sessions: NewSessions(),
		Profiles: NewProfiles(),
	}
	p, err := backend.NewProvider(b.Accounts, b.Sessions, hasher, opts...)
	if err != nil {
		return nil, err
	}
	b.Provider = p
	return b, nil
}
