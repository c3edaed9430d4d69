// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/internal/backend"
)

// Profiles implements backend.ProfileTable. Usernames are unique, the
// same way the postgres table enforces it with a constraint.
type Profiles struct {
	mu         sync.RWMutex
	rows       map[string]*backend.Profile
	byUsername map[string]string
}

// NewProfiles creates an empty profile table.
func NewProfiles() *Profiles {
	return &Profiles{
		rows:       make(map[string]*backend.Profile),
		byUsername: make(map[string]string),
	}
}

// Get returns the profile with the given id.
func (t *Profiles) Get(_ context.Context, id string) (*backend.Profile, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.rows[id]
	if !ok {
		return nil, oops.Code("PROFILE_NOT_FOUND").With("id", id).Wrap(backend.ErrNotFound)
	}
	return p.Clone(), nil
}

// FindByUsername returns profiles using username other than excludeID.
func (t *Profiles) FindByUsername(_ context.Context, username, excludeID string) ([]backend.Profile, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byUsername[username]
	if !ok || (excludeID != "" && id == excludeID) {
		return nil, nil
	}
	return []backend.Profile{*t.rows[id].Clone()}, nil
}

// Insert creates a profile.
func (t *Profiles) Insert(_ context.Context, in backend.ProfileInsert) (*backend.Profile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[in.ID]; ok {
		return nil, oops.Code("PROFILE_EXISTS").With("id", in.ID).Errorf("profile already exists")
	}
	if _, ok := t.byUsername[in.Username]; ok {
		return nil, oops.Code("PROFILE_USERNAME_TAKEN").With("username", in.Username).Wrap(backend.ErrUsernameTaken)
	}

	p := &backend.Profile{
		ID:          in.ID,
		Email:       in.Email,
		Username:    in.Username,
		DisplayName: in.DisplayName,
		CreatedAt:   in.CreatedAt,
	}
	t.rows[in.ID] = p
	t.byUsername[in.Username] = in.ID
	return p.Clone(), nil
}

// Update modifies an existing profile.
func (t *Profiles) Update(_ context.Context, id string, u backend.ProfileUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.rows[id]
	if !ok {
		return oops.Code("PROFILE_NOT_FOUND").With("id", id).Wrap(backend.ErrNotFound)
	}
	if owner, taken := t.byUsername[u.Username]; taken && owner != id {
		return oops.Code("PROFILE_USERNAME_TAKEN").With("username", u.Username).Wrap(backend.ErrUsernameTaken)
	}

	delete(t.byUsername, p.Username)
	updated := p.Clone()
	updated.Username = u.Username
	updated.DisplayName = u.DisplayName
	updated.Bio = u.Bio
	at := u.UpdatedAt
	updated.UpdatedAt = &at
	t.rows[id] = updated
	t.byUsername[u.Username] = id
	return nil
}

// Delete removes a profile. It exists so tests can simulate a missing
// profile row; the application never deletes profiles.
func (t *Profiles) Delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.rows[id]; ok {
		delete(t.byUsername, p.Username)
		delete(t.rows, id)
	}
}

// Usernames returns all usernames in sorted order.
func (t *Profiles) Usernames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byUsername))
	for u := range t.byUsername {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

var _ backend.ProfileTable = (*Profiles)(nil)
