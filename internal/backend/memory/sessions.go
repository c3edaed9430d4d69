// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/internal/backend"
)

// Sessions implements backend.SessionRepository.
type Sessions struct {
	mu      sync.RWMutex
	records map[ulid.ULID]backend.SessionRecord
}

// NewSessions creates an empty session repository.
func NewSessions() *Sessions {
	return &Sessions{records: make(map[ulid.ULID]backend.SessionRecord)}
}

// Create stores a new session record.
func (r *Sessions) Create(_ context.Context, rec *backend.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = *rec
	return nil
}

// GetByAccessHash retrieves a session by access token hash.
func (r *Sessions) GetByAccessHash(_ context.Context, hash string) (*backend.SessionRecord, error) {
	return r.find(func(rec *backend.SessionRecord) bool { return rec.AccessTokenHash == hash })
}

// GetByRefreshHash retrieves a session by refresh token hash.
func (r *Sessions) GetByRefreshHash(_ context.Context, hash string) (*backend.SessionRecord, error) {
	return r.find(func(rec *backend.SessionRecord) bool { return rec.RefreshTokenHash == hash })
}

func (r *Sessions) find(match func(*backend.SessionRecord) bool) (*backend.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if match(&rec) {
			return &rec, nil
		}
	}
	return nil, oops.Code("SESSION_NOT_FOUND").Wrap(backend.ErrNotFound)
}

// Update persists rotated tokens and expiries.
func (r *Sessions) Update(_ context.Context, rec *backend.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", rec.ID.String()).Wrap(backend.ErrNotFound)
	}
	r.records[rec.ID] = *rec
	return nil
}

// Delete removes a session by ID.
func (r *Sessions) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(backend.ErrNotFound)
	}
	delete(r.records, id)
	return nil
}

// DeleteExpired removes sessions whose refresh token has expired.
func (r *Sessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.records {
		if rec.RefreshExpiredAt(now) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

var _ backend.SessionRepository = (*Sessions)(nil)
