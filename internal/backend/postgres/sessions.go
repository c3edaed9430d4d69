// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/internal/backend"
)

const sessionColumns = `id, identity_id, access_token_hash, refresh_token_hash, access_expires_at, refresh_expires_at, created_at, refreshed_at`

// SessionRepository implements backend.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session record.
func (r *SessionRepository) Create(ctx context.Context, rec *backend.SessionRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO auth_sessions (id, identity_id, access_token_hash, refresh_token_hash,
			access_expires_at, refresh_expires_at, created_at, refreshed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		rec.ID.String(),
		rec.AccountID,
		rec.AccessTokenHash,
		rec.RefreshTokenHash,
		rec.AccessExpiresAt,
		rec.RefreshExpiresAt,
		rec.CreatedAt,
		rec.RefreshedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert auth_session").
			With("account_id", rec.AccountID).
			Wrap(err)
	}
	return nil
}

// GetByAccessHash retrieves a session by access token hash.
func (r *SessionRepository) GetByAccessHash(ctx context.Context, hash string) (*backend.SessionRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM auth_sessions WHERE access_token_hash = $1`, hash)
	return r.get(row, "get session by access hash")
}

// GetByRefreshHash retrieves a session by refresh token hash.
func (r *SessionRepository) GetByRefreshHash(ctx context.Context, hash string) (*backend.SessionRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM auth_sessions WHERE refresh_token_hash = $1`, hash)
	return r.get(row, "get session by refresh hash")
}

func (r *SessionRepository) get(row pgx.Row, operation string) (*backend.SessionRecord, error) {
	rec, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(backend.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("operation", operation).Wrap(err)
	}
	return rec, nil
}

// Update persists rotated tokens and expiries.
func (r *SessionRepository) Update(ctx context.Context, rec *backend.SessionRecord) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE auth_sessions
		SET access_token_hash = $2, refresh_token_hash = $3,
			access_expires_at = $4, refresh_expires_at = $5, refreshed_at = $6
		WHERE id = $1
	`,
		rec.ID.String(),
		rec.AccessTokenHash,
		rec.RefreshTokenHash,
		rec.AccessExpiresAt,
		rec.RefreshExpiresAt,
		rec.RefreshedAt,
	)
	if err != nil {
		return oops.Code("SESSION_UPDATE_FAILED").
			With("operation", "update auth_session").
			With("id", rec.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").With("id", rec.ID.String()).Wrap(backend.ErrNotFound)
	}
	return nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete auth_session").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(backend.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes sessions whose refresh token has expired.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE refresh_expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*backend.SessionRecord, error) {
	var (
		rec   backend.SessionRecord
		idStr string
	)
	if err := row.Scan(
		&idStr,
		&rec.AccountID,
		&rec.AccessTokenHash,
		&rec.RefreshTokenHash,
		&rec.AccessExpiresAt,
		&rec.RefreshExpiresAt,
		&rec.CreatedAt,
		&rec.RefreshedAt,
	); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	rec.ID = id
	return &rec, nil
}

var _ backend.SessionRepository = (*SessionRepository)(nil)
