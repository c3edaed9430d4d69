// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/internal/backend"
)

const profileColumns = `id, email, username, display_name, bio, profile_picture_url, social_links, created_at, updated_at`

const usernameConstraint = "profiles_username_key"

// ProfileTable implements backend.ProfileTable using PostgreSQL.
type ProfileTable struct {
	pool poolIface
}

// NewProfileTable creates a new ProfileTable.
func NewProfileTable(pool poolIface) *ProfileTable {
	return &ProfileTable{pool: pool}
}

// Get returns the profile with the given id.
func (t *ProfileTable) Get(ctx context.Context, id string) (*backend.Profile, error) {
	row := t.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PROFILE_NOT_FOUND").With("id", id).Wrap(backend.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_FAILED").
			With("operation", "get profile").
			With("id", id).
			Wrap(err)
	}
	return p, nil
}

// FindByUsername returns profiles using username other than excludeID.
func (t *ProfileTable) FindByUsername(ctx context.Context, username, excludeID string) ([]backend.Profile, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if excludeID == "" {
		rows, err = t.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE username = $1`, username)
	} else {
		rows, err = t.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE username = $1 AND id <> $2`, username, excludeID)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_QUERY_FAILED").
			With("operation", "find profiles by username").
			With("username", username).
			Wrap(err)
	}
	defer rows.Close()

	var out []backend.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, oops.Code("PROFILE_SCAN_FAILED").
				With("operation", "scan profile row").
				Wrap(err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PROFILE_ROWS_ERROR").
			With("operation", "iterate profile rows").
			Wrap(err)
	}
	return out, nil
}

// Insert creates a profile.
func (t *ProfileTable) Insert(ctx context.Context, in backend.ProfileInsert) (*backend.Profile, error) {
	row := t.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, email, username, display_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+profileColumns,
		in.ID, in.Email, in.Username, in.DisplayName, in.CreatedAt,
	)
	p, err := scanProfile(row)
	if err != nil {
		if isUniqueViolation(err, usernameConstraint) {
			return nil, oops.Code("PROFILE_USERNAME_TAKEN").
				With("username", in.Username).
				Wrap(backend.ErrUsernameTaken)
		}
		return nil, oops.Code("PROFILE_INSERT_FAILED").
			With("operation", "insert profile").
			With("id", in.ID).
			Wrap(err)
	}
	return p, nil
}

// Update modifies an existing profile.
func (t *ProfileTable) Update(ctx context.Context, id string, u backend.ProfileUpdate) error {
	result, err := t.pool.Exec(ctx, `
		UPDATE profiles
		SET username = $2, display_name = $3, bio = $4, updated_at = $5
		WHERE id = $1
	`, id, u.Username, u.DisplayName, u.Bio, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, usernameConstraint) {
			return oops.Code("PROFILE_USERNAME_TAKEN").
				With("username", u.Username).
				Wrap(backend.ErrUsernameTaken)
		}
		return oops.Code("PROFILE_UPDATE_FAILED").
			With("operation", "update profile").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PROFILE_NOT_FOUND").With("id", id).Wrap(backend.ErrNotFound)
	}
	return nil
}

func scanProfile(row pgx.Row) (*backend.Profile, error) {
	var p backend.Profile
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Username,
		&p.DisplayName,
		&p.Bio,
		&p.ProfilePictureURL,
		&p.SocialLinks,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ backend.ProfileTable = (*ProfileTable)(nil)
