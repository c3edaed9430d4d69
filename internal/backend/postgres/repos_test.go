// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/downtown-montclair/downtown/internal/backend"
	"github.com/downtown-montclair/downtown/pkg/errutil"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	account := &backend.Account{ID: "acct-1", Email: "ada@example.com", PasswordHash: "h", CreatedAt: testNow, UpdatedAt: testNow}

	t.Run("inserts identity", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO identities`).
			WithArgs("acct-1", "ada@example.com", "h", testNow, testNow).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewAccountRepository(mock).Create(ctx, account))
	})

	t.Run("duplicate email maps to ErrEmailTaken", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO identities`).
			WithArgs("acct-1", "ada@example.com", "h", testNow, testNow).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "identities_email_key"})

		err := NewAccountRepository(mock).Create(ctx, account)
		assert.ErrorIs(t, err, backend.ErrEmailTaken)
	})

	t.Run("other failure keeps context", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO identities`).
			WithArgs("acct-1", "ada@example.com", "h", testNow, testNow).
			WillReturnError(errors.New("connection refused"))

		err := NewAccountRepository(mock).Create(ctx, account)
		errutil.AssertErrorCode(t, err, "ACCOUNT_CREATE_FAILED")
		errutil.AssertErrorContext(t, err, "operation", "insert identity")
	})
}

func TestAccountRepository_Get(t *testing.T) {
	ctx := context.Background()
	cols := []string{"id", "email", "password_hash", "created_at", "updated_at"}

	t.Run("by email", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .* FROM identities WHERE email = \$1`).
			WithArgs("ada@example.com").
			WillReturnRows(pgxmock.NewRows(cols).AddRow("acct-1", "ada@example.com", "h", testNow, testNow))

		a, err := NewAccountRepository(mock).GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "acct-1", a.ID)
		assert.Equal(t, "h", a.PasswordHash)
	})

	t.Run("missing id wraps ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .* FROM identities WHERE id = \$1`).
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewAccountRepository(mock).GetByID(ctx, "nope")
		assert.ErrorIs(t, err, backend.ErrNotFound)
	})
}

func sessionRow(rec *backend.SessionRecord) []any {
	return []any{
		rec.ID.String(), rec.AccountID, rec.AccessTokenHash, rec.RefreshTokenHash,
		rec.AccessExpiresAt, rec.RefreshExpiresAt, rec.CreatedAt, rec.RefreshedAt,
	}
}

var sessionCols = []string{
	"id", "identity_id", "access_token_hash", "refresh_token_hash",
	"access_expires_at", "refresh_expires_at", "created_at", "refreshed_at",
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	rec, _, err := backend.NewSessionRecord("acct-1", testNow)
	require.NoError(t, err)

	t.Run("create", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO auth_sessions`).
			WithArgs(sessionRow(rec)...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewSessionRepository(mock).Create(ctx, rec))
	})

	t.Run("get by access hash", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM auth_sessions WHERE access_token_hash = \$1`).
			WithArgs(rec.AccessTokenHash).
			WillReturnRows(pgxmock.NewRows(sessionCols).AddRow(sessionRow(rec)...))

		got, err := NewSessionRepository(mock).GetByAccessHash(ctx, rec.AccessTokenHash)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.RefreshExpiresAt, got.RefreshExpiresAt)
	})

	t.Run("get by refresh hash not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM auth_sessions WHERE refresh_token_hash = \$1`).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewSessionRepository(mock).GetByRefreshHash(ctx, "missing")
		assert.ErrorIs(t, err, backend.ErrNotFound)
	})

	t.Run("update of vanished row", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE auth_sessions`).
			WithArgs(rec.ID.String(), rec.AccessTokenHash, rec.RefreshTokenHash, rec.AccessExpiresAt, rec.RefreshExpiresAt, rec.RefreshedAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := NewSessionRepository(mock).Update(ctx, rec)
		assert.ErrorIs(t, err, backend.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM auth_sessions WHERE id = \$1`).
			WithArgs(rec.ID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, NewSessionRepository(mock).Delete(ctx, rec.ID))
	})

	t.Run("delete expired", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`DELETE FROM auth_sessions WHERE refresh_expires_at <= \$1`).
			WithArgs(testNow).
			WillReturnResult(pgxmock.NewResult("DELETE", 4))

		n, err := NewSessionRepository(mock).DeleteExpired(ctx, testNow)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock := newMock(t)
		row := sessionRow(rec)
		row[0] = "not-a-ulid"
		mock.ExpectQuery(`FROM auth_sessions WHERE access_token_hash = \$1`).
			WithArgs(rec.AccessTokenHash).
			WillReturnRows(pgxmock.NewRows(sessionCols).AddRow(row...))

		_, err := NewSessionRepository(mock).GetByAccessHash(ctx, rec.AccessTokenHash)
		require.Error(t, err)
		assert.NotErrorIs(t, err, backend.ErrNotFound)
	})
}

var profileCols = []string{
	"id", "email", "username", "display_name", "bio", "profile_picture_url",
	"social_links", "created_at", "updated_at",
}

func profileRow(id, username string, displayName *string) []any {
	return []any{
		id, "ada@example.com", username, displayName, (*string)(nil), (*string)(nil),
		map[string]string(nil), testNow, (*time.Time)(nil),
	}
}

func TestProfileTable_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		name := "Ada"
		mock.ExpectQuery(`SELECT .* FROM profiles WHERE id = \$1`).
			WithArgs("u1").
			WillReturnRows(pgxmock.NewRows(profileCols).AddRow(profileRow("u1", "ada", &name)...))

		p, err := NewProfileTable(mock).Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "ada", p.Username)
		require.NotNil(t, p.DisplayName)
		assert.Equal(t, "Ada", *p.DisplayName)
		assert.Nil(t, p.Bio)
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .* FROM profiles WHERE id = \$1`).
			WithArgs("u1").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewProfileTable(mock).Get(ctx, "u1")
		assert.ErrorIs(t, err, backend.ErrNotFound)
	})

	t.Run("query failure is not not-found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .* FROM profiles WHERE id = \$1`).
			WithArgs("u1").
			WillReturnError(errors.New("timeout"))

		_, err := NewProfileTable(mock).Get(ctx, "u1")
		assert.NotErrorIs(t, err, backend.ErrNotFound)
		errutil.AssertErrorCode(t, err, "PROFILE_GET_FAILED")
	})
}

func TestProfileTable_FindByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("without exclude", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM profiles WHERE username = \$1$`).
			WithArgs("ada").
			WillReturnRows(pgxmock.NewRows(profileCols).AddRow(profileRow("u1", "ada", nil)...))

		rows, err := NewProfileTable(mock).FindByUsername(ctx, "ada", "")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("with exclude", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM profiles WHERE username = \$1 AND id <> \$2`).
			WithArgs("ada", "u1").
			WillReturnRows(pgxmock.NewRows(profileCols))

		rows, err := NewProfileTable(mock).FindByUsername(ctx, "ada", "u1")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("query failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM profiles WHERE username`).
			WithArgs("ada").
			WillReturnError(errors.New("connection refused"))

		_, err := NewProfileTable(mock).FindByUsername(ctx, "ada", "")
		errutil.AssertErrorCode(t, err, "PROFILE_QUERY_FAILED")
	})
}

func TestProfileTable_Insert(t *testing.T) {
	ctx := context.Background()
	in := backend.ProfileInsert{ID: "u1", Email: "ada@example.com", Username: "ada", CreatedAt: testNow}

	t.Run("returns inserted row", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO profiles`).
			WithArgs("u1", "ada@example.com", "ada", (*string)(nil), testNow).
			WillReturnRows(pgxmock.NewRows(profileCols).AddRow(profileRow("u1", "ada", nil)...))

		p, err := NewProfileTable(mock).Insert(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, "u1", p.ID)
	})

	t.Run("unique violation maps to ErrUsernameTaken", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO profiles`).
			WithArgs("u1", "ada@example.com", "ada", (*string)(nil), testNow).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: usernameConstraint})

		_, err := NewProfileTable(mock).Insert(ctx, in)
		assert.ErrorIs(t, err, backend.ErrUsernameTaken)
	})

	t.Run("primary key violation is not a username clash", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO profiles`).
			WithArgs("u1", "ada@example.com", "ada", (*string)(nil), testNow).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "profiles_pkey"})

		_, err := NewProfileTable(mock).Insert(ctx, in)
		assert.NotErrorIs(t, err, backend.ErrUsernameTaken)
		errutil.AssertErrorCode(t, err, "PROFILE_INSERT_FAILED")
	})
}

func TestProfileTable_Update(t *testing.T) {
	ctx := context.Background()
	bio := "hi"
	u := backend.ProfileUpdate{Username: "ada2", Bio: &bio, UpdatedAt: testNow}

	t.Run("updates", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE profiles`).
			WithArgs("u1", "ada2", (*string)(nil), &bio, testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewProfileTable(mock).Update(ctx, "u1", u))
	})

	t.Run("missing row", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE profiles`).
			WithArgs("u1", "ada2", (*string)(nil), &bio, testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, NewProfileTable(mock).Update(ctx, "u1", u), backend.ErrNotFound)
	})

	t.Run("username clash", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE profiles`).
			WithArgs("u1", "ada2", (*string)(nil), &bio, testNow).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: usernameConstraint})

		assert.ErrorIs(t, NewProfileTable(mock).Update(ctx, "u1", u), backend.ErrUsernameTaken)
	})
}

func TestNew_WiresProvider(t *testing.T) {
	mock := newMock(t)
	b, err := New(mock, backend.NewArgon2idHasher())
	require.NoError(t, err)
	assert.NotNil(t, b.Provider)

	_, err = New(mock, nil)
	require.Error(t, err)
}
