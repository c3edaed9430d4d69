// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/downtown-montclair/downtown/internal/backend"
)

// poolIface is the subset of *pgxpool.Pool the repositories use. It is
// satisfied by pgxmock.PgxPoolIface in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

// Backend bundles the PostgreSQL repositories with an identity provider.
type Backend struct {
	Accounts *AccountRepository
	Sessions *SessionRepository
	Profiles *ProfileTable
	Provider *backend.Provider
}

// New wires the repositories over pool.
func New(pool poolIface, hasher backend.PasswordHasher, opts ...backend.ProviderOption) (*Backend, error) {
	b := &Backend{
		Accounts: NewAccountRepository(pool),
		Sessions: NewSessionRepository(pool),
		Profiles: NewProfileTable(pool),
	}
	p, err := backend.NewProvider(b.Accounts, b.Sessions, hasher, opts...)
	if err != nil {
		return nil, err
	}
	b.Provider = p
	return b, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
