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

const accountColumns = `id, email, password_hash, created_at, updated_at`

// AccountRepository implements backend.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *backend.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO identities (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, account.ID, account.Email, account.PasswordHash, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "identities_email_key") {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", account.Email).
				Wrap(backend.ErrEmailTaken)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert identity").
			With("email", account.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*backend.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM identities WHERE id = $1`, id)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(backend.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get identity by id").
			With("id", id).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*backend.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM identities WHERE email = $1`, email)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").Wrap(backend.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*backend.Account, error) {
	var a backend.Account
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ backend.AccountRepository = (*AccountRepository)(nil)
