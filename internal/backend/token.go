// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package backend

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration.
const (
	TokenBytes      = 32 // 32 bytes = 64 hex chars
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// SessionRecord is the provider-side row behind a Session. Only token
// hashes are stored.
type SessionRecord struct {
	ID               ulid.ULID
	AccountID        string
	AccessTokenHash  string
	RefreshTokenHash string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
	RefreshedAt      time.Time
}

// IssuedTokens are the plaintext tokens handed to the client once.
type IssuedTokens struct {
	AccessToken  string
	RefreshToken string
}

// NewSessionRecord creates a record for accountID with freshly generated
// tokens. The plaintext tokens are returned separately and never stored.
func NewSessionRecord(accountID string, now time.Time) (*SessionRecord, IssuedTokens, error) {
	if accountID == "" {
		return nil, IssuedTokens{}, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be empty")
	}
	rec := &SessionRecord{
		ID:        ulid.Make(),
		AccountID: accountID,
		CreatedAt: now,
	}
	tokens, err := rec.rotate(now)
	if err != nil {
		return nil, IssuedTokens{}, err
	}
	return rec, tokens, nil
}

// Rotate replaces both tokens and extends both expiries.
func (r *SessionRecord) Rotate(now time.Time) (IssuedTokens, error) {
	return r.rotate(now)
}

func (r *SessionRecord) rotate(now time.Time) (IssuedTokens, error) {
	access, accessHash, err := GenerateToken()
	if err != nil {
		return IssuedTokens{}, err
	}
	refresh, refreshHash, err := GenerateToken()
	if err != nil {
		return IssuedTokens{}, err
	}
	r.AccessTokenHash = accessHash
	r.RefreshTokenHash = refreshHash
	r.AccessExpiresAt = now.Add(AccessTokenTTL)
	r.RefreshExpiresAt = now.Add(RefreshTokenTTL)
	r.RefreshedAt = now
	return IssuedTokens{AccessToken: access, RefreshToken: refresh}, nil
}

// AccessExpiredAt reports whether the access token is expired at t.
func (r *SessionRecord) AccessExpiredAt(t time.Time) bool {
	return !t.Before(r.AccessExpiresAt)
}

// RefreshExpiredAt reports whether the refresh token is expired at t.
func (r *SessionRecord) RefreshExpiredAt(t time.Time) bool {
	return !t.Before(r.RefreshExpiresAt)
}

// GenerateToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateToken() (token, hash string, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(tokenBytes)
	return token, HashToken(token), nil
}

// HashToken computes the hex SHA256 of a token for storage and lookup.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session record.
	Create(ctx context.Context, rec *SessionRecord) error

	// GetByAccessHash retrieves a session by access token hash.
	GetByAccessHash(ctx context.Context, hash string) (*SessionRecord, error)

	// GetByRefreshHash retrieves a session by refresh token hash.
	GetByRefreshHash(ctx context.Context, hash string) (*SessionRecord, error)

	// Update persists rotated tokens and expiries.
	Update(ctx context.Context, rec *SessionRecord) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes sessions whose refresh token has expired and
	// returns the count of deleted records.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
