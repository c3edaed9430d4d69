// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

// Package mocks provides testify mocks for the backend interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/downtown-montclair/downtown/internal/backend"
)

type cleanupT interface {
	mock.TestingT
	Cleanup(func())
}

// MockAccountRepository mocks backend.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock that asserts its expectations on cleanup.
func NewMockAccountRepository(t cleanupT) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, account *backend.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*backend.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*backend.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Account), args.Error(1)
}

// MockSessionRepository mocks backend.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

// NewMockSessionRepository creates a mock that asserts its expectations on cleanup.
func NewMockSessionRepository(t cleanupT) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionRepository) Create(ctx context.Context, rec *backend.SessionRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockSessionRepository) GetByAccessHash(ctx context.Context, hash string) (*backend.SessionRecord, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) GetByRefreshHash(ctx context.Context, hash string) (*backend.SessionRecord, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx context.Context, rec *backend.SessionRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockPasswordHasher mocks backend.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t cleanupT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

// MockIdentityProvider mocks backend.IdentityProvider.
type MockIdentityProvider struct {
	mock.Mock
}

// NewMockIdentityProvider creates a mock that asserts its expectations on cleanup.
func NewMockIdentityProvider(t cleanupT) *MockIdentityProvider {
	m := &MockIdentityProvider{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockIdentityProvider) SignUp(ctx context.Context, email, password string) (*backend.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Identity), args.Error(1)
}

func (m *MockIdentityProvider) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Session), args.Error(1)
}

func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Session), args.Error(1)
}

func (m *MockIdentityProvider) GetSession(ctx context.Context, accessToken string) (*backend.Session, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Session), args.Error(1)
}

func (m *MockIdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

// MockProfileTable mocks backend.ProfileTable.
type MockProfileTable struct {
	mock.Mock
}

// NewMockProfileTable creates a mock that asserts its expectations on cleanup.
func NewMockProfileTable(t cleanupT) *MockProfileTable {
	m := &MockProfileTable{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockProfileTable) Get(ctx context.Context, id string) (*backend.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Profile), args.Error(1)
}

func (m *MockProfileTable) FindByUsername(ctx context.Context, username, excludeID string) ([]backend.Profile, error) {
	args := m.Called(ctx, username, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]backend.Profile), args.Error(1)
}

func (m *MockProfileTable) Insert(ctx context.Context, p backend.ProfileInsert) (*backend.Profile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Profile), args.Error(1)
}

func (m *MockProfileTable) Update(ctx context.Context, id string, u backend.ProfileUpdate) error {
	return m.Called(ctx, id, u).Error(0)
}

var (
	_ backend.AccountRepository = (*MockAccountRepository)(nil)
	_ backend.SessionRepository = (*MockSessionRepository)(nil)
	_ backend.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ backend.IdentityProvider  = (*MockIdentityProvider)(nil)
	_ backend.ProfileTable      = (*MockProfileTable)(nil)
)
