// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/downtown-montclair/downtown/internal/auth"
	"github.com/downtown-montclair/downtown/internal/backend"
)

type mockAuthClient struct {
	mock.Mock
}

func newMockAuthClient(t *testing.T) *mockAuthClient {
	m := &mockAuthClient{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockAuthClient) SignUp(ctx context.Context, email, password string) (*backend.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Identity), args.Error(1)
}

func (m *mockAuthClient) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backend.Session), args.Error(1)
}

func (m *mockAuthClient) SignOut(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ auth.AuthClient = (*mockAuthClient)(nil)
