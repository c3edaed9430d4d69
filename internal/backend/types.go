// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package backend

import (
	"context"
	"maps"
	"time"
)

// Identity is the backend-issued authenticated principal.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session proves a live Identity. AccessToken authenticates requests until
// ExpiresAt; RefreshToken obtains a new pair.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"user"`
}

// IsExpiredAt reports whether the access token is expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// Profile is a row of the profiles table.
type Profile struct {
	ID                string            `json:"id"`
	Email             string            `json:"email"`
	Username          string            `json:"username"`
	DisplayName       *string           `json:"display_name,omitempty"`
	Bio               *string           `json:"bio,omitempty"`
	ProfilePictureURL *string           `json:"profile_picture_url,omitempty"`
	SocialLinks       map[string]string `json:"social_links,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         *time.Time        `json:"updated_at,omitempty"`
}

// Clone returns a deep copy so callers can hand out profiles without
// sharing pointers into a cache.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.DisplayName = clonePtr(p.DisplayName)
	out.Bio = clonePtr(p.Bio)
	out.ProfilePictureURL = clonePtr(p.ProfilePictureURL)
	out.UpdatedAt = clonePtr(p.UpdatedAt)
	if p.SocialLinks != nil {
		out.SocialLinks = maps.Clone(p.SocialLinks)
	}
	return &out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ProfileInsert is the column set written when a profile is created.
type ProfileInsert struct {
	ID          string
	Email       string
	Username    string
	DisplayName *string
	CreatedAt   time.Time
}

// ProfileUpdate is the column set written by the settings page.
type ProfileUpdate struct {
	Username    string
	DisplayName *string
	Bio         *string
	UpdatedAt   time.Time
}

// IdentityProvider is the authentication half of the backend.
type IdentityProvider interface {
	// SignUp creates an Identity. It does not start a session.
	SignUp(ctx context.Context, email, password string) (*Identity, error)

	// SignIn verifies a password and starts a session.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// Refresh exchanges a refresh token for a new session. The old token
	// pair stops working.
	Refresh(ctx context.Context, refreshToken string) (*Session, error)

	// GetSession returns the session an access token belongs to.
	GetSession(ctx context.Context, accessToken string) (*Session, error)

	// SignOut revokes the session an access token belongs to.
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileTable is the data half of the backend, scoped to profiles.
type ProfileTable interface {
	// Get returns the profile with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Profile, error)

	// FindByUsername returns profiles using username, skipping excludeID
	// when it is non-empty.
	FindByUsername(ctx context.Context, username, excludeID string) ([]Profile, error)

	// Insert creates a profile. A duplicate username yields ErrUsernameTaken.
	Insert(ctx context.Context, p ProfileInsert) (*Profile, error)

	// Update modifies an existing profile or returns ErrNotFound.
	Update(ctx context.Context, id string, u ProfileUpdate) error
}
