// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/downtown-montclair/downtown/internal/validation"
	"github.com/downtown-montclair/downtown/pkg/errutil"
)

func strPtr(s string) *string { return &s }

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"minimal valid", "a@b.co", true},
		{"typical", "owner@bloomfield-ave.com", true},
		{"missing tld", "a@b", false},
		{"missing at", "ab.co", false},
		{"empty", "", false},
		{"whitespace in local part", "a b@c.co", false},
		{"two at signs", "a@@b.co", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validation.ValidateEmail(tt.email)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.Equal(t, validation.InvalidFormat, res.Code)
				assert.NotEmpty(t, res.Message)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		valid    bool
		code     validation.Code
	}{
		{"too short", "ab", false, validation.TooShort},
		{"empty", "", false, validation.TooShort},
		{"underscore and digit", "user_1", true, ""},
		{"exactly three", "abc", true, ""},
		{"digits only", "123", true, ""},
		{"space", "user name", false, validation.InvalidCharacters},
		{"punctuation", "user!", false, validation.InvalidCharacters},
		{"hyphen", "user-name", false, validation.InvalidCharacters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validation.ValidateUsername(tt.username)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.code, res.Code)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Run("short password is rejected", func(t *testing.T) {
		res := validation.ValidatePassword("short1", nil)
		assert.False(t, res.Valid)
		assert.Equal(t, validation.TooShort, res.Code)
	})

	t.Run("mismatched confirmation is rejected", func(t *testing.T) {
		res := validation.ValidatePassword("longenough1", strPtr("different"))
		assert.False(t, res.Valid)
		assert.Equal(t, validation.Mismatch, res.Code)
	})

	t.Run("mismatch is reported before length", func(t *testing.T) {
		res := validation.ValidatePassword("short", strPtr("other"))
		assert.Equal(t, validation.Mismatch, res.Code)
	})

	t.Run("matching confirmation passes", func(t *testing.T) {
		res := validation.ValidatePassword("longenough1", strPtr("longenough1"))
		assert.True(t, res.Valid)
		assert.Empty(t, res.Message)
	})

	t.Run("six characters no longer pass", func(t *testing.T) {
		res := validation.ValidatePassword("abcdef", nil)
		assert.False(t, res.Valid)
	})
}

func TestValidateRegistration(t *testing.T) {
	valid := validation.Registration{
		Email:           "owner@shop.com",
		Username:        "corner_cafe",
		Password:        "longenough1",
		ConfirmPassword: "longenough1",
	}

	t.Run("valid form passes", func(t *testing.T) {
		assert.True(t, validation.ValidateRegistration(valid).Valid)
	})

	t.Run("email checked first", func(t *testing.T) {
		form := valid
		form.Email = "bad"
		form.Username = "x"
		assert.Equal(t, validation.InvalidFormat, validation.ValidateRegistration(form).Code)
	})

	t.Run("username checked before password", func(t *testing.T) {
		form := valid
		form.Username = "no spaces"
		form.ConfirmPassword = "nope"
		assert.Equal(t, validation.InvalidCharacters, validation.ValidateRegistration(form).Code)
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		form := valid
		form.ConfirmPassword = "longenough2"
		assert.Equal(t, validation.Mismatch, validation.ValidateRegistration(form).Code)
	})
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, validation.OK.Err())

	err := validation.ValidateUsername("ab").Err()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "VALIDATION_TOO_SHORT")
	assert.Equal(t, "Username must be at least 3 characters", errutil.PublicMessage(err, "fallback"))
}

func TestValidateLogin(t *testing.T) {
	assert.True(t, validation.ValidateLogin("a@b.co", "pw").Valid)
	assert.Equal(t, validation.Required, validation.ValidateLogin("", "pw").Code)
	assert.Equal(t, validation.Required, validation.ValidateLogin("a@b.co", "").Code)
}
