// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	t.Run("normalizes email", func(t *testing.T) {
		user, err := auth.NewUser("  Bob@X.com ", "hash")
		require.NoError(t, err)
		assert.Equal(t, "bob@x.com", user.Email)
		assert.False(t, user.ID.IsZero())
		assert.Nil(t, user.ResetTokenHash)
		assert.Equal(t, user.CreatedAt, user.UpdatedAt)
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := auth.NewUser("bob@x.com", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_INVALID_HASH")
	})
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{name: "simple", email: "bob@x.com", valid: true},
		{name: "plus addressing", email: "bob+tag@example.org", valid: true},
		{name: "empty", email: "", valid: false},
		{name: "missing at", email: "bob.x.com", valid: false},
		{name: "missing domain", email: "bob@", valid: false},
		{name: "too long", email: strings.Repeat("a", auth.MaxEmailLength) + "@x.com", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateEmail(tt.email)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "USER_INVALID_EMAIL")
		})
	}
}
