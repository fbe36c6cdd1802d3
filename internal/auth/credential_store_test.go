// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/auth/memstore"
	"github.com/holomush/sessiongate/internal/auth/mocks"
	"github.com/holomush/sessiongate/pkg/errutil"
)

func newTestStore(t *testing.T) (*auth.CredentialStore, *memstore.UserRepository) {
	t.Helper()
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	users := memstore.NewUserRepository()
	store, err := auth.NewCredentialStore(users, hasher)
	require.NoError(t, err)
	return store, users
}

func TestNewCredentialStore_RequiresDependencies(t *testing.T) {
	_, err := auth.NewCredentialStore(nil, auth.NewArgon2idHasher())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users repository is required")

	_, err = auth.NewCredentialStore(memstore.NewUserRepository(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password hasher is required")
}

func TestCredentialStore_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("login succeeds only with the registered password", func(t *testing.T) {
		store, _ := newTestStore(t)

		user, err := store.Register(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)
		assert.Equal(t, "bob@x.com", user.Email)
		assert.NotEqual(t, "pw1", user.PasswordHash)

		ok, err := store.VerifyLogin(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)
		assert.True(t, ok)

		for _, wrong := range []string{"pw2", "PW1", "pw1 ", ""} {
			ok, err := store.VerifyLogin(ctx, "bob@x.com", wrong)
			require.NoError(t, err)
			assert.False(t, ok, "password %q", wrong)
		}
	})

	t.Run("duplicate email fails and leaves store unchanged", func(t *testing.T) {
		store, users := newTestStore(t)

		first, err := store.Register(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)

		_, err = store.Register(ctx, "bob@x.com", "other")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrAlreadyExists)
		errutil.AssertErrorCode(t, err, "USER_ALREADY_EXISTS")

		n, err := users.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		stored, err := store.FindByEmail(ctx, "bob@x.com")
		require.NoError(t, err)
		assert.Equal(t, first.PasswordHash, stored.PasswordHash)
	})

	t.Run("email comparison ignores case", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, err := store.Register(ctx, "Bob@X.com", "pw1")
		require.NoError(t, err)

		_, err = store.Register(ctx, "bob@x.com", "pw1")
		assert.ErrorIs(t, err, auth.ErrAlreadyExists)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, err := store.Register(ctx, "not-an-email", "pw1")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_INVALID_EMAIL")

		_, err = store.Register(ctx, "bob@x.com", "")
		assert.ErrorIs(t, err, auth.ErrEmptyPassword)
	})

	t.Run("maps create race to already exists", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewCredentialStore(users, hasher)
		require.NoError(t, err)

		users.On("GetByEmail", mock.Anything, "bob@x.com").Return(nil, auth.ErrNotFound)
		hasher.On("Hash", "pw1").Return("hashed", nil)
		users.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).Return(auth.ErrAlreadyExists)

		_, err = store.Register(ctx, "bob@x.com", "pw1")
		assert.ErrorIs(t, err, auth.ErrAlreadyExists)
	})

	t.Run("propagates repository failure", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		store, err := auth.NewCredentialStore(users, mocks.NewMockPasswordHasher(t))
		require.NoError(t, err)

		users.On("GetByEmail", mock.Anything, "bob@x.com").Return(nil, errors.New("db down"))

		_, err = store.Register(ctx, "bob@x.com", "pw1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrAlreadyExists)
		errutil.AssertErrorCode(t, err, "USER_REGISTER_FAILED")
	})
}

func TestCredentialStore_VerifyLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown email is false without error", func(t *testing.T) {
		store, _ := newTestStore(t)

		ok, err := store.VerifyLogin(ctx, "nobody@x.com", "pw")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown email verifies against a hash from the configured hasher", func(t *testing.T) {
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewCredentialStore(memstore.NewUserRepository(), hasher)
		require.NoError(t, err)

		hasher.On("Hash", mock.AnythingOfType("string")).Return("equalizer-hash", nil).Once()
		hasher.On("Verify", "pw", "equalizer-hash").Return(true, nil).Twice()

		for range 2 {
			ok, err := store.VerifyLogin(ctx, "nobody@x.com", "pw")
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("repository failure is an error", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		store, err := auth.NewCredentialStore(users, mocks.NewMockPasswordHasher(t))
		require.NoError(t, err)

		users.On("GetByEmail", mock.Anything, "bob@x.com").Return(nil, errors.New("db down"))

		ok, err := store.VerifyLogin(ctx, "bob@x.com", "pw")
		require.Error(t, err)
		assert.False(t, ok)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})

	t.Run("upgrades legacy bcrypt hash", func(t *testing.T) {
		users := memstore.NewUserRepository()
		store, err := auth.NewCredentialStore(users, auth.NewArgon2idHasher())
		require.NoError(t, err)

		legacy, err := bcrypt.GenerateFromPassword([]byte("pw1"), bcrypt.MinCost)
		require.NoError(t, err)
		user, err := auth.NewUser("bob@x.com", string(legacy))
		require.NoError(t, err)
		require.NoError(t, users.Create(ctx, user))

		ok, err := store.VerifyLogin(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))

		ok, err = store.VerifyLogin(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("upgrade failure is logged and login still succeeds", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		store, err := auth.NewCredentialStore(users, hasher, auth.WithLogger(logger))
		require.NoError(t, err)

		user := &auth.User{ID: ulid.Make(), Email: "bob@x.com", PasswordHash: "old"}
		users.On("GetByEmail", mock.Anything, "bob@x.com").Return(user, nil)
		hasher.On("Verify", "pw1", "old").Return(true, nil)
		hasher.On("NeedsUpgrade", "old").Return(true)
		hasher.On("Hash", "pw1").Return("new", nil)
		users.On("UpdatePassword", mock.Anything, user.ID, "new").Return(errors.New("db down"))

		ok, err := store.VerifyLogin(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, buf.String(), "password hash upgrade failed")
	})
}

func TestCredentialStore_Find(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	user, err := store.Register(ctx, "bob@x.com", "pw1")
	require.NoError(t, err)

	t.Run("by email", func(t *testing.T) {
		got, err := store.FindByEmail(ctx, "bob@x.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("by id", func(t *testing.T) {
		got, err := store.FindByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
	})

	t.Run("by user id string", func(t *testing.T) {
		got, err := store.FindByUserID(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("malformed user id is not found", func(t *testing.T) {
		_, err := store.FindByUserID(ctx, "nope")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("by reset token", func(t *testing.T) {
		token, err := store.GenerateResetToken(ctx, "bob@x.com")
		require.NoError(t, err)

		got, err := store.FindByResetToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("misses are not found", func(t *testing.T) {
		_, err := store.FindByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)

		_, err = store.FindByID(ctx, ulid.Make())
		assert.ErrorIs(t, err, auth.ErrNotFound)

		_, err = store.FindByResetToken(ctx, "unknown")
		assert.ErrorIs(t, err, auth.ErrNotFound)

		_, err = store.FindByResetToken(ctx, "")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("user exists", func(t *testing.T) {
		ok, err := store.UserExists(ctx, user.ID.String())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.UserExists(ctx, ulid.Make().String())
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = store.UserExists(ctx, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCredentialStore_PasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("token is single use", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.Register(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)

		token, err := store.GenerateResetToken(ctx, "bob@x.com")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		require.NoError(t, store.UpdatePassword(ctx, token, "newpw"))

		ok, err := store.VerifyLogin(ctx, "bob@x.com", "newpw")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.VerifyLogin(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)
		assert.False(t, ok)

		err = store.UpdatePassword(ctx, token, "again")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
		errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")

		_, err = store.FindByResetToken(ctx, token)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("new token replaces the previous one", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.Register(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)

		first, err := store.GenerateResetToken(ctx, "bob@x.com")
		require.NoError(t, err)
		second, err := store.GenerateResetToken(ctx, "bob@x.com")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)

		assert.ErrorIs(t, store.UpdatePassword(ctx, first, "newpw"), auth.ErrInvalidToken)
		assert.NoError(t, store.UpdatePassword(ctx, second, "newpw"))
	})

	t.Run("unknown email is not found", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, err := store.GenerateResetToken(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("unknown or empty token is invalid", func(t *testing.T) {
		store, _ := newTestStore(t)

		assert.ErrorIs(t, store.UpdatePassword(ctx, "", "newpw"), auth.ErrInvalidToken)
		assert.ErrorIs(t, store.UpdatePassword(ctx, "bogus", "newpw"), auth.ErrInvalidToken)
	})

	t.Run("empty new password is rejected", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.Register(ctx, "bob@x.com", "pw1")
		require.NoError(t, err)
		token, err := store.GenerateResetToken(ctx, "bob@x.com")
		require.NoError(t, err)

		assert.ErrorIs(t, store.UpdatePassword(ctx, token, ""), auth.ErrEmptyPassword)

		// The token survives a rejected update.
		assert.NoError(t, store.UpdatePassword(ctx, token, "newpw"))
	})

	t.Run("storage failure is not reported as invalid token", func(t *testing.T) {
		users := mocks.NewMockUserRepository(t)
		hasher := mocks.NewMockPasswordHasher(t)
		store, err := auth.NewCredentialStore(users, hasher)
		require.NoError(t, err)

		hasher.On("Hash", "newpw").Return("hashed", nil)
		users.On("ConsumeResetToken", mock.Anything, auth.HashToken("tok"), "hashed").
			Return(ulid.ULID{}, errors.New("db down"))

		err = store.UpdatePassword(ctx, "tok", "newpw")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidToken)
		errutil.AssertErrorCode(t, err, "RESET_PASSWORD_FAILED")
	})
}

func TestCredentialStore_CountUsers(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	n, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Register(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	_, err = store.Register(ctx, "b@x.com", "pw")
	require.NoError(t, err)

	n, err = store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
