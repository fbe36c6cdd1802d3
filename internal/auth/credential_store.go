// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPassword is hashed once with the configured hasher. The result is
// verified when a user doesn't exist so that unknown emails take as long as
// wrong passwords.
//
//nolint:gosec // G101: not a credential, only used for timing equalization.
const dummyPassword = "sessiongate-timing-equalizer"

// CredentialStore registers users, verifies logins, and runs the password
// reset flow on top of a UserRepository.
type CredentialStore struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// CredentialStoreOption configures a CredentialStore.
type CredentialStoreOption func(*CredentialStore)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) CredentialStoreOption {
	return func(s *CredentialStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(users UserRepository, hasher PasswordHasher, opts ...CredentialStoreOption) (*CredentialStore, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}

	s := &CredentialStore{
		users:  users,
		hasher: hasher,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a user with the given email and password.
// Returns ErrAlreadyExists if the email is already registered.
func (s *CredentialStore) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, oops.Code("USER_ALREADY_EXISTS").
			With("email", email).
			Wrap(ErrAlreadyExists)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code("USER_ALREADY_EXISTS").
				With("email", email).
				Wrap(err)
		}
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	return user, nil
}

// VerifyLogin reports whether password is correct for the user with email.
// An unknown email yields (false, nil).
func (s *CredentialStore) VerifyLogin(ctx context.Context, email, password string) (bool, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_, _ = s.hasher.Verify(password, s.dummy()) //nolint:errcheck // timing only
			return false, nil
		}
		return false, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if password == "" {
		return false, nil
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return false, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if !valid {
		return false, nil
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	return true, nil
}

// dummy returns the timing-equalization hash, computing it on first use.
func (s *CredentialStore) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("failed to compute dummy password hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// upgradeHash re-hashes password with the current algorithm. Failures are
// logged; the login has already succeeded.
func (s *CredentialStore) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			"user_id", user.ID.String(),
			"error", err)
	}
}

// FindByEmail returns the user registered with email.
func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, wrapLookup(err, "email")
	}
	return user, nil
}

// FindByID returns the user with the given ID.
func (s *CredentialStore) FindByID(ctx context.Context, id ulid.ULID) (*User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "id")
	}
	return user, nil
}

// FindByUserID parses userID and returns the matching user. Malformed IDs
// are reported as ErrNotFound.
func (s *CredentialStore) FindByUserID(ctx context.Context, userID string) (*User, error) {
	id, err := ulid.Parse(userID)
	if err != nil {
		return nil, oops.Code("USER_NOT_FOUND").
			With("user_id", userID).
			Wrap(ErrNotFound)
	}
	return s.FindByID(ctx, id)
}

// FindByResetToken returns the user holding the plaintext reset token.
func (s *CredentialStore) FindByResetToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(ErrNotFound)
	}
	user, err := s.users.GetByResetTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, wrapLookup(err, "reset_token")
	}
	return user, nil
}

// UserExists reports whether userID names a registered user.
func (s *CredentialStore) UserExists(ctx context.Context, userID string) (bool, error) {
	_, err := s.FindByUserID(ctx, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// GenerateResetToken assigns a fresh reset token to the user with email and
// returns it. Returns ErrNotFound if no such user exists.
func (s *CredentialStore) GenerateResetToken(ctx context.Context, email string) (string, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	if err := s.users.SetResetTokenHash(ctx, user.ID, hash); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return token, nil
}

// UpdatePassword sets a new password for the user holding token and clears
// the token. Returns ErrInvalidToken if no user holds it.
func (s *CredentialStore) UpdatePassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	if newPassword == "" {
		return ErrEmptyPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	userID, err := s.users.ConsumeResetToken(ctx, HashToken(token), hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", userID.String())
	return nil
}

// CountUsers returns the number of registered users.
func (s *CredentialStore) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, oops.Code("USER_COUNT_FAILED").Wrap(err)
	}
	return n, nil
}

func wrapLookup(err error, by string) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code("USER_NOT_FOUND").With("by", by).Wrap(err)
	}
	return oops.Code("USER_LOOKUP_FAILED").
		With("operation", "get user").
		With("by", by).
		Wrap(err)
}
