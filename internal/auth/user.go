// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxEmailLength matches the width of the users.email column.
const MaxEmailLength = 250

// User is a registered account.
type User struct {
	ID             ulid.ULID
	Email          string
	PasswordHash   string
	ResetTokenHash *string // nil when no reset is pending
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User with a fresh ID.
// The email is normalized with NormalizeEmail before validation.
func NewUser(email, passwordHash string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is present, well formed, and fits the
// storage column.
func ValidateEmail(email string) error {
	err := validation.Validate(email,
		validation.Required,
		validation.Length(3, MaxEmailLength),
		is.Email,
	)
	if err != nil {
		return oops.Code("USER_INVALID_EMAIL").With("email", email).Wrap(err)
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns ErrAlreadyExists if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByResetTokenHash retrieves the user holding a pending reset token.
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error)

	// SetResetTokenHash stores a pending reset token hash for a user,
	// replacing any previous one.
	SetResetTokenHash(ctx context.Context, id ulid.ULID, tokenHash string) error

	// ConsumeResetToken writes the new password hash and clears the reset
	// token in a single update. Returns ErrNotFound if no user holds tokenHash.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string) (ulid.ULID, error)

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// Count returns the number of registered users.
	Count(ctx context.Context) (int64, error)
}
