// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// Sentinel errors shared by the credential store and the session authority.
// Operations wrap them in oops errors carrying a code and context, so callers
// should compare with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when registering an email that is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidToken is returned when a reset token matches no user.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidUser is returned when a session is requested for an empty or
	// unknown user ID.
	ErrInvalidUser = errors.New("invalid user")

	// ErrExpired is returned when a session is past its duration. Callers
	// treat it the same as ErrNotFound.
	ErrExpired = errors.New("expired")
)

// IsNoSession reports whether err means "no usable session": the session is
// unknown or has expired.
func IsNoSession(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired)
}
