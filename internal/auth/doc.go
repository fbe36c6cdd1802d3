// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the credential side of sessiongate.
//
// # Domain Types
//
// Users should be created with NewUser, which normalizes and validates the
// email and requires a password hash. Direct struct initialization bypasses
// validation. Repository implementations receive pre-validated users.
//
// # Services
//
// CredentialStore coordinates registration, login verification, and the
// password reset flow. Reset tokens are single use: the new password hash is
// written and the token cleared by one repository call.
//
// # Errors
//
// Failures wrap the sentinels in errors.go (ErrNotFound, ErrAlreadyExists,
// ErrInvalidToken, ErrInvalidUser, ErrExpired) inside oops errors that carry
// a code such as USER_ALREADY_EXISTS.
package auth
