// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session implements the session authority: creation, resolution,
// expiration, and destruction of opaque session IDs.
//
// Authorities compose by wrapping rather than inheritance:
//
//	memory := session.NewMemoryAuthority(session.WithUserValidator(store))
//	expiring := session.NewExpiringAuthority(memory, 30*time.Minute)
//	persistent := session.NewPersistentAuthority(expiring, repo)
//
// Each wrapper only overrides what changes. Expiration is lazy: an expired
// entry stays in place until it is destroyed or a Sweeper reaps it.
package session

import (
	"context"
	"time"
)

// Entry is one active login.
type Entry struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// ExpiredAt reports whether the entry is past duration at now. A duration of
// zero or less never expires.
func (e Entry) ExpiredAt(now time.Time, duration time.Duration) bool {
	if duration <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(duration))
}

// Authority creates, resolves, and destroys sessions.
type Authority interface {
	// Create starts a session for userID and returns its ID.
	// Returns auth.ErrInvalidUser for an empty or unknown user.
	Create(ctx context.Context, userID string, now time.Time) (string, error)

	// Resolve returns the user ID behind sessionID.
	// Returns auth.ErrNotFound or auth.ErrExpired when there is no usable session.
	Resolve(ctx context.Context, sessionID string, now time.Time) (string, error)

	// Destroy removes the session and reports whether it existed.
	// Destroying a missing session is not an error.
	Destroy(ctx context.Context, sessionID string) (bool, error)
}

// UserValidator reports whether a user ID refers to a known user.
type UserValidator interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Reaper removes sessions that expired at or before now.
type Reaper interface {
	Reap(ctx context.Context, now time.Time) (int64, error)
}

// Record is the durable form of an Entry. Sessions are stored under the
// SHA256 digest of their ID, never the ID itself.
type Record struct {
	TokenHash string
	UserID    string
	CreatedAt time.Time
}

// Repository persists session records for PersistentAuthority.
type Repository interface {
	// Create stores a new record.
	Create(ctx context.Context, record *Record) error

	// GetByTokenHash retrieves a record by the hash of its session ID.
	// Returns auth.ErrNotFound if none exists.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Record, error)

	// DeleteByTokenHash removes a record and reports whether it existed.
	DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error)

	// DeleteCreatedBefore removes records created strictly before cutoff and
	// returns how many were removed.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
