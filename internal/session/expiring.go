// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
)

// ExpiringAuthority adds a session duration to a MemoryAuthority.
type ExpiringAuthority struct {
	base     *MemoryAuthority
	duration time.Duration
}

// NewExpiringAuthority wraps base. A duration of zero or less disables
// time-based expiration.
func NewExpiringAuthority(base *MemoryAuthority, duration time.Duration) *ExpiringAuthority {
	return &ExpiringAuthority{base: base, duration: duration}
}

// Duration returns the configured session duration.
func (a *ExpiringAuthority) Duration() time.Duration {
	return a.duration
}

// Base returns the wrapped MemoryAuthority.
func (a *ExpiringAuthority) Base() *MemoryAuthority {
	return a.base
}

// Create starts a session for userID.
func (a *ExpiringAuthority) Create(ctx context.Context, userID string, now time.Time) (string, error) {
	return a.base.Create(ctx, userID, now)
}

// Resolve returns the user ID behind sessionID unless the session is past
// its duration at now. Expired entries are left in place.
func (a *ExpiringAuthority) Resolve(_ context.Context, sessionID string, now time.Time) (string, error) {
	entry, ok := a.base.Lookup(sessionID)
	if !ok {
		return "", errNotFound(sessionID)
	}
	if entry.ExpiredAt(now, a.duration) {
		return "", oops.Code("SESSION_EXPIRED").
			With("created_at", entry.CreatedAt).
			With("duration", a.duration.String()).
			Wrap(auth.ErrExpired)
	}
	return entry.UserID, nil
}

// Destroy removes the session and reports whether it existed.
func (a *ExpiringAuthority) Destroy(ctx context.Context, sessionID string) (bool, error) {
	return a.base.Destroy(ctx, sessionID)
}

// Reap drops entries that are expired at now.
func (a *ExpiringAuthority) Reap(_ context.Context, now time.Time) (int64, error) {
	if a.duration <= 0 {
		return 0, nil
	}
	return a.base.removeIf(func(e Entry) bool {
		return e.ExpiredAt(now, a.duration)
	}), nil
}

var (
	_ Authority = (*ExpiringAuthority)(nil)
	_ Reaper    = (*ExpiringAuthority)(nil)
)
