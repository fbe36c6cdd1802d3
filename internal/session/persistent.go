// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
)

// PersistentAuthority mirrors every create and destroy to a Repository and
// re-reads the record before each resolve, so sessions survive restarts and
// are shared by every process using the same store.
type PersistentAuthority struct {
	exp  *ExpiringAuthority
	repo Repository
}

// NewPersistentAuthority wraps exp with durable storage.
func NewPersistentAuthority(exp *ExpiringAuthority, repo Repository) *PersistentAuthority {
	return &PersistentAuthority{exp: exp, repo: repo}
}

// Duration returns the configured session duration.
func (a *PersistentAuthority) Duration() time.Duration {
	return a.exp.Duration()
}

// Create starts a session and stores it. If the durable write fails the
// in-memory entry is rolled back.
func (a *PersistentAuthority) Create(ctx context.Context, userID string, now time.Time) (string, error) {
	id, err := a.exp.Create(ctx, userID, now)
	if err != nil {
		return "", err
	}

	record := &Record{
		TokenHash: auth.HashToken(id),
		UserID:    userID,
		CreatedAt: now,
	}
	if err := a.repo.Create(ctx, record); err != nil {
		a.exp.Base().Forget(id)
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID).
			Wrap(err)
	}
	return id, nil
}

// Resolve loads the session from storage, refreshes the in-memory copy, and
// applies the expiration check.
func (a *PersistentAuthority) Resolve(ctx context.Context, sessionID string, now time.Time) (string, error) {
	if sessionID == "" {
		return "", errNotFound(sessionID)
	}

	record, err := a.repo.GetByTokenHash(ctx, auth.HashToken(sessionID))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			a.exp.Base().Forget(sessionID)
			return "", errNotFound(sessionID)
		}
		return "", oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	a.exp.Base().Restore(Entry{
		ID:        sessionID,
		UserID:    record.UserID,
		CreatedAt: record.CreatedAt,
	})
	return a.exp.Resolve(ctx, sessionID, now)
}

// Destroy deletes the stored session and its in-memory copy. The durable
// store decides whether the session existed.
func (a *PersistentAuthority) Destroy(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	removed, err := a.repo.DeleteByTokenHash(ctx, auth.HashToken(sessionID))
	if err != nil {
		return false, oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	a.exp.Base().Forget(sessionID)
	return removed, nil
}

// Reap drops expired sessions from memory and storage.
func (a *PersistentAuthority) Reap(ctx context.Context, now time.Time) (int64, error) {
	if _, err := a.exp.Reap(ctx, now); err != nil {
		return 0, err
	}
	if a.exp.Duration() <= 0 {
		return 0, nil
	}
	n, err := a.repo.DeleteCreatedBefore(ctx, now.Add(-a.exp.Duration()))
	if err != nil {
		return 0, oops.Code("SESSION_REAP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return n, nil
}

var (
	_ Authority = (*PersistentAuthority)(nil)
	_ Reaper    = (*PersistentAuthority)(nil)
)
