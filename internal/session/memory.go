// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
)

// MemoryAuthority keeps sessions in a process-local map. Sessions never
// expire by time; wrap it in an ExpiringAuthority for that.
//
// MemoryAuthority is safe for concurrent use.
type MemoryAuthority struct {
	mu      sync.RWMutex
	entries map[string]Entry
	users   UserValidator
	newID   func() (string, error)
}

// Option configures a MemoryAuthority.
type Option func(*MemoryAuthority)

// WithUserValidator makes Create reject user IDs the validator does not know.
func WithUserValidator(v UserValidator) Option {
	return func(a *MemoryAuthority) {
		a.users = v
	}
}

// WithIDGenerator replaces the UUID generator. Intended for tests.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(a *MemoryAuthority) {
		if gen != nil {
			a.newID = gen
		}
	}
}

// NewMemoryAuthority creates an empty MemoryAuthority.
func NewMemoryAuthority(opts ...Option) *MemoryAuthority {
	a := &MemoryAuthority{
		entries: make(map[string]Entry),
		newID:   newSessionID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Create starts a session for userID.
func (a *MemoryAuthority) Create(ctx context.Context, userID string, now time.Time) (string, error) {
	if userID == "" {
		return "", oops.Code("SESSION_INVALID_USER").Wrap(auth.ErrInvalidUser)
	}

	if a.users != nil {
		ok, err := a.users.UserExists(ctx, userID)
		if err != nil {
			return "", oops.Code("SESSION_CREATE_FAILED").
				With("operation", "check user").
				With("user_id", userID).
				Wrap(err)
		}
		if !ok {
			return "", oops.Code("SESSION_INVALID_USER").
				With("user_id", userID).
				Wrap(auth.ErrInvalidUser)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// A collision would need two equal UUIDv4 values; regenerate anyway so
	// one ID never maps to two users.
	for {
		id, err := a.newID()
		if err != nil {
			return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
				With("operation", "generate session id").
				Wrap(err)
		}
		if _, taken := a.entries[id]; taken {
			continue
		}
		a.entries[id] = Entry{ID: id, UserID: userID, CreatedAt: now}
		return id, nil
	}
}

// Resolve returns the user ID behind sessionID.
func (a *MemoryAuthority) Resolve(_ context.Context, sessionID string, _ time.Time) (string, error) {
	entry, ok := a.Lookup(sessionID)
	if !ok {
		return "", errNotFound(sessionID)
	}
	return entry.UserID, nil
}

// Destroy removes the session and reports whether it existed.
func (a *MemoryAuthority) Destroy(_ context.Context, sessionID string) (bool, error) {
	return a.Forget(sessionID), nil
}

// Lookup returns the stored entry for sessionID.
func (a *MemoryAuthority) Lookup(sessionID string) (Entry, bool) {
	if sessionID == "" {
		return Entry{}, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	entry, ok := a.entries[sessionID]
	return entry, ok
}

// Restore inserts or replaces an entry. Used to re-hydrate sessions read
// from durable storage.
func (a *MemoryAuthority) Restore(entry Entry) {
	if entry.ID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[entry.ID] = entry
}

// Forget removes sessionID and reports whether it was present.
func (a *MemoryAuthority) Forget(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.entries[sessionID]; !ok {
		return false
	}
	delete(a.entries, sessionID)
	return true
}

// Len returns the number of stored entries, expired ones included.
func (a *MemoryAuthority) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// removeIf deletes every entry for which drop returns true.
func (a *MemoryAuthority) removeIf(drop func(Entry) bool) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n int64
	for id, entry := range a.entries {
		if drop(entry) {
			delete(a.entries, id)
			n++
		}
	}
	return n
}

func errNotFound(sessionID string) error {
	b := oops.Code("SESSION_NOT_FOUND")
	if sessionID != "" {
		b = b.With("session_hash", auth.HashToken(sessionID)[:12])
	}
	return b.Wrap(auth.ErrNotFound)
}

var _ Authority = (*MemoryAuthority)(nil)
