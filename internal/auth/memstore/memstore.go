// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memstore provides process-local implementations of the user and
// session repositories. It backs the server when no database is configured
// and is used throughout the tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/session"
)

// UserRepository implements auth.UserRepository in memory.
type UserRepository struct {
	mu           sync.RWMutex
	byID         map[ulid.ULID]*auth.User
	byEmail      map[string]ulid.ULID
	byResetToken map[string]ulid.ULID
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:         make(map[ulid.ULID]*auth.User),
		byEmail:      make(map[string]ulid.ULID),
		byResetToken: make(map[string]ulid.ULID),
	}
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return oops.Code("USER_ALREADY_EXISTS").
			With("email", user.Email).
			Wrap(auth.ErrAlreadyExists)
	}
	stored := copyUser(user)
	r.byID[user.ID] = stored
	r.byEmail[user.Email] = user.ID
	if stored.ResetTokenHash != nil && *stored.ResetTokenHash != "" {
		r.byResetToken[*stored.ResetTokenHash] = user.ID
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return copyUser(user), nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return copyUser(r.byID[id]), nil
}

// GetByResetTokenHash retrieves the user holding tokenHash.
func (r *UserRepository) GetByResetTokenHash(_ context.Context, tokenHash string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if user := r.findByResetToken(tokenHash); user != nil {
		return copyUser(user), nil
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// SetResetTokenHash stores a pending reset token hash.
func (r *UserRepository) SetResetTokenHash(_ context.Context, id ulid.ULID, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if user.ResetTokenHash != nil {
		delete(r.byResetToken, *user.ResetTokenHash)
	}
	hash := tokenHash
	user.ResetTokenHash = &hash
	if hash != "" {
		r.byResetToken[hash] = id
	}
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// ConsumeResetToken swaps the password hash and clears the token under one
// lock acquisition.
func (r *UserRepository) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string) (ulid.ULID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.findByResetToken(tokenHash)
	if user == nil {
		return ulid.ULID{}, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	delete(r.byResetToken, tokenHash)
	user.PasswordHash = passwordHash
	user.ResetTokenHash = nil
	user.UpdatedAt = time.Now().UTC()
	return user.ID, nil
}

// UpdatePassword updates only the password hash.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Count returns the number of users.
func (r *UserRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

// findByResetToken must be called with r.mu held. An empty hash never
// matches.
func (r *UserRepository) findByResetToken(tokenHash string) *auth.User {
	if tokenHash == "" {
		return nil
	}
	id, ok := r.byResetToken[tokenHash]
	if !ok {
		return nil
	}
	return r.byID[id]
}

func copyUser(u *auth.User) *auth.User {
	c := *u
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		c.ResetTokenHash = &h
	}
	return &c
}

// SessionRepository implements session.Repository in memory.
type SessionRepository struct {
	mu      sync.RWMutex
	records map[string]session.Record
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{records: make(map[string]session.Record)}
}

// Create stores a new record.
func (r *SessionRepository) Create(_ context.Context, record *session.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.records[record.TokenHash]; taken {
		return oops.Code("SESSION_ALREADY_EXISTS").Wrap(auth.ErrAlreadyExists)
	}
	r.records[record.TokenHash] = *record
	return nil
}

// GetByTokenHash retrieves a record.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*session.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &record, nil
}

// DeleteByTokenHash removes a record.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[tokenHash]; !ok {
		return false, nil
	}
	delete(r.records, tokenHash)
	return true, nil
}

// DeleteCreatedBefore removes records created before cutoff.
func (r *SessionRepository) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, record := range r.records {
		if record.CreatedAt.Before(cutoff) {
			delete(r.records, hash)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (r *SessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

var (
	_ auth.UserRepository = (*UserRepository)(nil)
	_ session.Repository  = (*SessionRepository)(nil)
)
