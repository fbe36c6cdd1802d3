// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/session"
)

// SessionRepository implements session.Repository using PostgreSQL.
// Every method is a single statement, so a concurrent resolver never sees a
// partially written session.
type SessionRepository struct {
	pool Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session record.
func (r *SessionRepository) Create(ctx context.Context, record *session.Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_sessions (token_hash, user_id, created_at)
		VALUES ($1, $2, $3)
	`, record.TokenHash, record.UserID, record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("SESSION_ALREADY_EXISTS").Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert user_session").
			With("user_id", record.UserID).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session record by the hash of its ID.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*session.Record, error) {
	var record session.Record
	err := r.pool.QueryRow(ctx, `
		SELECT token_hash, user_id, created_at
		FROM user_sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(&record.TokenHash, &record.UserID, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return &record, nil
}

// DeleteByTokenHash removes a session record and reports whether it existed.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM user_sessions WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return false, oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete user_session").
			Wrap(err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteCreatedBefore removes sessions created before cutoff.
func (r *SessionRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM user_sessions WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired user_sessions").
			With("cutoff", cutoff).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ session.Repository = (*SessionRepository)(nil)
