// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/session"
)

// UserFinder loads users by the opaque ID stored in sessions.
type UserFinder interface {
	FindByUserID(ctx context.Context, userID string) (*auth.User, error)
}

// SessionAuth authenticates with a session cookie resolved by a
// session.Authority.
type SessionAuth struct {
	base
	authority session.Authority
	users     UserFinder
}

// NewSessionAuth creates a SessionAuth over any authority.
func NewSessionAuth(authority session.Authority, users UserFinder, opts ...Option) (*SessionAuth, error) {
	if authority == nil {
		return nil, oops.Code("GATE_INVALID_CONFIG").Errorf("session authority is required")
	}
	if users == nil {
		return nil, oops.Code("GATE_INVALID_CONFIG").Errorf("user finder is required")
	}
	return &SessionAuth{base: newBase(opts), authority: authority, users: users}, nil
}

// NewSessionExpAuth creates a SessionAuth whose sessions expire.
func NewSessionExpAuth(authority *session.ExpiringAuthority, users UserFinder, opts ...Option) (*SessionAuth, error) {
	if authority == nil {
		return nil, oops.Code("GATE_INVALID_CONFIG").Errorf("expiring session authority is required")
	}
	return NewSessionAuth(authority, users, opts...)
}

// NewSessionDBAuth creates a SessionAuth whose sessions expire and are
// stored durably.
func NewSessionDBAuth(authority *session.PersistentAuthority, users UserFinder, opts ...Option) (*SessionAuth, error) {
	if authority == nil {
		return nil, oops.Code("GATE_INVALID_CONFIG").Errorf("persistent session authority is required")
	}
	return NewSessionAuth(authority, users, opts...)
}

// Authority returns the backing session authority.
func (a *SessionAuth) Authority() session.Authority {
	return a.authority
}

// CurrentUser resolves the session cookie to a user. Unknown, expired, and
// orphaned sessions yield nil.
func (a *SessionAuth) CurrentUser(ctx context.Context, r Request) (*auth.User, error) {
	sessionID, ok := a.SessionCookie(r)
	if !ok || sessionID == "" {
		return nil, nil
	}

	userID, err := a.authority.Resolve(ctx, sessionID, a.now())
	if err != nil {
		if auth.IsNoSession(err) {
			return nil, nil
		}
		return nil, oops.Code("GATE_SESSION_RESOLVE_FAILED").Wrap(err)
	}

	user, err := a.users.FindByUserID(ctx, userID)
	if errors.Is(err, auth.ErrNotFound) {
		a.logger.DebugContext(ctx, "session refers to unknown user", "user_id", userID)
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("GATE_SESSION_USER_FAILED").
			With("user_id", userID).
			Wrap(err)
	}
	return user, nil
}

// CreateSession starts a session for userID.
func (a *SessionAuth) CreateSession(ctx context.Context, userID string) (string, error) {
	return a.authority.Create(ctx, userID, a.now())
}

// DestroySession ends the session named by the request's cookie.
func (a *SessionAuth) DestroySession(ctx context.Context, r Request) (bool, error) {
	sessionID, ok := a.SessionCookie(r)
	if !ok || sessionID == "" {
		return false, nil
	}
	return a.authority.Destroy(ctx, sessionID)
}

var (
	_ Strategy       = (*SessionAuth)(nil)
	_ SessionManager = (*SessionAuth)(nil)
)
