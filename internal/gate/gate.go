// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package gate implements the authentication strategies that guard HTTP
// routes and the before-request check built on them.
//
// Strategies share one capability set (RequireAuth, AuthorizationHeader,
// SessionCookie, CurrentUser). Session strategies are built around an
// injected session.Authority rather than shared package state.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/pathmatch"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "session_id"

// Errors returned by Check.
var (
	// ErrUnauthorized means the request carried no credentials at all.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means credentials were present but resolved to no user.
	ErrForbidden = errors.New("forbidden")
)

// Request is the view of an inbound request that strategies need.
type Request interface {
	Path() string
	Header(name string) (string, bool)
	Cookie(name string) (string, bool)
	FormValue(name string) (string, bool)
}

// Strategy authenticates requests.
type Strategy interface {
	// RequireAuth reports whether path needs authentication.
	RequireAuth(path string, excluded []string) bool

	// AuthorizationHeader returns the Authorization header, if any.
	AuthorizationHeader(r Request) (string, bool)

	// SessionCookie returns the session cookie value, if any.
	SessionCookie(r Request) (string, bool)

	// CurrentUser returns the authenticated user, or nil when the request
	// carries no valid credentials. Errors are reserved for storage failures.
	CurrentUser(ctx context.Context, r Request) (*auth.User, error)
}

// SessionManager is implemented by strategies that issue sessions.
type SessionManager interface {
	// CreateSession starts a session for userID and returns its ID.
	CreateSession(ctx context.Context, userID string) (string, error)

	// DestroySession ends the session named by the request's cookie and
	// reports whether one was removed.
	DestroySession(ctx context.Context, r Request) (bool, error)

	// CookieName returns the cookie the session ID travels in.
	CookieName() string
}

// Option configures a strategy.
type Option func(*base)

// WithMatcher sets the path matcher. The default is strict.
func WithMatcher(m *pathmatch.Matcher) Option {
	return func(b *base) {
		if m != nil {
			b.matcher = m
		}
	}
}

// WithCookieName sets the session cookie name.
func WithCookieName(name string) Option {
	return func(b *base) {
		if name != "" {
			b.cookieName = name
		}
	}
}

// WithClock replaces time.Now for session creation and resolution.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets the logger for rejected credentials.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// base carries what every strategy shares: path matching and credential
// extraction.
type base struct {
	matcher    *pathmatch.Matcher
	cookieName string
	now        func() time.Time
	logger     *slog.Logger
}

func newBase(opts []Option) base {
	b := base{
		matcher:    pathmatch.NewMatcher(pathmatch.Strict),
		cookieName: DefaultCookieName,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// RequireAuth consults the path matcher.
func (b base) RequireAuth(path string, excluded []string) bool {
	return b.matcher.RequiresAuth(path, excluded)
}

// AuthorizationHeader returns the Authorization header.
func (b base) AuthorizationHeader(r Request) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.Header("Authorization")
}

// SessionCookie returns the configured session cookie.
func (b base) SessionCookie(r Request) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.Cookie(b.cookieName)
}

// CookieName returns the session cookie name.
func (b base) CookieName() string {
	return b.cookieName
}

// NullAuth never authenticates anyone. With it every non-excluded path is
// rejected.
type NullAuth struct {
	base
}

// NewNullAuth creates a NullAuth.
func NewNullAuth(opts ...Option) *NullAuth {
	return &NullAuth{base: newBase(opts)}
}

// CurrentUser always returns nil.
func (*NullAuth) CurrentUser(context.Context, Request) (*auth.User, error) {
	return nil, nil
}

// Check runs the before-request gate. A nil strategy or an excluded path
// passes with no user. A request with neither an Authorization header nor a
// session cookie fails with ErrUnauthorized; one whose credentials resolve
// to nobody fails with ErrForbidden.
func Check(ctx context.Context, s Strategy, r Request, excluded []string) (*auth.User, error) {
	if s == nil || !s.RequireAuth(r.Path(), excluded) {
		return nil, nil
	}

	_, hasHeader := s.AuthorizationHeader(r)
	_, hasCookie := s.SessionCookie(r)
	if !hasHeader && !hasCookie {
		return nil, ErrUnauthorized
	}

	user, err := s.CurrentUser(ctx, r)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrForbidden
	}
	return user, nil
}

var _ Strategy = (*NullAuth)(nil)
