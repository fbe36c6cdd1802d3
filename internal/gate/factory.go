// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/pathmatch"
	"github.com/holomush/sessiongate/internal/session"
)

// Strategy names accepted by New.
const (
	TypeNone       = ""
	TypeAuth       = "auth"
	TypeBasic      = "basic_auth"
	TypeSession    = "session_auth"
	TypeSessionExp = "session_exp_auth"
	TypeSessionDB  = "session_db_auth"
)

// Types lists every strategy name New accepts.
var Types = []string{TypeNone, TypeAuth, TypeBasic, TypeSession, TypeSessionExp, TypeSessionDB}

// Config selects and configures the strategy.
type Config struct {
	Type            string
	CookieName      string
	SessionDuration time.Duration
	PathMatching    pathmatch.Discipline
	ExcludedPaths   []string
}

// Users is what strategies need from the credential store.
type Users interface {
	Credentials
	UserFinder
	session.UserValidator
}

// Deps are the collaborators New wires into the strategy.
type Deps struct {
	Users    Users
	Sessions session.Repository // required for TypeSessionDB
	Logger   *slog.Logger
	Now      func() time.Time
}

// Gate is the configured strategy plus the exclusion list it is checked
// against. It is built once at startup and shared by every request.
type Gate struct {
	Strategy Strategy       // nil for TypeNone
	Sessions *SessionAuth   // nil unless a session strategy is configured
	Reaper   session.Reaper // nil unless sessions expire
	Excluded []string
	Type     string
}

// New builds the strategy named by cfg.Type.
func New(cfg Config, deps Deps) (*Gate, error) {
	opts := []Option{
		WithMatcher(pathmatch.NewMatcher(cfg.PathMatching)),
		WithCookieName(cfg.CookieName),
		WithLogger(deps.Logger),
		WithClock(deps.Now),
	}

	g := &Gate{
		Excluded: append([]string(nil), cfg.ExcludedPaths...),
		Type:     cfg.Type,
	}

	needsUsers := cfg.Type != TypeNone && cfg.Type != TypeAuth
	if needsUsers && deps.Users == nil {
		return nil, oops.Code("GATE_INVALID_CONFIG").
			With("type", cfg.Type).
			Errorf("users are required for %s", cfg.Type)
	}

	switch cfg.Type {
	case TypeNone:
		return g, nil

	case TypeAuth:
		g.Strategy = NewNullAuth(opts...)
		return g, nil

	case TypeBasic:
		s, err := NewBasicAuth(deps.Users, opts...)
		if err != nil {
			return nil, err
		}
		g.Strategy = s
		return g, nil

	case TypeSession:
		memory := session.NewMemoryAuthority(session.WithUserValidator(deps.Users))
		s, err := NewSessionAuth(memory, deps.Users, opts...)
		if err != nil {
			return nil, err
		}
		g.Strategy, g.Sessions = s, s
		return g, nil

	case TypeSessionExp:
		memory := session.NewMemoryAuthority(session.WithUserValidator(deps.Users))
		expiring := session.NewExpiringAuthority(memory, cfg.SessionDuration)
		s, err := NewSessionExpAuth(expiring, deps.Users, opts...)
		if err != nil {
			return nil, err
		}
		g.Strategy, g.Sessions = s, s
		if cfg.SessionDuration > 0 {
			g.Reaper = expiring
		}
		return g, nil

	case TypeSessionDB:
		if deps.Sessions == nil {
			return nil, oops.Code("GATE_INVALID_CONFIG").
				With("type", cfg.Type).
				Errorf("session repository is required for %s", cfg.Type)
		}
		memory := session.NewMemoryAuthority(session.WithUserValidator(deps.Users))
		expiring := session.NewExpiringAuthority(memory, cfg.SessionDuration)
		persistent := session.NewPersistentAuthority(expiring, deps.Sessions)
		s, err := NewSessionDBAuth(persistent, deps.Users, opts...)
		if err != nil {
			return nil, err
		}
		g.Strategy, g.Sessions = s, s
		if cfg.SessionDuration > 0 {
			g.Reaper = persistent
		}
		return g, nil

	default:
		return nil, oops.Code("GATE_UNKNOWN_TYPE").
			With("type", cfg.Type).
			Errorf("unknown auth type %q", cfg.Type)
	}
}

// Check runs the before-request gate against the configured exclusions.
func (g *Gate) Check(ctx context.Context, r Request) (*auth.User, error) {
	return Check(ctx, g.Strategy, r, g.Excluded)
}

// CurrentUser returns the request's user without applying path exclusions.
// It returns nil when no strategy is configured.
func (g *Gate) CurrentUser(ctx context.Context, r Request) (*auth.User, error) {
	if g.Strategy == nil {
		return nil, nil
	}
	return g.Strategy.CurrentUser(ctx, r)
}

var _ Users = (*auth.CredentialStore)(nil)
