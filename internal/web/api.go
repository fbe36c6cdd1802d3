// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/gate"
	"github.com/holomush/sessiongate/internal/observability"
	"github.com/holomush/sessiongate/internal/session"
	"github.com/holomush/sessiongate/pkg/errutil"
)

// Users is what the handlers need from the credential store.
type Users interface {
	gate.Users
	Register(ctx context.Context, email, password string) (*auth.User, error)
	GenerateResetToken(ctx context.Context, email string) (string, error)
	UpdatePassword(ctx context.Context, token, newPassword string) error
	CountUsers(ctx context.Context) (int64, error)
}

// API holds the HTTP handlers and their collaborators.
type API struct {
	gate     *gate.Gate
	users    Users
	sessions *gate.SessionAuth
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithMetrics records request and gate metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *API) {
		a.metrics = m
	}
}

// WithLogger sets the logger for handler failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSessions overrides the session strategy used by the login and
// account routes.
func WithSessions(s *gate.SessionAuth) Option {
	return func(a *API) {
		if s != nil {
			a.sessions = s
		}
	}
}

// NewAPI creates an API. When neither the gate nor WithSessions supplies a
// session strategy, an in-memory one using cookieName is created so login
// routes keep working.
func NewAPI(g *gate.Gate, users Users, cookieName string, opts ...Option) (*API, error) {
	if g == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("gate is required")
	}
	if users == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("users are required")
	}

	a := &API{
		gate:     g,
		users:    users,
		sessions: g.Sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.sessions == nil {
		memory := session.NewMemoryAuthority(session.WithUserValidator(users))
		s, err := gate.NewSessionAuth(memory, users,
			gate.WithCookieName(cookieName),
			gate.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.sessions = s
	}
	return a, nil
}

// Handler returns the routed, gated HTTP handler.
func (a *API) Handler() http.Handler {
	api := http.NewServeMux()
	a.route(api, "GET /api/v1/status", a.handleStatus)
	a.route(api, "GET /api/v1/stats", a.handleStats)
	a.route(api, "GET /api/v1/unauthorized", a.handleAbort(http.StatusUnauthorized))
	a.route(api, "GET /api/v1/forbidden", a.handleAbort(http.StatusForbidden))
	a.route(api, "GET /api/v1/users/me", a.handleMe)
	a.route(api, "GET /api/v1/users/{id}", a.handleUser)
	a.route(api, "POST /api/v1/auth_session/login", a.handleSessionLogin)
	a.route(api, "DELETE /api/v1/auth_session/logout", a.handleSessionLogout)
	api.HandleFunc("/api/v1/", a.instrument("not_found", a.handleNotFound))

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", a.authenticate(api))
	mux.HandleFunc("GET /{$}", a.instrument("GET /", a.handleIndex))
	a.route(mux, "POST /users", a.handleRegister)
	a.route(mux, "POST /sessions", a.handleLogin)
	a.route(mux, "DELETE /sessions", a.handleLogout)
	a.route(mux, "GET /profile", a.handleProfile)
	a.route(mux, "POST /reset_password", a.handleResetToken)
	a.route(mux, "PUT /reset_password", a.handleUpdatePassword)
	mux.HandleFunc("/", a.instrument("not_found", a.handleNotFound))
	return mux
}

// route registers pattern with and without a trailing slash.
func (a *API) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	h = a.instrument(pattern, h)
	mux.HandleFunc(pattern, h)
	if !strings.HasSuffix(pattern, "/") {
		mux.HandleFunc(pattern+"/{$}", h)
	}
}

// authenticate runs the gate before next.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user, err := a.gate.Check(ctx, Request(r))
		switch {
		case err == nil:
		case errors.Is(err, gate.ErrUnauthorized):
			a.metrics.RecordGateDecision(observability.DecisionUnauthorized)
			a.logWrite(ctx, writeStatus(w, http.StatusUnauthorized))
			return
		case errors.Is(err, gate.ErrForbidden):
			a.metrics.RecordGateDecision(observability.DecisionForbidden)
			a.logWrite(ctx, writeStatus(w, http.StatusForbidden))
			return
		default:
			a.metrics.RecordGateDecision(observability.DecisionError)
			a.fail(ctx, w, "auth gate failed", err)
			return
		}

		if user == nil {
			a.metrics.RecordGateDecision(observability.DecisionExcluded)
		} else {
			a.metrics.RecordGateDecision(observability.DecisionAllowed)
		}
		next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
	})
}

// instrument counts responses for route.
func (a *API) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	if a.metrics == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		a.metrics.RecordRequest(route, rec.status)
	}
}

// fail logs err and replies 500.
func (a *API) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	errutil.LogErrorContext(ctx, a.logger, msg, err)
	a.logWrite(ctx, writeStatus(w, http.StatusInternalServerError))
}

// logWrite logs a failure to write the response body.
func (a *API) logWrite(ctx context.Context, err error) {
	if err != nil {
		a.logger.WarnContext(ctx, "failed to write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
