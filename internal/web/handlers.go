// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/observability"
)

// StatusResponse is returned by /api/v1/status.
type StatusResponse struct {
	Status string `json:"status"`
}

// StatsResponse is returned by /api/v1/stats.
type StatsResponse struct {
	Users int64 `json:"users"`
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	a.logWrite(r.Context(), writeJSON(w, http.StatusOK, StatusResponse{Status: "OK"}))
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := a.users.CountUsers(ctx)
	if err != nil {
		a.fail(ctx, w, "count users failed", err)
		return
	}
	a.logWrite(ctx, writeJSON(w, http.StatusOK, StatsResponse{Users: n}))
}

// handleAbort replies with the standard error body for status.
func (a *API) handleAbort(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.logWrite(r.Context(), writeStatus(w, status))
	}
}

func (a *API) handleNotFound(w http.ResponseWriter, r *http.Request) {
	a.logWrite(r.Context(), writeStatus(w, http.StatusNotFound))
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if user == nil {
		a.handleNotFound(w, r)
		return
	}
	a.logWrite(r.Context(), writeJSON(w, http.StatusOK, newUserResponse(user)))
}

func (a *API) handleUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := a.users.FindByUserID(ctx, r.PathValue("id"))
	switch {
	case errors.Is(err, auth.ErrNotFound):
		a.handleNotFound(w, r)
		return
	case err != nil:
		a.fail(ctx, w, "find user failed", err)
		return
	}
	a.logWrite(ctx, writeJSON(w, http.StatusOK, newUserResponse(user)))
}

// handleSessionLogin checks form credentials and starts a session.
func (a *API) handleSessionLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := Request(r)

	email, _ := req.FormValue("email")
	if email == "" {
		a.logWrite(ctx, writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "email missing"}))
		return
	}
	password, _ := req.FormValue("password")
	if password == "" {
		a.logWrite(ctx, writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "password missing"}))
		return
	}

	user, err := a.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		a.logWrite(ctx, writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no user found for this email"}))
		return
	case err != nil:
		a.fail(ctx, w, "find user failed", err)
		return
	}

	ok, err := a.users.VerifyLogin(ctx, email, password)
	if err != nil {
		a.fail(ctx, w, "verify login failed", err)
		return
	}
	if !ok {
		a.logWrite(ctx, writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "wrong password"}))
		return
	}

	sessionID, err := a.sessions.CreateSession(ctx, user.ID.String())
	if err != nil {
		a.fail(ctx, w, "create session failed", err)
		return
	}
	a.metrics.RecordSessionEvent(observability.SessionCreated, 1)

	http.SetCookie(w, sessionCookie(a.sessions.CookieName(), sessionID))
	a.logWrite(ctx, writeJSON(w, http.StatusOK, newUserResponse(user)))
}

// handleSessionLogout destroys the request's session.
func (a *API) handleSessionLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	destroyed, err := a.sessions.DestroySession(ctx, Request(r))
	if err != nil {
		a.fail(ctx, w, "destroy session failed", err)
		return
	}
	if !destroyed {
		a.handleNotFound(w, r)
		return
	}
	a.metrics.RecordSessionEvent(observability.SessionDestroyed, 1)

	http.SetCookie(w, expiredCookie(a.sessions.CookieName()))
	a.logWrite(ctx, writeJSON(w, http.StatusOK, struct{}{}))
}
