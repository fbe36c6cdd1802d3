// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/observability"
	"github.com/holomush/sessiongate/pkg/errutil"
)

// ResetTokenResponse is returned by POST /reset_password.
type ResetTokenResponse struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

// EmailResponse is returned by GET /profile.
type EmailResponse struct {
	Email string `json:"email"`
}

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.logWrite(r.Context(), writeJSON(w, http.StatusOK, MessageResponse{Message: "Bienvenue"}))
}

// handleRegister creates a user from form email and password.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := Request(r)
	email, hasEmail := req.FormValue("email")
	password, hasPassword := req.FormValue("password")
	if !hasEmail || email == "" {
		a.logWrite(ctx, writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "email is required"}))
		return
	}
	if !hasPassword || password == "" {
		a.logWrite(ctx, writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "password is required"}))
		return
	}

	user, err := a.users.Register(ctx, email, password)
	switch {
	case errors.Is(err, auth.ErrAlreadyExists):
		a.logWrite(ctx, writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "email already registered"}))
		return
	case errors.Is(err, auth.ErrEmptyPassword):
		a.logWrite(ctx, writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "password is required"}))
		return
	case errutil.Code(err) == "USER_INVALID_EMAIL":
		a.logWrite(ctx, writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "email is invalid"}))
		return
	case err != nil:
		a.fail(ctx, w, "register user failed", err)
		return
	}
	a.logWrite(ctx, writeJSON(w, http.StatusOK, MessageResponse{Email: user.Email, Message: "user created"}))
}

// handleLogin starts a session for valid form credentials.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := Request(r)
	email, _ := req.FormValue("email")
	password, _ := req.FormValue("password")

	ok, err := a.users.VerifyLogin(ctx, email, password)
	if err != nil {
		a.fail(ctx, w, "verify login failed", err)
		return
	}
	if !ok {
		a.logWrite(ctx, writeStatus(w, http.StatusUnauthorized))
		return
	}

	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		a.fail(ctx, w, "find user failed", err)
		return
	}
	sessionID, err := a.sessions.CreateSession(ctx, user.ID.String())
	if err != nil {
		a.fail(ctx, w, "create session failed", err)
		return
	}
	a.metrics.RecordSessionEvent(observability.SessionCreated, 1)

	http.SetCookie(w, sessionCookie(a.sessions.CookieName(), sessionID))
	a.logWrite(ctx, writeJSON(w, http.StatusOK, MessageResponse{Email: user.Email, Message: "logged in"}))
}

// handleLogout ends the cookie's session and redirects home.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := Request(r)
	user, err := a.sessions.CurrentUser(ctx, req)
	if err != nil {
		a.fail(ctx, w, "resolve session failed", err)
		return
	}
	if user == nil {
		a.logWrite(ctx, writeStatus(w, http.StatusForbidden))
		return
	}

	destroyed, err := a.sessions.DestroySession(ctx, req)
	if err != nil {
		a.fail(ctx, w, "destroy session failed", err)
		return
	}
	if destroyed {
		a.metrics.RecordSessionEvent(observability.SessionDestroyed, 1)
	}
	http.SetCookie(w, expiredCookie(a.sessions.CookieName()))
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := a.sessions.CurrentUser(ctx, Request(r))
	if err != nil {
		a.fail(ctx, w, "resolve session failed", err)
		return
	}
	if user == nil {
		a.logWrite(ctx, writeStatus(w, http.StatusForbidden))
		return
	}
	a.logWrite(ctx, writeJSON(w, http.StatusOK, EmailResponse{Email: user.Email}))
}

// handleResetToken issues a reset token for a registered email.
func (a *API) handleResetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, _ := Request(r).FormValue("email")

	token, err := a.users.GenerateResetToken(ctx, email)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		a.logWrite(ctx, writeStatus(w, http.StatusForbidden))
		return
	case err != nil:
		a.fail(ctx, w, "generate reset token failed", err)
		return
	}
	a.logWrite(ctx, writeJSON(w, http.StatusOK, ResetTokenResponse{Email: email, ResetToken: token}))
}

// handleUpdatePassword spends a reset token on a new password.
func (a *API) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := Request(r)
	email, _ := req.FormValue("email")
	token, _ := req.FormValue("reset_token")
	password, _ := req.FormValue("new_password")

	err := a.users.UpdatePassword(ctx, token, password)
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrEmptyPassword):
		a.logWrite(ctx, writeStatus(w, http.StatusForbidden))
		return
	case err != nil:
		a.fail(ctx, w, "update password failed", err)
		return
	}
	a.logWrite(ctx, writeJSON(w, http.StatusOK, MessageResponse{Email: email, Message: "Password updated"}))
}
