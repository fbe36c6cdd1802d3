// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
)

// timeLayout is how user timestamps are rendered.
const timeLayout = "2006-01-02T15:04:05"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse carries a human-readable message.
type MessageResponse struct {
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newUserResponse(u *auth.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: u.UpdatedAt.UTC().Format(timeLayout),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.Code("WEB_ENCODE_FAILED").Wrap(err)
	}
	return nil
}

// writeStatus writes the standard error body for a status code.
func writeStatus(w http.ResponseWriter, statusCode int) error {
	var msg string
	switch statusCode {
	case http.StatusUnauthorized:
		msg = "Unauthorized"
	case http.StatusForbidden:
		msg = "Forbidden"
	case http.StatusNotFound:
		msg = "Not found"
	default:
		msg = http.StatusText(statusCode)
	}
	return writeJSON(w, statusCode, ErrorResponse{Error: msg})
}

// sessionCookie builds the cookie carrying a session ID.
func sessionCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// expiredCookie clears a session cookie on the client.
func expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
