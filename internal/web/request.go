// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"net/http"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/gate"
)

// request adapts *http.Request to gate.Request.
type request struct {
	r *http.Request
}

// Request wraps r for the gate.
func Request(r *http.Request) gate.Request {
	return request{r: r}
}

func (q request) Path() string {
	return q.r.URL.Path
}

// Header reports presence separately from value: an empty header is still
// present.
func (q request) Header(name string) (string, bool) {
	values, ok := q.r.Header[http.CanonicalHeaderKey(name)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (q request) Cookie(name string) (string, bool) {
	c, err := q.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// FormValue reads the request body form. Query parameters are ignored.
func (q request) FormValue(name string) (string, bool) {
	if err := q.r.ParseForm(); err != nil {
		return "", false
	}
	values, ok := q.r.PostForm[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

type userKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the user stored by WithUser, or nil.
func UserFrom(ctx context.Context) *auth.User {
	user, _ := ctx.Value(userKey{}).(*auth.User)
	return user
}
