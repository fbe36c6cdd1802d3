// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/holomush/sessiongate/internal/auth"
)

const basicScheme = "Basic "

// Credentials verifies email and password pairs.
type Credentials interface {
	VerifyLogin(ctx context.Context, email, password string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
}

// BasicAuth authenticates with an "Authorization: Basic" header carrying a
// base64 email:password pair.
type BasicAuth struct {
	base
	creds Credentials
}

// NewBasicAuth creates a BasicAuth.
func NewBasicAuth(creds Credentials, opts ...Option) (*BasicAuth, error) {
	if creds == nil {
		return nil, oops.Code("GATE_INVALID_CONFIG").Errorf("credentials are required")
	}
	return &BasicAuth{base: newBase(opts), creds: creds}, nil
}

// CurrentUser resolves the header's credentials to a user.
func (a *BasicAuth) CurrentUser(ctx context.Context, r Request) (*auth.User, error) {
	header, ok := a.AuthorizationHeader(r)
	if !ok {
		return nil, nil
	}
	encoded, ok := ExtractBase64Credentials(header)
	if !ok {
		return nil, nil
	}
	decoded, ok := DecodeBase64Credentials(encoded)
	if !ok {
		a.logger.DebugContext(ctx, "basic auth header is not valid base64")
		return nil, nil
	}
	email, password, ok := SplitCredentials(decoded)
	if !ok {
		return nil, nil
	}
	return a.userFromCredentials(ctx, email, password)
}

func (a *BasicAuth) userFromCredentials(ctx context.Context, email, password string) (*auth.User, error) {
	valid, err := a.creds.VerifyLogin(ctx, email, password)
	if err != nil {
		return nil, oops.Code("GATE_BASIC_AUTH_FAILED").
			With("operation", "verify login").
			Wrap(err)
	}
	if !valid {
		return nil, nil
	}

	user, err := a.creds.FindByEmail(ctx, email)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code("GATE_BASIC_AUTH_FAILED").
			With("operation", "find user").
			Wrap(err)
	}
	return user, nil
}

// ExtractBase64Credentials returns the part of header after the "Basic "
// scheme.
func ExtractBase64Credentials(header string) (string, bool) {
	encoded, found := strings.CutPrefix(header, basicScheme)
	return encoded, found
}

// DecodeBase64Credentials decodes standard base64 into a UTF-8 string.
func DecodeBase64Credentials(encoded string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// SplitCredentials splits on the first colon. The password may itself
// contain colons.
func SplitCredentials(decoded string) (email, password string, ok bool) {
	return strings.Cut(decoded, ":")
}

var _ Strategy = (*BasicAuth)(nil)
