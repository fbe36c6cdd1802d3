// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/sessiongate/internal/gate"
	"github.com/holomush/sessiongate/internal/logging"
)

// cookieToken matches an RFC 6265 cookie name.
var cookieToken = regexp.MustCompile("^[!#$%&'*+\\-.^_`|~0-9A-Za-z]+$")

// Validate reports the first invalid section.
func (c *Config) Validate() error {
	a := &c.Auth
	err := validation.ValidateStruct(a,
		validation.Field(&a.Type, validation.In(toAny(gate.Types)...)),
		validation.Field(&a.SessionName, validation.Required, validation.Match(cookieToken)),
		validation.Field(&a.SessionDuration, validation.Min(0)),
		validation.Field(&a.PathMatching, validation.In("strict", "permissive")),
		validation.Field(&a.Hasher, validation.In("argon2id", "bcrypt")),
		validation.Field(&a.BcryptCost, validation.Min(bcrypt.MinCost), validation.Max(bcrypt.MaxCost)),
		validation.Field(&a.SweepInterval, validation.Min(0)),
	)
	if err != nil {
		return invalid("auth", err)
	}

	h := &c.HTTP
	if err := validation.ValidateStruct(h,
		validation.Field(&h.Port, validation.Min(0), validation.Max(65535)),
	); err != nil {
		return invalid("http", err)
	}

	if a.Type == gate.TypeSessionDB {
		d := &c.Database
		if err := validation.ValidateStruct(d,
			validation.Field(&d.URL, validation.Required.Error("is required for session_db_auth")),
		); err != nil {
			return invalid("database", err)
		}
	}

	l := &c.Log
	if err := validation.ValidateStruct(l,
		validation.Field(&l.Format, validation.In("json", "text")),
		validation.Field(&l.Level, validation.By(func(v any) error {
			_, err := logging.ParseLevel(v.(string))
			return err
		})),
	); err != nil {
		return invalid("log", err)
	}
	return nil
}

func invalid(section string, err error) error {
	return oops.Code("CONFIG_INVALID").With("section", section).Wrap(err)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
