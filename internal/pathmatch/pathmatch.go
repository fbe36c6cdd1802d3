// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package pathmatch decides whether a request path requires authentication
// given a list of excluded paths.
//
// Excluded entries are either literal paths or prefixes ending in '*':
//   - "/api/v1/status" excludes "/api/v1/status" and "/api/v1/status/"
//   - "/api/v1/stat*" excludes every path starting with "/api/v1/stat"
//
// Two disciplines exist. Strict (the default) only applies the two rules
// above. Permissive additionally excludes a path when either the path or an
// entry is a prefix of the other, so "/api/v1/" is excluded by
// "/api/v1/status". A process picks one discipline at startup.
package pathmatch

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Wildcard marks an excluded entry as a prefix.
const Wildcard = "*"

// Discipline selects how excluded entries are compared with a path.
type Discipline int

const (
	// Strict matches exact paths and wildcard prefixes.
	Strict Discipline = iota
	// Permissive also matches bidirectional prefixes.
	Permissive
)

// String returns the configuration name of the discipline.
func (d Discipline) String() string {
	switch d {
	case Strict:
		return "strict"
	case Permissive:
		return "permissive"
	default:
		return "unknown"
	}
}

// ParseDiscipline parses a configuration value. An empty string selects
// Strict.
func ParseDiscipline(s string) (Discipline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "permissive":
		return Permissive, nil
	default:
		return Strict, oops.Code("PATHMATCH_UNKNOWN_DISCIPLINE").
			With("discipline", s).
			Errorf("unknown path matching discipline %q", s)
	}
}

// Matcher evaluates excluded paths under one discipline. Compiled wildcard
// patterns are cached.
//
// Matcher is safe for concurrent use.
type Matcher struct {
	discipline Discipline

	mu    sync.RWMutex
	globs map[string]glob.Glob
}

// NewMatcher creates a Matcher for d.
func NewMatcher(d Discipline) *Matcher {
	return &Matcher{
		discipline: d,
		globs:      make(map[string]glob.Glob),
	}
}

// Discipline returns the matcher's discipline.
func (m *Matcher) Discipline() Discipline {
	return m.discipline
}

// RequiresAuth reports whether path needs authentication. An empty path or
// an empty exclusion list always requires it.
func (m *Matcher) RequiresAuth(path string, excluded []string) bool {
	if path == "" || len(excluded) == 0 {
		return true
	}

	normalized := withSlash(path)
	for _, entry := range excluded {
		if entry == "" {
			continue
		}
		if strings.HasSuffix(entry, Wildcard) {
			if m.matchWildcard(entry, path) {
				return false
			}
			continue
		}

		e := withSlash(entry)
		if normalized == e {
			return false
		}
		if m.discipline == Permissive &&
			(strings.HasPrefix(normalized, e) || strings.HasPrefix(e, normalized)) {
			return false
		}
	}
	return true
}

func (m *Matcher) matchWildcard(entry, path string) bool {
	g := m.compile(entry)
	if g == nil {
		return false
	}
	return g.Match(path)
}

// compile returns the cached glob for a wildcard entry. The prefix is
// quoted so characters such as '{' or '?' in a path are literal.
func (m *Matcher) compile(entry string) glob.Glob {
	m.mu.RLock()
	g, ok := m.globs[entry]
	m.mu.RUnlock()
	if ok {
		return g
	}

	prefix := strings.TrimSuffix(entry, Wildcard)
	g, err := glob.Compile(glob.QuoteMeta(prefix) + Wildcard)
	if err != nil {
		return nil
	}

	m.mu.Lock()
	m.globs[entry] = g
	m.mu.Unlock()
	return g
}

func withSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}

var strict = NewMatcher(Strict)

// RequiresAuth applies the strict discipline.
func RequiresAuth(path string, excluded []string) bool {
	return strict.RequiresAuth(path, excluded)
}
