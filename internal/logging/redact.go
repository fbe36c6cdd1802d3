// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"
)

// Redaction replaces redacted values.
const Redaction = "***"

// PIIFields are the attribute keys masked by default.
var PIIFields = []string{"name", "email", "phone", "ssn", "password"}

// FilterDatum masks the value of every field=value pair in message that is
// terminated by separator.
//
//	FilterDatum([]string{"password"}, "***", "name=bob;password=x;", ";")
//	// "name=bob;password=***;"
func FilterDatum(fields []string, redaction, message, separator string) string {
	fields = nonEmpty(fields)
	if len(fields) == 0 || separator == "" {
		return message
	}
	return fieldPattern(fields, separator).ReplaceAllString(message, "${1}="+escapeReplacement(redaction)+escapeReplacement(separator))
}

func fieldPattern(fields []string, separator string) *regexp.Regexp {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)=.*?` + regexp.QuoteMeta(separator))
}

// nonEmpty returns a copy of fields without blank entries. A blank field
// would make the pattern match every key.
func nonEmpty(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// redactingHandler masks PII attributes and field=value; pairs in messages
// before passing records on.
type redactingHandler struct {
	handler slog.Handler
	fields  []string
	pattern *regexp.Regexp
}

// NewRedactingHandler wraps h so attributes whose key is in fields are
// replaced by Redaction, and "field=value;" pairs in messages are masked.
// Blank fields are ignored; with none left h is returned as is.
func NewRedactingHandler(h slog.Handler, fields []string) slog.Handler {
	fields = nonEmpty(fields)
	if len(fields) == 0 {
		return h
	}
	return &redactingHandler{
		handler: h,
		fields:  fields,
		pattern: fieldPattern(fields, ";"),
	}
}

// Handle rewrites the record with redacted message and attributes.
func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	msg := h.pattern.ReplaceAllString(r.Message, "${1}="+Redaction+";")
	out := slog.NewRecord(r.Time, r.Level, msg, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, out)
}

// Enabled returns true if the level is enabled.
func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes redacted.
func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &redactingHandler{
		handler: h.handler.WithAttrs(redacted),
		fields:  h.fields,
		pattern: h.pattern,
	}
}

// WithGroup returns a new handler with the given group.
func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{
		handler: h.handler.WithGroup(name),
		fields:  h.fields,
		pattern: h.pattern,
	}
}

func (h *redactingHandler) redact(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		group := v.Group()
		redacted := make([]any, len(group))
		for i, ga := range group {
			redacted[i] = h.redact(ga)
		}
		return slog.Group(a.Key, redacted...)
	}
	if slices.Contains(h.fields, a.Key) {
		return slog.String(a.Key, Redaction)
	}
	return slog.Attr{Key: a.Key, Value: v}
}
