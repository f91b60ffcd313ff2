package pii

import (
	"log/slog"
)

const RedactedPlaceholder = "[REDACTED]"

// DefaultFields is the fixed denylist applied to every event payload.
var DefaultFields = []string{"password", "email", "phone", "ssn", "credit_card", "token", "secret"}

// Redactor replaces the values of denylisted keys in event payloads.
// Key matching is exact and case-sensitive.
type Redactor struct {
	fieldsToRedact map[string]struct{} // Use a map for O(1) lookups
	recursive      bool
	logger         *slog.Logger
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithNested makes the redactor walk nested maps and slices. The default only
// looks at top-level keys, so nested sensitive fields pass through untouched.
func WithNested() Option {
	return func(r *Redactor) { r.recursive = true }
}

// NewRedactor creates a new Redactor for DefaultFields plus any extra fields.
func NewRedactor(extra []string, logger *slog.Logger, opts ...Option) *Redactor {
	fieldSet := make(map[string]struct{}, len(DefaultFields)+len(extra))
	for _, field := range DefaultFields {
		fieldSet[field] = struct{}{}
	}
	for _, field := range extra {
		fieldSet[field] = struct{}{}
	}
	r := &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Redact returns a copy of data with denylisted values replaced by
// RedactedPlaceholder, and whether anything was replaced. The input is never
// mutated. Applying Redact to its own output yields an equal map.
func (r *Redactor) Redact(data map[string]any) (map[string]any, bool) {
	if data == nil {
		return nil, false
	}
	out, redacted := r.redactMap(data, 0)
	if redacted && r.logger != nil {
		r.logger.Debug("redacted PII fields from event payload")
	}
	return out, redacted
}

// Denied reports whether key is on the denylist.
func (r *Redactor) Denied(key string) bool {
	_, ok := r.fieldsToRedact[key]
	return ok
}

// maxDepth bounds the nested walk so self-referencing payloads terminate.
const maxDepth = 32

func (r *Redactor) redactMap(data map[string]any, depth int) (map[string]any, bool) {
	out := make(map[string]any, len(data))
	redacted := false
	for k, v := range data {
		if _, ok := r.fieldsToRedact[k]; ok {
			out[k] = RedactedPlaceholder
			if v != RedactedPlaceholder {
				redacted = true
			}
			continue
		}
		if r.recursive && depth < maxDepth {
			var changed bool
			v, changed = r.redactValue(v, depth+1)
			redacted = redacted || changed
		}
		out[k] = v
	}
	return out, redacted
}

func (r *Redactor) redactValue(v any, depth int) (any, bool) {
	if depth >= maxDepth {
		return v, false
	}
	switch val := v.(type) {
	case map[string]any:
		return r.redactMap(val, depth)
	case []any:
		out := make([]any, len(val))
		redacted := false
		for i, item := range val {
			var changed bool
			out[i], changed = r.redactValue(item, depth+1)
			redacted = redacted || changed
		}
		return out, redacted
	}
	return v, false
}
