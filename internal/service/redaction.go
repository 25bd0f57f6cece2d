package service

import "github.com/neria/manager/internal/pkg/redact"

// Redactor masks credential-like values in payloads before they reach a provider.
type Redactor struct{}

func NewRedactor() *Redactor { return &Redactor{} }

// Redact returns a deep copy of payload with sensitive values replaced. The
// input is never mutated; nil yields an empty map.
func (r *Redactor) Redact(payload map[string]any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	return redact.Value(payload).(map[string]any)
}
