// Package redact masks credential-like values in decoded JSON trees.
package redact

import (
	"strings"

	"github.com/goccy/go-json"
)

const Mask = "***"

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"passphrase":    {},
	"secret":        {},
	"api_key":       {},
	"apikey":        {},
	"api-key":       {},
	"x-api-key":     {},
	"admin_key":     {},
	"x-admin-key":   {},
	"access_token":  {},
	"refresh_token": {},
	"token":         {},
	"authorization": {},
	"private_key":   {},
	"credentials":   {},
	"signature":     {},
}

func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Value returns a deep copy of v with sensitive members replaced by Mask.
func Value(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if IsSensitiveKey(k) {
				out[k] = Mask
				continue
			}
			out[k] = Value(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if IsSensitiveKey(k) {
				out[k] = Mask
				continue
			}
			out[k] = val
		}
		return out
	default:
		return v
	}
}

// JSON redacts an encoded document. ok is false when body is not JSON.
func JSON(body []byte) ([]byte, bool) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	out, err := json.Marshal(Value(data))
	if err != nil {
		return nil, false
	}
	return out, true
}
