package endpoint

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	scopeLabels   = []string{"ámbito permitido:", "ambito permitido:", "allowed topics:", "scope:", "topics:"}
	refusalLabels = []string{"respuesta fuera de ámbito:", "respuesta fuera de ambito:", "out-of-scope response:"}

	normalizedSplit = regexp.MustCompile(`[^a-z0-9]+`)
)

const directiveQuotes = "\"'“”"

// Normalize lower-cases s and strips diacritics so "Ámbito" and "ambito" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.M)))
	out, _, err := transform.String(t, strings.TrimSpace(strings.ToLower(s)))
	if err != nil {
		return strings.TrimSpace(strings.ToLower(s))
	}
	return out
}

// directive returns the text after the first line carrying one of labels.
func directive(prompt string, labels []string) (string, bool) {
	for _, line := range strings.Split(prompt, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		for _, label := range labels {
			idx := strings.Index(lower, label)
			if idx < 0 {
				continue
			}
			src := trimmed
			if len(lower) != len(trimmed) {
				src = lower
			}
			raw := strings.TrimSpace(src[idx+len(label):])
			return strings.TrimSpace(strings.Trim(raw, directiveQuotes)), true
		}
	}
	return "", false
}

// ParseScopeKeywords reads an "allowed topics:" style line from a system
// prompt. Only the first labelled line counts.
func ParseScopeKeywords(prompt string) []string {
	raw, ok := directive(prompt, scopeLabels)
	if !ok || raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseOutOfScopeResponse reads the canned refusal declared in a system prompt.
func ParseOutOfScopeResponse(prompt string) string {
	raw, _ := directive(prompt, refusalLabels)
	return raw
}

// IsOutOfScope reports whether text touches none of the allowed topics. A
// topic matches when it appears in the text, or when a text token of three or
// more characters contains it or is contained in it. No topics means no scope.
func IsOutOfScope(text string, topics []string) bool {
	if strings.TrimSpace(text) == "" || len(topics) == 0 {
		return false
	}
	normalized := Normalize(text)
	tokens := normalizedSplit.Split(normalized, -1)
	for _, topic := range topics {
		nt := Normalize(topic)
		if nt == "" {
			continue
		}
		if strings.Contains(normalized, nt) {
			return false
		}
		for _, tok := range tokens {
			if len(tok) < minKeywordLen {
				continue
			}
			if strings.Contains(nt, tok) || strings.Contains(tok, nt) {
				return false
			}
		}
	}
	return true
}
