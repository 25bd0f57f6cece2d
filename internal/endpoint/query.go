// Package endpoint grounds chat answers in tenant-owned REST data. It picks
// the endpoints relevant to a question, fetches and pages through them,
// filters the rows and decides whether the model may answer at all.
package endpoint

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	yearPattern  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	tokenPattern = regexp.MustCompile(`[^a-záéíóúñ0-9]+`)
)

const minKeywordLen = 3

var stopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "de": {}, "del": {},
	"un": {}, "una": {}, "unos": {}, "unas": {}, "y": {}, "o": {},
	"que": {}, "por": {}, "para": {}, "con": {}, "sin": {}, "en": {},
	"a": {}, "al": {}, "lo": {}, "me": {}, "te": {}, "se": {},
	"es": {}, "son": {}, "como": {}, "qué": {}, "cual": {}, "cuál": {},
	"cuánto": {}, "cuanta": {}, "cuantas": {}, "cuantos": {}, "sobre": {},
	"dame": {}, "quiero": {}, "necesito": {},
}

// Query is what a user message asks for: an optional year and search keywords.
type Query struct {
	Year     int
	HasYear  bool
	Keywords []string
}

func AnalyzeQuery(message string) Query {
	year, ok := ExtractYear(message)
	return Query{Year: year, HasYear: ok, Keywords: ExtractKeywords(message)}
}

// NeedsSearch reports whether rows have to be matched against the query.
func (q Query) NeedsSearch() bool {
	return q.HasYear || len(q.Keywords) > 0
}

// ExtractYear returns the first 19xx or 20xx token in message.
func ExtractYear(message string) (int, bool) {
	m := yearPattern.FindString(message)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// ExtractKeywords lower-cases message, splits it on anything that is not a
// Spanish letter or digit and drops stop words and tokens under three characters.
func ExtractKeywords(message string) []string {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	var out []string
	for _, part := range tokenPattern.Split(strings.ToLower(message), -1) {
		if utf8.RuneCountInString(part) < minKeywordLen {
			continue
		}
		if _, stop := stopwords[part]; stop {
			continue
		}
		out = append(out, part)
	}
	return out
}

// SearchText prefixes the previous user turn when the current one is an
// elliptical follow-up such as "¿y en 2021?": no year, or at most one keyword.
func SearchText(previous, current string) string {
	if strings.TrimSpace(previous) == "" {
		return current
	}
	_, hasYear := ExtractYear(current)
	if !hasYear || len(ExtractKeywords(current)) <= 1 {
		return previous + " " + current
	}
	return current
}
