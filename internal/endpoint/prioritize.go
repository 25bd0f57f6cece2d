package endpoint

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/neria/manager/internal/model"
)

// Prioritize orders endpoints by how well their slug (+3 per keyword) and
// path (+2 per keyword) match the query. When something scores, endpoints
// scoring zero are dropped; when nothing does the input order is kept.
func Prioritize(endpoints []model.TenantServiceEndpoint, keywords []string) []model.TenantServiceEndpoint {
	if len(endpoints) == 0 || len(keywords) == 0 {
		return endpoints
	}
	type scored struct {
		ep    model.TenantServiceEndpoint
		score int
	}
	ranked := make([]scored, len(endpoints))
	best := 0
	for i, ep := range endpoints {
		ranked[i] = scored{ep: ep, score: Score(ep, keywords)}
		best = max(best, ranked[i].score)
	}
	if best <= 0 {
		return endpoints
	}
	slices.SortStableFunc(ranked, func(a, b scored) int { return b.score - a.score })
	out := make([]model.TenantServiceEndpoint, 0, len(ranked))
	for _, r := range ranked {
		if r.score > 0 {
			out = append(out, r.ep)
		}
	}
	return out
}

func Score(ep model.TenantServiceEndpoint, keywords []string) int {
	slug := Normalize(ep.Slug)
	path := Normalize(ep.Path)
	score := 0
	for _, kw := range keywords {
		tok := Normalize(kw)
		if utf8.RuneCountInString(tok) < minKeywordLen {
			continue
		}
		if slug != "" && strings.Contains(slug, tok) {
			score += 3
		}
		if path != "" && strings.Contains(path, tok) {
			score += 2
		}
	}
	return score
}
