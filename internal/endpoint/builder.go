package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/jsonvalue"
	"github.com/neria/manager/internal/pkg/logger"
)

const (
	DefaultRefusal = "No tengo información para responder a esa pregunta."

	unreachableSuggestion = "No he podido acceder a la fuente de datos ahora mismo. Revisa la configuración del endpoint."
	noMatchesSuggestion   = "No he encontrado resultados para esa búsqueda. Puedes probar con otro año o criterio."

	maxSuggestedYears = 6
)

// Refusal reasons reported on Outcome.
const (
	ReasonOutOfScope  = "out_of_scope"
	ReasonUnreachable = "unreachable"
	ReasonNoMatches   = "no_matches"
)

type Config struct {
	Timeout           time.Duration // per fetch
	MaxRecords        int           // pagination cap
	MaxItems          int           // filtered rows kept per endpoint
	MaxChars          int           // serialized data per block
	PageRatePerSecond float64       // 0 disables page pacing
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRecords <= 0 {
		c.MaxRecords = 5000
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 10
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 4000
	}
	return c
}

// Builder turns a chat turn into grounding data or a refusal. It never
// returns an error: unusable endpoints are logged and skipped.
type Builder struct {
	cfg   Config
	fetch *fetcher
}

func NewBuilder(client *http.Client, cfg Config) *Builder {
	if client == nil {
		client = &http.Client{}
	}
	cfg = cfg.withDefaults()
	return &Builder{cfg: cfg, fetch: &fetcher{client: client, timeout: cfg.Timeout}}
}

// Input describes one chat turn of a tenant service.
type Input struct {
	SystemPrompt       string
	AllowedTopics      []string // overrides the prompt's topics line
	OutOfScopeResponse string   // overrides the prompt's refusal line
	FallbackBaseURL    string
	Endpoints          []model.TenantServiceEndpoint
	PreviousMessage    string // last user turn before Message, if any
	Message            string
}

// Topics returns the allowed topics of the service, if it declares any.
func (in Input) Topics() []string {
	if len(in.AllowedTopics) > 0 {
		return in.AllowedTopics
	}
	return ParseScopeKeywords(in.SystemPrompt)
}

// Refusal returns the configured out-of-scope text or DefaultRefusal.
func (in Input) Refusal() string {
	if s := strings.TrimSpace(in.OutOfScopeResponse); s != "" {
		return s
	}
	if s := ParseOutOfScopeResponse(in.SystemPrompt); s != "" {
		return s
	}
	return DefaultRefusal
}

type Outcome struct {
	Context    string // per-endpoint data blocks, newline separated
	Refuse     bool
	Suggestion string // user-facing refusal text when Refuse is set
	Reason     string
	SearchText string
	Endpoints  []model.TenantServiceEndpoint // enabled endpoints considered
}

func (b *Builder) Build(ctx context.Context, in Input) Outcome {
	log := logger.FromContext(ctx)
	search := SearchText(in.PreviousMessage, in.Message)
	out := Outcome{SearchText: search}

	for _, ep := range in.Endpoints {
		if ep.Enabled {
			out.Endpoints = append(out.Endpoints, ep)
		}
	}

	if len(out.Endpoints) == 0 {
		// With data endpoints configured the no-match path below decides instead.
		if topics := in.Topics(); len(topics) > 0 && IsOutOfScope(search, topics) {
			log.Warn("chat turn outside service scope", "topics", topics)
			out.Refuse = true
			out.Reason = ReasonOutOfScope
			out.Suggestion = in.Refusal()
		}
		return out
	}

	q := AnalyzeQuery(search)
	var (
		blocks     []string
		anyData    bool
		anyMatches bool
		years      = map[int]struct{}{}
	)

	for _, ep := range Prioritize(out.Endpoints, q.Keywords) {
		if ctx.Err() != nil {
			log.Info("endpoint context cancelled", "error", ctx.Err().Error())
			break
		}
		if m := strings.TrimSpace(ep.Method); m != "" && !strings.EqualFold(m, http.MethodGet) {
			log.Warn("endpoint skipped, only GET is supported", "slug", ep.Slug, "method", ep.Method, "path", ep.Path)
			continue
		}
		url := resolveURL(ep.Path, ep.BaseURL, in.FallbackBaseURL)
		if url == "" {
			log.Warn("endpoint skipped, missing base URL", "slug", ep.Slug, "path", ep.Path)
			continue
		}

		res := b.fetch.get(ctx, url, ep.Headers)
		if !res.ok {
			errText := ""
			if res.err != nil {
				errText = res.err.Error()
			}
			log.Info("endpoint fetch failed", "slug", ep.Slug, "url", url, "status", res.status, "error", errText)
			continue
		}
		anyData = true
		log.Info("endpoint fetch ok", "slug", ep.Slug, "url", url, "total", countItems(res.data, ep.ResponsePath))

		data := b.loadMorePages(ctx, url, ep.Headers, res.data, ep.ResponsePath, q)
		if q.HasYear {
			for _, item := range extractItems(data, ep.ResponsePath) {
				if y, ok := itemYear(item); ok {
					years[y] = struct{}{}
				}
			}
		}

		filtered := filterData(data, ep.ResponsePath, q, b.cfg.MaxItems)
		n := countItems(filtered, ep.ResponsePath)
		log.Info("endpoint filtered", "slug", ep.Slug, "matches", n)
		if n > 0 {
			anyMatches = true
		}
		blocks = append(blocks, b.block(ep, url, filtered))
	}

	out.Context = strings.Join(blocks, "\n")
	switch {
	case !anyData:
		out.Refuse = true
		out.Reason = ReasonUnreachable
		out.Suggestion = unreachableSuggestion
	case !anyMatches && q.NeedsSearch():
		out.Refuse = true
		out.Reason = ReasonNoMatches
		out.Suggestion = noMatchesSuggestion
		if q.HasYear && len(years) > 0 {
			out.Suggestion = fmt.Sprintf("No he encontrado resultados para el año %d. Años disponibles: %s.",
				q.Year, joinYears(years))
		}
	}
	return out
}

func (b *Builder) block(ep model.TenantServiceEndpoint, url string, data jsonvalue.Value) string {
	slug := ep.Slug
	if slug == "" {
		slug = "n/a"
	}
	return fmt.Sprintf("slug=%s url=%s path=%s data=%s", slug, url, ep.ResponsePath, truncate(data.String(), b.cfg.MaxChars))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

func joinYears(set map[int]struct{}) string {
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	slices.Sort(years)
	if len(years) > maxSuggestedYears {
		years = years[:maxSuggestedYears]
	}
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ", ")
}
