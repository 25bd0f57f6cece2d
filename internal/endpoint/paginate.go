package endpoint

import (
	"context"
	"slices"

	"github.com/neria/manager/internal/pkg/jsonvalue"
	"github.com/neria/manager/internal/pkg/logger"
	"golang.org/x/time/rate"
)

func intField(data jsonvalue.Value, key string) int {
	v, ok := data.Field(key)
	if !ok {
		return 0
	}
	n, _ := v.Int()
	return n
}

// loadMorePages follows pageNumber/pageSize paging when the first page holds
// only part of the result and the query has something to search for. It
// stops at the reported total, the record cap, the first failed page or the
// first empty page. The aggregate replaces the rows where they were found.
func (b *Builder) loadMorePages(ctx context.Context, url string, headers map[string]string, data jsonvalue.Value, responsePath string, q Query) jsonvalue.Value {
	if data.Kind() != jsonvalue.KindObject {
		return data
	}
	items, atPath, ok := locateList(data, responsePath)
	if !ok {
		return data
	}
	total := intField(data, "totalRegisters")
	pageSize := intField(data, "pageSize")
	pageNumber := intField(data, "pageNumber")
	if pageSize <= 0 {
		pageSize = len(items)
	}
	if pageNumber <= 0 {
		pageNumber = 1
	}
	if pageSize <= 0 || total <= pageSize || !q.NeedsSearch() {
		return data
	}

	target := min(total, b.cfg.MaxRecords)
	maxPages := (target + pageSize - 1) / pageSize
	aggregated := slices.Clone(items)

	var pacer *rate.Limiter
	if b.cfg.PageRatePerSecond > 0 {
		pacer = rate.NewLimiter(rate.Limit(b.cfg.PageRatePerSecond), 1)
	}
	log := logger.FromContext(ctx)

	for page := pageNumber; page < maxPages && len(aggregated) < target; {
		page++
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				break
			}
		}
		next := b.fetch.get(ctx, withPageParams(url, page, pageSize), headers)
		if !next.ok || next.data.Kind() != jsonvalue.KindObject {
			log.Info("endpoint page fetch stopped", "url", url, "page", page, "status", next.status)
			break
		}
		pageItems, _, found := locateList(next.data, responsePath)
		if !found || len(pageItems) == 0 {
			break
		}
		aggregated = append(aggregated, pageItems...)
	}
	if len(aggregated) > target {
		aggregated = aggregated[:target]
	}

	rows := jsonvalue.Array(aggregated)
	result := data
	if atPath {
		result, _ = result.Set(responsePath, rows)
	} else {
		result = result.With(listKey, rows)
	}
	return result.
		With("totalRegisters", jsonvalue.Int(len(aggregated))).
		With("pageNumber", jsonvalue.Int(pageNumber)).
		With("pageSize", jsonvalue.Int(pageSize))
}
