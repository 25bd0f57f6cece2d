package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/neria/manager/internal/model"
	"github.com/shopspring/decimal"
)

// MemoryUsageStore keeps usage events in process so the usage ledger can be
// checked against the same cases as the gorm-backed repo.
type MemoryUsageStore struct {
	mu     sync.RWMutex
	events map[string][]*model.UsageEvent // Key: TenantID
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{
		events: make(map[string][]*model.UsageEvent),
	}
}

func (s *MemoryUsageStore) Insert(ctx context.Context, e *model.UsageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events[e.TenantID] = append(s.events[e.TenantID], &cp)
	return nil
}

func (s *MemoryUsageStore) SumBetween(ctx context.Context, tenantID string, from, to time.Time) (int64, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tokens int64
	cost := decimal.Zero
	for _, e := range s.events[tenantID] {
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		tokens += int64(e.TokensIn + e.TokensOut)
		cost = cost.Add(e.CostUSD)
	}
	return tokens, cost, nil
}

func (s *MemoryUsageStore) List(ctx context.Context, tenantID string, limit int) ([]*model.UsageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[tenantID]
	out := make([]*model.UsageEvent, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
