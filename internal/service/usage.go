package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neria/manager/internal/model"
	"github.com/shopspring/decimal"
)

type UsageStore interface {
	Insert(ctx context.Context, e *model.UsageEvent) error
	SumBetween(ctx context.Context, tenantID string, from, to time.Time) (int64, decimal.Decimal, error)
	List(ctx context.Context, tenantID string, limit int) ([]*model.UsageEvent, error)
}

// Totals is a tenant's consumption over one UTC calendar day.
type Totals struct {
	Tokens  int64           `json:"tokens"`
	CostUSD decimal.Decimal `json:"cost_usd"`
}

// UsageLedger is the append-only record of provider calls.
type UsageLedger struct {
	store UsageStore
	now   func() time.Time
}

func NewUsageLedger(store UsageStore) *UsageLedger {
	return &UsageLedger{store: store, now: time.Now}
}

// Record stamps id and creation time and appends the event.
func (l *UsageLedger) Record(ctx context.Context, e *model.UsageEvent) error {
	e.ID = uuid.NewString()
	e.CreatedAt = l.now().UTC()
	return l.store.Insert(ctx, e)
}

// DailyTotals sums the UTC calendar day containing day.
func (l *UsageLedger) DailyTotals(ctx context.Context, tenantID string, day time.Time) (Totals, error) {
	from := startOfDayUTC(day)
	tokens, cost, err := l.store.SumBetween(ctx, tenantID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return Totals{}, err
	}
	return Totals{Tokens: tokens, CostUSD: cost}, nil
}

func (l *UsageLedger) Summary(ctx context.Context, tenantID string) (Totals, error) {
	return l.DailyTotals(ctx, tenantID, l.now())
}

func (l *UsageLedger) ListEvents(ctx context.Context, tenantID string, limit int) ([]*model.UsageEvent, error) {
	return l.store.List(ctx, tenantID, limit)
}

func startOfDayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
