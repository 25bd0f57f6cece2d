package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/service"
)

type UsageReader interface {
	Summary(ctx context.Context, tenantID string) (service.Totals, error)
	ListEvents(ctx context.Context, tenantID string, limit int) ([]*model.UsageEvent, error)
}

type UsageHandler struct {
	ledger UsageReader
}

func NewUsageHandler(ledger UsageReader) *UsageHandler {
	return &UsageHandler{ledger: ledger}
}

// Summary reports today's (UTC) token and cost totals.
func (h *UsageHandler) Summary(c *gin.Context) {
	tenant, ok := tenantOf(c)
	if !ok {
		return
	}
	totals, err := h.ledger.Summary(c.Request.Context(), tenant.ID)
	if err != nil {
		_ = c.Error(apperrors.Internal("Unable to load usage", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenant_id": tenant.ID,
		"day":       time.Now().UTC().Format(time.DateOnly),
		"tokens":    totals.Tokens,
		"cost_usd":  totals.CostUSD,
	})
}

func (h *UsageHandler) Events(c *gin.Context) {
	tenant, ok := tenantOf(c)
	if !ok {
		return
	}
	events, err := h.ledger.ListEvents(c.Request.Context(), tenant.ID, queryLimit(c, 100, 1000))
	if err != nil {
		_ = c.Error(apperrors.Internal("Unable to list usage events", err))
		return
	}
	if events == nil {
		events = []*model.UsageEvent{}
	}
	c.JSON(http.StatusOK, events)
}
