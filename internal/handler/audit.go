package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
)

type AuditLister interface {
	List(ctx context.Context, tenantID string, limit int, from, to *time.Time) ([]*model.AuditEvent, error)
}

type AuditHandler struct {
	svc AuditLister
}

func NewAuditHandler(svc AuditLister) *AuditHandler {
	return &AuditHandler{svc: svc}
}

func (h *AuditHandler) List(c *gin.Context) {
	tenant, ok := tenantOf(c)
	if !ok {
		return
	}

	var fromPtr *time.Time
	var toPtr *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			_ = c.Error(apperrors.BadRequest("invalid from", err))
			return
		}
		fromPtr = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			_ = c.Error(apperrors.BadRequest("invalid to", err))
			return
		}
		toPtr = &t
	}

	records, err := h.svc.List(c.Request.Context(), tenant.ID, queryLimit(c, 100, 1000), fromPtr, toPtr)
	if err != nil {
		_ = c.Error(apperrors.Internal("Unable to list audit events", err))
		return
	}
	if records == nil {
		records = []*model.AuditEvent{}
	}
	c.JSON(http.StatusOK, records)
}

// parseTime accepts RFC 3339 or unix seconds.
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format %q", raw)
}
