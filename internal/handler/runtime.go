package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/apperrors"
)

type Executor interface {
	Execute(ctx context.Context, tenantID string, req model.ExecutionRequest) (*model.ExecutionResult, error)
}

type RuntimeHandler struct {
	gw Executor
}

func NewRuntimeHandler(gw Executor) *RuntimeHandler {
	return &RuntimeHandler{gw: gw}
}

// Execute runs one guarded model call for the calling tenant.
func (h *RuntimeHandler) Execute(c *gin.Context) {
	tenant, ok := tenantOf(c)
	if !ok {
		return
	}
	var req model.ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request body", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = c.GetHeader("X-Request-ID")
	}

	res, err := h.gw.Execute(c.Request.Context(), tenant.ID, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}
