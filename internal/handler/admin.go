package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/pkg/logger"
	"github.com/neria/manager/internal/repository"
)

type KillSwitches interface {
	GlobalKillSwitch(ctx context.Context) (bool, error)
	TenantKillSwitch(ctx context.Context, tenantID string) (bool, error)
	SetGlobalKillSwitch(ctx context.Context, enabled bool) error
	SetTenantKillSwitch(ctx context.Context, tenantID string, enabled bool) error
}

type AdminHandler struct {
	switches KillSwitches
}

func NewAdminHandler(switches KillSwitches) *AdminHandler {
	return &AdminHandler{switches: switches}
}

type killSwitchRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *AdminHandler) GetGlobalKillSwitch(c *gin.Context) {
	enabled, err := h.switches.GlobalKillSwitch(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.Internal("Unable to read kill switch", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (h *AdminHandler) SetGlobalKillSwitch(c *gin.Context) {
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("enabled is required", err))
		return
	}
	if err := h.switches.SetGlobalKillSwitch(c.Request.Context(), *req.Enabled); err != nil {
		_ = c.Error(apperrors.Internal("Unable to update kill switch", err))
		return
	}
	logger.FromContext(c.Request.Context()).Warn("global kill switch updated", "enabled", *req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

func (h *AdminHandler) GetTenantKillSwitch(c *gin.Context) {
	id := c.Param("id")
	enabled, err := h.switches.TenantKillSwitch(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(apperrors.Internal("Unable to read kill switch", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenant_id": id, "enabled": enabled})
}

func (h *AdminHandler) SetTenantKillSwitch(c *gin.Context) {
	id := c.Param("id")
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("enabled is required", err))
		return
	}
	err := h.switches.SetTenantKillSwitch(c.Request.Context(), id, *req.Enabled)
	if errors.Is(err, repository.ErrNotFound) {
		_ = c.Error(apperrors.NotFound("Tenant not found"))
		return
	}
	if err != nil {
		_ = c.Error(apperrors.Internal("Unable to update kill switch", err))
		return
	}
	logger.FromContext(c.Request.Context()).Warn("tenant kill switch updated", "tenant_id", id, "enabled", *req.Enabled)
	c.JSON(http.StatusOK, gin.H{"tenant_id": id, "enabled": *req.Enabled})
}
