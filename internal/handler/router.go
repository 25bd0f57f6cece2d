package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/config"
	"github.com/neria/manager/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	routeGlobalKillSwitch = "/v1/admin/kill-switch"
	routeTenantKillSwitch = "/v1/admin/tenants/:id/kill-switch"
)

type RouterDeps struct {
	Auth        middleware.Authenticator
	Limits      middleware.KeyLimiter
	Idempotency middleware.IdempotencyStore

	Runtime *RuntimeHandler
	Chat    *ChatHandler
	Usage   *UsageHandler
	Audit   *AuditHandler
	Admin   *AdminHandler
	Health  *HealthHandler
}

// NewRouter wires the public API, the operator API and the probes.
func NewRouter(cfg *config.Config, d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogMiddleware())
	// Metrics wraps ErrorHandler so the recorded status is the rendered one.
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.ErrorHandler())
	// Kill switches stay writable in read-only mode.
	r.Use(middleware.ReadOnlyMiddleware(cfg.Server.ReadOnly, routeGlobalKillSwitch, routeTenantKillSwitch))

	r.GET("/health", d.Health.Health)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg, d.Auth))
	v1.Use(middleware.RateLimitMiddleware(d.Limits))
	{
		v1.POST("/runtime/execute", middleware.IdempotencyMiddleware(d.Idempotency), d.Runtime.Execute)

		v1.POST("/chat/conversations", d.Chat.CreateConversation)
		v1.GET("/chat/conversations", d.Chat.ListConversations)
		v1.GET("/chat/conversations/:id/messages", d.Chat.ListMessages)
		v1.POST("/chat/conversations/:id/messages", middleware.IdempotencyMiddleware(d.Idempotency), d.Chat.AddMessage)
		v1.GET("/chat/conversations/:id/ws", d.Chat.Stream)

		v1.GET("/usage/summary", d.Usage.Summary)
		v1.GET("/usage/events", d.Usage.Events)
		v1.GET("/audit", d.Audit.List)
	}

	admin := r.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	{
		admin.GET("/kill-switch", d.Admin.GetGlobalKillSwitch)
		admin.PUT("/kill-switch", d.Admin.SetGlobalKillSwitch)
		admin.GET("/tenants/:id/kill-switch", d.Admin.GetTenantKillSwitch)
		admin.PUT("/tenants/:id/kill-switch", d.Admin.SetTenantKillSwitch)
	}
	return r
}
