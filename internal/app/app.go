// Package app assembles the manager from configuration: stores, guards,
// the runtime gateway, chat and the HTTP router.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/chat"
	"github.com/neria/manager/internal/config"
	"github.com/neria/manager/internal/endpoint"
	"github.com/neria/manager/internal/handler"
	"github.com/neria/manager/internal/middleware"
	"github.com/neria/manager/internal/pkg/logger"
	"github.com/neria/manager/internal/provider"
	"github.com/neria/manager/internal/repository"
	"github.com/neria/manager/internal/service"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const auditBufferSize = 1000

// App holds the wired components. Redis is optional; without it rate
// limits, idempotency and audit mirroring stay in process.
type App struct {
	Router     *gin.Engine
	Gateway    *service.RuntimeGateway
	Chat       *chat.Orchestrator
	Builder    *endpoint.Builder
	KillSwitch *service.KillSwitchCache
	Usage      *service.UsageLedger
	Audit      *service.AuditService
	Tenants    *service.TenantDirectory
	Retention  *service.RetentionJob

	cfg  *config.Config
	cron *cron.Cron
}

func New(cfg *config.Config, db *gorm.DB, rdb *repository.RedisClient) *App {
	tenantRepo := repository.NewTenantRepo(db)
	catalog := repository.NewCatalogRepo(db)
	usageRepo := repository.NewUsageRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	window := time.Duration(cfg.Runtime.RateWindowSeconds) * time.Second
	var (
		limiter service.RateLimiter = service.NewFixedWindowLimiter(window)
		idem    middleware.IdempotencyStore
		sink    service.AuditRepo
	)
	idemTTL := time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second
	if rdb != nil {
		limiter = service.NewRedisRateLimiter(repository.NewRedisRateCounter(rdb), window)
		idem = repository.NewRedisIdempotencyStore(rdb, idemTTL)
		sink = repository.NewRedisAuditSink(rdb, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax)
	} else {
		idem = middleware.NewInMemIdempotencyStore(idemTTL)
	}

	a := &App{cfg: cfg}
	a.KillSwitch = service.NewKillSwitchCache(tenantRepo, repository.NewSettingsRepo(db),
		time.Duration(cfg.Runtime.KillSwitchTTLSeconds)*time.Second, cfg.Runtime.KillSwitchDefault)
	a.Usage = service.NewUsageLedger(usageRepo)
	a.Audit = service.NewAuditService(auditRepo, sink, auditBufferSize)
	a.Tenants = service.NewTenantDirectory(tenantRepo, cfg.Auth.KeyQPS, cfg.Auth.KeyBurst)
	a.Retention = service.NewRetentionJob(usageRepo, auditRepo, cfg.Database.UsageRetentionDays, cfg.Database.AuditRetentionDays)

	a.Gateway = service.NewRuntimeGateway(service.RuntimeDeps{
		Tenants:    tenantRepo,
		Catalog:    catalog,
		KillSwitch: a.KillSwitch,
		Limiter:    limiter,
		Usage:      a.Usage,
		Pricing:    service.NewPricingResolver(catalog),
		Redactor:   service.NewRedactor(),
		Dispatcher: provider.NewDispatcher(time.Duration(cfg.Runtime.ProviderTimeoutSeconds) * time.Second),
		Audit:      a.Audit,
	})

	a.Builder = endpoint.NewBuilder(&http.Client{}, EndpointConfig(cfg))
	a.Chat = chat.NewOrchestrator(repository.NewChatRepo(db), catalog, a.Gateway, a.Builder)

	checks := map[string]handler.Pinger{}
	if sqlDB, err := db.DB(); err == nil {
		checks["database"] = sqlDB
	}
	if rdb != nil {
		checks["redis"] = rdb
	}

	a.Router = handler.NewRouter(cfg, handler.RouterDeps{
		Auth:        a.Tenants,
		Limits:      a.Tenants,
		Idempotency: idem,
		Runtime:     handler.NewRuntimeHandler(a.Gateway),
		Chat:        handler.NewChatHandler(a.Chat),
		Usage:       handler.NewUsageHandler(a.Usage),
		Audit:       handler.NewAuditHandler(a.Audit),
		Admin:       handler.NewAdminHandler(a.KillSwitch),
		Health:      handler.NewHealthHandler(checks),
	})
	return a
}

// EndpointConfig maps the endpoints section onto builder limits.
func EndpointConfig(cfg *config.Config) endpoint.Config {
	return endpoint.Config{
		Timeout:           time.Duration(cfg.Endpoints.TimeoutSeconds) * time.Second,
		MaxRecords:        cfg.Endpoints.MaxRecords,
		MaxItems:          cfg.Endpoints.MaxItems,
		MaxChars:          cfg.Endpoints.MaxChars,
		PageRatePerSecond: cfg.Endpoints.PageRatePerSecond,
	}
}

// StartJobs schedules background maintenance. Stop waits for running jobs.
func (a *App) StartJobs() error {
	if a.cfg.Database.CleanupCron == "" {
		return nil
	}
	a.cron = cron.New()
	if _, err := a.Retention.Schedule(a.cron, a.cfg.Database.CleanupCron); err != nil {
		return err
	}
	a.cron.Start()
	logger.Info("retention job scheduled", "spec", a.cfg.Database.CleanupCron)
	return nil
}

func (a *App) Stop(ctx context.Context) {
	if a.cron == nil {
		return
	}
	select {
	case <-a.cron.Stop().Done():
	case <-ctx.Done():
	}
}
