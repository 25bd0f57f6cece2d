package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neria/manager/internal/app"
	"github.com/neria/manager/internal/config"
	"github.com/neria/manager/internal/pkg/logger"
	"github.com/neria/manager/internal/repository"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// 2. Initialize Persistence
	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)

	// Redis is optional; without it guards run per process.
	var rdb *repository.RedisClient
	if cfg.Redis.Addr != "" {
		rdb, err = repository.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to redis, falling back to memory", "error", err)
			rdb = nil
		} else {
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	// 3. Wire services and router
	a := app.New(cfg, db, rdb)
	if err := a.StartJobs(); err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}

	// 4. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("neria manager started", "port", cfg.Server.Port, "read_only", cfg.Server.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	a.Stop(ctx)
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("server exiting")
}
