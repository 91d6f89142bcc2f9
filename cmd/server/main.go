package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storeadmin/internal/app"
	"storeadmin/internal/bootstrap"
	"storeadmin/internal/config"
	"storeadmin/internal/db"
	"storeadmin/internal/logger"
	"storeadmin/internal/ratelimit"
	"storeadmin/internal/storage"
)

// @title Store Admin API
// @version 1.0
// @description E-commerce administration API: users, products, categories and product images.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	err = bootstrap.Initialize(ctx, gormDB, bootstrap.AdminSeed{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	}, log)
	if err != nil {
		return err
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.LoginRatePerMinute, log)
	if limiter == nil {
		log.Info("login throttling disabled", "reason", "REDIS_ADDR not set")
	}

	e, err := app.New(cfg, app.Deps{
		DB:      gormDB,
		Store:   store,
		Limiter: limiter,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server listening",
			"addr", addr,
			"db_driver", cfg.DBDriver,
			"storage_driver", cfg.StorageDriver,
			"swagger", cfg.PublicBaseURL+"/swagger/index.html",
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
