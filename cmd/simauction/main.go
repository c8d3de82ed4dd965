// Package main запускает HTTP-сервер сервиса аукциона сим-карт.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/simauction/internal/config"
	"github.com/mmeshcher/simauction/internal/handler"
	"github.com/mmeshcher/simauction/internal/metrics"
	"github.com/mmeshcher/simauction/internal/middleware"
	"github.com/mmeshcher/simauction/internal/report"
	"github.com/mmeshcher/simauction/internal/repository"
	"github.com/mmeshcher/simauction/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		sugar.Warnw("failed to load .env file", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	metrics.Init()

	var (
		repo    service.Repository
		reports handler.Reporter
	)
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
		rs := report.New(pg.SQLDB())
		defer rs.Close()
		reports = rs
	} else {
		sugar.Warn("DATABASE_URI is empty, using in-memory ledger")
		repo = repository.NewMemoryRepository()
	}

	svc := service.NewService(repo,
		service.WithLogger(logger),
		service.WithMaxAttempts(cfg.BidMaxAttempts),
	)
	defer svc.Close()

	if cfg.AdminLogin != "" {
		if _, err := svc.EnsureAdmin(context.Background(), cfg.AdminLogin, cfg.AdminPassword); err != nil {
			sugar.Fatalw("admin seeding error", "error", err.Error())
		}
	}

	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is empty, tokens will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	h := handler.NewHandler(svc, reports, logger, authMiddleware, limiter)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновое закрытие истёкших аукционов
	g.Go(func() error {
		svc.StartSweeper(ctx, cfg.SweepInterval)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting auction server", "addr", cfg.RunAddress, "persistent", cfg.DatabaseURI != "")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
