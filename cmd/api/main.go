package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/openpress/mailout/internal/mailqueue/adapters/directory"
	"github.com/openpress/mailout/internal/mailqueue/app"
	pgrepo "github.com/openpress/mailout/internal/mailqueue/repository/postgres"
	mailhttp "github.com/openpress/mailout/internal/mailqueue/transport/http"
	"github.com/openpress/mailout/internal/platform/cache"
	"github.com/openpress/mailout/internal/platform/config"
	"github.com/openpress/mailout/internal/platform/database"
	"github.com/openpress/mailout/internal/platform/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("api")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Mailout API starting...", "port", cfg.APIPort)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	var suppressionCache cache.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			appLogger.Error("Failed to connect to redis", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer rdb.Close()
		suppressionCache = cache.NewRedisCache(rdb, cfg.SuppressionCacheTTL)
	}

	queueRepo := pgrepo.NewPgQueueRepository(dbPool, appLogger)
	ledgerRepo := pgrepo.NewPgLedgerRepository(dbPool, appLogger)
	suppressionRepo := pgrepo.NewPgSuppressionRepository(dbPool, appLogger)

	// The account system is an external collaborator; the API only needs the
	// enqueue path, which never resolves accounts.
	dir := directory.NewStaticDirectory()

	queueSvc := app.NewQueueService(queueRepo, dir, dir, dir, appLogger)
	suppressionSvc := app.NewSuppressionService(suppressionRepo, ledgerRepo, suppressionCache, appLogger)
	producer := app.NewProducer(queueSvc, identities(cfg))

	mailHandler := mailhttp.NewMailHandler(queueSvc, suppressionSvc, producer, appLogger)

	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.RealIP)
	r.Use(chi_middleware.Recoverer)
	r.Use(mailhttp.PrometheusMetricsMiddleware)
	mailHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.APIPort),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()
	appLogger.Info("Mailout API listening", "addr", server.Addr)

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quitChan
	appLogger.Info("Shutdown signal received", "signal", receivedSignal.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Graceful shutdown failed", "error", err)
	}
	appLogger.Info("Mailout API shut down")
}

func identities(cfg *config.Config) app.Identities {
	return app.Identities{
		Domain:          cfg.Domain,
		SystemAddress:   cfg.FeedbackAddress,
		FeedbackAddress: cfg.FeedbackAddress,
		NerdsAddress:    cfg.NerdsAddress,
		ShareReply:      cfg.ShareReplyAddress,
	}
}
