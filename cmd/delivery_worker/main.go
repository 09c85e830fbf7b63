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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/openpress/mailout/internal/mailqueue/adapters/directory"
	"github.com/openpress/mailout/internal/mailqueue/adapters/mailtransport"
	"github.com/openpress/mailout/internal/mailqueue/app"
	pgrepo "github.com/openpress/mailout/internal/mailqueue/repository/postgres"
	"github.com/openpress/mailout/internal/platform/cache"
	"github.com/openpress/mailout/internal/platform/config"
	"github.com/openpress/mailout/internal/platform/database"
	"github.com/openpress/mailout/internal/platform/logger"
	"github.com/openpress/mailout/internal/platform/messagebroker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("delivery_worker")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Delivery worker starting...",
		"interval", cfg.DeliveryInterval, "batch_size", cfg.DeliveryBatchSize, "dry_run", cfg.DeliveryDryRun)

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

	var events app.EventPublisher
	if cfg.NATSUrl != "" {
		natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, "mailout-delivery-worker", appLogger)
		if err != nil {
			appLogger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		events = natsClient
	}

	queueRepo := pgrepo.NewPgQueueRepository(dbPool, appLogger)
	ledgerRepo := pgrepo.NewPgLedgerRepository(dbPool, appLogger)
	suppressionRepo := pgrepo.NewPgSuppressionRepository(dbPool, appLogger)

	// Account, object and IP-ban lookups belong to the surrounding
	// application; deployments swap in adapters backed by their own stores.
	dir := directory.NewStaticDirectory()

	queueSvc := app.NewQueueService(queueRepo, dir, dir, dir, appLogger)
	suppressionSvc := app.NewSuppressionService(suppressionRepo, ledgerRepo, suppressionCache, appLogger)

	transport := mailtransport.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, appLogger)
	identity := app.RenderIdentity{Domain: cfg.Domain}
	ids := app.Identities{
		Domain:          cfg.Domain,
		SystemAddress:   cfg.FeedbackAddress,
		FeedbackAddress: cfg.FeedbackAddress,
		NerdsAddress:    cfg.NerdsAddress,
		ShareReply:      cfg.ShareReplyAddress,
	}

	deliverySvc := app.NewDeliveryService(
		queueSvc, ledgerRepo, suppressionSvc, transport,
		app.DefaultRenderers(identity), identity, ids.Senders(), events, appLogger,
		app.DeliveryConfig{BatchSize: cfg.DeliveryBatchSize},
	)

	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Metrics server failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.DeliveryInterval)
	defer ticker.Stop()

	appLogger.Info("Delivery worker running")
	for {
		select {
		case sig := <-quitChan:
			appLogger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
			appLogger.Info("Delivery worker shut down")
			return
		case <-ticker.C:
			report, err := deliverySvc.RunDeliveryPass(ctx, time.Now().UTC(), cfg.DeliveryDryRun)
			if err != nil {
				// The pass aborted and the queue kept its entries; the next
				// tick retries the whole window.
				appLogger.Error("Delivery pass failed", "error", err,
					"sent_before_abort", report.Sent)
			}
		}
	}
}
