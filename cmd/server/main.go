package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/packhub/boxflow/internal/api"
	"github.com/packhub/boxflow/internal/assign"
	"github.com/packhub/boxflow/internal/config"
	"github.com/packhub/boxflow/internal/db"
	"github.com/packhub/boxflow/internal/dispatcher"
	"github.com/packhub/boxflow/internal/metrics"
	"github.com/packhub/boxflow/internal/notify"
	"github.com/packhub/boxflow/internal/recovery"
	"github.com/packhub/boxflow/internal/refcache"
	"github.com/packhub/boxflow/internal/repository"
	"github.com/packhub/boxflow/internal/writeback"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	queueRepo := repository.NewPgQueueRepository(pool)
	refRepo := repository.NewPgReferenceRepository(pool)
	auditRepo := repository.NewPgAuditRepository(pool)

	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	// ---- reference cache ----
	// A failed initial load is tolerated: items simply retry until the
	// background refresher succeeds.
	cache := refcache.New(refRepo, cfg.CacheMaxAge, logger)
	if err := cache.Load(ctx); err != nil {
		logger.Error("initial reference load failed", zap.Error(err))
	}
	go cache.Run(workerCtx, cfg.RefreshInterval)

	// ---- failure notifications ----
	failures := make(chan notify.FailureEvent, 64)
	notifier := notify.New(cfg.NotifyWebhookURL, cfg.NotifyTimeout, failures, logger)
	go notifier.Run(workerCtx)

	// ---- dispatcher ----
	engine := assign.NewEngine(cfg.DefaultUnitSize, cfg.SingleBoxName, cfg.SingleBoxAlias)
	client := writeback.NewHTTPClient(
		cfg.WritebackURL, cfg.WritebackToken,
		cfg.WritebackTimeout, cfg.WritebackWarmup, cfg.WritebackRetryDelays,
		logger,
	)

	onCompleted, onRetried, onFailed, onDeadLettered := m.DispatcherHooks()
	d := dispatcher.New(
		queueRepo, auditRepo, cache, engine, client, failures,
		cfg.DispatchBatchSize, cfg.MaxAttempts, cfg.RetryDelay, cfg.ItemDelay,
		logger, dispatcher.Hooks{
			OnCompleted:    onCompleted,
			OnRetried:      onRetried,
			OnFailed:       onFailed,
			OnDeadLettered: onDeadLettered,
		},
	)
	go d.Run(workerCtx, cfg.DispatchInterval)

	// ---- recovery scanner ----
	scanner := recovery.NewScanner(queueRepo, cfg.StuckTimeout, logger, func(n int) {
		m.ItemsRecovered.Add(float64(n))
	})
	go scanner.Run(workerCtx, cfg.RecoveryInterval)

	// ---- HTTP server ----
	router := api.NewRouter(queueRepo, d, reg, logger, m.ItemsIngested.Inc)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all background loops to stop. In-flight items left in
	// processing are swept back to pending by the recovery scanner on the
	// next boot.
	cancelWorkers()

	logger.Info("server stopped cleanly")
}
