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

	"github.com/medscribe/notequeue/internal/api"
	"github.com/medscribe/notequeue/internal/config"
	"github.com/medscribe/notequeue/internal/db"
	"github.com/medscribe/notequeue/internal/metrics"
	"github.com/medscribe/notequeue/internal/notestore"
	"github.com/medscribe/notequeue/internal/notify"
	"github.com/medscribe/notequeue/internal/provider"
	"github.com/medscribe/notequeue/internal/queue"
	"github.com/medscribe/notequeue/internal/ratelimiter"
	"github.com/medscribe/notequeue/internal/repository"
	"github.com/medscribe/notequeue/internal/service"
	"github.com/medscribe/notequeue/internal/worker"
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

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	notes := notestore.NewRegistry()
	if err := notestore.RegisterPgStores(notes, pool); err != nil {
		logger.Fatal("failed to register note stores", zap.Error(err))
	}

	// ---- external services ----
	generator, err := provider.NewGenerator(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to build generator", zap.Error(err))
	}
	var translator provider.Translator
	if cfg.TranslatorURL != "" {
		translator = provider.NewHTTPTranslator(cfg.TranslatorURL, cfg.TranslatorAPIKey, cfg.TranslateTimeout)
	} else {
		logger.Warn("TRANSLATOR_URL not set, note text goes to the generator untranslated")
	}
	limiter := ratelimiter.New(cfg.TranslateRateLimit, cfg.GenerateRateLimit)

	// ---- notification fan-out ----
	var publisher notify.Publisher = notify.NewLogPublisher(logger)
	if cfg.RedisURL != "" {
		rdb, err := notify.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close() //nolint:errcheck
		publisher = notify.NewRedisPublisher(rdb, cfg.NotifyChannel)
	}
	notifier := notify.NewAsyncNotifier(publisher, cfg.NotifyBuffer, logger)

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New(cfg.DispatchQueueSize)
	repo := repository.NewPgEntryRepository(pool)
	svc := service.NewQueueService(repo, notes, q, notifier, logger, service.Hooks{
		OnEnqueued: m.OnEnqueued,
	})

	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	// The notifier outlives the workers so events from draining jobs still go out.
	notifyCtx, stopNotifier := context.WithCancel(ctx)
	defer stopNotifier()
	notifier.Start(notifyCtx)

	// ---- dispatch pool ----
	onFinished, onFallback := m.WorkerHooks()
	dispatcher := worker.NewDispatcher(
		repo, notes, translator, generator, limiter, notifier,
		worker.OptionsFromConfig(cfg), logger,
		worker.MetricHooks{OnFinished: onFinished, OnTranslationFallback: onFallback},
	)
	dispatchPool := worker.NewPool(cfg.Workers, q, dispatcher, logger)
	dispatchPool.Start(workerCtx)

	monitor := worker.NewMonitorWorker(svc, cfg.MonitorInterval, cfg.StaleQueuedAfter, m.ObserveSnapshot, logger)
	go monitor.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, pool, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.Int("workers", dispatchPool.Size()),
			zap.String("generator", cfg.GeneratorBackend),
		)
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

	// 2. Stop pulling new jobs. Jobs already picked up run to a terminal status.
	cancelWorkers()
	dispatchPool.Wait()

	// 3. Flush pending events once nothing else can signal.
	stopNotifier()
	notifier.Wait()

	if n := q.Depth(); n > 0 {
		logger.Warn("undispatched entries left queued, owners must regenerate", zap.Int("count", n))
	}
	logger.Info("server stopped cleanly")
}
