package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bankfees/internal/amqp"
	"bankfees/internal/backend"
	"bankfees/internal/cli"
	applog "bankfees/internal/log"
	"bankfees/internal/metrics"
	"bankfees/internal/storage"
	"bankfees/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting bankfees-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	m := metrics.New("bankfees_worker")

	// The SQLite mirror the API reads when DATA_BACKEND=sqlite.
	mirror, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer mirror.Close()

	upstreamCfg, err := backend.SyncSourceConfig(cfg)
	if err != nil {
		logger.Error("Invalid sync source", applog.FieldError, err)
		os.Exit(1)
	}
	upstream, err := backend.NewFactory(logger, m).CreateBackend(context.Background(), upstreamCfg)
	if err != nil {
		logger.Error("Failed to initialize sync source", applog.FieldError, err, applog.FieldBackend, cfg.SyncSource)
		os.Exit(1)
	}
	if upstream.Cleanup != nil {
		defer upstream.Cleanup()
	}

	syncWorker := worker.NewSyncWorker(upstream.Source, mirror, cfg.SyncSource, logger, m)

	// Without AMQP the worker still syncs on its interval.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(amqp.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
			Logger:   logger,
			Metrics:  m,
		})
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, periodic sync only")
	}

	var metricsSrv *http.Server
	if cfg.WorkerMetricsPort != "" {
		metricsSrv = &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", applog.FieldError, err, "port", cfg.WorkerMetricsPort)
			}
		}()
	}

	parent, stop := context.WithCancel(context.Background())
	defer stop()
	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(ctx context.Context) {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
	})

	// Catch up on anything missed while the worker was down. A failure is
	// not fatal; the next tick retries.
	logger.Info("Performing startup sync...")
	if err := syncWorker.StartupSync(ctx); err != nil {
		logger.Error("Startup sync failed", applog.FieldError, err)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeRefresh(ctx, syncWorker.HandleRefreshMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", applog.FieldError, err)
				stop()
			}
		}()
	}

	logger.Info("Worker running", "sync_interval", cfg.SyncInterval.String(), applog.FieldBackend, cfg.SyncSource)
	syncWorker.Run(ctx, cfg.SyncInterval)

	<-done
	logger.Info("Worker shutdown complete")
}
