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
	apphttp "bankfees/internal/http"
	applog "bankfees/internal/log"
	"bankfees/internal/metrics"
	"bankfees/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	policy := cli.LoadPolicy(logger, cfg.FeePolicyFile)
	m := metrics.New("bankfees")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger, m).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(m),
	}
	if res.Cache != nil {
		opts = append(opts, services.WithCache(res.Cache))
	}

	// AMQP is optional: without it /api/refresh only clears the cache.
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
			logger.Warn("Failed to initialize AMQP client, continuing without refresh messages", applog.FieldError, err)
			amqpClient = nil
		} else {
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			opts = append(opts, services.WithPublisher(amqpClient))
		}
	}

	catalog := services.NewCatalogService(res.Source, policy, opts...)
	srv := apphttp.NewServer(":"+cfg.Port, catalog, apphttp.Options{
		Logger:             logger,
		Metrics:            m,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Locale:             cfg.Locale,
	})

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting bankfees server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"locale", cfg.Locale)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
