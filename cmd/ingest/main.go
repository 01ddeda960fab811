// Package main runs the processing worker: it consumes candidate events
// from the Kafka topic, runs each through validation, journals the
// outcome and keeps the projection current with scheduled expiry sweeps.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradestream/internal/config"
	"tradestream/internal/expiry"
	"tradestream/internal/ingestion"
	"tradestream/internal/logging"
	"tradestream/internal/messaging"
	"tradestream/internal/observability"
	"tradestream/internal/orchestrator"
	"tradestream/internal/storage"
	chstore "tradestream/internal/storage/clickhouse"
	"tradestream/internal/storage/memory"
	"tradestream/internal/storage/migrations"
	pgstore "tradestream/internal/storage/postgres"
	"tradestream/internal/stream"
)

func main() {
	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("TRADESTREAM_CONFIG"), "Path to YAML configuration file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	if !cfg.Kafka.Enabled() {
		logger.Fatal("Kafka brokers are required (set TRADESTREAM_KAFKA_BROKERS)")
	}
	if !*useMemory && cfg.Postgres.DSN == "" {
		logger.Fatal("Postgres DSN is required (set TRADESTREAM_POSTGRES_DSN or use --use-memory)")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info("Starting metrics server", zap.String("addr", *metricsAddr))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("Received second signal, forcing immediate shutdown", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = runWorker(ctx, cfg, *useMemory, logger)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatal("Worker error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// runWorker wires the consumer, processor and sweeper and blocks until
// the context is cancelled or a component fails.
func runWorker(ctx context.Context, cfg *config.Config, useMemory bool, logger *zap.Logger) error {
	// Create stores (use interfaces)
	var journal storage.CandidateEventStore = memory.NewEventStore()
	var projections storage.TradeProjectionStore = memory.NewProjectionStore()
	var exceptions storage.ExceptionStore = memory.NewExceptionStore()
	var audit storage.OutcomeAuditStore = memory.NewOutcomeStore()

	if !useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}

		journal = pgstore.NewEventStore(pool)
		projections = pgstore.NewProjectionStore(pool)
		exceptions = pgstore.NewExceptionStore(pool)

		if cfg.ClickHouse.DSN != "" {
			conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
			if err != nil {
				return fmt.Errorf("migrate clickhouse: %w", err)
			}
			defer conn.Close()
			audit = chstore.NewOutcomeStore(conn)
		} else {
			logger.Warn("No ClickHouse DSN configured, outcome audit disabled")
			audit = nil
		}
	}

	// Outcome notifier (optional)
	var notifier ingestion.OutcomeNotifier
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer client.Close()
		notifier = stream.NewRedisPublisher(client, cfg.Redis.Channel, logger.Named("stream"))
	}

	processor := ingestion.NewProcessor(ingestion.ProcessorOptions{
		Journal: journal,
		Orchestrator: orchestrator.New(orchestrator.Options{
			ProjectionStore: projections,
			ExceptionStore:  exceptions,
			Logger:          logger.Named("orchestrator"),
		}),
		Audit:    audit,
		Notifier: notifier,
		Logger:   logger.Named("processor"),
	})

	consumer := messaging.NewConsumer(messaging.ConsumerOptions{
		Brokers: cfg.Kafka.BrokerList(),
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
		Logger:  logger.Named("messaging"),
	})
	defer consumer.Close()

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:     consumer,
		Processor:  processor,
		RetryDelay: cfg.Worker.RetryDelay,
		Logger:     logger.Named("worker"),
	})

	sweeper := expiry.New(expiry.Options{
		ProjectionStore: projections,
		Logger:          logger.Named("expiry"),
		Interval:        cfg.Sweep.Interval,
	})

	logger.Info("Starting worker",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID))

	// Create error channel for goroutines
	errCh := make(chan error, 2)

	go func() {
		err := runner.Run(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("worker loop: %w", err)
		}
	}()

	go func() {
		err := sweeper.Run(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("expiry sweeper: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
