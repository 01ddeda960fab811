// Package main runs the API service: candidate submission, projection
// and exception queries, expiry sweeps and the live outcome stream.
//
// With Kafka configured the service publishes candidates to the topic
// and leaves validation to the worker (cmd/ingest); outcomes reach the
// WebSocket hub through the Redis bridge. Without Kafka it validates in
// process and runs the scheduled expiry sweeper itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradestream/internal/api"
	"tradestream/internal/config"
	"tradestream/internal/domain"
	"tradestream/internal/expiry"
	"tradestream/internal/ingestion"
	"tradestream/internal/logging"
	"tradestream/internal/messaging"
	"tradestream/internal/orchestrator"
	"tradestream/internal/storage"
	chstore "tradestream/internal/storage/clickhouse"
	"tradestream/internal/storage/memory"
	"tradestream/internal/storage/migrations"
	pgstore "tradestream/internal/storage/postgres"
	"tradestream/internal/stream"
)

// Server holds the wired components of the API process.
type Server struct {
	cfg    *config.Config
	mode   string
	logger *zap.Logger

	hub     *stream.Hub
	bridge  *stream.Bridge
	sweeper *expiry.Sweeper
	api     *api.Server

	// Scheduled sweeps run here only when no worker does.
	runSweeper bool
}

// allStores holds the storage implementations behind the API.
type allStores struct {
	journal     storage.CandidateEventStore
	projections storage.TradeProjectionStore
	exceptions  storage.ExceptionStore
	audit       storage.OutcomeAuditStore
}

func main() {
	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("TRADESTREAM_CONFIG"), "Path to YAML configuration file")
	addr := flag.String("addr", "", "Listen address override, e.g. :8080")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	if !*useMemory && cfg.Postgres.DSN == "" {
		logger.Fatal("Postgres DSN is required (set TRADESTREAM_POSTGRES_DSN or use --use-memory)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, cfg, *useMemory, logger)
	if err != nil {
		logger.Fatal("Failed to create stores", zap.Error(err))
	}
	defer cleanup()

	server, closeServer, err := newServer(ctx, cfg, stores, logger)
	if err != nil {
		logger.Fatal("Failed to wire components", zap.Error(err))
	}
	defer closeServer()

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
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

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// createStores creates the journal, projection, exception and audit
// stores and runs migrations. The audit store stays nil when no
// ClickHouse DSN is configured.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool, logger *zap.Logger) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			journal:     memory.NewEventStore(),
			projections: memory.NewProjectionStore(),
			exceptions:  memory.NewExceptionStore(),
			audit:       memory.NewOutcomeStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	stores := &allStores{
		journal:     pgstore.NewEventStore(pool),
		projections: pgstore.NewProjectionStore(pool),
		exceptions:  pgstore.NewExceptionStore(pool),
	}

	// ClickHouse
	if cfg.ClickHouse.DSN == "" {
		logger.Warn("No ClickHouse DSN configured, outcome audit disabled")
		return stores, pool.Close, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}
	stores.audit = chstore.NewOutcomeStore(conn)

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// newServer wires the stream, sweeper and submission path around the
// stores. The returned close function releases broker and cache
// connections.
func newServer(ctx context.Context, cfg *config.Config, stores *allStores, logger *zap.Logger) (*Server, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var cache *redis.Client
	if cfg.Redis.Enabled() {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(ctx).Err(); err != nil {
			cache.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, func() { cache.Close() })
	}

	hub := stream.NewHub(logger.Named("stream"))

	sweeper := expiry.New(expiry.Options{
		ProjectionStore: stores.projections,
		Logger:          logger.Named("expiry"),
		Interval:        cfg.Sweep.Interval,
	})

	srv := &Server{
		cfg:     cfg,
		logger:  logger,
		hub:     hub,
		sweeper: sweeper,
	}

	var submitter api.CandidateSubmitter
	if cfg.Kafka.Enabled() {
		// Queue mode: publish candidates and let the worker validate
		// them. Outcomes come back through the Redis channel.
		srv.mode = "queue"

		producer := messaging.NewProducer(messaging.ProducerOptions{
			Brokers: cfg.Kafka.BrokerList(),
			Topic:   cfg.Kafka.Topic,
			Logger:  logger.Named("messaging"),
		})
		closers = append(closers, func() { producer.Close() })
		submitter = producer

		if cache != nil {
			srv.bridge = stream.NewBridge(cache, hub, cfg.Redis.Channel, logger.Named("stream"))
		}
	} else {
		// Direct mode: validate in process. The scheduled sweeper runs
		// here because no worker will.
		srv.mode = "direct"
		srv.runSweeper = true

		var notifier ingestion.OutcomeNotifier = stream.NewHubNotifier(hub)
		if cache != nil {
			// Publish through Redis so every API instance's hub sees
			// the outcome, not just the one that processed it.
			notifier = stream.NewRedisPublisher(cache, cfg.Redis.Channel, logger.Named("stream"))
			srv.bridge = stream.NewBridge(cache, hub, cfg.Redis.Channel, logger.Named("stream"))
		}

		processor := ingestion.NewProcessor(ingestion.ProcessorOptions{
			Journal: stores.journal,
			Orchestrator: orchestrator.New(orchestrator.Options{
				ProjectionStore: stores.projections,
				ExceptionStore:  stores.exceptions,
				Logger:          logger.Named("orchestrator"),
			}),
			Audit:    stores.audit,
			Notifier: notifier,
			Logger:   logger.Named("processor"),
		})
		submitter = api.SubmitterFunc(func(ctx context.Context, t *domain.Trade) error {
			_, err := processor.Process(ctx, t)
			return err
		})
	}

	srv.api = api.NewServer(api.Options{
		Submitter:       submitter,
		ProjectionStore: stores.projections,
		ExceptionStore:  stores.exceptions,
		Sweeper:         sweeper,
		Hub:             hub,
		Cache:           cache,
		CacheTTL:        cfg.HTTP.CacheTTL,
		Logger:          logger.Named("api"),
		Mode:            srv.mode,
	})

	return srv, closeAll, nil
}

// Run starts the hub, bridge, sweeper and HTTP server and blocks until
// the context is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting API service",
		zap.String("addr", s.cfg.HTTP.Addr),
		zap.String("mode", s.mode))

	// Create error channel for goroutines
	errCh := make(chan error, 4)

	go func() {
		err := s.hub.Run(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("stream hub: %w", err)
		}
	}()

	if s.bridge != nil {
		go func() {
			err := s.bridge.Run(ctx)
			if err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("outcome bridge: %w", err)
			}
		}()
	}

	if s.runSweeper {
		go func() {
			err := s.sweeper.Run(ctx)
			if err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("expiry sweeper: %w", err)
			}
		}()
	}

	go func() {
		if err := s.api.Start(s.cfg.HTTP.Addr); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
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
