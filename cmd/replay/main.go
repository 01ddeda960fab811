// Package main rebuilds the trade projection and the exception log by
// replaying the candidate journal in receipt order. Replay never writes
// the journal, the audit trail or the outcome stream, so a wiped or
// diverged projection converges to exactly what live processing
// produced.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tradestream/internal/config"
	"tradestream/internal/ingestion"
	"tradestream/internal/logging"
	"tradestream/internal/orchestrator"
	"tradestream/internal/storage"
	"tradestream/internal/storage/memory"
	"tradestream/internal/storage/migrations"
	pgstore "tradestream/internal/storage/postgres"
)

// ReplayStats is the JSON shape of the replay summary.
type ReplayStats struct {
	Processed  int   `json:"processed"`
	Accepted   int   `json:"accepted"`
	Rejected   int   `json:"rejected"`
	Malformed  int   `json:"malformed"`
	DurationMs int64 `json:"duration_ms"`
}

func main() {
	// Parse flags
	configPath := flag.String("config", os.Getenv("TRADESTREAM_CONFIG"), "Path to YAML configuration file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (replays an empty journal, for smoke tests)")
	batchSize := flag.Int("batch-size", 500, "Journal page size")
	outputJSON := flag.Bool("json", false, "Output summary as JSON")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStderr(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	if !*useMemory && cfg.Postgres.DSN == "" {
		logger.Fatal("Postgres DSN is required (set TRADESTREAM_POSTGRES_DSN or use --use-memory)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// Create stores (use interfaces)
	var journal storage.CandidateEventStore = memory.NewEventStore()
	var projections storage.TradeProjectionStore = memory.NewProjectionStore()
	var exceptions storage.ExceptionStore = memory.NewExceptionStore()

	if !*useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal("Failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatal("Failed to migrate postgres", zap.Error(err))
		}

		journal = pgstore.NewEventStore(pool)
		projections = pgstore.NewProjectionStore(pool)
		exceptions = pgstore.NewExceptionStore(pool)
	}

	// The replayer drives the regular orchestrator; only the journal,
	// audit and stream side effects are absent.
	replayer := ingestion.NewReplayer(ingestion.ReplayerOptions{
		Journal: journal,
		Orchestrator: orchestrator.New(orchestrator.Options{
			ProjectionStore: projections,
			ExceptionStore:  exceptions,
			Logger:          logger.Named("orchestrator"),
		}),
		BatchSize: *batchSize,
		Logger:    logger.Named("replay"),
	})

	result, err := replayer.Replay(ctx)
	if err != nil {
		logger.Fatal("Replay failed", zap.Error(err))
	}

	// Output summary
	stats := ReplayStats{
		Processed:  result.Processed,
		Accepted:   result.Accepted,
		Rejected:   result.Rejected,
		Malformed:  result.Malformed,
		DurationMs: result.Duration.Milliseconds(),
	}
	if *outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("\n=== Replay Summary ===\n")
		fmt.Printf("Processed:  %d\n", stats.Processed)
		fmt.Printf("Accepted:   %d\n", stats.Accepted)
		fmt.Printf("Rejected:   %d\n", stats.Rejected)
		fmt.Printf("Malformed:  %d\n", stats.Malformed)
		fmt.Printf("Duration:   %v\n", result.Duration)
	}
}
