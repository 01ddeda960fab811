// Package main generates the validation activity report: outcome totals,
// ranked rejection reasons, daily activity, the busiest books and the
// current projection state, with an optional consistency check across
// the journal, projection and exception stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tradestream/internal/config"
	"tradestream/internal/domain"
	"tradestream/internal/reporting"
	"tradestream/internal/storage"
	chstore "tradestream/internal/storage/clickhouse"
	pgstore "tradestream/internal/storage/postgres"
	"tradestream/internal/verification"
)

func main() {
	// Parse flags
	configPath := flag.String("config", os.Getenv("TRADESTREAM_CONFIG"), "Path to YAML configuration file")
	fromStr := flag.String("from", "", "Window start date (YYYY-MM-DD, empty for all history)")
	toStr := flag.String("to", "", "Window end date (YYYY-MM-DD inclusive, empty for now)")
	outPath := flag.String("out", "", "Write the markdown report to this file instead of stdout")
	csvPath := flag.String("csv", "", "Also write the daily activity CSV to this file")
	verify := flag.Bool("verify", false, "Cross-check the journal, projection and exception stores")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Validate flags
	if cfg.Postgres.DSN == "" || cfg.ClickHouse.DSN == "" {
		fmt.Fprintln(os.Stderr, "Error: Postgres and ClickHouse DSNs are required")
		fmt.Fprintln(os.Stderr, "Set TRADESTREAM_POSTGRES_DSN and TRADESTREAM_CLICKHOUSE_DSN or use --config")
		os.Exit(1)
	}

	// Parse the reporting window
	var start, end time.Time
	if *fromStr != "" {
		start, err = domain.ParseDate(*fromStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing --from: %v\n", err)
			os.Exit(1)
		}
	}
	if *toStr != "" {
		end, err = domain.ParseDate(*toStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing --to: %v\n", err)
			os.Exit(1)
		}
		// The named day is part of the window.
		end = end.Add(24 * time.Hour)
	}

	journal, projections, exceptions, audit, cleanup, err := createDatabaseStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	generator := reporting.NewGenerator(audit, projections, exceptions)
	report, err := generator.Generate(ctx, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	// Write outputs
	var written []string
	markdown := reporting.RenderMarkdown(report)
	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(markdown), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
		written = append(written, *outPath)
	} else {
		fmt.Print(markdown)
	}

	if *csvPath != "" {
		csv := reporting.RenderCSV(report.DailyActivity)
		if err := os.WriteFile(*csvPath, []byte(csv), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
			os.Exit(1)
		}
		written = append(written, *csvPath)
	}

	if len(written) > 0 {
		fmt.Println("Report generated successfully:")
		for _, path := range written {
			fmt.Printf("  - %s\n", path)
		}
	}

	if *verify {
		runVerification(ctx, journal, projections, exceptions)
	}
}

// createDatabaseStores connects to PostgreSQL and ClickHouse and creates
// the stores the report reads.
func createDatabaseStores(ctx context.Context, cfg *config.Config) (
	storage.CandidateEventStore,
	storage.TradeProjectionStore,
	storage.ExceptionStore,
	storage.OutcomeAuditStore,
	func(),
	error,
) {
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	conn, err := chstore.NewConn(ctx, cfg.ClickHouse.DSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}

	return pgstore.NewEventStore(pool),
		pgstore.NewProjectionStore(pool),
		pgstore.NewExceptionStore(pool),
		chstore.NewOutcomeStore(conn),
		cleanup,
		nil
}

// runVerification cross-checks the stores and prints findings. Any
// finding exits nonzero so scheduled runs surface drift.
func runVerification(ctx context.Context, journal storage.CandidateEventStore, projections storage.TradeProjectionStore, exceptions storage.ExceptionStore) {
	verifier := verification.New(verification.Options{
		Journal:     journal,
		Projections: projections,
		Exceptions:  exceptions,
	})

	result, err := verifier.VerifyAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error verifying stores: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nVerified %d journal events and %d exception records\n",
		result.CheckedEvents, result.CheckedExceptions)
	if result.Clean() {
		fmt.Println("No inconsistencies found")
		return
	}

	fmt.Printf("%d inconsistencies found:\n", len(result.Findings))
	for _, f := range result.Findings {
		fmt.Printf("  - %s\n", f.String())
	}
	os.Exit(2)
}
