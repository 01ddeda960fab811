package reporting

import (
	"context"
	"time"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// Ranked sections are capped so the report stays readable on busy days.
const (
	topReasonsLimit   = 10
	busiestBooksLimit = 10
)

// Generator produces validation activity reports from stored data.
type Generator struct {
	audit       storage.OutcomeAuditStore
	projections storage.TradeProjectionStore
	exceptions  storage.ExceptionStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	audit storage.OutcomeAuditStore,
	projections storage.TradeProjectionStore,
	exceptions storage.ExceptionStore,
) *Generator {
	return &Generator{
		audit:       audit,
		projections: projections,
		exceptions:  exceptions,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report covering [start, end]. A zero start
// covers everything up to end; a zero end closes the window at the clock.
func (g *Generator) Generate(ctx context.Context, start, end time.Time) (*Report, error) {
	generatedAt := g.now()
	if end.IsZero() {
		end = generatedAt
	}

	// Outcome totals
	counts, err := g.audit.CountByOutcome(ctx, start, end)
	if err != nil {
		return nil, err
	}

	// Ranked rejection reasons
	reasons, err := g.audit.TopReasons(ctx, start, end, topReasonsLimit)
	if err != nil {
		return nil, err
	}

	// Per-day activity
	days, err := g.audit.DailyActivity(ctx, start, end)
	if err != nil {
		return nil, err
	}

	// Ranked books
	books, err := g.audit.BusiestBooks(ctx, start, end, busiestBooksLimit)
	if err != nil {
		return nil, err
	}

	// Current projection and exception state
	stats, err := g.projections.Stats(ctx)
	if err != nil {
		return nil, err
	}
	exceptionCount, err := g.exceptions.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:   generatedAt,
		WindowStart:   start,
		WindowEnd:     end,
		Accepted:      counts[domain.OutcomeAccepted],
		Rejected:      counts[domain.OutcomeRejected],
		TopReasons:    reasons,
		DailyActivity: days,
		BusiestBooks:  books,
		Projection:    *stats,
		Exceptions:    exceptionCount,
	}, nil
}
