package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradestream/internal/domain"
	"tradestream/internal/orchestrator"
	"tradestream/internal/storage"
)

// Replayer rebuilds projection and exception state by re-running the
// candidate journal through the orchestrator in receipt order. It never
// writes the journal, appends audit rows or publishes outcomes, so a
// replay is invisible to everything but the projection and the
// exception log.
type Replayer struct {
	journal   storage.CandidateEventStore
	orch      *orchestrator.Orchestrator
	batchSize int
	logger    *zap.Logger
}

// ReplayerOptions contains configuration for creating a Replayer.
type ReplayerOptions struct {
	Journal      storage.CandidateEventStore
	Orchestrator *orchestrator.Orchestrator
	BatchSize    int
	Logger       *zap.Logger
}

// NewReplayer creates a journal replayer.
func NewReplayer(opts ReplayerOptions) *Replayer {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Replayer{
		journal:   opts.Journal,
		orch:      opts.Orchestrator,
		batchSize: batchSize,
		logger:    logger,
	}
}

// ReplayResult contains statistics from a replay pass.
type ReplayResult struct {
	Processed int // candidates that reached a terminal outcome
	Accepted  int
	Rejected  int
	Malformed int // journaled candidates that fail structural validation
	Duration  time.Duration
}

// Replay pages the whole journal through the orchestrator. Side effects
// are idempotent, so replaying over a live or wiped projection is safe;
// a rejection during replay lands in the exception log exactly once
// because the sink absorbs duplicate triples.
func (r *Replayer) Replay(ctx context.Context) (*ReplayResult, error) {
	start := time.Now()
	result := &ReplayResult{}

	r.logger.Info("replay started", zap.Int("batch_size", r.batchSize))

	var afterSeq int64
	for {
		events, err := r.journal.List(ctx, afterSeq, r.batchSize)
		if err != nil {
			return result, fmt.Errorf("list journal after seq %d: %w", afterSeq, err)
		}
		if len(events) == 0 {
			break
		}

		for _, event := range events {
			afterSeq = event.Seq

			t := event.Trade
			outcome, err := r.orch.Process(ctx, &t)
			var malformed *domain.MalformedCandidateError
			switch {
			case errors.As(err, &malformed):
				result.Malformed++
				continue
			case err != nil:
				return result, fmt.Errorf("replay %s: %w", t.Key(), err)
			}

			result.Processed++
			if outcome.Status == domain.OutcomeAccepted {
				result.Accepted++
			} else {
				result.Rejected++
			}
		}
	}

	result.Duration = time.Since(start)
	r.logger.Info("replay complete",
		zap.Int("processed", result.Processed),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", result.Rejected),
		zap.Int("malformed", result.Malformed),
		zap.Duration("duration", result.Duration))

	return result, nil
}
