// Package ingestion runs the processing worker: it consumes candidates,
// claims them in the journal, pushes them through the validation
// orchestrator and fans the outcome out to the audit stream and live
// subscribers.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradestream/internal/domain"
	"tradestream/internal/observability"
	"tradestream/internal/orchestrator"
	"tradestream/internal/storage"
)

// OutcomeNotifier pushes processed outcomes to live subscribers.
// Publishing is best effort; a failure never fails the candidate.
type OutcomeNotifier interface {
	PublishOutcome(ctx context.Context, rec *domain.OutcomeRecord) error
}

// Processor runs one candidate through the full worker pipeline: journal
// claim, validation, journal outcome mark, audit append, outcome publish.
// Safe for concurrent use.
type Processor struct {
	journal  storage.CandidateEventStore
	orch     *orchestrator.Orchestrator
	audit    storage.OutcomeAuditStore
	notifier OutcomeNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// ProcessorOptions configures a Processor. Journal, Audit and Notifier are
// optional: a nil journal disables duplicate detection, nil audit or
// notifier disables that side channel.
type ProcessorOptions struct {
	Journal      storage.CandidateEventStore
	Orchestrator *orchestrator.Orchestrator
	Audit        storage.OutcomeAuditStore
	Notifier     OutcomeNotifier
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewProcessor creates a Processor.
func NewProcessor(opts ProcessorOptions) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Processor{
		journal:  opts.Journal,
		orch:     opts.Orchestrator,
		audit:    opts.Audit,
		notifier: opts.Notifier,
		logger:   logger,
		now:      now,
	}
}

// Process handles one delivered candidate end to end. Rejections are
// outcomes, not errors. An error means the candidate was not durably
// processed and the delivery must be retried, except a
// MalformedCandidateError, which no retry can fix.
//
// A redelivered triple whose outcome is already journaled is skipped and
// its recorded outcome returned. A triple journaled without an outcome
// (crash between journal and side effects) is reprocessed; the side
// effects are idempotent, so this is safe.
func (p *Processor) Process(ctx context.Context, t *domain.Trade) (orchestrator.Outcome, error) {
	if err := t.Validate(); err != nil {
		observability.RecordMalformed()
		p.logger.Warn("malformed candidate dropped",
			zap.String("trade_id", t.TradeID),
			zap.Int("version", t.Version),
			zap.String("request_id", t.RequestID),
			zap.Error(err))
		return orchestrator.Outcome{}, err
	}

	if p.journal != nil {
		event := &domain.CandidateEvent{Trade: *t.Clone(), ReceivedAt: p.now().UTC()}
		err := p.journal.Record(ctx, event)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			existing, getErr := p.journal.Get(ctx, t.Key())
			if getErr != nil {
				return orchestrator.Outcome{}, fmt.Errorf("load journal row %s: %w", t.Key(), getErr)
			}
			if existing.Processed() {
				observability.RecordDuplicateDelivery()
				p.logger.Info("duplicate delivery skipped",
					zap.String("event", t.Key().String()),
					zap.String("outcome", existing.Outcome.String()))
				return orchestrator.Outcome{Status: existing.Outcome, Reason: existing.Reason}, nil
			}
			// Journaled but never stamped: reprocess.
		case err != nil:
			return orchestrator.Outcome{}, fmt.Errorf("journal candidate %s: %w", t.Key(), err)
		}
	}

	outcome, err := p.orch.Process(ctx, t)
	if err != nil {
		return orchestrator.Outcome{}, err
	}

	processedAt := p.now().UTC()
	if p.journal != nil {
		if err := p.journal.MarkProcessed(ctx, t.Key(), outcome.Status, outcome.Reason, processedAt); err != nil {
			return orchestrator.Outcome{}, fmt.Errorf("mark processed %s: %w", t.Key(), err)
		}
	}

	rec := domain.NewOutcomeRecord(t, outcome.Status, outcome.Reason, processedAt)
	if p.audit != nil {
		if err := p.audit.Append(ctx, []*domain.OutcomeRecord{rec}); err != nil {
			observability.RecordAuditDrop()
			p.logger.Warn("outcome audit append failed",
				zap.String("event", t.Key().String()),
				zap.Error(err))
		}
	}
	if p.notifier != nil {
		if err := p.notifier.PublishOutcome(ctx, rec); err != nil {
			p.logger.Warn("outcome publish failed",
				zap.String("event", t.Key().String()),
				zap.Error(err))
		}
	}

	return outcome, nil
}
