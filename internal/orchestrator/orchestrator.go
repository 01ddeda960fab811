// Package orchestrator coordinates candidate validation and projection.
// It runs: structural check → business rules → version resolution → side effects
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradestream/internal/domain"
	"tradestream/internal/observability"
	"tradestream/internal/storage"
	"tradestream/internal/validation"
)

// Rule labels used in metrics and logs.
const (
	RuleMissingMaturity = "missing_maturity"
	RuleMaturityPast    = "maturity_past"
	RuleVersionConflict = "version_conflict"
)

// Outcome is the terminal state of one processed candidate.
type Outcome struct {
	Status domain.OutcomeStatus
	Reason string
}

// Orchestrator runs candidates through the validation sequence and applies
// the resulting side effects exactly once per candidate.
type Orchestrator struct {
	// Stores
	projectionStore storage.TradeProjectionStore
	exceptionStore  storage.ExceptionStore

	// Validation
	rules    *validation.RuleValidator
	resolver *validation.VersionResolver

	// Options
	logger *zap.Logger
	now    func() time.Time

	// Per-trade locks serialize candidates that share a tradeId.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	ProjectionStore storage.TradeProjectionStore
	ExceptionStore  storage.ExceptionStore

	// Optional
	Logger *zap.Logger      // defaults to zap.NewNop()
	Now    func() time.Time // defaults to time.Now
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		projectionStore: opts.ProjectionStore,
		exceptionStore:  opts.ExceptionStore,
		rules:           validation.NewRuleValidator(),
		resolver:        validation.NewVersionResolver(opts.ProjectionStore),
		logger:          logger,
		now:             now,
		locks:           make(map[string]*sync.Mutex),
	}
}

// Process runs a single candidate through the validation sequence.
// Sequence:
//  1. Structural check (malformed candidates fail fast, no side effects)
//  2. Business rules (maturity date)
//  3. Version resolution against the projection
//  4. Side effect: projection upsert on accept, exception append on reject
//
// A returned error means no outcome was reached and the candidate may be
// retried; rejections are outcomes, not errors.
func (o *Orchestrator) Process(ctx context.Context, t *domain.Trade) (Outcome, error) {
	start := o.now()

	if err := t.Validate(); err != nil {
		observability.RecordMalformed()
		o.logger.Warn("malformed candidate",
			zap.String("trade_id", t.TradeID),
			zap.Int("version", t.Version),
			zap.Error(err))
		return Outcome{}, err
	}

	lock := o.lockFor(t.TradeID)
	lock.Lock()
	defer lock.Unlock()

	today := o.now()

	if result := o.rules.Check(t, today); !result.Valid {
		rule := RuleMaturityPast
		if result.Reason == validation.ReasonMissingMaturity {
			rule = RuleMissingMaturity
		}
		return o.reject(ctx, t, result.Reason, rule, start)
	}

	decision, err := o.resolver.Resolve(ctx, t.TradeID, t.Version)
	if err != nil {
		return Outcome{}, err
	}
	if !decision.Accept {
		return o.reject(ctx, t, decision.Reason, RuleVersionConflict, start)
	}

	if err := o.projectionStore.Upsert(ctx, t); err != nil {
		return Outcome{}, fmt.Errorf("upsert projection %s v%d: %w", t.TradeID, t.Version, err)
	}

	observability.RecordProcessed(string(domain.OutcomeAccepted), o.now().Sub(start).Seconds())
	o.logger.Debug("candidate accepted",
		zap.String("trade_id", t.TradeID),
		zap.Int("version", t.Version),
		zap.String("request_id", t.RequestID))
	return Outcome{Status: domain.OutcomeAccepted}, nil
}

// reject appends an exception record and reports the rejection outcome.
func (o *Orchestrator) reject(ctx context.Context, t *domain.Trade, reason, rule string, start time.Time) (Outcome, error) {
	record := domain.NewExceptionRecord(t, reason, o.now())
	if err := o.exceptionStore.Append(ctx, record); err != nil {
		return Outcome{}, fmt.Errorf("append exception %s v%d: %w", t.TradeID, t.Version, err)
	}

	observability.RecordRejection(rule)
	observability.RecordProcessed(string(domain.OutcomeRejected), o.now().Sub(start).Seconds())
	o.logger.Info("candidate rejected",
		zap.String("trade_id", t.TradeID),
		zap.Int("version", t.Version),
		zap.String("request_id", t.RequestID),
		zap.String("reason", reason))
	return Outcome{Status: domain.OutcomeRejected, Reason: reason}, nil
}

// lockFor returns the mutex guarding a tradeId, creating it on first use.
func (o *Orchestrator) lockFor(tradeID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.locks[tradeID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[tradeID] = lock
	}
	return lock
}
