// Package expiry drives the ACTIVE -> EXPIRED transition for matured trades.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tradestream/internal/domain"
	"tradestream/internal/observability"
	"tradestream/internal/storage"
)

// DefaultInterval is the scheduled sweep cadence.
const DefaultInterval = 3 * time.Second

// Sweep triggers, recorded in metrics and logs.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// ErrAlreadyRunning is returned by Run when a sweep loop is active.
var ErrAlreadyRunning = errors.New("sweeper already running")

// Sweeper flips projection rows whose maturity date has passed to EXPIRED.
// Sweeps are idempotent: a pass over an already-swept projection expires
// nothing and reports zero.
type Sweeper struct {
	projections storage.TradeProjectionStore
	logger      *zap.Logger
	now         func() time.Time
	interval    time.Duration
	running     atomic.Bool
}

// Options for creating Sweeper.
type Options struct {
	ProjectionStore storage.TradeProjectionStore

	// Optional
	Logger   *zap.Logger      // defaults to zap.NewNop()
	Interval time.Duration    // defaults to DefaultInterval
	Now      func() time.Time // defaults to time.Now
}

// New creates a new Sweeper.
func New(opts Options) *Sweeper {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Sweeper{
		projections: opts.ProjectionStore,
		logger:      logger,
		now:         now,
		interval:    interval,
	}
}

// SweepOnce runs a single pass and returns the number of rows expired.
// Rows maturing today stay ACTIVE; only strictly past maturities flip.
func (s *Sweeper) SweepOnce(ctx context.Context, trigger string) (int64, error) {
	start := time.Now()
	today := domain.ToDate(s.now())

	expired, err := s.projections.ExpireDue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("expire due trades: %w", err)
	}

	observability.RecordSweep(trigger, expired, time.Since(start).Seconds())
	observability.SetLastSweep(s.now().Unix())

	if expired > 0 {
		s.logger.Info("expiry sweep",
			zap.String("trigger", trigger),
			zap.Int64("expired", expired),
			zap.Time("today", today))
	}
	return expired, nil
}

// Run sweeps on the configured interval until the context is cancelled.
// A failed pass is logged and the loop keeps going; the next tick retries.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, TriggerScheduled); err != nil {
				s.logger.Error("scheduled sweep failed", zap.Error(err))
			}
		}
	}
}
