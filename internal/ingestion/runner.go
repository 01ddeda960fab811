package ingestion

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"tradestream/internal/domain"
	"tradestream/internal/messaging"
	"tradestream/internal/observability"
)

// CandidateSource is the fetch/commit face of the message transport.
type CandidateSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// Runner drives the worker loop: fetch a message, decode it, run it
// through the Processor, commit the offset. An offset is committed only
// after the candidate's side effects are durable, or when the message
// can never be processed.
type Runner struct {
	source     CandidateSource
	processor  *Processor
	retryDelay time.Duration
	logger     *zap.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source     CandidateSource
	Processor  *Processor
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// NewRunner creates a worker loop over the given source.
func NewRunner(opts RunnerOptions) *Runner {
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		source:     opts.Source,
		processor:  opts.Processor,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Run consumes until ctx is cancelled or the source closes. A retryable
// processing failure blocks on the same message with a delay between
// attempts: committing past it would lose the candidate, and skipping it
// would break per-trade ordering.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("ingestion runner started")

	for {
		msg, err := r.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("ingestion runner stopping")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				r.logger.Info("candidate source closed")
				return err
			}
			observability.RecordConsumeError("fetch")
			r.logger.Error("fetch failed", zap.Error(err))
			if err := r.pause(ctx); err != nil {
				return err
			}
			continue
		}
		observability.RecordConsumed()

		if err := r.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// handle processes one delivery to a terminal state: committed after
// durable processing, committed-and-dropped when undecodable or
// malformed, or retried in place on transient failure.
func (r *Runner) handle(ctx context.Context, msg kafka.Message) error {
	t, err := messaging.DecodeCandidate(msg.Value)
	if err != nil {
		observability.RecordMalformed()
		r.logger.Warn("undecodable message dropped",
			zap.String("key", string(msg.Key)),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return r.commit(ctx, msg)
	}

	for {
		_, err := r.processor.Process(ctx, t)
		var malformed *domain.MalformedCandidateError
		switch {
		case err == nil:
			return r.commit(ctx, msg)
		case errors.As(err, &malformed):
			// Processor already counted and logged it. Redelivery can
			// never fix a malformed candidate, so move past it.
			return r.commit(ctx, msg)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			observability.RecordConsumeError("process")
			r.logger.Error("processing failed, retrying",
				zap.String("trade_id", t.TradeID),
				zap.Int("version", t.Version),
				zap.String("request_id", t.RequestID),
				zap.Error(err))
			if err := r.pause(ctx); err != nil {
				return err
			}
		}
	}
}

// commit marks the message consumed. A commit failure is logged, not
// fatal: the journal absorbs the redelivery it causes.
func (r *Runner) commit(ctx context.Context, msg kafka.Message) error {
	if err := r.source.Commit(ctx, msg); err != nil {
		observability.RecordConsumeError("commit")
		r.logger.Error("offset commit failed",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}
	return nil
}

func (r *Runner) pause(ctx context.Context) error {
	timer := time.NewTimer(r.retryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
