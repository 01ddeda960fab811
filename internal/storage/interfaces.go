package storage

import (
	"context"
	"time"

	"tradestream/internal/domain"
)

// TradeProjectionStore provides access to the trade_projections storage:
// the queryable current-state view, one row per accepted (trade_id, version).
type TradeProjectionStore interface {
	// Upsert inserts the accepted candidate or overwrites the non-key
	// attributes of an existing (trade_id, version) row. Idempotent; never
	// touches other versions of the same trade.
	Upsert(ctx context.Context, t *domain.Trade) error

	// LatestVersion returns max(version) for a trade. Returns ErrNotFound
	// when no version was ever accepted.
	LatestVersion(ctx context.Context, tradeID string) (int, error)

	// Get retrieves one projected row. Returns ErrNotFound if not exists.
	Get(ctx context.Context, tradeID string, version int) (*domain.Trade, error)

	// GetByTradeID retrieves all accepted versions of a trade, version ASC.
	GetByTradeID(ctx context.Context, tradeID string) ([]*domain.Trade, error)

	// Latest retrieves the highest-version row. Returns ErrNotFound if none.
	Latest(ctx context.Context, tradeID string) (*domain.Trade, error)

	// ExpireDue transitions every ACTIVE row with maturity_date < today to
	// EXPIRED and returns the number of rows transitioned. Idempotent and
	// safe to run concurrently with upserts and with itself.
	ExpireDue(ctx context.Context, today time.Time) (int64, error)

	// Stats returns row counts for status and reporting surfaces.
	Stats(ctx context.Context) (*ProjectionStats, error)
}

// ExceptionStore provides access to the trade_exceptions storage:
// append-only snapshots of rejected candidates.
type ExceptionStore interface {
	// Append adds a rejection record. A duplicate (trade_id, version,
	// request_id) triple is absorbed silently so redelivery cannot double
	// a record; everything else always inserts.
	Append(ctx context.Context, rec *domain.ExceptionRecord) error

	// GetByTradeID retrieves all rejections for a trade, recorded_at ASC.
	GetByTradeID(ctx context.Context, tradeID string) ([]*domain.ExceptionRecord, error)

	// GetByRequestID retrieves rejections whose request id starts with the
	// given prefix, recorded_at ASC.
	GetByRequestID(ctx context.Context, requestIDPrefix string) ([]*domain.ExceptionRecord, error)

	// GetByTimeRange retrieves rejections recorded within [start, end].
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.ExceptionRecord, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)
}

// CandidateEventStore provides access to the trade_events journal:
// every received candidate keyed by (trade_id, version, request_id).
type CandidateEventStore interface {
	// Record appends a received candidate. Returns ErrDuplicateKey if the
	// triple was already recorded (duplicate delivery).
	Record(ctx context.Context, e *domain.CandidateEvent) error

	// Get retrieves the journal row for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key domain.EventKey) (*domain.CandidateEvent, error)

	// MarkProcessed stamps outcome, reason and processing time on a row.
	// Returns ErrNotFound if the key was never recorded.
	MarkProcessed(ctx context.Context, key domain.EventKey, outcome domain.OutcomeStatus, reason string, at time.Time) error

	// List retrieves events with seq > afterSeq in receipt order, up to
	// limit rows. Drives replay paging.
	List(ctx context.Context, afterSeq int64, limit int) ([]*domain.CandidateEvent, error)
}

// OutcomeAuditStore provides access to the validation_outcomes audit stream.
// Append-only and loss-tolerant: callers log append failures and move on.
type OutcomeAuditStore interface {
	// Append adds audit rows for processed candidates.
	Append(ctx context.Context, records []*domain.OutcomeRecord) error

	// CountByOutcome returns totals per outcome within [start, end].
	CountByOutcome(ctx context.Context, start, end time.Time) (map[domain.OutcomeStatus]int64, error)

	// TopReasons returns rejection reasons ranked by frequency within [start, end].
	TopReasons(ctx context.Context, start, end time.Time, limit int) ([]ReasonCount, error)

	// DailyActivity returns per-day accepted/rejected counts within [start, end].
	DailyActivity(ctx context.Context, start, end time.Time) ([]DayActivity, error)

	// BusiestBooks returns books ranked by processed candidates within [start, end].
	BusiestBooks(ctx context.Context, start, end time.Time, limit int) ([]BookCount, error)
}

// ProjectionStats summarizes the projection for /status and reports.
type ProjectionStats struct {
	Trades  int64 // distinct trade ids
	Rows    int64 // accepted (trade_id, version) rows
	Active  int64
	Expired int64
}

// ReasonCount is one ranked rejection reason.
type ReasonCount struct {
	Reason string
	Count  int64
}

// DayActivity is one day of processed-candidate counts.
type DayActivity struct {
	Day      time.Time
	Accepted int64
	Rejected int64
}

// BookCount is one ranked book.
type BookCount struct {
	BookID string
	Count  int64
}
