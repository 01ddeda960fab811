package clickhouse

import (
	"context"
	"fmt"
	"time"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// OutcomeStore implements storage.OutcomeAuditStore using ClickHouse.
// The validation_outcomes table is a plain MergeTree: appends are cheap,
// rows are never updated, and the report queries aggregate server side.
type OutcomeStore struct {
	conn *Conn
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(conn *Conn) *OutcomeStore {
	return &OutcomeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OutcomeAuditStore = (*OutcomeStore)(nil)

// Append adds audit rows for processed candidates.
func (s *OutcomeStore) Append(ctx context.Context, records []*domain.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO validation_outcomes (
			occurred_at, trade_id, version, request_id, outcome, reason,
			book_id, counter_party_id, maturity_date
		)
	`)
	if err != nil {
		track("outcome_append", start, err)
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, rec := range records {
		err = batch.Append(
			rec.OccurredAt, rec.TradeID, int32(rec.Version), rec.RequestID,
			string(rec.Outcome), rec.Reason,
			rec.BookID, rec.CounterPartyID, rec.MaturityDate,
		)
		if err != nil {
			track("outcome_append", start, err)
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	err = batch.Send()
	track("outcome_append", start, err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// CountByOutcome returns totals per outcome within [start, end].
func (s *OutcomeStore) CountByOutcome(ctx context.Context, startTime, endTime time.Time) (map[domain.OutcomeStatus]int64, error) {
	query := `
		SELECT outcome, count(*)
		FROM validation_outcomes
		WHERE occurred_at >= ? AND occurred_at <= ?
		GROUP BY outcome
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, startTime, endTime)
	track("outcome_count_by_outcome", start, err)
	if err != nil {
		return nil, fmt.Errorf("query counts by outcome: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.OutcomeStatus]int64)
	for rows.Next() {
		var outcome string
		var count uint64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan outcome count row: %w", err)
		}
		counts[domain.OutcomeStatus(outcome)] = int64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome count rows: %w", err)
	}
	return counts, nil
}

// TopReasons returns rejection reasons ranked by frequency within [start, end].
func (s *OutcomeStore) TopReasons(ctx context.Context, startTime, endTime time.Time, limit int) ([]storage.ReasonCount, error) {
	query := `
		SELECT reason, count(*) AS cnt
		FROM validation_outcomes
		WHERE outcome = ? AND occurred_at >= ? AND occurred_at <= ?
		GROUP BY reason
		ORDER BY cnt DESC, reason ASC
		LIMIT ?
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query,
		string(domain.OutcomeRejected), startTime, endTime, uint64(limit))
	track("outcome_top_reasons", start, err)
	if err != nil {
		return nil, fmt.Errorf("query top reasons: %w", err)
	}
	defer rows.Close()

	var reasons []storage.ReasonCount
	for rows.Next() {
		var rc storage.ReasonCount
		var count uint64
		if err := rows.Scan(&rc.Reason, &count); err != nil {
			return nil, fmt.Errorf("scan reason row: %w", err)
		}
		rc.Count = int64(count)
		reasons = append(reasons, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reason rows: %w", err)
	}
	return reasons, nil
}

// DailyActivity returns per-day accepted/rejected counts within [start, end].
func (s *OutcomeStore) DailyActivity(ctx context.Context, startTime, endTime time.Time) ([]storage.DayActivity, error) {
	query := `
		SELECT toDate(occurred_at) AS day,
		       countIf(outcome = ?) AS accepted,
		       countIf(outcome = ?) AS rejected
		FROM validation_outcomes
		WHERE occurred_at >= ? AND occurred_at <= ?
		GROUP BY day
		ORDER BY day ASC
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query,
		string(domain.OutcomeAccepted), string(domain.OutcomeRejected),
		startTime, endTime)
	track("outcome_daily_activity", start, err)
	if err != nil {
		return nil, fmt.Errorf("query daily activity: %w", err)
	}
	defer rows.Close()

	var days []storage.DayActivity
	for rows.Next() {
		var d storage.DayActivity
		var accepted, rejected uint64
		if err := rows.Scan(&d.Day, &accepted, &rejected); err != nil {
			return nil, fmt.Errorf("scan daily activity row: %w", err)
		}
		d.Accepted = int64(accepted)
		d.Rejected = int64(rejected)
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily activity rows: %w", err)
	}
	return days, nil
}

// BusiestBooks returns books ranked by processed candidates within [start, end].
func (s *OutcomeStore) BusiestBooks(ctx context.Context, startTime, endTime time.Time, limit int) ([]storage.BookCount, error) {
	query := `
		SELECT book_id, count(*) AS cnt
		FROM validation_outcomes
		WHERE occurred_at >= ? AND occurred_at <= ?
		GROUP BY book_id
		ORDER BY cnt DESC, book_id ASC
		LIMIT ?
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, startTime, endTime, uint64(limit))
	track("outcome_busiest_books", start, err)
	if err != nil {
		return nil, fmt.Errorf("query busiest books: %w", err)
	}
	defer rows.Close()

	var books []storage.BookCount
	for rows.Next() {
		var bc storage.BookCount
		var count uint64
		if err := rows.Scan(&bc.BookID, &count); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		bc.Count = int64(count)
		books = append(books, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book rows: %w", err)
	}
	return books, nil
}
