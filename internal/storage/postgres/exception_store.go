package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// ExceptionStore implements storage.ExceptionStore using PostgreSQL.
type ExceptionStore struct {
	pool *Pool
}

// NewExceptionStore creates a new ExceptionStore.
func NewExceptionStore(pool *Pool) *ExceptionStore {
	return &ExceptionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExceptionStore = (*ExceptionStore)(nil)

// Append adds a rejection record. ON CONFLICT DO NOTHING absorbs redelivered
// (trade_id, version, request_id) triples without raising an error.
func (s *ExceptionStore) Append(ctx context.Context, rec *domain.ExceptionRecord) error {
	query := `
		INSERT INTO trade_exceptions (
			trade_id, version, counter_party_id, book_id,
			maturity_date, created_date, expired_flag, request_id,
			reason, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (trade_id, version, request_id) DO NOTHING
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		rec.TradeID,
		rec.Version,
		rec.CounterPartyID,
		rec.BookID,
		rec.MaturityDate,
		rec.CreatedDate,
		string(rec.ExpiredFlag),
		rec.RequestID,
		rec.Reason,
		rec.RecordedAt,
	)
	track("exception_append", start, err)
	if err != nil {
		return fmt.Errorf("append trade exception: %w", err)
	}
	return nil
}

// GetByTradeID retrieves all rejections for a trade, recorded_at ASC.
func (s *ExceptionStore) GetByTradeID(ctx context.Context, tradeID string) ([]*domain.ExceptionRecord, error) {
	query := `
		SELECT id, trade_id, version, counter_party_id, book_id,
		       maturity_date, created_date, expired_flag, request_id,
		       reason, recorded_at
		FROM trade_exceptions
		WHERE trade_id = $1
		ORDER BY recorded_at ASC, id ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, tradeID)
	track("exception_by_trade", start, err)
	if err != nil {
		return nil, fmt.Errorf("get exceptions by trade id: %w", err)
	}
	defer rows.Close()

	return scanExceptions(rows)
}

// GetByRequestID retrieves rejections whose request id starts with the given
// prefix, recorded_at ASC.
func (s *ExceptionStore) GetByRequestID(ctx context.Context, requestIDPrefix string) ([]*domain.ExceptionRecord, error) {
	query := `
		SELECT id, trade_id, version, counter_party_id, book_id,
		       maturity_date, created_date, expired_flag, request_id,
		       reason, recorded_at
		FROM trade_exceptions
		WHERE request_id LIKE $1 || '%'
		ORDER BY recorded_at ASC, id ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, requestIDPrefix)
	track("exception_by_request", start, err)
	if err != nil {
		return nil, fmt.Errorf("get exceptions by request id: %w", err)
	}
	defer rows.Close()

	return scanExceptions(rows)
}

// GetByTimeRange retrieves rejections recorded within [start, end].
func (s *ExceptionStore) GetByTimeRange(ctx context.Context, startTime, endTime time.Time) ([]*domain.ExceptionRecord, error) {
	query := `
		SELECT id, trade_id, version, counter_party_id, book_id,
		       maturity_date, created_date, expired_flag, request_id,
		       reason, recorded_at
		FROM trade_exceptions
		WHERE recorded_at >= $1 AND recorded_at <= $2
		ORDER BY recorded_at ASC, id ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, startTime, endTime)
	track("exception_by_range", start, err)
	if err != nil {
		return nil, fmt.Errorf("get exceptions by time range: %w", err)
	}
	defer rows.Close()

	return scanExceptions(rows)
}

// Count returns the total number of records.
func (s *ExceptionStore) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM trade_exceptions`

	start := time.Now()
	var count int64
	err := s.pool.QueryRow(ctx, query).Scan(&count)
	track("exception_count", start, err)
	if err != nil {
		return 0, fmt.Errorf("count trade exceptions: %w", err)
	}
	return count, nil
}

// scanExceptions scans multiple rows into a slice of ExceptionRecord.
func scanExceptions(rows pgx.Rows) ([]*domain.ExceptionRecord, error) {
	var records []*domain.ExceptionRecord

	for rows.Next() {
		var rec domain.ExceptionRecord
		var flagStr string

		err := rows.Scan(
			&rec.ID,
			&rec.TradeID,
			&rec.Version,
			&rec.CounterPartyID,
			&rec.BookID,
			&rec.MaturityDate,
			&rec.CreatedDate,
			&flagStr,
			&rec.RequestID,
			&rec.Reason,
			&rec.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade exception row: %w", err)
		}

		rec.ExpiredFlag = domain.ExpiryStatus(flagStr)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade exception rows: %w", err)
	}

	return records, nil
}
