package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// EventStore implements storage.CandidateEventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandidateEventStore = (*EventStore)(nil)

// Record appends a received candidate. Returns ErrDuplicateKey if the
// (trade_id, version, request_id) triple was already recorded.
func (s *EventStore) Record(ctx context.Context, e *domain.CandidateEvent) error {
	query := `
		INSERT INTO trade_events (
			trade_id, version, request_id, counter_party_id, book_id,
			maturity_date, created_date, expired_flag, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		e.Trade.TradeID,
		e.Trade.Version,
		e.Trade.RequestID,
		e.Trade.CounterPartyID,
		e.Trade.BookID,
		e.Trade.MaturityDate,
		e.Trade.CreatedDate,
		string(e.Trade.ExpiredFlag),
		e.ReceivedAt,
	)
	track("event_record", start, err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("record candidate event: %w", err)
	}
	return nil
}

// Get retrieves the journal row for a key. Returns ErrNotFound if absent.
func (s *EventStore) Get(ctx context.Context, key domain.EventKey) (*domain.CandidateEvent, error) {
	query := `
		SELECT seq, trade_id, version, request_id, counter_party_id, book_id,
		       maturity_date, created_date, expired_flag, received_at,
		       outcome, reason, processed_at
		FROM trade_events
		WHERE trade_id = $1 AND version = $2 AND request_id = $3
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, key.TradeID, key.Version, key.RequestID)
	e, err := scanEvent(row)
	track("event_get", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get candidate event: %w", err)
	}
	return e, nil
}

// MarkProcessed stamps outcome, reason and processing time on a row.
// Returns ErrNotFound if the key was never recorded.
func (s *EventStore) MarkProcessed(ctx context.Context, key domain.EventKey, outcome domain.OutcomeStatus, reason string, at time.Time) error {
	query := `
		UPDATE trade_events
		SET outcome = $4, reason = $5, processed_at = $6
		WHERE trade_id = $1 AND version = $2 AND request_id = $3
	`

	start := time.Now()
	tag, err := s.pool.Exec(ctx, query,
		key.TradeID, key.Version, key.RequestID,
		string(outcome), reason, at,
	)
	track("event_mark_processed", start, err)
	if err != nil {
		return fmt.Errorf("mark candidate event processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves events with seq > afterSeq in receipt order, up to limit rows.
func (s *EventStore) List(ctx context.Context, afterSeq int64, limit int) ([]*domain.CandidateEvent, error) {
	query := `
		SELECT seq, trade_id, version, request_id, counter_party_id, book_id,
		       maturity_date, created_date, expired_flag, received_at,
		       outcome, reason, processed_at
		FROM trade_events
		WHERE seq > $1
		ORDER BY seq ASC
		LIMIT $2
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, afterSeq, limit)
	track("event_list", start, err)
	if err != nil {
		return nil, fmt.Errorf("list candidate events: %w", err)
	}
	defer rows.Close()

	var events []*domain.CandidateEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate event rows: %w", err)
	}
	return events, nil
}

// scanEvent scans a single row into a CandidateEvent.
func scanEvent(row pgx.Row) (*domain.CandidateEvent, error) {
	var e domain.CandidateEvent
	var flagStr string
	var outcome, reason *string

	err := row.Scan(
		&e.Seq,
		&e.Trade.TradeID,
		&e.Trade.Version,
		&e.Trade.RequestID,
		&e.Trade.CounterPartyID,
		&e.Trade.BookID,
		&e.Trade.MaturityDate,
		&e.Trade.CreatedDate,
		&flagStr,
		&e.ReceivedAt,
		&outcome,
		&reason,
		&e.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Trade.ExpiredFlag = domain.ExpiryStatus(flagStr)
	if outcome != nil {
		e.Outcome = domain.OutcomeStatus(*outcome)
	}
	if reason != nil {
		e.Reason = *reason
	}
	return &e, nil
}
