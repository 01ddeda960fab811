package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// ProjectionStore implements storage.TradeProjectionStore using PostgreSQL.
type ProjectionStore struct {
	pool *Pool
}

// NewProjectionStore creates a new ProjectionStore.
func NewProjectionStore(pool *Pool) *ProjectionStore {
	return &ProjectionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeProjectionStore = (*ProjectionStore)(nil)

// Upsert inserts the accepted candidate or overwrites the non-key attributes
// of an existing (trade_id, version) row.
func (s *ProjectionStore) Upsert(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trade_projections (
			trade_id, version, counter_party_id, book_id,
			maturity_date, created_date, expired_flag, request_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trade_id, version) DO UPDATE SET
			counter_party_id = EXCLUDED.counter_party_id,
			book_id          = EXCLUDED.book_id,
			maturity_date    = EXCLUDED.maturity_date,
			created_date     = EXCLUDED.created_date,
			expired_flag     = EXCLUDED.expired_flag,
			request_id       = EXCLUDED.request_id,
			updated_at       = now()
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		t.TradeID,
		t.Version,
		t.CounterPartyID,
		t.BookID,
		t.MaturityDate,
		t.CreatedDate,
		string(t.ExpiredFlag),
		t.RequestID,
	)
	track("projection_upsert", start, err)
	if err != nil {
		return fmt.Errorf("upsert trade projection: %w", err)
	}
	return nil
}

// LatestVersion returns max(version) for a trade. Returns ErrNotFound when
// no version was ever accepted.
func (s *ProjectionStore) LatestVersion(ctx context.Context, tradeID string) (int, error) {
	query := `
		SELECT version
		FROM trade_projections
		WHERE trade_id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	start := time.Now()
	var version int
	err := s.pool.QueryRow(ctx, query, tradeID).Scan(&version)
	track("projection_latest_version", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get latest version: %w", err)
	}
	return version, nil
}

// Get retrieves one projected row. Returns ErrNotFound if not exists.
func (s *ProjectionStore) Get(ctx context.Context, tradeID string, version int) (*domain.Trade, error) {
	query := `
		SELECT trade_id, version, counter_party_id, book_id,
		       maturity_date, created_date, expired_flag, request_id
		FROM trade_projections
		WHERE trade_id = $1 AND version = $2
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, tradeID, version)
	t, err := scanTrade(row)
	track("projection_get", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade projection: %w", err)
	}
	return t, nil
}

// GetByTradeID retrieves all accepted versions of a trade, version ASC.
func (s *ProjectionStore) GetByTradeID(ctx context.Context, tradeID string) ([]*domain.Trade, error) {
	query := `
		SELECT trade_id, version, counter_party_id, book_id,
		       maturity_date, created_date, expired_flag, request_id
		FROM trade_projections
		WHERE trade_id = $1
		ORDER BY version ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, tradeID)
	track("projection_history", start, err)
	if err != nil {
		return nil, fmt.Errorf("get trade projections by trade id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// Latest retrieves the highest-version row. Returns ErrNotFound if none.
func (s *ProjectionStore) Latest(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `
		SELECT trade_id, version, counter_party_id, book_id,
		       maturity_date, created_date, expired_flag, request_id
		FROM trade_projections
		WHERE trade_id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	track("projection_latest", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest trade projection: %w", err)
	}
	return t, nil
}

// ExpireDue transitions every ACTIVE row with maturity_date < today to
// EXPIRED and returns the number of rows transitioned. The single UPDATE
// keeps concurrent sweeps from double counting.
func (s *ProjectionStore) ExpireDue(ctx context.Context, today time.Time) (int64, error) {
	query := `
		UPDATE trade_projections
		SET expired_flag = $1, updated_at = now()
		WHERE expired_flag = $2
		  AND maturity_date IS NOT NULL
		  AND maturity_date < $3
	`

	start := time.Now()
	tag, err := s.pool.Exec(ctx, query,
		string(domain.StatusExpired),
		string(domain.StatusActive),
		domain.ToDate(today),
	)
	track("projection_expire_due", start, err)
	if err != nil {
		return 0, fmt.Errorf("expire due projections: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats returns row counts for status and reporting surfaces.
func (s *ProjectionStore) Stats(ctx context.Context) (*storage.ProjectionStats, error) {
	query := `
		SELECT COUNT(DISTINCT trade_id),
		       COUNT(*),
		       COUNT(*) FILTER (WHERE expired_flag = $1),
		       COUNT(*) FILTER (WHERE expired_flag = $2)
		FROM trade_projections
	`

	start := time.Now()
	var stats storage.ProjectionStats
	err := s.pool.QueryRow(ctx, query,
		string(domain.StatusActive),
		string(domain.StatusExpired),
	).Scan(&stats.Trades, &stats.Rows, &stats.Active, &stats.Expired)
	track("projection_stats", start, err)
	if err != nil {
		return nil, fmt.Errorf("get projection stats: %w", err)
	}
	return &stats, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var flagStr string

	err := row.Scan(
		&t.TradeID,
		&t.Version,
		&t.CounterPartyID,
		&t.BookID,
		&t.MaturityDate,
		&t.CreatedDate,
		&flagStr,
		&t.RequestID,
	)
	if err != nil {
		return nil, err
	}

	t.ExpiredFlag = domain.ExpiryStatus(flagStr)
	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var t domain.Trade
		var flagStr string

		err := rows.Scan(
			&t.TradeID,
			&t.Version,
			&t.CounterPartyID,
			&t.BookID,
			&t.MaturityDate,
			&t.CreatedDate,
			&flagStr,
			&t.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade projection row: %w", err)
		}

		t.ExpiredFlag = domain.ExpiryStatus(flagStr)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade projection rows: %w", err)
	}

	return trades, nil
}
