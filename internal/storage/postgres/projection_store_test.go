package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// createTestTrade builds a trade maturing maturityDays from today (UTC).
func createTestTrade(tradeID string, version, maturityDays int) *domain.Trade {
	maturity := domain.Today().AddDate(0, 0, maturityDays)
	return &domain.Trade{
		TradeID:        tradeID,
		Version:        version,
		CounterPartyID: "CP-1",
		BookID:         "B1",
		MaturityDate:   &maturity,
		CreatedDate:    time.Now().UTC(),
		ExpiredFlag:    domain.StatusActive,
		RequestID:      "req-" + tradeID,
	}
}

func TestProjectionStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProjectionStore(pool)

	trade := createTestTrade("T-100", 1, 30)
	require.NoError(t, store.Upsert(ctx, trade))

	retrieved, err := store.Get(ctx, "T-100", 1)
	require.NoError(t, err)

	assert.Equal(t, trade.TradeID, retrieved.TradeID)
	assert.Equal(t, trade.Version, retrieved.Version)
	assert.Equal(t, trade.CounterPartyID, retrieved.CounterPartyID)
	assert.Equal(t, trade.BookID, retrieved.BookID)
	require.NotNil(t, retrieved.MaturityDate)
	assert.True(t, retrieved.MaturityDate.Equal(*trade.MaturityDate),
		"maturity date mismatch: %v != %v", retrieved.MaturityDate, trade.MaturityDate)
	assert.WithinDuration(t, trade.CreatedDate, retrieved.CreatedDate, time.Second)
	assert.Equal(t, domain.StatusActive, retrieved.ExpiredFlag)
	assert.Equal(t, trade.RequestID, retrieved.RequestID)
}

func TestProjectionStore_UpsertReplacesInPlace(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProjectionStore(pool)

	require.NoError(t, store.Upsert(ctx, createTestTrade("T-200", 1, 30)))

	replacement := createTestTrade("T-200", 1, 60)
	replacement.BookID = "B2"
	replacement.CounterPartyID = "CP-2"
	require.NoError(t, store.Upsert(ctx, replacement))

	retrieved, err := store.Get(ctx, "T-200", 1)
	require.NoError(t, err)
	assert.Equal(t, "B2", retrieved.BookID)
	assert.Equal(t, "CP-2", retrieved.CounterPartyID)
	assert.True(t, retrieved.MaturityDate.Equal(*replacement.MaturityDate))

	history, err := store.GetByTradeID(ctx, "T-200")
	require.NoError(t, err)
	assert.Len(t, history, 1, "replacement must not add a row")
}

func TestProjectionStore_LatestVersion(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProjectionStore(pool)

	_, err := store.LatestVersion(ctx, "T-300")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Upsert(ctx, createTestTrade("T-300", 1, 30)))
	require.NoError(t, store.Upsert(ctx, createTestTrade("T-300", 3, 30)))

	version, err := store.LatestVersion(ctx, "T-300")
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	latest, err := store.Latest(ctx, "T-300")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)

	_, err = store.Latest(ctx, "T-999")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProjectionStore_HistoryOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProjectionStore(pool)

	// Insert out of order, read back version ASC.
	for _, v := range []int{2, 1, 3} {
		require.NoError(t, store.Upsert(ctx, createTestTrade("T-400", v, 30)))
	}

	history, err := store.GetByTradeID(ctx, "T-400")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, trade := range history {
		assert.Equal(t, i+1, trade.Version)
	}
}

func TestProjectionStore_ExpireDue(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProjectionStore(pool)
	today := domain.Today()

	require.NoError(t, store.Upsert(ctx, createTestTrade("T-500", 1, -1))) // matured yesterday
	require.NoError(t, store.Upsert(ctx, createTestTrade("T-501", 1, 0))) // matures today
	require.NoError(t, store.Upsert(ctx, createTestTrade("T-502", 1, 7))) // future

	alreadyExpired := createTestTrade("T-503", 1, -10)
	alreadyExpired.ExpiredFlag = domain.StatusExpired
	require.NoError(t, store.Upsert(ctx, alreadyExpired))

	expired, err := store.ExpireDue(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	tests := []struct {
		tradeID string
		want    domain.ExpiryStatus
	}{
		{"T-500", domain.StatusExpired},
		{"T-501", domain.StatusActive}, // maturing today is not yet expired
		{"T-502", domain.StatusActive},
		{"T-503", domain.StatusExpired},
	}
	for _, tt := range tests {
		retrieved, err := store.Get(ctx, tt.tradeID, 1)
		require.NoError(t, err)
		assert.Equal(t, tt.want, retrieved.ExpiredFlag, "trade %s", tt.tradeID)
	}

	// Second pass finds nothing left to expire.
	expired, err = store.ExpireDue(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(0), expired)
}

func TestProjectionStore_Stats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProjectionStore(pool)

	require.NoError(t, store.Upsert(ctx, createTestTrade("T-600", 1, 30)))
	require.NoError(t, store.Upsert(ctx, createTestTrade("T-600", 2, 30)))

	expiredTrade := createTestTrade("T-601", 1, -5)
	expiredTrade.ExpiredFlag = domain.StatusExpired
	require.NoError(t, store.Upsert(ctx, expiredTrade))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Trades)
	assert.Equal(t, int64(3), stats.Rows)
	assert.Equal(t, int64(2), stats.Active)
	assert.Equal(t, int64(1), stats.Expired)
}
