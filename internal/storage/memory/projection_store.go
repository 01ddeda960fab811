package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// ProjectionStore is an in-memory implementation of storage.TradeProjectionStore.
type ProjectionStore struct {
	mu   sync.RWMutex
	data map[string]map[int]*domain.Trade // trade_id -> version -> row
}

// NewProjectionStore creates a new in-memory projection store.
func NewProjectionStore() *ProjectionStore {
	return &ProjectionStore{
		data: make(map[string]map[int]*domain.Trade),
	}
}

// Upsert inserts the candidate or overwrites the non-key attributes of an
// existing (trade_id, version) row. Never touches other versions.
func (s *ProjectionStore) Upsert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.TradeID == "" || t.Version < 1 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions, exists := s.data[t.TradeID]
	if !exists {
		versions = make(map[int]*domain.Trade)
		s.data[t.TradeID] = versions
	}
	versions[t.Version] = t.Clone()
	return nil
}

// LatestVersion returns max(version) for a trade. Returns ErrNotFound when
// no version was ever accepted.
func (s *ProjectionStore) LatestVersion(_ context.Context, tradeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, exists := s.data[tradeID]
	if !exists || len(versions) == 0 {
		return 0, storage.ErrNotFound
	}

	latest := 0
	for v := range versions {
		if v > latest {
			latest = v
		}
	}
	return latest, nil
}

// Get retrieves one projected row. Returns ErrNotFound if not exists.
func (s *ProjectionStore) Get(_ context.Context, tradeID string, version int) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID][version]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// GetByTradeID retrieves all accepted versions of a trade, version ASC.
func (s *ProjectionStore) GetByTradeID(_ context.Context, tradeID string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data[tradeID] {
		result = append(result, t.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})

	return result, nil
}

// Latest retrieves the highest-version row. Returns ErrNotFound if none.
func (s *ProjectionStore) Latest(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Trade
	for _, t := range s.data[tradeID] {
		if latest == nil || t.Version > latest.Version {
			latest = t
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest.Clone(), nil
}

// ExpireDue transitions every ACTIVE row with maturity_date < today to
// EXPIRED and returns the number of rows transitioned.
func (s *ProjectionStore) ExpireDue(_ context.Context, today time.Time) (int64, error) {
	day := domain.ToDate(today)

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, versions := range s.data {
		for _, t := range versions {
			if t.ExpiredFlag != domain.StatusActive || t.MaturityDate == nil {
				continue
			}
			if t.MaturityDate.Before(day) {
				t.ExpiredFlag = domain.StatusExpired
				count++
			}
		}
	}
	return count, nil
}

// Stats returns row counts for status and reporting surfaces.
func (s *ProjectionStore) Stats(_ context.Context) (*storage.ProjectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.ProjectionStats{}
	for _, versions := range s.data {
		if len(versions) == 0 {
			continue
		}
		stats.Trades++
		for _, t := range versions {
			stats.Rows++
			if t.ExpiredFlag == domain.StatusExpired {
				stats.Expired++
			} else {
				stats.Active++
			}
		}
	}
	return stats, nil
}

var _ storage.TradeProjectionStore = (*ProjectionStore)(nil)
