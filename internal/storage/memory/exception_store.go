package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// ExceptionStore is an in-memory implementation of storage.ExceptionStore.
type ExceptionStore struct {
	mu     sync.RWMutex
	data   []*domain.ExceptionRecord
	seen   map[domain.EventKey]struct{}
	nextID int64
}

// NewExceptionStore creates a new in-memory exception store.
func NewExceptionStore() *ExceptionStore {
	return &ExceptionStore{
		seen: make(map[domain.EventKey]struct{}),
	}
}

// Append adds a rejection record. A duplicate (trade_id, version,
// request_id) triple is absorbed silently; everything else inserts.
func (s *ExceptionStore) Append(_ context.Context, rec *domain.ExceptionRecord) error {
	if rec == nil || rec.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.EventKey{TradeID: rec.TradeID, Version: rec.Version, RequestID: rec.RequestID}
	if _, exists := s.seen[key]; exists {
		return nil
	}
	s.seen[key] = struct{}{}

	s.nextID++
	c := rec.Clone()
	c.ID = s.nextID
	s.data = append(s.data, c)
	return nil
}

// GetByTradeID retrieves all rejections for a trade, recorded_at ASC.
func (s *ExceptionStore) GetByTradeID(_ context.Context, tradeID string) ([]*domain.ExceptionRecord, error) {
	return s.filter(func(r *domain.ExceptionRecord) bool {
		return r.TradeID == tradeID
	}), nil
}

// GetByRequestID retrieves rejections whose request id starts with the
// given prefix, recorded_at ASC.
func (s *ExceptionStore) GetByRequestID(_ context.Context, requestIDPrefix string) ([]*domain.ExceptionRecord, error) {
	return s.filter(func(r *domain.ExceptionRecord) bool {
		return strings.HasPrefix(r.RequestID, requestIDPrefix)
	}), nil
}

// GetByTimeRange retrieves rejections recorded within [start, end].
func (s *ExceptionStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.ExceptionRecord, error) {
	return s.filter(func(r *domain.ExceptionRecord) bool {
		return !r.RecordedAt.Before(start) && !r.RecordedAt.After(end)
	}), nil
}

// Count returns the total number of records.
func (s *ExceptionStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data)), nil
}

func (s *ExceptionStore) filter(match func(*domain.ExceptionRecord) bool) []*domain.ExceptionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExceptionRecord
	for _, r := range s.data {
		if match(r) {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RecordedAt.Equal(result[j].RecordedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})

	return result
}

var _ storage.ExceptionStore = (*ExceptionStore)(nil)
