package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// EventStore is an in-memory implementation of storage.CandidateEventStore.
type EventStore struct {
	mu      sync.RWMutex
	data    map[domain.EventKey]*domain.CandidateEvent
	nextSeq int64
}

// NewEventStore creates a new in-memory candidate event store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[domain.EventKey]*domain.CandidateEvent),
	}
}

// Record appends a received candidate. Returns ErrDuplicateKey if the
// (trade_id, version, request_id) triple was already recorded.
func (s *EventStore) Record(_ context.Context, e *domain.CandidateEvent) error {
	if e == nil || e.Trade.TradeID == "" || e.Trade.Version < 1 || e.Trade.RequestID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.Trade.Key()
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextSeq++
	c := e.Clone()
	c.Seq = s.nextSeq
	s.data[key] = c
	return nil
}

// Get retrieves the journal row for a key. Returns ErrNotFound if absent.
func (s *EventStore) Get(_ context.Context, key domain.EventKey) (*domain.CandidateEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

// MarkProcessed stamps outcome, reason and processing time on a row.
// Returns ErrNotFound if the key was never recorded.
func (s *EventStore) MarkProcessed(_ context.Context, key domain.EventKey, outcome domain.OutcomeStatus, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[key]
	if !exists {
		return storage.ErrNotFound
	}

	e.Outcome = outcome
	e.Reason = reason
	p := at
	e.ProcessedAt = &p
	return nil
}

// List retrieves events with seq > afterSeq in receipt order, up to limit rows.
func (s *EventStore) List(_ context.Context, afterSeq int64, limit int) ([]*domain.CandidateEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CandidateEvent
	for _, e := range s.data {
		if e.Seq > afterSeq {
			result = append(result, e.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.CandidateEventStore = (*EventStore)(nil)
