package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeAuditStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data []*domain.OutcomeRecord
}

// NewOutcomeStore creates a new in-memory outcome audit store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{}
}

// Append adds audit rows for processed candidates.
func (s *OutcomeStore) Append(_ context.Context, records []*domain.OutcomeRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r == nil || r.TradeID == "" {
			return storage.ErrInvalidInput
		}
		c := *r
		if r.MaturityDate != nil {
			m := *r.MaturityDate
			c.MaturityDate = &m
		}
		s.data = append(s.data, &c)
	}
	return nil
}

// CountByOutcome returns totals per outcome within [start, end].
func (s *OutcomeStore) CountByOutcome(_ context.Context, start, end time.Time) (map[domain.OutcomeStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.OutcomeStatus]int64)
	for _, r := range s.data {
		if inRange(r.OccurredAt, start, end) {
			counts[r.Outcome]++
		}
	}
	return counts, nil
}

// TopReasons returns rejection reasons ranked by frequency within [start, end].
func (s *OutcomeStore) TopReasons(_ context.Context, start, end time.Time, limit int) ([]storage.ReasonCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, r := range s.data {
		if r.Outcome == domain.OutcomeRejected && inRange(r.OccurredAt, start, end) {
			counts[r.Reason]++
		}
	}

	result := make([]storage.ReasonCount, 0, len(counts))
	for reason, n := range counts {
		result = append(result, storage.ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count == result[j].Count {
			return result[i].Reason < result[j].Reason
		}
		return result[i].Count > result[j].Count
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DailyActivity returns per-day accepted/rejected counts within [start, end].
func (s *OutcomeStore) DailyActivity(_ context.Context, start, end time.Time) ([]storage.DayActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[time.Time]*storage.DayActivity)
	for _, r := range s.data {
		if !inRange(r.OccurredAt, start, end) {
			continue
		}
		day := domain.ToDate(r.OccurredAt)
		a, exists := byDay[day]
		if !exists {
			a = &storage.DayActivity{Day: day}
			byDay[day] = a
		}
		switch r.Outcome {
		case domain.OutcomeAccepted:
			a.Accepted++
		case domain.OutcomeRejected:
			a.Rejected++
		}
	}

	result := make([]storage.DayActivity, 0, len(byDay))
	for _, a := range byDay {
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Day.Before(result[j].Day)
	})
	return result, nil
}

// BusiestBooks returns books ranked by processed candidates within [start, end].
func (s *OutcomeStore) BusiestBooks(_ context.Context, start, end time.Time, limit int) ([]storage.BookCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, r := range s.data {
		if inRange(r.OccurredAt, start, end) {
			counts[r.BookID]++
		}
	}

	result := make([]storage.BookCount, 0, len(counts))
	for book, n := range counts {
		result = append(result, storage.BookCount{BookID: book, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count == result[j].Count {
			return result[i].BookID < result[j].BookID
		}
		return result[i].Count > result[j].Count
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

var _ storage.OutcomeAuditStore = (*OutcomeStore)(nil)
