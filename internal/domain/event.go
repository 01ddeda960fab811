package domain

import (
	"fmt"
	"time"
)

// EventKey identifies one delivery of one candidate. The same trade
// version resubmitted under a new request id is a new event; the same
// triple redelivered is a duplicate.
type EventKey struct {
	TradeID   string
	Version   int
	RequestID string
}

// String renders the key for logs.
func (k EventKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.TradeID, k.Version, k.RequestID)
}

// CandidateEvent is a journal row: the received candidate plus its
// processing state. Keyed by the event triple; Seq reflects receipt
// order and drives replay.
type CandidateEvent struct {
	Seq         int64 // receipt order, assigned by the store
	Trade       Trade
	ReceivedAt  time.Time
	Outcome     OutcomeStatus // empty until processed
	Reason      string
	ProcessedAt *time.Time
}

// Processed reports whether the event has a recorded outcome.
func (e *CandidateEvent) Processed() bool {
	return e.ProcessedAt != nil
}

// Clone returns a deep copy safe to hand across store boundaries.
func (e *CandidateEvent) Clone() *CandidateEvent {
	c := *e
	c.Trade = *e.Trade.Clone()
	if e.ProcessedAt != nil {
		p := *e.ProcessedAt
		c.ProcessedAt = &p
	}
	return &c
}

// OutcomeRecord is one row of the append-only validation audit stream.
// Loss-tolerant by contract: an append failure is logged, never fails
// candidate processing.
type OutcomeRecord struct {
	OccurredAt     time.Time
	TradeID        string
	Version        int
	RequestID      string
	Outcome        OutcomeStatus
	Reason         string
	BookID         string
	CounterPartyID string
	MaturityDate   *time.Time
}

// NewOutcomeRecord builds an audit row from a processed candidate.
func NewOutcomeRecord(t *Trade, outcome OutcomeStatus, reason string, at time.Time) *OutcomeRecord {
	rec := &OutcomeRecord{
		OccurredAt:     at,
		TradeID:        t.TradeID,
		Version:        t.Version,
		RequestID:      t.RequestID,
		Outcome:        outcome,
		Reason:         reason,
		BookID:         t.BookID,
		CounterPartyID: t.CounterPartyID,
	}
	if t.MaturityDate != nil {
		m := *t.MaturityDate
		rec.MaturityDate = &m
	}
	return rec
}
