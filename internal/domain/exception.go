package domain

import "time"

// ExceptionRecord is the persisted snapshot of a rejected candidate.
// Append-only: never mutated or deleted in the normal path. Duplicate
// delivery of the same (TradeID, Version, RequestID) is absorbed by the
// store, everything else always adds a row.
type ExceptionRecord struct {
	ID             int64 // surrogate, assigned by the store
	TradeID        string
	Version        int
	CounterPartyID string
	BookID         string
	MaturityDate   *time.Time
	CreatedDate    time.Time
	ExpiredFlag    ExpiryStatus
	RequestID      string
	Reason         string // failed rule plus the compared values
	RecordedAt     time.Time
}

// NewExceptionRecord snapshots a rejected candidate with its reason.
func NewExceptionRecord(t *Trade, reason string, at time.Time) *ExceptionRecord {
	rec := &ExceptionRecord{
		TradeID:        t.TradeID,
		Version:        t.Version,
		CounterPartyID: t.CounterPartyID,
		BookID:         t.BookID,
		CreatedDate:    t.CreatedDate,
		ExpiredFlag:    t.ExpiredFlag,
		RequestID:      t.RequestID,
		Reason:         reason,
		RecordedAt:     at,
	}
	if t.MaturityDate != nil {
		m := *t.MaturityDate
		rec.MaturityDate = &m
	}
	return rec
}

// Clone returns a deep copy safe to hand across store boundaries.
func (r *ExceptionRecord) Clone() *ExceptionRecord {
	c := *r
	if r.MaturityDate != nil {
		m := *r.MaturityDate
		c.MaturityDate = &m
	}
	return &c
}
