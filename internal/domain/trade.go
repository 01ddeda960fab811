package domain

import (
	"fmt"
	"time"
)

// Trade is an inbound candidate update for a single trade version.
// Immutable once constructed; the same economic trade is identified by
// TradeID across any number of versions.
type Trade struct {
	TradeID        string       // identity, groups all versions
	Version        int          // >= 1, ordering basis per TradeID
	CounterPartyID string       // opaque reference, required
	BookID         string       // opaque reference, required
	MaturityDate   *time.Time   // economic end date (nil when omitted)
	CreatedDate    time.Time    // authoring date of the candidate
	ExpiredFlag    ExpiryStatus // ACTIVE unless already terminal on arrival
	RequestID      string       // correlation id assigned at the ingestion boundary
}

// Validate checks structural requirements only. Business rules (maturity,
// version ordering) are applied downstream; a failure here means the
// candidate can never be processed and retrying is pointless.
func (t *Trade) Validate() error {
	switch {
	case t.TradeID == "":
		return &MalformedCandidateError{Field: "tradeId", Detail: "empty"}
	case t.Version < 1:
		return &MalformedCandidateError{Field: "version", Detail: fmt.Sprintf("%d < 1", t.Version)}
	case t.CounterPartyID == "":
		return &MalformedCandidateError{Field: "counterPartyId", Detail: "empty"}
	case t.BookID == "":
		return &MalformedCandidateError{Field: "bookId", Detail: "empty"}
	case !t.ExpiredFlag.IsValid():
		return &MalformedCandidateError{Field: "expiredFlag", Detail: string(t.ExpiredFlag)}
	}
	return nil
}

// Key returns the event identity triple for this candidate.
func (t *Trade) Key() EventKey {
	return EventKey{TradeID: t.TradeID, Version: t.Version, RequestID: t.RequestID}
}

// Clone returns a deep copy safe to hand across store boundaries.
func (t *Trade) Clone() *Trade {
	c := *t
	if t.MaturityDate != nil {
		m := *t.MaturityDate
		c.MaturityDate = &m
	}
	return &c
}

// MalformedCandidateError marks a candidate that fails structural
// validation before any storage access. Non-retryable.
type MalformedCandidateError struct {
	Field  string
	Detail string
}

func (e *MalformedCandidateError) Error() string {
	return fmt.Sprintf("malformed candidate: %s: %s", e.Field, e.Detail)
}
