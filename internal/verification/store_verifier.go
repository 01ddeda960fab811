package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradestream/internal/domain"
	"tradestream/internal/storage"
)

// listPageSize bounds one journal page during the walk.
const listPageSize = 500

// StoreVerifier implements Verifier against the configured stores.
type StoreVerifier struct {
	journal     storage.CandidateEventStore
	projections storage.TradeProjectionStore
	exceptions  storage.ExceptionStore
	now         func() time.Time
}

// Options contains the stores a StoreVerifier checks.
type Options struct {
	Journal     storage.CandidateEventStore
	Projections storage.TradeProjectionStore
	Exceptions  storage.ExceptionStore
}

// New creates a verifier over the given stores.
func New(opts Options) *StoreVerifier {
	return &StoreVerifier{
		journal:     opts.Journal,
		projections: opts.Projections,
		exceptions:  opts.Exceptions,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (v *StoreVerifier) WithClock(now func() time.Time) *StoreVerifier {
	v.now = now
	return v
}

// VerifyAll walks the whole journal in receipt order and cross-checks the
// projection and exception stores against every recorded outcome, then
// checks each exception row back against the journal.
func (v *StoreVerifier) VerifyAll(ctx context.Context) (*Report, error) {
	report := &Report{}
	today := domain.ToDate(v.now())

	var afterSeq int64
	for {
		events, err := v.journal.List(ctx, afterSeq, listPageSize)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}

		for _, e := range events {
			afterSeq = e.Seq
			report.CheckedEvents++
			if err := v.checkEvent(ctx, report, e, today); err != nil {
				return nil, err
			}
		}
	}

	if err := v.checkExceptions(ctx, report); err != nil {
		return nil, err
	}

	return report, nil
}

// checkEvent verifies that one journal row left the footprint its outcome
// requires. Store failures abort the pass; mismatches become findings.
func (v *StoreVerifier) checkEvent(ctx context.Context, report *Report, e *domain.CandidateEvent, today time.Time) error {
	key := e.Trade.Key()

	if !e.Processed() {
		report.Findings = append(report.Findings, Finding{
			Check:     CheckUnprocessed,
			TradeID:   key.TradeID,
			Version:   key.Version,
			RequestID: key.RequestID,
			Detail:    "journal row has no recorded outcome",
		})
		return nil
	}

	switch e.Outcome {
	case domain.OutcomeAccepted:
		row, err := v.projections.Get(ctx, key.TradeID, key.Version)
		if errors.Is(err, storage.ErrNotFound) {
			report.Findings = append(report.Findings, Finding{
				Check:     CheckAcceptedProjection,
				TradeID:   key.TradeID,
				Version:   key.Version,
				RequestID: key.RequestID,
				Detail:    "accepted candidate has no projection row",
			})
			return nil
		}
		if err != nil {
			return err
		}

		// Accepted rows past maturity must have been swept to EXPIRED.
		if row.ExpiredFlag == domain.StatusActive && row.MaturityDate != nil && row.MaturityDate.Before(today) {
			report.Findings = append(report.Findings, Finding{
				Check:     CheckActiveMaturity,
				TradeID:   key.TradeID,
				Version:   key.Version,
				RequestID: key.RequestID,
				Detail:    fmt.Sprintf("row still ACTIVE with maturity %s", domain.FormatDate(*row.MaturityDate)),
			})
		}

	case domain.OutcomeRejected:
		recs, err := v.exceptions.GetByTradeID(ctx, key.TradeID)
		if err != nil {
			return err
		}
		if !hasException(recs, key) {
			report.Findings = append(report.Findings, Finding{
				Check:     CheckRejectedException,
				TradeID:   key.TradeID,
				Version:   key.Version,
				RequestID: key.RequestID,
				Detail:    "rejected candidate has no exception record",
			})
		}
	}

	return nil
}

// checkExceptions verifies that every exception row traces back to a
// journal row that was actually rejected.
func (v *StoreVerifier) checkExceptions(ctx context.Context, report *Report) error {
	recs, err := v.exceptions.GetByTimeRange(ctx, time.Time{}, v.now())
	if err != nil {
		return err
	}

	for _, rec := range recs {
		report.CheckedExceptions++
		key := domain.EventKey{TradeID: rec.TradeID, Version: rec.Version, RequestID: rec.RequestID}

		e, err := v.journal.Get(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			report.Findings = append(report.Findings, Finding{
				Check:     CheckOrphanException,
				TradeID:   key.TradeID,
				Version:   key.Version,
				RequestID: key.RequestID,
				Detail:    "exception record has no journal row",
			})
			continue
		}
		if err != nil {
			return err
		}
		if e.Outcome != domain.OutcomeRejected {
			report.Findings = append(report.Findings, Finding{
				Check:     CheckOrphanException,
				TradeID:   key.TradeID,
				Version:   key.Version,
				RequestID: key.RequestID,
				Detail:    fmt.Sprintf("exception recorded but journal outcome is %q", e.Outcome),
			})
		}
	}

	return nil
}

// hasException reports whether recs (already filtered by trade id) holds a
// record for the full event triple.
func hasException(recs []*domain.ExceptionRecord, key domain.EventKey) bool {
	for _, r := range recs {
		if r.Version == key.Version && r.RequestID == key.RequestID {
			return true
		}
	}
	return false
}

var _ Verifier = (*StoreVerifier)(nil)
