// Package verification implements consistency checks across the candidate
// journal, the projection store and the exception store. It verifies that
// every recorded outcome left the matching footprint in the queryable stores.
package verification

import (
	"context"
	"fmt"
)

// Check names attached to findings.
const (
	CheckUnprocessed        = "unprocessed"
	CheckAcceptedProjection = "accepted-projection"
	CheckRejectedException  = "rejected-exception"
	CheckActiveMaturity     = "active-maturity"
	CheckOrphanException    = "orphan-exception"
)

// Finding represents one disagreement between the journal and a store.
type Finding struct {
	Check     string // which check flagged it
	TradeID   string
	Version   int
	RequestID string
	Detail    string
}

// String renders the finding for logs and report output.
func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s/%d/%s: %s", f.Check, f.TradeID, f.Version, f.RequestID, f.Detail)
}

// Report contains the result of a full verification pass.
type Report struct {
	CheckedEvents     int // journal rows walked
	CheckedExceptions int // exception rows cross-checked
	Findings          []Finding
}

// Clean reports whether verification found no disagreements.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// Verifier checks stored state for consistency.
type Verifier interface {
	// VerifyAll walks the whole journal and cross-checks the projection
	// and exception stores against every recorded outcome.
	VerifyAll(ctx context.Context) (*Report, error)
}
