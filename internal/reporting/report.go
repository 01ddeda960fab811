package reporting

import (
	"time"

	"tradestream/internal/storage"
)

// Report represents the validation activity report structure.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	WindowStart time.Time
	WindowEnd   time.Time

	// Outcome Totals (within the window)
	Accepted int64
	Rejected int64

	// Rejection Reasons (ranked by frequency, then reason)
	TopReasons []storage.ReasonCount

	// Daily Activity (oldest day first)
	DailyActivity []storage.DayActivity

	// Busiest Books (ranked by processed candidates, then book id)
	BusiestBooks []storage.BookCount

	// Projection State (current, not window-scoped)
	Projection storage.ProjectionStats
	Exceptions int64
}

// Processed returns the total candidates processed within the window.
func (r *Report) Processed() int64 {
	return r.Accepted + r.Rejected
}

// AcceptanceRate returns accepted/processed, or 0 when nothing was processed.
func (r *Report) AcceptanceRate() float64 {
	total := r.Processed()
	if total == 0 {
		return 0
	}
	return float64(r.Accepted) / float64(total)
}
