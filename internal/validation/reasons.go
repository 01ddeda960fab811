package validation

import (
	"fmt"
	"time"

	"tradestream/internal/domain"
)

// Rejection reason strings. These are persisted on exception records and
// surfaced to operators, so the format encodes the failed rule and the
// compared values.

// ReasonMissingMaturity marks a candidate with no maturity date.
const ReasonMissingMaturity = "missing maturity date"

// ReasonMaturityInPast renders the maturity-in-past rejection.
func ReasonMaturityInPast(maturity time.Time) string {
	return fmt.Sprintf("maturity date in past: %s", domain.FormatDate(maturity))
}

// ReasonLowerVersion renders the version-conflict rejection.
func ReasonLowerVersion(candidate, latest int) string {
	return fmt.Sprintf("lower version received: %d < %d", candidate, latest)
}
