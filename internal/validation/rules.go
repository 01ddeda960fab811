package validation

import (
	"time"

	"tradestream/internal/domain"
)

// Result is the outcome of a business-rule check.
type Result struct {
	Valid  bool
	Reason string // set when invalid
}

// RuleValidator applies the maturity-date business rules to a candidate.
// Stateless; safe for concurrent use.
type RuleValidator struct{}

// NewRuleValidator creates a rule validator.
func NewRuleValidator() *RuleValidator {
	return &RuleValidator{}
}

// Check validates a candidate against the given calendar date.
//
// A missing maturity date is always invalid. A candidate that arrives
// already EXPIRED is a terminal-state fact: the maturity-in-past rule is
// bypassed and the candidate stored as-is. Otherwise maturity strictly
// before today is invalid. The comparison uses UTC calendar dates, the
// same normalization the expiry sweep uses.
func (v *RuleValidator) Check(t *domain.Trade, today time.Time) Result {
	if t.MaturityDate == nil {
		return Result{Reason: ReasonMissingMaturity}
	}
	if t.ExpiredFlag == domain.StatusExpired {
		return Result{Valid: true}
	}
	if t.MaturityDate.Before(domain.ToDate(today)) {
		return Result{Reason: ReasonMaturityInPast(*t.MaturityDate)}
	}
	return Result{Valid: true}
}
