package domain

// ExpiryStatus is the lifecycle flag of a projected trade.
// The only legal transition is ACTIVE -> EXPIRED.
type ExpiryStatus string

const (
	StatusActive  ExpiryStatus = "ACTIVE"
	StatusExpired ExpiryStatus = "EXPIRED"
)

// String returns the string representation of ExpiryStatus.
func (s ExpiryStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s ExpiryStatus) IsValid() bool {
	return s == StatusActive || s == StatusExpired
}

// OutcomeStatus is the terminal decision for a processed candidate.
type OutcomeStatus string

const (
	OutcomeAccepted OutcomeStatus = "ACCEPTED"
	OutcomeRejected OutcomeStatus = "REJECTED"
)

// String returns the string representation of OutcomeStatus.
func (s OutcomeStatus) String() string {
	return string(s)
}

// IsValid checks if the outcome is a valid value.
func (s OutcomeStatus) IsValid() bool {
	return s == OutcomeAccepted || s == OutcomeRejected
}
