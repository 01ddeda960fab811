package domain

import "time"

// DateLayout is the wire format for calendar dates (JSON bodies, reasons).
const DateLayout = "2006-01-02"

// ToDate truncates t to a UTC calendar date (midnight UTC).
// Every date comparison in the system happens on values normalized here,
// so the validator and the expiry sweep agree on what "today" means.
func ToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC calendar date.
func Today() time.Time {
	return ToDate(time.Now())
}

// ParseDate parses a yyyy-mm-dd string into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return ToDate(t), nil
}

// FormatDate renders a date as yyyy-mm-dd.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DatePtr normalizes t and returns a pointer, for nullable date fields.
func DatePtr(t time.Time) *time.Time {
	d := ToDate(t)
	return &d
}
