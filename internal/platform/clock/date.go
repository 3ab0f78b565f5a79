package clock

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and storage layout of a calendar date.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time of day and no zone, e.g. "2026-10-15".
// The zero value is the empty string and is never a valid appointment date.
type Date string

// ParseDate validates s as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date(t.Format(DateLayout)), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Today returns the calendar day of c.Now() in the clock's location.
func Today(c Clock) Date {
	return DateOf(c.Now())
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool { return d == "" }

// String implements fmt.Stringer.
func (d Date) String() string { return string(d) }

// Before reports whether d is strictly earlier than other. YYYY-MM-DD sorts
// lexically in calendar order.
func (d Date) Before(other Date) bool { return d < other }

// Time returns midnight UTC of d, the form stored in DATE columns.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// UnmarshalJSON rejects malformed dates at the decoding boundary.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = ""
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
