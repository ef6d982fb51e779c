package report

import (
	"errors"
	"fmt"
	"time"
)

const (
	isoDateLayout = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

var errDateShape = errors.New("want YYYY-MM-DD")

// MalformedDateError reports a created_at value that is not a valid
// YYYY-MM-DD calendar date.
type MalformedDateError struct {
	TicketID int64
	Value    string
	Err      error
}

func (e *MalformedDateError) Error() string {
	if e == nil {
		return ""
	}
	if e.TicketID != 0 {
		return fmt.Sprintf("ticket %d: malformed created_at %q: %v", e.TicketID, e.Value, e.Err)
	}
	return fmt.Sprintf("malformed created_at %q: %v", e.Value, e.Err)
}

func (e *MalformedDateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseDate accepts exactly YYYY-MM-DD with in-range month and day (leap
// years honored). The result is midnight UTC.
func ParseDate(value string) (time.Time, error) {
	if len(value) != len(isoDateLayout) || value[4] != '-' || value[7] != '-' {
		return time.Time{}, &MalformedDateError{Value: value, Err: errDateShape}
	}
	for i := 0; i < len(value); i++ {
		if i == 4 || i == 7 {
			continue
		}
		if value[i] < '0' || value[i] > '9' {
			return time.Time{}, &MalformedDateError{Value: value, Err: errDateShape}
		}
	}

	// time.Parse rejects out-of-range months and days, including Feb 29 in
	// non-leap years.
	parsed, err := time.Parse(isoDateLayout, value)
	if err != nil {
		return time.Time{}, &MalformedDateError{Value: value, Err: err}
	}
	return parsed, nil
}

// DaysBetween returns the number of whole calendar days from from to to. It
// is negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	// Unix seconds rather than Sub: a time.Duration saturates past ~292 years.
	return int((end.Unix() - start.Unix()) / secondsPerDay)
}
