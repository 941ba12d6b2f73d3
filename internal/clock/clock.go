package clock

import "time"

// Clock abstracts wall time so period defaults and transfer timestamps are testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// PreviousMonthStart returns the first day of the calendar month before now, in UTC.
func PreviousMonthStart(now time.Time) time.Time {
	return MonthStart(now).AddDate(0, -1, 0)
}
