package clock

import (
	"errors"
	"strings"
	"time"
)

// PeriodLayout is the wire and storage form of a billing period (first day of month).
const PeriodLayout = "2006-01-02"

var ErrInvalidPeriod = errors.New("invalid_period")

// ParsePeriod accepts only YYYY-MM-01 and returns the UTC month start.
func ParsePeriod(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(PeriodLayout) {
		return time.Time{}, ErrInvalidPeriod
	}
	t, err := time.ParseInLocation(PeriodLayout, raw, time.UTC)
	if err != nil || t.Day() != 1 {
		return time.Time{}, ErrInvalidPeriod
	}
	return t, nil
}

// FormatPeriod renders a period as YYYY-MM-01.
func FormatPeriod(period time.Time) string {
	return MonthStart(period).Format(PeriodLayout)
}

// MonthStart truncates t to the first instant of its UTC month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ResolvePeriod parses raw, or falls back to the previous month relative to c.
func ResolvePeriod(c Clock, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		if c == nil {
			c = SystemClock{}
		}
		return PreviousMonthStart(c.Now()), nil
	}
	return ParsePeriod(raw)
}
