package course

import "time"

// Dates in a course are civil dates. They are represented as time.Time
// values pinned to midnight UTC so that equality and map keys behave.

const dateLayout = "2006-01-02"

// Date builds a civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NormalizeDate strips the clock and zone from t, keeping the calendar day.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a strict YYYY-MM-DD value.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// FormatDate renders a civil date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// MonthDay designates a recurring day of the year, e.g. the start of a
// business year. The zero value means January 1st has not been overridden.
type MonthDay struct {
	Month time.Month
	Day   int
}

// JanuaryFirst is the default year start.
var JanuaryFirst = MonthDay{Month: time.January, Day: 1}

// In returns the MonthDay within the given calendar year.
func (md MonthDay) In(year int) time.Time {
	return Date(year, md.Month, md.Day)
}

func (md MonthDay) isZero() bool {
	return md.Month == 0 && md.Day == 0
}
