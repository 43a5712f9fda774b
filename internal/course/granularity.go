package course

import (
	"fmt"
	"strconv"
	"time"
)

// Granularity is the unit at which a course is split into discrete
// digitization processes. Each value carries its own period-key function;
// individual issues sharing a key end up in the same process.
type Granularity string

const (
	GranularityIssues   Granularity = "issues"
	GranularityDays     Granularity = "days"
	GranularityWeeks    Granularity = "weeks"
	GranularityMonths   Granularity = "months"
	GranularityQuarters Granularity = "quarters"
	GranularityYears    Granularity = "years"
)

// Granularities lists all splitting units in ascending coarseness.
func Granularities() []Granularity {
	return []Granularity{
		GranularityIssues,
		GranularityDays,
		GranularityWeeks,
		GranularityMonths,
		GranularityQuarters,
		GranularityYears,
	}
}

// ParseGranularity converts a request string into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(s)
	switch g {
	case GranularityIssues, GranularityDays, GranularityWeeks,
		GranularityMonths, GranularityQuarters, GranularityYears:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// PeriodKey returns the identifier of the period the date belongs to.
// Issues with equal keys are grouped into one process. For GranularityIssues
// the key is empty; every individual issue forms its own process.
func (g Granularity) PeriodKey(date time.Time, yearStart MonthDay) string {
	d := NormalizeDate(date)
	switch g {
	case GranularityIssues:
		return ""
	case GranularityDays:
		return FormatDate(d)
	case GranularityWeeks:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GranularityMonths:
		return d.Format("2006-01")
	case GranularityQuarters:
		quarter := (int(d.Month())-1)/3 + 1
		return fmt.Sprintf("%04d-Q%d", d.Year(), quarter)
	case GranularityYears:
		return strconv.Itoa(businessYear(d, yearStart))
	}
	return FormatDate(d)
}

// businessYear returns the year in which the business year containing the
// date begins. With the default January 1st start this is the calendar year.
func businessYear(d time.Time, yearStart MonthDay) int {
	if yearStart.isZero() {
		yearStart = JanuaryFirst
	}
	if d.Before(yearStart.In(d.Year())) {
		return d.Year() - 1
	}
	return d.Year()
}
