// Package ics exports a course of appearance as an iCalendar feed so the
// modelled publication days can be previewed in ordinary calendar clients.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"newscal/internal/course"
)

const productID = "-//newscal//course of appearance//EN"

// ExportCourse renders one all-day VEVENT per individual issue. UIDs are
// deterministic so re-exports update rather than duplicate events in
// subscribing clients.
func ExportCourse(c *course.Course, name string) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
	}

	stamp := time.Now().UTC()
	for n, issue := range c.IndividualIssues() {
		ev := cal.AddEvent(eventUID(issue, n))
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(issue.Date)
		ev.SetAllDayEndAt(issue.Date.AddDate(0, 0, 1))
		ev.SetSummary(issue.Heading)
	}

	return []byte(cal.Serialize())
}

// eventUID builds a stable per-appearance identifier from the date, the
// issue heading, and the position within the day.
func eventUID(issue course.IndividualIssue, n int) string {
	heading := strings.ToLower(issue.Heading)
	heading = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, heading)
	return fmt.Sprintf("%s.%s.%d@newscal", course.FormatDate(issue.Date), heading, n)
}
