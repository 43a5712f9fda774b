package editor

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"newscal/internal/course"
	"newscal/internal/msg"
)

// flexibleDate matches date inputs in a flexible way: three runs of digits
// separated by anything non-numeric, interpreted as day, month, year.
var flexibleDate = regexp.MustCompile(`^\D*(\d+)\D+(\d+)\D+(\d+)\D*$`)

// parseFlexibleDate tries to interpret a string entered by the user as a
// date as flexibly as possible. It supports two-digit years (completed
// against the current century, never into the future) and retries with day
// and month swapped when the strict reading is no valid date. Hints about
// both interpretations are returned as messages so the user can see what
// happened to the input.
//
// field is one of msg.FieldFirstAppearance or msg.FieldLastAppearance and
// selects the per-field message keys. today is the explicit clock input.
func parseFlexibleDate(value, field string, today time.Time) (time.Time, []msg.Message, error) {
	groups := flexibleDate.FindStringSubmatch(value)
	if groups == nil {
		return time.Time{}, []msg.Message{msg.Error(msg.KeyBlockInvalid(field))},
			fmt.Errorf("%q is not a date", value)
	}

	day, _ := strconv.Atoi(groups[1])
	month, _ := strconv.Atoi(groups[2])
	year, _ := strconv.Atoi(groups[3])

	var messages []msg.Message
	if year < 100 {
		year += 100 * (today.Year() / 100)
		if year > today.Year() {
			year -= 100
		}
		messages = append(messages, msg.Info(msg.KeyBlockYearCompleted(field),
			groups[3], strconv.Itoa(year)))
	}

	if d, ok := civilDate(year, month, day); ok {
		return d, messages, nil
	}

	// Imperial field order: retry with day and month swapped.
	if d, ok := civilDate(year, day, month); ok {
		messages = append(messages, msg.Info(msg.KeyBlockSwapped(field)))
		return d, messages, nil
	}

	messages = append(messages, msg.Error(msg.KeyBlockInvalid(field)))
	return time.Time{}, messages, fmt.Errorf("%q is not a valid date in any field order", value)
}

// civilDate builds a date and reports whether day and month actually exist
// in that combination (time.Date would silently normalize Feb 30).
func civilDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := course.Date(year, time.Month(month), day)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}
