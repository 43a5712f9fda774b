package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newscal/internal/course"
	"newscal/internal/msg"
)

func TestParseFlexibleDateDayMonthYear(t *testing.T) {
	today := course.Date(2024, time.June, 15)

	d, messages, err := parseFlexibleDate("15.03.2021", msg.FieldFirstAppearance, today)
	require.NoError(t, err)
	assert.Equal(t, course.Date(2021, time.March, 15), d)
	assert.Empty(t, messages)

	d, _, err = parseFlexibleDate("on the 1st of 2. 2021", msg.FieldFirstAppearance, today)
	require.NoError(t, err)
	assert.Equal(t, course.Date(2021, time.February, 1), d)
}

func TestParseFlexibleDateCompletesTwoDigitYears(t *testing.T) {
	today := course.Date(2024, time.June, 15)

	d, messages, err := parseFlexibleDate("1/2/03", msg.FieldFirstAppearance, today)
	require.NoError(t, err)
	assert.Equal(t, course.Date(2003, time.February, 1), d)
	require.Len(t, messages, 1)
	assert.Equal(t, msg.KeyBlockYearCompleted(msg.FieldFirstAppearance), messages[0].Key)
	assert.Equal(t, []string{"03", "2003"}, messages[0].Args)
	assert.Equal(t, msg.SeverityInfo, messages[0].Severity)

	// Completion never lands in the future.
	d, messages, err = parseFlexibleDate("1/2/99", msg.FieldLastAppearance, today)
	require.NoError(t, err)
	assert.Equal(t, course.Date(1999, time.February, 1), d)
	require.Len(t, messages, 1)
	assert.Equal(t, []string{"99", "1999"}, messages[0].Args)

	// The current year itself is not future.
	d, _, err = parseFlexibleDate("1/2/24", msg.FieldLastAppearance, today)
	require.NoError(t, err)
	assert.Equal(t, course.Date(2024, time.February, 1), d)
}

func TestParseFlexibleDateSwapsDayAndMonth(t *testing.T) {
	today := course.Date(2024, time.June, 15)

	d, messages, err := parseFlexibleDate("3/14/2021", msg.FieldFirstAppearance, today)
	require.NoError(t, err)
	assert.Equal(t, course.Date(2021, time.March, 14), d)
	require.Len(t, messages, 1)
	assert.Equal(t, msg.KeyBlockSwapped(msg.FieldFirstAppearance), messages[0].Key)
}

func TestParseFlexibleDateRejectsNonDates(t *testing.T) {
	today := course.Date(2024, time.June, 15)

	_, messages, err := parseFlexibleDate("soon", msg.FieldFirstAppearance, today)
	require.Error(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, msg.KeyBlockInvalid(msg.FieldFirstAppearance), messages[0].Key)
	assert.Equal(t, msg.SeverityError, messages[0].Severity)

	// Invalid in both field orders.
	_, messages, err = parseFlexibleDate("30/2/2021", msg.FieldLastAppearance, today)
	require.Error(t, err)
	assert.Equal(t, msg.KeyBlockInvalid(msg.FieldLastAppearance), messages[len(messages)-1].Key)
}

func TestCivilDateRejectsNormalizedDates(t *testing.T) {
	_, ok := civilDate(2021, 2, 30)
	assert.False(t, ok)

	_, ok = civilDate(2021, 4, 31)
	assert.False(t, ok)

	d, ok := civilDate(2020, 2, 29)
	require.True(t, ok)
	assert.Equal(t, course.Date(2020, time.February, 29), d)

	_, ok = civilDate(2021, 2, 29)
	assert.False(t, ok)
}
