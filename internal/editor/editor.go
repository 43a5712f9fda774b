// Package editor owns a course of appearance during an editing session and
// applies commands to it. Commands validate their input, mutate the owned
// course, and report outcomes as message keys; no presentation concern leaks
// in, no object graph leaks out for direct mutation.
package editor

import (
	"errors"
	"fmt"
	"time"

	"newscal/internal/course"
	"newscal/internal/msg"
)

// Editor is the single logical owner of one course under edit. It is not
// safe for concurrent use; the hosting layer serializes access.
type Editor struct {
	course      *course.Course
	granularity course.Granularity
	yearShowing int
	now         func() time.Time
}

// New creates an editor with an empty course. now is the clock dependency
// used by plausibility checks and date-input heuristics; nil means time.Now.
func New(now func() time.Time) *Editor {
	if now == nil {
		now = time.Now
	}
	return &Editor{
		course:      course.NewCourse(),
		granularity: course.GranularityIssues,
		yearShowing: now().Year(),
		now:         now,
	}
}

// Course exposes the current course for read-only projection (sheet
// building, serialization, snapshots).
func (e *Editor) Course() *course.Course {
	return e.course
}

// Blank reports whether the editor is in mint condition, i.e. no block has
// been defined yet.
func (e *Editor) Blank() bool {
	return e.course.IsEmpty()
}

// today returns the clock reading normalized to a civil date.
func (e *Editor) today() time.Time {
	return course.NormalizeDate(e.now())
}

// Year returns the year the calendar sheet is currently shown for.
func (e *Editor) Year() int {
	return e.yearShowing
}

// SetYear changes the displayed year.
func (e *Editor) SetYear(year int) {
	e.yearShowing = year
}

// NextYear displays the following year.
func (e *Editor) NextYear() {
	e.yearShowing++
}

// PreviousYear displays the preceding year.
func (e *Editor) PreviousYear() {
	e.yearShowing--
}

// navigate alters the displayed year so that something of the block is
// visible, sparing the user from clicking through centuries manually.
func (e *Editor) navigate(b *course.Block) {
	if b == nil {
		return
	}
	if !b.LastAppearance().IsZero() && e.yearShowing > b.LastAppearance().Year() {
		e.yearShowing = b.LastAppearance().Year()
	}
	if !b.FirstAppearance().IsZero() && e.yearShowing < b.FirstAppearance().Year() {
		e.yearShowing = b.FirstAppearance().Year()
	}
}

// Sheet projects the course onto the calendar sheet of the displayed year.
func (e *Editor) Sheet() *course.Sheet {
	return course.BuildSheet(e.course, e.yearShowing)
}

// AddBlock appends a fresh empty block and returns its index.
func (e *Editor) AddBlock() int {
	e.course.Add(course.NewBlock())
	return e.course.Size() - 1
}

// CopyBlock clones the block at the given index. The copy receives a
// one-day range immediately following the course's last appearance.
func (e *Editor) CopyBlock(index int) (int, error) {
	b := e.course.Get(index)
	if b == nil {
		return 0, fmt.Errorf("no block at index %d", index)
	}
	last, ok := e.course.LastAppearance()
	if !ok {
		return 0, errors.New("course has no complete block to append after")
	}
	cp := b.Clone()
	first := last.AddDate(0, 0, 1)
	cp.SetFirstAppearance(first)
	cp.SetLastAppearance(first)
	e.course.Add(cp)
	e.navigate(cp)
	return e.course.Size() - 1, nil
}

// RemoveBlock deletes the block at the given index and navigates to the
// preceding block if one exists.
func (e *Editor) RemoveBlock(index int) error {
	if e.course.Get(index) == nil {
		return fmt.Errorf("no block at index %d", index)
	}
	e.course.Remove(index)
	if index > 0 {
		index--
	}
	if e.course.Size() > 0 {
		e.navigate(e.course.Get(index))
	}
	return nil
}

// SetFirstAppearance parses the user's date text for the block's first
// appearance and applies it. Parsing hints and plausibility advisories come
// back as messages; on a parse failure the model is left unchanged.
func (e *Editor) SetFirstAppearance(index int, value string) ([]msg.Message, error) {
	return e.setAppearance(index, value, msg.FieldFirstAppearance)
}

// SetLastAppearance is the counterpart for the block's last appearance.
func (e *Editor) SetLastAppearance(index int, value string) ([]msg.Message, error) {
	return e.setAppearance(index, value, msg.FieldLastAppearance)
}

func (e *Editor) setAppearance(index int, value, field string) ([]msg.Message, error) {
	b := e.course.Get(index)
	if b == nil {
		return nil, fmt.Errorf("no block at index %d", index)
	}
	date, messages, err := parseFlexibleDate(value, field, e.today())
	if err != nil {
		return messages, err
	}
	if field == msg.FieldFirstAppearance {
		b.SetFirstAppearance(date)
	} else {
		b.SetLastAppearance(date)
	}
	e.course.ClearProcesses()
	messages = append(messages, e.checkBlockPlausibility(b)...)
	return messages, nil
}

// checkBlockPlausibility compares the block's dates against some
// plausibility assumptions. Advisory only: implausible ranges are flagged,
// never rejected.
func (e *Editor) checkBlockPlausibility(b *course.Block) []msg.Message {
	first := b.FirstAppearance()
	last := b.LastAppearance()
	if first.IsZero() || last.IsZero() {
		return nil
	}

	var messages []msg.Message
	today := e.today()
	if first.AddDate(100, 0, 0).Before(last) {
		messages = append(messages, msg.Info(msg.KeyBlockLong))
	}
	if first.After(last) {
		messages = append(messages, msg.Error(msg.KeyBlockNegative))
	}
	if first.Before(course.StartRelation) {
		messages = append(messages, msg.Info(msg.KeyBlockEarly(msg.FieldFirstAppearance)))
	}
	if first.After(today) {
		messages = append(messages, msg.Info(msg.KeyBlockFiction(msg.FieldFirstAppearance)))
	}
	if last.Before(course.StartRelation) {
		messages = append(messages, msg.Info(msg.KeyBlockEarly(msg.FieldLastAppearance)))
	}
	if last.After(today) {
		messages = append(messages, msg.Info(msg.KeyBlockFiction(msg.FieldLastAppearance)))
	}
	e.yearShowing = first.Year()
	return messages
}

// AddIssue adds a recurring issue to a block.
func (e *Editor) AddIssue(blockIndex int, heading, rule string) error {
	b := e.course.Get(blockIndex)
	if b == nil {
		return fmt.Errorf("no block at index %d", blockIndex)
	}
	issue, err := course.NewIssue(heading, rule)
	if err != nil {
		return err
	}
	b.AddIssue(issue)
	e.course.ClearProcesses()
	return nil
}

// RemoveIssue removes an issue from a block.
func (e *Editor) RemoveIssue(blockIndex, issueIndex int) error {
	b := e.course.Get(blockIndex)
	if b == nil {
		return fmt.Errorf("no block at index %d", blockIndex)
	}
	if b.Issue(issueIndex) == nil {
		return fmt.Errorf("no issue at index %d in block %d", issueIndex, blockIndex)
	}
	b.RemoveIssue(issueIndex)
	e.course.ClearProcesses()
	return nil
}

// ToggleIssueMatch flips whether the issue appeared on the date. Depending
// on the regular rule this adjusts the issue's additions and exclusions.
func (e *Editor) ToggleIssueMatch(blockIndex, issueIndex int, date time.Time) error {
	b := e.course.Get(blockIndex)
	if b == nil {
		return fmt.Errorf("no block at index %d", blockIndex)
	}
	issue := b.Issue(issueIndex)
	if issue == nil {
		return fmt.Errorf("no issue at index %d in block %d", issueIndex, blockIndex)
	}
	switch {
	case issue.Match(date) && issue.HasAddition(date):
		issue.RemoveAddition(date)
	case issue.Match(date):
		issue.AddExclusion(date)
	case issue.HasExclusion(date):
		issue.RemoveExclusion(date)
	default:
		issue.AddAddition(date)
	}
	e.course.ClearProcesses()
	return nil
}

// Granularity returns the currently selected splitting unit.
func (e *Editor) Granularity() course.Granularity {
	return e.granularity
}

// SetGranularity selects the splitting unit and recomputes the derived
// processes partition.
func (e *Editor) SetGranularity(g course.Granularity) {
	e.granularity = g
	e.course.SplitInto(g)
}

// SetYearStart moves the business year boundary.
func (e *Editor) SetYearStart(md course.MonthDay) {
	e.course.SetYearStart(md)
}

// SetYearName sets the optional year label.
func (e *Editor) SetYearName(name string) {
	e.course.SetYearName(name)
}

// Upload replaces the course with the contents of an uploaded XML document.
// The import is all-or-nothing: on any classified failure the previously
// loaded course stays untouched. The returned messages carry the precise
// diagnostic; err is the underlying cause for logging.
func (e *Editor) Upload(data []byte) ([]msg.Message, error) {
	if len(data) == 0 {
		return []msg.Message{msg.Error(msg.KeyUploadError), msg.Info(msg.KeyUploadIsEmpty)},
			errors.New("empty upload")
	}
	parsed, err := course.ParseCourse(data)
	if err != nil {
		return []msg.Message{classifyUploadError(err)}, err
	}
	e.course = parsed
	e.granularity = course.GranularityIssues
	e.navigate(parsed.Get(0))
	return nil, nil
}

func classifyUploadError(err error) msg.Message {
	switch {
	case errors.Is(err, course.ErrOverlappingBlocks):
		return msg.Error(msg.KeyUploadOverlappingRanges)
	case errors.Is(err, course.ErrMissingElement):
		return msg.Error(msg.KeyUploadMissingElement, err.Error())
	case errors.Is(err, course.ErrMissingValue):
		return msg.Error(msg.KeyUploadMissingValue, err.Error())
	default:
		return msg.Error(msg.KeyUploadError, err.Error())
	}
}

// Download serializes the course as XML for export. If the course was never
// split, a per-day split is produced for the export and cleared again
// afterwards so the user is not presented with a partition they never
// requested.
func (e *Editor) Download() ([]byte, []msg.Message, error) {
	if e.course.IsEmpty() || e.course.CountIndividualIssues() == 0 {
		return nil, []msg.Message{msg.Error(msg.KeyCalendarIsEmpty)},
			errors.New("course contains no issues")
	}
	if e.course.NumberOfProcesses() == 0 {
		e.course.SplitInto(course.GranularityDays)
		defer e.course.ClearProcesses()
	}
	data, err := course.MarshalCourse(e.course)
	if err != nil {
		return nil, []msg.Message{msg.Error(msg.KeyDownloadError, err.Error())}, err
	}
	return data, nil, nil
}

// Snapshot returns a deep copy of the course for handing to the process
// generator, so a pending generation never reads concurrent edits.
func (e *Editor) Snapshot() *course.Course {
	return e.course.Clone()
}
