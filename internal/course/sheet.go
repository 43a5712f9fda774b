package course

import "time"

// Cell is a single day slot in the rendered calendar sheet. It is a
// disposable view projection, rebuilt on every render and never persisted.
type Cell struct {
	// Date is the civil date of the slot, zero for day/month combinations
	// that do not exist (e.g. February 30th).
	Date time.Time
	// OnBlock reports whether the date is covered by a block of the course.
	OnBlock bool
	// Issues is the issue list of the covering block. All cells of one
	// block share the same slice.
	Issues []*Issue
}

// Sheet is the calendar for one year: 31 day rows of 12 month columns, the
// layout the sheet is rendered in (row by row).
type Sheet [31][12]Cell

// BuildSheet projects the course onto the calendar sheet of the given year.
// Only valid calendar dates are visited; nonexistent day/month slots keep
// their zero value. The issue list of a block is resolved once and shared by
// every cell the block covers.
func BuildSheet(c *Course, year int) *Sheet {
	var sheet Sheet

	issuesByBlock := make(map[*Block][]*Issue)
	var currentBlock *Block

	nextYear := Date(year+1, time.January, 1)
	for date := Date(year, time.January, 1); date.Before(nextYear); date = date.AddDate(0, 0, 1) {
		cell := &sheet[date.Day()-1][int(date.Month())-1]
		cell.Date = date

		if currentBlock == nil || !currentBlock.Match(date) {
			currentBlock = c.Match(date)
		}
		if currentBlock == nil {
			cell.OnBlock = false
			continue
		}
		issues, ok := issuesByBlock[currentBlock]
		if !ok {
			issues = currentBlock.Issues()
			issuesByBlock[currentBlock] = issues
		}
		cell.OnBlock = true
		cell.Issues = issues
	}

	return &sheet
}
