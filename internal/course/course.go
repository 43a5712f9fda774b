package course

import "time"

// Course is the full publication history of a periodical: an ordered
// sequence of blocks, assumed non-overlapping by the business logic (XML
// import enforces it). The derived processes partition is a clearable cache
// produced by SplitInto, not part of the course itself.
type Course struct {
	blocks    []*Block
	yearStart MonthDay
	yearName  string

	processes [][]IndividualIssue
}

// IndividualIssue is one concrete appearance of one issue on one day, the
// atom the splitting operates on.
type IndividualIssue struct {
	Date       time.Time
	Heading    string
	BlockIndex int
}

// NewCourse creates an empty course with the default January 1st year start.
func NewCourse() *Course {
	return &Course{yearStart: JanuaryFirst}
}

// Add appends a block. Insertion order is chronological display order.
func (c *Course) Add(b *Block) {
	c.blocks = append(c.blocks, b)
	c.processes = nil
}

// Remove drops the block at the given index.
func (c *Course) Remove(index int) {
	if index < 0 || index >= len(c.blocks) {
		return
	}
	c.blocks = append(c.blocks[:index], c.blocks[index+1:]...)
	c.processes = nil
}

// Blocks returns the block list in order.
func (c *Course) Blocks() []*Block {
	return c.blocks
}

// Get returns the block at the given index, nil if out of range.
func (c *Course) Get(index int) *Block {
	if index < 0 || index >= len(c.blocks) {
		return nil
	}
	return c.blocks[index]
}

// IndexOf returns the position of the block, -1 if absent.
func (c *Course) IndexOf(b *Block) int {
	for i, candidate := range c.blocks {
		if candidate == b {
			return i
		}
	}
	return -1
}

// Size returns the number of blocks.
func (c *Course) Size() int {
	return len(c.blocks)
}

// IsEmpty reports whether no block has been defined yet.
func (c *Course) IsEmpty() bool {
	return len(c.blocks) == 0
}

// YearStart returns the month/day the business year begins on.
func (c *Course) YearStart() MonthDay {
	if c.yearStart.isZero() {
		return JanuaryFirst
	}
	return c.yearStart
}

// SetYearStart overrides the business year boundary.
func (c *Course) SetYearStart(md MonthDay) {
	c.yearStart = md
}

// YearName returns the optional label of the year, e.g. “Business year”.
func (c *Course) YearName() string {
	return c.yearName
}

// SetYearName sets the optional year label.
func (c *Course) SetYearName(name string) {
	c.yearName = name
}

// Match scans the blocks in order and returns the first whose range contains
// the date, or nil if none does.
func (c *Course) Match(date time.Time) *Block {
	for _, b := range c.blocks {
		if b.Match(date) {
			return b
		}
	}
	return nil
}

// FirstAppearance returns the earliest first appearance over all blocks.
// ok is false when no block has a complete range.
func (c *Course) FirstAppearance() (time.Time, bool) {
	var first time.Time
	for _, b := range c.blocks {
		if b.firstAppearance.IsZero() {
			continue
		}
		if first.IsZero() || b.firstAppearance.Before(first) {
			first = b.firstAppearance
		}
	}
	return first, !first.IsZero()
}

// LastAppearance returns the latest last appearance over all blocks.
func (c *Course) LastAppearance() (time.Time, bool) {
	var last time.Time
	for _, b := range c.blocks {
		if b.lastAppearance.IsZero() {
			continue
		}
		if last.IsZero() || b.lastAppearance.After(last) {
			last = b.lastAppearance
		}
	}
	return last, !last.IsZero()
}

// IndividualIssues walks the whole publication period day by day and
// collects every issue appearance in chronological order.
func (c *Course) IndividualIssues() []IndividualIssue {
	first, ok := c.FirstAppearance()
	if !ok {
		return nil
	}
	last, _ := c.LastAppearance()

	var out []IndividualIssue
	for date := first; !date.After(last); date = date.AddDate(0, 0, 1) {
		block := c.Match(date)
		if block == nil {
			continue
		}
		blockIndex := c.IndexOf(block)
		for _, issue := range block.Issues() {
			if issue.Match(date) {
				out = append(out, IndividualIssue{
					Date:       date,
					Heading:    issue.Heading(),
					BlockIndex: blockIndex,
				})
			}
		}
	}
	return out
}

// CountIndividualIssues sums the number of issue appearances over the whole
// course.
func (c *Course) CountIndividualIssues() int {
	return len(c.IndividualIssues())
}

// SplitInto recomputes the derived processes partition at the given
// granularity. Splitting partitions the existing appearances; it never
// changes their number.
func (c *Course) SplitInto(granularity Granularity) {
	issues := c.IndividualIssues()
	c.processes = nil

	if granularity == GranularityIssues {
		for _, issue := range issues {
			c.processes = append(c.processes, []IndividualIssue{issue})
		}
		return
	}

	var current []IndividualIssue
	currentKey := ""
	for _, issue := range issues {
		key := granularity.PeriodKey(issue.Date, c.YearStart())
		if len(current) > 0 && key != currentKey {
			c.processes = append(c.processes, current)
			current = nil
		}
		currentKey = key
		current = append(current, issue)
	}
	if len(current) > 0 {
		c.processes = append(c.processes, current)
	}
}

// Processes returns the current split partition, nil if never split.
func (c *Course) Processes() [][]IndividualIssue {
	return c.processes
}

// NumberOfProcesses reflects the current split's cardinality, 0 if the
// course was never split.
func (c *Course) NumberOfProcesses() int {
	return len(c.processes)
}

// ClearProcesses drops the derived split.
func (c *Course) ClearProcesses() {
	c.processes = nil
}

// Clone returns a deep snapshot of the course without the derived split.
// The generator works on such snapshots so that a pending generation never
// races a concurrent edit.
func (c *Course) Clone() *Course {
	snapshot := NewCourse()
	snapshot.yearStart = c.yearStart
	snapshot.yearName = c.yearName
	for _, b := range c.blocks {
		snapshot.blocks = append(snapshot.blocks, b.deepCopy())
	}
	return snapshot
}
