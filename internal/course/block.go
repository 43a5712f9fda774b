package course

import "time"

// Block is a contiguous date range over which a fixed set of issues applies.
// Both appearance bounds are inclusive civil dates; a zero time means the
// bound has not been entered yet.
type Block struct {
	firstAppearance time.Time
	lastAppearance  time.Time
	issues          []*Issue
}

// NewBlock creates an empty block without dates or issues.
func NewBlock() *Block {
	return &Block{}
}

// FirstAppearance returns the inclusive start of the block, zero if unset.
func (b *Block) FirstAppearance() time.Time {
	return b.firstAppearance
}

// LastAppearance returns the inclusive end of the block, zero if unset.
func (b *Block) LastAppearance() time.Time {
	return b.lastAppearance
}

// SetFirstAppearance moves the start of the range and re-anchors the issue
// recurrence rules to it.
func (b *Block) SetFirstAppearance(date time.Time) {
	b.firstAppearance = NormalizeDate(date)
	for _, issue := range b.issues {
		issue.Anchor(b.firstAppearance)
	}
}

// SetLastAppearance moves the end of the range.
func (b *Block) SetLastAppearance(date time.Time) {
	b.lastAppearance = NormalizeDate(date)
}

// Match reports whether the date falls inside the block's range. A block
// with a missing bound matches nothing.
func (b *Block) Match(date time.Time) bool {
	if b.firstAppearance.IsZero() || b.lastAppearance.IsZero() {
		return false
	}
	d := NormalizeDate(date)
	return !d.Before(b.firstAppearance) && !d.After(b.lastAppearance)
}

// Issues returns the block's issue list in insertion order.
func (b *Block) Issues() []*Issue {
	return b.issues
}

// Issue returns the issue at the given index, nil if out of range.
func (b *Block) Issue(index int) *Issue {
	if index < 0 || index >= len(b.issues) {
		return nil
	}
	return b.issues[index]
}

// AddIssue appends an issue, anchoring it at the block's first appearance.
func (b *Block) AddIssue(issue *Issue) {
	if !b.firstAppearance.IsZero() {
		issue.Anchor(b.firstAppearance)
	}
	b.issues = append(b.issues, issue)
}

// RemoveIssue removes the issue at the given index.
func (b *Block) RemoveIssue(index int) {
	if index < 0 || index >= len(b.issues) {
		return
	}
	b.issues = append(b.issues[:index], b.issues[index+1:]...)
}

// Overlaps reports whether both blocks have complete ranges that share at
// least one date.
func (b *Block) Overlaps(other *Block) bool {
	if b.firstAppearance.IsZero() || b.lastAppearance.IsZero() {
		return false
	}
	if other.firstAppearance.IsZero() || other.lastAppearance.IsZero() {
		return false
	}
	return !b.lastAppearance.Before(other.firstAppearance) &&
		!other.lastAppearance.Before(b.firstAppearance)
}

// Clone produces a structural copy: same issues (deep-copied), but a cleared
// date range. The caller is responsible for assigning a non-overlapping range
// afterwards.
func (b *Block) Clone() *Block {
	c := NewBlock()
	for _, issue := range b.issues {
		c.issues = append(c.issues, issue.Clone())
	}
	return c
}

// deepCopy clones the block including its date range, for course snapshots.
func (b *Block) deepCopy() *Block {
	c := b.Clone()
	c.firstAppearance = b.firstAppearance
	c.lastAppearance = b.lastAppearance
	for _, issue := range c.issues {
		if !c.firstAppearance.IsZero() {
			issue.Anchor(c.firstAppearance)
		}
	}
	return c
}
