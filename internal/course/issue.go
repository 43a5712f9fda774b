package course

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

// StartRelation is the date the course of publication of the German-language
// “Relation aller Fürnemmen und gedenckwürdigen Historien”, often recognized
// as the first newspaper, began. Blocks before that date draw an advisory.
var StartRelation = Date(1605, time.September, 12)

// Issue represents one recurring edition of a newspaper (e.g. “Morning
// edition”). Its regular appearance is an RFC 5545 recurrence rule; manual
// corrections are kept as addition dates (appeared although the rule says no)
// and exclusion dates (did not appear although the rule says yes).
//
// A date is never in both sets at the same time.
type Issue struct {
	heading string
	rule    string

	compiled *rrule.RRule
	anchor   time.Time

	additions  map[time.Time]struct{}
	exclusions map[time.Time]struct{}
}

// NewIssue creates an issue with the given heading and recurrence rule.
// An empty rule is allowed and matches no date regularly; such an issue
// appears only on its addition dates.
func NewIssue(heading, rule string) (*Issue, error) {
	i := &Issue{
		heading:    heading,
		anchor:     StartRelation,
		additions:  make(map[time.Time]struct{}),
		exclusions: make(map[time.Time]struct{}),
	}
	if err := i.SetRule(rule); err != nil {
		return nil, err
	}
	return i, nil
}

// Heading returns the issue's display name.
func (i *Issue) Heading() string {
	return i.heading
}

// SetHeading renames the issue.
func (i *Issue) SetHeading(heading string) {
	i.heading = heading
}

// Rule returns the recurrence rule text.
func (i *Issue) Rule() string {
	return i.rule
}

// SetRule replaces the recurrence rule, keeping the current anchor.
func (i *Issue) SetRule(rule string) error {
	if rule == "" {
		i.rule = ""
		i.compiled = nil
		return nil
	}
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return fmt.Errorf("issue %q: invalid recurrence rule %q: %w", i.heading, rule, err)
	}
	r.DTStart(i.anchor)
	i.rule = rule
	i.compiled = r
	return nil
}

// Anchor moves the recurrence rule's DTSTART. The owning block calls this
// when its first appearance changes so that interval-based rules count from
// the start of the block.
func (i *Issue) Anchor(first time.Time) {
	i.anchor = NormalizeDate(first)
	if i.compiled != nil {
		i.compiled.DTStart(i.anchor)
	}
}

// Match reports whether the issue appeared on the given date: the date is an
// addition, or the recurrence rule matches it and it is not an exclusion.
func (i *Issue) Match(date time.Time) bool {
	d := NormalizeDate(date)
	if _, ok := i.additions[d]; ok {
		return true
	}
	if _, ok := i.exclusions[d]; ok {
		return false
	}
	return i.ruleMatches(d)
}

func (i *Issue) ruleMatches(d time.Time) bool {
	if i.compiled == nil {
		return false
	}
	if d.Before(i.anchor) {
		return false
	}
	return len(i.compiled.Between(d, d, true)) > 0
}

// AddAddition marks the date as appeared. Removes a conflicting exclusion
// first; adding an already present date is a no-op.
func (i *Issue) AddAddition(date time.Time) {
	d := NormalizeDate(date)
	delete(i.exclusions, d)
	i.additions[d] = struct{}{}
}

// RemoveAddition drops the date from the addition set.
func (i *Issue) RemoveAddition(date time.Time) {
	delete(i.additions, NormalizeDate(date))
}

// AddExclusion marks the date as not appeared. Removes a conflicting
// addition first; adding an already present date is a no-op.
func (i *Issue) AddExclusion(date time.Time) {
	d := NormalizeDate(date)
	delete(i.additions, d)
	i.exclusions[d] = struct{}{}
}

// RemoveExclusion drops the date from the exclusion set.
func (i *Issue) RemoveExclusion(date time.Time) {
	delete(i.exclusions, NormalizeDate(date))
}

// Additions returns the addition dates in chronological order.
func (i *Issue) Additions() []time.Time {
	return sortedDates(i.additions)
}

// Exclusions returns the exclusion dates in chronological order.
func (i *Issue) Exclusions() []time.Time {
	return sortedDates(i.exclusions)
}

// HasAddition reports whether the date is in the addition set.
func (i *Issue) HasAddition(date time.Time) bool {
	_, ok := i.additions[NormalizeDate(date)]
	return ok
}

// HasExclusion reports whether the date is in the exclusion set.
func (i *Issue) HasExclusion(date time.Time) bool {
	_, ok := i.exclusions[NormalizeDate(date)]
	return ok
}

// Clone returns a deep copy of the issue.
func (i *Issue) Clone() *Issue {
	c := &Issue{
		heading:    i.heading,
		anchor:     i.anchor,
		additions:  make(map[time.Time]struct{}, len(i.additions)),
		exclusions: make(map[time.Time]struct{}, len(i.exclusions)),
	}
	// SetRule cannot fail here: the rule already compiled once.
	_ = c.SetRule(i.rule)
	for d := range i.additions {
		c.additions[d] = struct{}{}
	}
	for d := range i.exclusions {
		c.exclusions[d] = struct{}{}
	}
	return c
}

func sortedDates(set map[time.Time]struct{}) []time.Time {
	out := make([]time.Time, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Before(out[b]) })
	return out
}
