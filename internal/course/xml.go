package course

import (
	"encoding/xml"
	"errors"
	"fmt"
	"time"
)

// Errors raised by ParseCourse. Each import failure is classified so the
// caller can surface a precise diagnostic; the in-memory course is never
// partially replaced.
var (
	// ErrOverlappingBlocks signals two blocks whose date ranges share a day.
	ErrOverlappingBlocks = errors.New("overlapping block date ranges")
	// ErrMissingElement signals an absent mandatory element.
	ErrMissingElement = errors.New("missing mandatory element")
	// ErrMissingValue signals an empty or unusable mandatory value.
	ErrMissingValue = errors.New("missing mandatory value")
)

// The on-wire course format. The schema is an external contract: files
// exported by one version must import into any other.
type courseXML struct {
	XMLName   xml.Name      `xml:"course"`
	YearName  string        `xml:"yearName,omitempty"`
	YearStart *yearStartXML `xml:"yearStart"`
	Blocks    []blockXML    `xml:"block"`
	// Processes is the derived split at export time. It is informational
	// for downstream tooling; import rebuilds the course from the blocks
	// and ignores this section.
	Processes *processesXML `xml:"processes,omitempty"`
}

type processesXML struct {
	Processes []processXML `xml:"process"`
}

type processXML struct {
	Appeared []appearedXML `xml:"appeared"`
}

type appearedXML struct {
	Date  string `xml:"date,attr"`
	Issue string `xml:"issue,attr"`
}

type yearStartXML struct {
	Month int `xml:"month,attr"`
	Day   int `xml:"day,attr"`
}

type blockXML struct {
	FirstAppearance *string    `xml:"firstAppearance"`
	LastAppearance  *string    `xml:"lastAppearance"`
	Issues          []issueXML `xml:"issue"`
}

type issueXML struct {
	Heading    *string      `xml:"heading,attr"`
	Rule       string       `xml:"rule,attr,omitempty"`
	Additions  []dateRefXML `xml:"addition"`
	Exclusions []dateRefXML `xml:"exclusion"`
}

type dateRefXML struct {
	Date string `xml:"date,attr"`
}

// MarshalCourse serializes the course as 4-space-indented XML. The derived
// split partition is a cache and is not exported.
func MarshalCourse(c *Course) ([]byte, error) {
	doc := courseXML{YearName: c.YearName()}

	ys := c.YearStart()
	doc.YearStart = &yearStartXML{Month: int(ys.Month), Day: ys.Day}

	for _, b := range c.Blocks() {
		bx := blockXML{}
		if !b.FirstAppearance().IsZero() {
			s := FormatDate(b.FirstAppearance())
			bx.FirstAppearance = &s
		}
		if !b.LastAppearance().IsZero() {
			s := FormatDate(b.LastAppearance())
			bx.LastAppearance = &s
		}
		for _, issue := range b.Issues() {
			heading := issue.Heading()
			ix := issueXML{Heading: &heading, Rule: issue.Rule()}
			for _, d := range issue.Additions() {
				ix.Additions = append(ix.Additions, dateRefXML{Date: FormatDate(d)})
			}
			for _, d := range issue.Exclusions() {
				ix.Exclusions = append(ix.Exclusions, dateRefXML{Date: FormatDate(d)})
			}
			bx.Issues = append(bx.Issues, ix)
		}
		doc.Blocks = append(doc.Blocks, bx)
	}

	if c.NumberOfProcesses() > 0 {
		px := &processesXML{}
		for _, process := range c.Processes() {
			p := processXML{}
			for _, issue := range process {
				p.Appeared = append(p.Appeared, appearedXML{
					Date:  FormatDate(issue.Date),
					Issue: issue.Heading,
				})
			}
			px.Processes = append(px.Processes, p)
		}
		doc.Processes = px
	}

	body, err := xml.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// ParseCourse builds a course from its XML form. The returned course is
// complete or the error classifies what is wrong; no partial result is ever
// returned.
func ParseCourse(data []byte) (*Course, error) {
	var doc courseXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing course XML: %w", err)
	}

	c := NewCourse()
	c.SetYearName(doc.YearName)
	if doc.YearStart != nil {
		if doc.YearStart.Month < 1 || doc.YearStart.Month > 12 || doc.YearStart.Day < 1 || doc.YearStart.Day > 31 {
			return nil, fmt.Errorf("%w: yearStart month/day out of range", ErrMissingValue)
		}
		c.SetYearStart(MonthDay{Month: time.Month(doc.YearStart.Month), Day: doc.YearStart.Day})
	}

	if len(doc.Blocks) == 0 {
		return nil, fmt.Errorf("%w: course contains no block", ErrMissingElement)
	}

	for n, bx := range doc.Blocks {
		b := NewBlock()
		first, err := mandatoryDate(bx.FirstAppearance, n, "firstAppearance")
		if err != nil {
			return nil, err
		}
		last, err := mandatoryDate(bx.LastAppearance, n, "lastAppearance")
		if err != nil {
			return nil, err
		}
		b.SetFirstAppearance(first)
		b.SetLastAppearance(last)

		for _, ix := range bx.Issues {
			if ix.Heading == nil || *ix.Heading == "" {
				return nil, fmt.Errorf("%w: issue heading in block %d", ErrMissingValue, n+1)
			}
			issue, err := NewIssue(*ix.Heading, ix.Rule)
			if err != nil {
				return nil, err
			}
			for _, ref := range ix.Additions {
				d, err := attrDate(ref.Date, n, "addition")
				if err != nil {
					return nil, err
				}
				issue.AddAddition(d)
			}
			for _, ref := range ix.Exclusions {
				d, err := attrDate(ref.Date, n, "exclusion")
				if err != nil {
					return nil, err
				}
				issue.AddExclusion(d)
			}
			b.AddIssue(issue)
		}

		for _, existing := range c.Blocks() {
			if existing.Overlaps(b) {
				return nil, fmt.Errorf("%w: block %d", ErrOverlappingBlocks, n+1)
			}
		}
		c.Add(b)
	}

	return c, nil
}

func mandatoryDate(value *string, blockIndex int, element string) (time.Time, error) {
	if value == nil {
		return time.Time{}, fmt.Errorf("%w: %s in block %d", ErrMissingElement, element, blockIndex+1)
	}
	if *value == "" {
		return time.Time{}, fmt.Errorf("%w: %s in block %d", ErrMissingValue, element, blockIndex+1)
	}
	d, err := ParseDate(*value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q in block %d", ErrMissingValue, element, *value, blockIndex+1)
	}
	return d, nil
}

func attrDate(value string, blockIndex int, element string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s date in block %d", ErrMissingValue, element, blockIndex+1)
	}
	d, err := ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s date %q in block %d", ErrMissingValue, element, value, blockIndex+1)
	}
	return d, nil
}
