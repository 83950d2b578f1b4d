package inclusions

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
	"github.com/JonMunkholm/sheetimport/internal/layout"
	"github.com/JonMunkholm/sheetimport/internal/numfmt"
)

// Format is how the lines of a section are marked.
type Format string

const (
	FormatBullets  Format = "bullet-points"
	FormatNumbered Format = "numbered"
	FormatPlain    Format = "plain-text"
)

// Section is one inclusions block with its usable lines.
type Section struct {
	HeaderText        string   `json:"headerText,omitempty"`
	Content           []string `json:"content"`
	Format            Format   `json:"format"`
	AccommodationType string   `json:"accommodationType,omitempty"`
	Confidence        float64  `json:"confidence"`
	Row               int      `json:"row"`
	Column            int      `json:"column"`
}

// Detection is the result of DetectSections.
type Detection struct {
	Sections    []Section `json:"sections"`
	Suggestions []string  `json:"suggestions"`
}

// DetectorOptions tunes section cleanup. Zero fields fall back to
// DefaultDetectorOptions.
type DetectorOptions struct {
	MinLineLength  int // shorter lines are dropped from content
	DedupeDistance int // rows/cols within which same-header sections collapse
}

// DefaultDetectorOptions returns the standard thresholds.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{MinLineLength: 3, DedupeDistance: 3}
}

// Detector finds inclusions sections on top of the layout detector.
type Detector struct {
	layout *layout.Detector
	opts   DetectorOptions
}

// NewDetector wraps ld. Blank-run and header-less run thresholds come from
// ld's options.
func NewDetector(ld *layout.Detector, opts DetectorOptions) *Detector {
	d := DefaultDetectorOptions()
	if opts.MinLineLength <= 0 {
		opts.MinLineLength = d.MinLineLength
	}
	if opts.DedupeDistance <= 0 {
		opts.DedupeDistance = d.DedupeDistance
	}
	return &Detector{layout: ld, opts: opts}
}

// DetectSections returns every inclusions section in g in reading order.
// Sections left without usable lines are dropped.
func (d *Detector) DetectSections(g layout.Grid) Detection {
	var found []Section
	for _, sec := range d.layout.FindInclusionsSections(g) {
		s := d.section(g, sec)
		if len(s.Content) > 0 {
			found = append(found, s)
		}
	}

	sections := d.dedupe(found)
	sort.SliceStable(sections, func(i, j int) bool {
		if sections[i].Row != sections[j].Row {
			return sections[i].Row < sections[j].Row
		}
		return sections[i].Column < sections[j].Column
	})
	return Detection{Sections: sections, Suggestions: d.suggestions(sections)}
}

func (d *Detector) section(g layout.Grid, sec layout.Section) Section {
	s := Section{
		HeaderText: sec.Header,
		Content:    []string{},
		Confidence: sec.Confidence,
		Row:        sec.StartRow,
		Column:     sec.StartCol,
	}

	var lines []string
	if sec.HeaderRow >= 0 {
		s.Row = sec.HeaderRow
		hm := d.layout.MatchInclusionHeader(g.At(sec.HeaderRow, sec.StartCol))
		lines = append(lines, hm.Inline...)
		if hm.Qualifier != "" {
			s.AccommodationType = d.layout.Classifier().DetectAccommodationType(hm.Qualifier).Category
		}
	}
	for r := sec.StartRow; r <= sec.EndRow; r++ {
		lines = append(lines, layout.SplitLines(g.At(r, sec.StartCol))...)
	}
	if s.AccommodationType == "" {
		s.AccommodationType = d.nearestAccommodation(g, s.Row, sec.StartCol)
	}

	bullets, numbered := 0, 0
	for _, line := range lines {
		if !d.usable(line) {
			continue
		}
		switch m, _ := classify.DetectMarker(line); m {
		case classify.MarkerBullet:
			bullets++
		case classify.MarkerNumbered:
			numbered++
		}
		s.Content = append(s.Content, line)
	}
	s.Format = formatOf(bullets, numbered, len(s.Content))
	return s
}

// usable reports whether a line belongs in section content: numbers, bare
// month names, bare accommodation names and fragments are dropped.
func (d *Detector) usable(line string) bool {
	_, text := classify.DetectMarker(line)
	if utf8.RuneCountInString(text) < d.opts.MinLineLength {
		return false
	}
	if numfmt.IsNumeric(text) {
		return false
	}
	c := d.layout.Classifier()
	if mm := c.DetectMonth(text); mm.IsMonth && mm.Format != classify.FormatSpecial {
		return false
	}
	if am := c.DetectAccommodationType(text); am.IsAccommodation {
		t := dictionary.Canonical(text)
		if t == am.Keyword || t == dictionary.Canonical(am.Category) {
			return false
		}
	}
	return true
}

// nearestAccommodation looks upward from (row, col), then one cell left,
// for a short cell naming an accommodation type.
func (d *Detector) nearestAccommodation(g layout.Grid, row, col int) string {
	c := d.layout.Classifier()
	pick := func(v string) string {
		if v == "" || len(strings.Fields(v)) > 4 {
			return ""
		}
		if am := c.DetectAccommodationType(v); am.IsAccommodation {
			return am.Category
		}
		return ""
	}
	for r := row - 1; r >= 0 && r >= row-nearestRows; r-- {
		if cat := pick(g.At(r, col)); cat != "" {
			return cat
		}
	}
	if col > 0 {
		return pick(g.At(row, col-1))
	}
	return ""
}

// nearestRows is how far above a section its accommodation label may sit.
const nearestRows = 3

func formatOf(bullets, numbered, total int) Format {
	switch {
	case total == 0:
		return FormatPlain
	case bullets*2 >= total && bullets >= numbered:
		return FormatBullets
	case numbered*2 >= total:
		return FormatNumbered
	}
	return FormatPlain
}

// dedupe collapses sections with the same header text within
// DedupeDistance rows and columns, keeping the more confident one.
func (d *Detector) dedupe(sections []Section) []Section {
	out := []Section{}
	for _, s := range sections {
		dup := -1
		for i, kept := range out {
			if strings.EqualFold(kept.HeaderText, s.HeaderText) &&
				abs(kept.Row-s.Row) <= d.opts.DedupeDistance &&
				abs(kept.Column-s.Column) <= d.opts.DedupeDistance {
				dup = i
				break
			}
		}
		switch {
		case dup < 0:
			out = append(out, s)
		case s.Confidence > out[dup].Confidence:
			out[dup] = s
		}
	}
	return out
}

func (d *Detector) suggestions(sections []Section) []string {
	out := []string{}
	if len(sections) == 0 {
		return append(out, "No inclusions section found; add a heading such as \"What's Included\" above the list")
	}
	for _, s := range sections {
		name := s.HeaderText
		if name == "" {
			name = fmt.Sprintf("row %d", s.Row+1)
		}
		if s.Format == FormatPlain {
			out = append(out, fmt.Sprintf("Inclusions under '%s' have no bullets or numbers; start each item with a bullet", name))
		}
		chars := 0
		for _, line := range s.Content {
			_, text := classify.DetectMarker(line)
			chars += utf8.RuneCountInString(text)
		}
		if chars/len(s.Content) < 10 {
			out = append(out, fmt.Sprintf("Inclusions under '%s' are very short; describe each item more fully", name))
		}
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
