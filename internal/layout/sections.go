package layout

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/confidence"
)

// Section is a located block of the grid. For pricing blocks StartRow..EndRow
// and StartCol..EndCol bound the data cells, HeaderRow holds the column
// labels and HeaderCol the row labels; either is -1 when absent. Inclusions
// blocks occupy a single column and carry their heading in Header.
type Section struct {
	Found       bool    `json:"found"`
	Orientation Type    `json:"orientation,omitempty"`
	StartRow    int     `json:"startRow"`
	EndRow      int     `json:"endRow"`
	StartCol    int     `json:"startCol"`
	EndCol      int     `json:"endCol"`
	HeaderRow   int     `json:"headerRow"`
	HeaderCol   int     `json:"headerCol"`
	Header      string  `json:"header,omitempty"`
	Items       int     `json:"items,omitempty"`
	Confidence  float64 `json:"confidence"`
}

func notFound() Section {
	return Section{HeaderRow: -1, HeaderCol: -1}
}

// Transpose swaps the row and column coordinates of s, mapping a section
// found on a transposed view back to the original grid and vice versa.
func (s Section) Transpose() Section {
	s.StartRow, s.StartCol = s.StartCol, s.StartRow
	s.EndRow, s.EndCol = s.EndCol, s.EndRow
	s.HeaderRow, s.HeaderCol = s.HeaderCol, s.HeaderRow
	return s
}

// FindPricingSection locates the pricing block. A month header in either
// orientation is preferred; otherwise the first numeric block is used.
func (d *Detector) FindPricingSection(g Grid) Section {
	var best Layout
	for _, l := range []Layout{d.monthsLayout(g, MonthsInColumns), d.monthsLayout(g, MonthsInRows)} {
		if l.Metadata.Found && l.Confidence > best.Confidence {
			best = l
		}
	}
	if best.Metadata.Found {
		return best.Metadata
	}
	return d.matrixLayout(g).Metadata
}

// monthsSection finds the month header for orientation t and returns the
// section with the month sequence confidence.
func (d *Detector) monthsSection(g Grid, t Type) (Section, float64) {
	view, scan := g, d.opts.ScanRows
	if t == MonthsInRows {
		view, scan = Transpose(g), d.opts.ScanCols
	}

	sec, conf := d.monthHeaderSection(view, scan)
	if !sec.Found {
		return notFound(), 0
	}
	sec.Orientation = t
	if t == MonthsInRows {
		sec = sec.Transpose()
	}
	return sec, conf
}

// monthHeaderSection looks for the best month-sequence row within the first
// scan rows of view and grows the data region beneath it.
func (d *Detector) monthHeaderSection(view Grid, scan int) (Section, float64) {
	width := view.ColCount()
	bestRow, bestConf := -1, 0.0

	for r := 0; r < min(scan, view.RowCount()); r++ {
		values := make([]string, width)
		for c := range values {
			values[c] = view.At(r, c)
		}
		seq := d.classifier.DetectMonthSequence(values)
		if seq.IsSequence && seq.Confidence > bestConf {
			bestRow, bestConf = r, seq.Confidence
		}
	}
	if bestRow < 0 {
		return notFound(), 0
	}

	first, last, blank := -1, -1, 0
	for c := 0; c < width; c++ {
		v := view.At(bestRow, c)
		if first < 0 {
			if d.classifier.DetectMonth(v).IsMonth {
				first, last = c, c
			}
			continue
		}
		if v == "" {
			blank++
			if blank >= d.opts.BlankRunLimit {
				break
			}
			continue
		}
		if !d.classifier.DetectMonth(v).IsMonth {
			break
		}
		last, blank = c, 0
	}

	sec := Section{
		Found:     true,
		HeaderRow: bestRow,
		HeaderCol: first - 1,
		StartRow:  bestRow + 1,
		EndRow:    bestRow,
		StartCol:  first,
		EndCol:    last,
	}

	from := sec.StartCol
	if sec.HeaderCol >= 0 {
		from = sec.HeaderCol
	}
	blank = 0
	for r := bestRow + 1; r < view.RowCount(); r++ {
		if isBlankSpan(view, r, from, sec.EndCol) {
			blank++
			if blank >= d.opts.BlankRunLimit {
				break
			}
			continue
		}
		if d.startsInclusions(view, r, from, sec) {
			break
		}
		blank = 0
		sec.EndRow = r
	}

	return sec, bestConf
}

// startsInclusions reports whether row r of view ends the price block: a
// priceless row whose label is a list item or which carries an inclusions
// heading in any column of the block.
func (d *Detector) startsInclusions(view Grid, r, from int, sec Section) bool {
	for c := sec.StartCol; c <= sec.EndCol; c++ {
		if d.classifier.ClassifyContent(view.At(r, c)).Type == classify.TypePrice {
			return false
		}
	}
	if m, _ := classify.DetectMarker(view.At(r, from)); m != classify.MarkerNone {
		return true
	}
	for c := from; c <= sec.EndCol; c++ {
		if d.MatchInclusionHeader(view.At(r, c)).OK {
			return true
		}
	}
	return false
}

// numericBlock finds the first run of price cells within the scan window,
// independent of what the headers say.
func (d *Detector) numericBlock(g Grid) Section {
	width := g.ColCount()
	isPrice := func(r, c int) bool {
		return d.classifier.ClassifyContent(g.At(r, c)).Type == classify.TypePrice
	}

	for r := 0; r < min(d.opts.ScanRows, g.RowCount()); r++ {
		minC, maxC, n := -1, -1, 0
		for c := 0; c < width; c++ {
			if isPrice(r, c) {
				if minC < 0 {
					minC = c
				}
				maxC = c
				n++
			}
		}
		if n < 2 {
			continue
		}

		sec := Section{
			Found:       true,
			Orientation: PricingMatrix,
			StartRow:    r,
			EndRow:      r,
			StartCol:    minC,
			EndCol:      maxC,
			HeaderRow:   -1,
			HeaderCol:   -1,
		}

		blank := 0
		for row := r + 1; row < g.RowCount(); row++ {
			priced := false
			for c := minC; c <= maxC; c++ {
				if isPrice(row, c) {
					priced = true
					break
				}
			}
			if priced {
				sec.EndRow, blank = row, 0
				continue
			}
			if !isBlankSpan(g, row, minC, maxC) {
				break
			}
			blank++
			if blank >= d.opts.BlankRunLimit {
				break
			}
		}

		if r > 0 && !isBlankSpan(g, r-1, minC, maxC) {
			sec.HeaderRow = r - 1
		}
		if minC > 0 && !isBlankSpan(Transpose(g), minC-1, sec.StartRow, sec.EndRow) {
			sec.HeaderCol = minC - 1
		}
		return sec
	}

	return notFound()
}

// HeaderMatch is the result of MatchInclusionHeader.
type HeaderMatch struct {
	OK        bool     `json:"ok"`
	Exact     bool     `json:"exact"`
	Keyword   string   `json:"keyword,omitempty"`
	Qualifier string   `json:"qualifier,omitempty"`
	Inline    []string `json:"inline,omitempty"`
}

// MatchInclusionHeader reports whether text is an inclusions heading such as
// "What's Included", "Includes:" or "Villa Inclusions". An accommodation name
// attached to the heading is returned as Qualifier; items written after the
// keyword in the same cell are returned as Inline.
func (d *Detector) MatchInclusionHeader(text string) HeaderMatch {
	lines := SplitLines(text)
	if len(lines) == 0 {
		return HeaderMatch{}
	}
	first := normaliseApostrophes(lines[0])
	if m, _ := classify.DetectMarker(first); m != classify.MarkerNone {
		return HeaderMatch{}
	}

	lower := strings.ToLower(first)
	t := strings.TrimSpace(strings.TrimRight(lower, ":"))
	// Byte offsets into lower only carry over when lowering kept the length.
	orig := first
	if len(orig) != len(lower) {
		orig = lower
	}
	rest := lines[1:]

	for _, kw := range d.headers {
		switch {
		case t == kw:
			return HeaderMatch{OK: true, Exact: true, Keyword: kw, Inline: rest}

		case strings.HasPrefix(t, kw) && len(t) > len(kw):
			sep, _ := utf8.DecodeRuneInString(t[len(kw):])
			if !strings.ContainsRune(" :-–(", sep) {
				continue
			}
			tail := strings.TrimSpace(strings.Trim(orig[len(kw):], " :-–()"))
			if tail == "" {
				return HeaderMatch{OK: true, Keyword: kw, Inline: rest}
			}
			if len(strings.Fields(tail)) <= 3 && d.classifier.DetectAccommodationType(tail).IsAccommodation {
				return HeaderMatch{OK: true, Keyword: kw, Qualifier: tail, Inline: rest}
			}
			if sep == ':' || len(strings.Fields(t)) <= 6 {
				return HeaderMatch{OK: true, Keyword: kw, Inline: append(splitInline(tail), rest...)}
			}

		case strings.HasSuffix(t, " "+kw):
			head := strings.TrimSpace(strings.Trim(orig[:len(t)-len(kw)], " :-–"))
			if head != "" && d.classifier.DetectAccommodationType(head).IsAccommodation {
				return HeaderMatch{OK: true, Keyword: kw, Qualifier: head, Inline: rest}
			}
		}
	}
	return HeaderMatch{}
}

// FindInclusionsSections returns every inclusions block in the grid: blocks
// under a keyword heading first, then header-less runs of marker lines.
// Near-duplicates are not removed here.
func (d *Detector) FindInclusionsSections(g Grid) []Section {
	rows, cols := g.RowCount(), g.ColCount()
	covered := make(map[[2]int]bool)
	var out []Section

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := g.At(r, c)
			if v == "" {
				continue
			}
			hm := d.MatchInclusionHeader(v)
			if !hm.OK {
				continue
			}
			sec := d.headedContent(g, r, c, v, hm)
			covered[[2]int{r, c}] = true
			for row := sec.StartRow; row <= sec.EndRow; row++ {
				covered[[2]int{row, c}] = true
			}
			out = append(out, sec)
		}
	}

	for c := 0; c < cols; c++ {
		out = append(out, d.markerRuns(g, c, covered)...)
	}
	return out
}

// FindInclusionsSection returns the most confident inclusions block.
func (d *Detector) FindInclusionsSection(g Grid) Section {
	best := notFound()
	for _, s := range d.FindInclusionsSections(g) {
		if s.Confidence > best.Confidence {
			best = s
		}
	}
	return best
}

// headedContent collects the lines below a heading at (r, c) until a blank
// run or the next heading.
func (d *Detector) headedContent(g Grid, r, c int, header string, hm HeaderMatch) Section {
	sec := Section{
		Found:       true,
		Orientation: InclusionsList,
		StartRow:    r + 1,
		EndRow:      r,
		StartCol:    c,
		EndCol:      c,
		HeaderRow:   r,
		HeaderCol:   -1,
		Header:      SplitLines(header)[0],
	}

	items, marked := 0, 0
	count := func(lines []string) {
		for _, line := range lines {
			items++
			if m, _ := classify.DetectMarker(line); m != classify.MarkerNone {
				marked++
			}
		}
	}
	count(hm.Inline)

	blank := 0
	for row := r + 1; row < g.RowCount(); row++ {
		v := g.At(row, c)
		if v == "" {
			blank++
			if blank >= d.opts.BlankRunLimit {
				break
			}
			continue
		}
		// A heading merged over several rows reads the same on each.
		if v == header {
			sec.StartRow = row + 1
			continue
		}
		if d.MatchInclusionHeader(v).OK {
			break
		}
		blank = 0
		sec.EndRow = row
		count(SplitLines(v))
	}

	base := 0.4
	if hm.Exact {
		base = 0.5
	}
	sec.Items = items
	sec.Confidence = confidence.Combine(base, itemsFactor(items), markerFactor(marked, items))
	return sec
}

// markerRuns finds header-less runs of at least MinPatternRun marker lines
// in column c.
func (d *Detector) markerRuns(g Grid, c int, covered map[[2]int]bool) []Section {
	var out []Section
	start, end, count, blank := -1, -1, 0, 0

	flush := func() {
		if start >= 0 && count >= d.opts.MinPatternRun {
			out = append(out, Section{
				Found:       true,
				Orientation: InclusionsList,
				StartRow:    start,
				EndRow:      end,
				StartCol:    c,
				EndCol:      c,
				HeaderRow:   -1,
				HeaderCol:   -1,
				Items:       count,
				Confidence:  confidence.Combine(0.25, itemsFactor(count), markerFactor(count, count)),
			})
		}
		start, end, count, blank = -1, -1, 0, 0
	}

	for r := 0; r < g.RowCount(); r++ {
		if covered[[2]int{r, c}] {
			flush()
			continue
		}
		v := g.At(r, c)
		if v == "" {
			if start >= 0 {
				blank++
				if blank >= d.opts.BlankRunLimit {
					flush()
				}
			}
			continue
		}
		lines := SplitLines(v)
		allMarked := true
		for _, line := range lines {
			if m, _ := classify.DetectMarker(line); m == classify.MarkerNone {
				allMarked = false
				break
			}
		}
		if !allMarked {
			flush()
			continue
		}
		if start < 0 {
			start = r
		}
		end, blank = r, 0
		count += len(lines)
	}
	flush()
	return out
}

// itemsFactor rewards larger blocks, capped at five items.
func itemsFactor(items int) confidence.Factor {
	return confidence.Factor{Name: "items", Delta: confidence.Bound(0.05*float64(items), 0.25)}
}

// markerFactor rewards blocks where at least half the lines carry a list marker.
func markerFactor(marked, items int) confidence.Factor {
	if items == 0 || marked*2 < items {
		return confidence.Factor{Name: "markers"}
	}
	return confidence.Factor{Name: "markers", Delta: 0.1}
}

// SplitLines splits a cell on newlines, trimming and dropping blank lines.
func SplitLines(v string) []string {
	var out []string
	for _, line := range strings.Split(v, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func splitInline(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normaliseApostrophes(s string) string {
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}

// sortedHeaders canonicalises heading keywords, longest first so that
// "what's included" is tried before "included".
func sortedHeaders(headers []string) []string {
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		out = append(out, normaliseApostrophes(strings.ToLower(strings.TrimSpace(h))))
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}
