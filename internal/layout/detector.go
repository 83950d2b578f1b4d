// Package layout identifies how a worksheet is arranged and where its
// pricing and inclusions blocks sit.
//
// Four archetypes are scored independently by running the content classifier
// over the top-left of the grid:
//
//   - months-in-columns: a header row of consecutive months, one row per
//     accommodation type
//   - months-in-rows: the same grid turned on its side
//   - pricing-matrix: a numeric block bounded by a header row and column,
//     whatever the headers say
//   - inclusions-list: a bulleted or numbered block under a keyword header
//
// Archetypes are not mutually exclusive. The best one becomes the primary
// layout and every other one above MinSecondary is reported as secondary.
package layout

import (
	"sort"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/confidence"
)

// Type names a layout archetype.
type Type string

const (
	MonthsInColumns Type = "months-in-columns"
	MonthsInRows    Type = "months-in-rows"
	PricingMatrix   Type = "pricing-matrix"
	InclusionsList  Type = "inclusions-list"
	Unknown         Type = "unknown"
)

// Options tunes detection. Zero fields fall back to DefaultOptions.
type Options struct {
	ScanRows      int     // rows examined when looking for headers
	ScanCols      int     // columns examined when looking for headers
	MinSecondary  float64 // minimum confidence for a secondary layout
	BlankRunLimit int     // consecutive blank rows/cols that end a block
	MinPatternRun int     // marker lines needed for a header-less inclusions block
}

// DefaultOptions returns the standard detection thresholds.
func DefaultOptions() Options {
	return Options{
		ScanRows:      20,
		ScanCols:      20,
		MinSecondary:  0.3,
		BlankRunLimit: 3,
		MinPatternRun: 3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ScanRows <= 0 {
		o.ScanRows = d.ScanRows
	}
	if o.ScanCols <= 0 {
		o.ScanCols = d.ScanCols
	}
	if o.MinSecondary <= 0 {
		o.MinSecondary = d.MinSecondary
	}
	if o.BlankRunLimit <= 0 {
		o.BlankRunLimit = d.BlankRunLimit
	}
	if o.MinPatternRun <= 0 {
		o.MinPatternRun = d.MinPatternRun
	}
	return o
}

// Layout is one scored archetype.
type Layout struct {
	Type       Type     `json:"type"`
	Confidence float64  `json:"confidence"`
	Headers    []string `json:"headers"`
	Metadata   Section  `json:"metadata"`
}

// Result is the outcome of Detect.
type Result struct {
	Primary     Layout   `json:"primaryLayout"`
	Secondary   []Layout `json:"secondaryLayouts"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Find returns the layout of type t if it was reported.
func (r Result) Find(t Type) (Layout, bool) {
	if r.Primary.Type == t {
		return r.Primary, true
	}
	for _, l := range r.Secondary {
		if l.Type == t {
			return l, true
		}
	}
	return Layout{}, false
}

// Has reports whether a layout of type t was reported.
func (r Result) Has(t Type) bool {
	_, ok := r.Find(t)
	return ok
}

// Detector scores layouts over a grid.
type Detector struct {
	classifier *classify.Classifier
	opts       Options
	headers    []string
}

// NewDetector builds a Detector. The classifier's tables supply the
// inclusion-header vocabulary.
func NewDetector(c *classify.Classifier, opts Options) *Detector {
	return &Detector{
		classifier: c,
		opts:       opts.withDefaults(),
		headers:    sortedHeaders(c.Tables().InclusionHeaders),
	}
}

// Options returns the effective options.
func (d *Detector) Options() Options {
	return d.opts
}

// Classifier returns the classifier the detector runs.
func (d *Detector) Classifier() *classify.Classifier {
	return d.classifier
}

// Detect scores every archetype and ranks them.
func (d *Detector) Detect(g Grid) Result {
	candidates := []Layout{
		d.monthsLayout(g, MonthsInColumns),
		d.monthsLayout(g, MonthsInRows),
		d.matrixLayout(g),
		d.inclusionsLayout(g),
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	var res Result
	if candidates[0].Confidence > 0 {
		res.Primary = candidates[0]
		candidates = candidates[1:]
	} else {
		res.Primary = Layout{Type: Unknown, Headers: []string{}, Metadata: notFound()}
		res.Suggestions = append(res.Suggestions,
			"No pricing grid or inclusions block was recognised. Put month names in a header row or column, or label the inclusions block with a heading such as \"What's Included\".")
	}

	for _, l := range candidates {
		if l.Confidence >= d.opts.MinSecondary {
			res.Secondary = append(res.Secondary, l)
		}
	}
	if res.Secondary == nil {
		res.Secondary = []Layout{}
	}
	return res
}

func (d *Detector) monthsLayout(g Grid, t Type) Layout {
	sec, seqConf := d.monthsSection(g, t)
	l := Layout{Type: t, Headers: []string{}, Metadata: sec}
	if !sec.Found {
		return l
	}

	l.Headers = columnHeaders(g, sec)
	density := d.priceDensity(g, sec)
	l.Confidence = confidence.Combine(0,
		confidence.Factor{Name: "sequence", Delta: 0.6 * seqConf},
		confidence.Factor{Name: "density", Delta: 0.4 * density},
	)
	l.Metadata.Confidence = l.Confidence
	return l
}

func (d *Detector) matrixLayout(g Grid) Layout {
	sec := d.numericBlock(g)
	l := Layout{Type: PricingMatrix, Headers: []string{}, Metadata: sec}
	if !sec.Found {
		return l
	}

	l.Headers = columnHeaders(g, sec)
	l.Confidence = confidence.Combine(0,
		confidence.Factor{Name: "density", Delta: 0.4 * d.priceDensity(g, sec)},
		confidence.Factor{Name: "header-row", Delta: 0.2 * headerRowFill(g, sec)},
		confidence.Factor{Name: "header-col", Delta: 0.2 * headerColFill(g, sec)},
	)
	l.Metadata.Confidence = l.Confidence
	return l
}

func (d *Detector) inclusionsLayout(g Grid) Layout {
	sec := d.FindInclusionsSection(g)
	l := Layout{Type: InclusionsList, Headers: []string{}, Metadata: sec}
	if !sec.Found {
		return l
	}
	if sec.Header != "" {
		l.Headers = []string{sec.Header}
	}
	l.Confidence = sec.Confidence
	return l
}

// priceDensity is the share of data cells in sec that classify as prices.
func (d *Detector) priceDensity(g Grid, sec Section) float64 {
	total, priced := 0, 0
	for r := sec.StartRow; r <= sec.EndRow; r++ {
		for c := sec.StartCol; c <= sec.EndCol; c++ {
			total++
			if d.classifier.ClassifyContent(g.At(r, c)).Type == classify.TypePrice {
				priced++
			}
		}
	}
	return confidence.Ratio(priced, total)
}

// columnHeaders returns the header-row labels above the data region, or the
// header-column labels when the section is row-oriented.
func columnHeaders(g Grid, sec Section) []string {
	headers := []string{}
	if sec.Orientation == MonthsInRows {
		if sec.HeaderCol < 0 {
			return headers
		}
		for r := sec.StartRow; r <= sec.EndRow; r++ {
			headers = append(headers, g.At(r, sec.HeaderCol))
		}
		return headers
	}
	if sec.HeaderRow < 0 {
		return headers
	}
	for c := sec.StartCol; c <= sec.EndCol; c++ {
		headers = append(headers, g.At(sec.HeaderRow, c))
	}
	return headers
}

func headerRowFill(g Grid, sec Section) float64 {
	if sec.HeaderRow < 0 {
		return 0
	}
	filled := 0
	for c := sec.StartCol; c <= sec.EndCol; c++ {
		if g.At(sec.HeaderRow, c) != "" {
			filled++
		}
	}
	return confidence.Ratio(filled, sec.EndCol-sec.StartCol+1)
}

func headerColFill(g Grid, sec Section) float64 {
	if sec.HeaderCol < 0 {
		return 0
	}
	filled := 0
	for r := sec.StartRow; r <= sec.EndRow; r++ {
		if g.At(r, sec.HeaderCol) != "" {
			filled++
		}
	}
	return confidence.Ratio(filled, sec.EndRow-sec.StartRow+1)
}
