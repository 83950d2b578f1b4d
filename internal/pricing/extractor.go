package pricing

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/layout"
	"github.com/JonMunkholm/sheetimport/internal/metadata"
)

// labelSpan is how many columns left of the data may be read as row labels,
// so that "Hotel" | "2 nights" side by side decomposes like "Hotel 2 nights".
const labelSpan = 3

// Extraction is the result of ExtractPricingMatrix.
type Extraction struct {
	Found       bool              `json:"found"`
	Matrix      Matrix            `json:"matrix"`
	Section     layout.Section    `json:"section"`
	Currency    metadata.Currency `json:"currency"`
	Suggestions []string          `json:"suggestions,omitempty"`
}

// Extractor builds pricing matrices from grids.
type Extractor struct {
	detector   *layout.Detector
	classifier *classify.Classifier
	meta       *metadata.Extractor
}

// NewExtractor returns an Extractor that locates blocks with d and reads
// sheet context with m.
func NewExtractor(d *layout.Detector, m *metadata.Extractor) *Extractor {
	return &Extractor{detector: d, classifier: d.Classifier(), meta: m}
}

// ExtractPricingMatrix locates the pricing block of g and reads it into a
// Matrix. Merged cells read as their anchor value wherever the grid resolves
// merges, missing trailing cells are blank, and the block ends at the first
// blank run configured on the detector. A grid without a pricing block
// yields Found=false and suggestions rather than an error.
func (e *Extractor) ExtractPricingMatrix(sheetName string, g layout.Grid) Extraction {
	sec := e.detector.FindPricingSection(g)
	if !sec.Found {
		return Extraction{
			Matrix:  emptyMatrix(),
			Section: sec,
			Suggestions: []string{
				"No pricing block was found. Lay prices out in a grid with period names across the top (or down the side) and accommodation types on the other axis.",
			},
		}
	}

	view, vsec := g, sec
	monthsInRows := sec.Orientation == layout.MonthsInRows
	if monthsInRows {
		view, vsec = layout.Transpose(g), sec.Transpose()
	}

	m := emptyMatrix()
	m.MonthsInRows = monthsInRows

	var cols []int
	for c := vsec.StartCol; c <= vsec.EndCol; c++ {
		label := ""
		if vsec.HeaderRow >= 0 {
			label = view.At(vsec.HeaderRow, c)
		}
		if label == "" {
			if columnBlank(view, c, vsec.StartRow, vsec.EndRow) {
				continue
			}
			label = fmt.Sprintf("Column %d", c+1)
		}
		cols = append(cols, c)
		m.Months = append(m.Months, label)
		m.MonthPositions = append(m.MonthPositions, c)
	}

	labelCols := labelColumns(view, vsec)
	for r := vsec.StartRow; r <= vsec.EndRow; r++ {
		label := rowLabel(view, r, labelCols)
		row := make([]string, len(cols))
		blank := label == ""
		for j, c := range cols {
			row[j] = view.At(r, c)
			if row[j] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if label == "" {
			label = fmt.Sprintf("Row %d", r+1)
		}
		m.AccommodationTypes = append(m.AccommodationTypes, e.DecomposeLabel(label))
		m.TypePositions = append(m.TypePositions, r)
		m.PriceGrid = append(m.PriceGrid, row)
	}

	currency := e.DetectCurrency(view, vsec)
	if currency.Code == "" {
		currency = e.meta.ExtractMetadata(sheetName, g).Currency
	}
	m.Metadata = MatrixMetadata{
		Currency:   currency.Code,
		ResortName: e.meta.ExtractResortName(sheetName).Value,
	}

	ex := Extraction{Found: true, Matrix: m, Section: sec, Currency: currency}
	if sec.Orientation == layout.PricingMatrix {
		ex.Suggestions = append(ex.Suggestions,
			"Column headers were not recognised as months or seasons; check that period names are spelled out (e.g. \"January\", \"Easter\").")
	}
	if currency.Code == "" {
		ex.Suggestions = append(ex.Suggestions,
			"No currency symbol or code was found; add one to the prices or the header (e.g. \"Prices in EUR\").")
	}
	if len(m.AccommodationTypes) == 0 {
		ex.Suggestions = append(ex.Suggestions, "The pricing block has a header but no priced rows.")
	}
	return ex
}

// DecomposeLabel splits a row label such as "Hotel 2 nights 2 pax" into its
// accommodation type, stay length and party size. Nights and pax default to 1.
func (e *Extractor) DecomposeLabel(label string) AccommodationType {
	np := e.classifier.DetectNightsPax(label)
	name := np.Remainder
	if name == "" {
		name = strings.TrimSpace(label)
	}

	at := AccommodationType{
		Name:        name,
		Description: strings.TrimSpace(label),
		Nights:      1,
		Pax:         1,
	}
	if np.HasNights && np.Nights > 0 {
		at.Nights = np.Nights
	}
	if np.HasPax && np.Pax > 0 {
		at.Pax = np.Pax
		at.PaxMax = np.PaxMax
	}
	if acc := e.classifier.DetectAccommodationType(name); acc.IsAccommodation {
		at.Category = acc.Category
		at.Code = acc.Code
	}
	return at
}

// DetectCurrency runs the currency vote over the pricing block, its headers
// and the two rows above it, where "Prices in EUR" style notes usually sit.
func (e *Extractor) DetectCurrency(g layout.Grid, sec layout.Section) metadata.Currency {
	top := sec.StartRow
	if sec.HeaderRow >= 0 {
		top = sec.HeaderRow
	}
	left := sec.StartCol
	if sec.HeaderCol >= 0 {
		left = sec.HeaderCol
	}

	var cells []string
	for r := max(0, top-2); r <= sec.EndRow; r++ {
		for c := left; c <= sec.EndCol; c++ {
			if v := g.At(r, c); v != "" {
				cells = append(cells, v)
			}
		}
	}
	return e.meta.DetectCurrency(cells)
}

// labelColumns picks the columns read as row labels: the one next to the
// data, plus further columns to its left whose values vary by row. A title
// merged across the whole block reads the same on every row and is skipped.
func labelColumns(g layout.Grid, sec layout.Section) []int {
	first := sec.StartCol - 1
	if first < 0 {
		return nil
	}
	cols := []int{first}
	for c := first - 1; c >= max(0, sec.StartCol-labelSpan); c-- {
		if columnBlank(g, c, sec.StartRow, sec.EndRow) || columnConstant(g, c, sec.StartRow, sec.EndRow) {
			break
		}
		cols = append([]int{c}, cols...)
	}
	return cols
}

// rowLabel joins the distinct non-blank label cells of row r.
func rowLabel(g layout.Grid, r int, cols []int) string {
	var parts []string
	for _, c := range cols {
		v := g.At(r, c)
		if v == "" {
			continue
		}
		if len(parts) > 0 && parts[len(parts)-1] == v {
			continue
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}

func columnConstant(g layout.Grid, c, fromRow, toRow int) bool {
	if toRow <= fromRow {
		return true
	}
	first := g.At(fromRow, c)
	for r := fromRow + 1; r <= toRow; r++ {
		if g.At(r, c) != first {
			return false
		}
	}
	return true
}

func columnBlank(g layout.Grid, c, fromRow, toRow int) bool {
	for r := fromRow; r <= toRow; r++ {
		if g.At(r, c) != "" {
			return false
		}
	}
	return true
}

func emptyMatrix() Matrix {
	return Matrix{
		Months:             []string{},
		AccommodationTypes: []AccommodationType{},
		PriceGrid:          [][]string{},
	}
}
