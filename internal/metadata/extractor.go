// Package metadata pulls sheet-level context out of a pricing workbook: the
// resort name carried by the tab name, the currency the prices are quoted in,
// and the special pricing periods the sheet defines.
package metadata

import (
	"regexp"
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/confidence"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
	"github.com/JonMunkholm/sheetimport/internal/layout"
)

var (
	// "2024", "2024/25", "2024-2025", "24/25", "FY24"
	yearTokenRegex = regexp.MustCompile(`(?i)^(fy)?(\d{2}|\d{4})([/\-–]\d{2,4})?$`)
	// "v2", "(1)", "copy"
	versionTokenRegex = regexp.MustCompile(`(?i)^(v\d+|\(\d+\)|#\d+)$`)
	// "Sheet1", "Tabelle2"
	defaultTabRegex = regexp.MustCompile(`(?i)^(sheet|tabelle|feuil|hoja|foglio)\s*\d*$`)

	isoCodeRegex   = regexp.MustCompile(`\b[A-Z]{3}\b`)
	dateRangeRegex = regexp.MustCompile(`\(([^)]*)\)`)
)

var noiseWords = []string{
	"rates", "rate", "prices", "price", "pricing", "price list", "tariff", "tariffs",
	"final", "draft", "copy", "updated", "new", "sheet", "season",
}

// ResortName is the cleaned resort name and how sure the extractor is of it.
type ResortName struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Currency is the result of a currency majority vote.
type Currency struct {
	Code       string         `json:"code"`
	Confidence float64        `json:"confidence"`
	Counts     map[string]int `json:"counts"`
}

// SpecialPeriod is a named pricing window found in the sheet.
type SpecialPeriod struct {
	Label      string  `json:"label"`
	Name       string  `json:"name"`
	DateRange  string  `json:"dateRange,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Metadata aggregates everything extracted from one sheet.
type Metadata struct {
	ResortName     ResortName      `json:"resortName"`
	Currency       Currency        `json:"currency"`
	SpecialPeriods []SpecialPeriod `json:"specialPeriods"`
}

// Extractor derives Metadata from a sheet name and grid.
type Extractor struct {
	classifier *classify.Classifier
	tables     dictionary.Tables
}

// New returns an Extractor using the classifier's dictionaries.
func New(c *classify.Classifier) *Extractor {
	return &Extractor{classifier: c, tables: c.Tables()}
}

// ExtractMetadata runs every extraction over the whole grid.
func (e *Extractor) ExtractMetadata(sheetName string, g layout.Grid) Metadata {
	var cells []string
	for r := 0; r < g.RowCount(); r++ {
		for c := 0; c < g.ColCount(); c++ {
			if v := g.At(r, c); v != "" {
				cells = append(cells, v)
			}
		}
	}

	return Metadata{
		ResortName:     e.ExtractResortName(sheetName),
		Currency:       e.DetectCurrency(cells),
		SpecialPeriods: e.IdentifySpecialPeriods(cells),
	}
}

// ExtractResortName strips trailing years, versions and noise words such as
// "Rates" or "Price List" from a tab name: "Sunset Bay Resort 2024/25 Rates"
// becomes "Sunset Bay Resort". Default tab names yield an empty value.
func (e *Extractor) ExtractResortName(sheetName string) ResortName {
	name := strings.TrimSpace(strings.NewReplacer("_", " ", "\t", " ").Replace(sheetName))
	if name == "" || defaultTabRegex.MatchString(name) {
		return ResortName{}
	}

	tokens := strings.Fields(name)
	stripped := false
	for len(tokens) > 0 {
		last := strings.Trim(tokens[len(tokens)-1], "-–|,.")
		if last == "" || isNoise(last) {
			tokens = tokens[:len(tokens)-1]
			stripped = true
			continue
		}
		if len(tokens) >= 2 && isNoise(strings.ToLower(tokens[len(tokens)-2]+" "+last)) {
			tokens = tokens[:len(tokens)-2]
			stripped = true
			continue
		}
		break
	}

	value := strings.Trim(strings.Join(tokens, " "), " -–|,")
	if value == "" {
		return ResortName{}
	}

	conf := confidence.Combine(0.9, strippedFactor(stripped), shortNameFactor(value))
	return ResortName{Value: value, Confidence: conf}
}

func isNoise(token string) bool {
	return yearTokenRegex.MatchString(token) ||
		versionTokenRegex.MatchString(token) ||
		dictionary.Contains(noiseWords, token)
}

// strippedFactor lowers confidence slightly when the name had to be cleaned.
func strippedFactor(stripped bool) confidence.Factor {
	if stripped {
		return confidence.Factor{Name: "stripped", Delta: -0.1}
	}
	return confidence.Factor{Name: "stripped"}
}

// shortNameFactor penalises one- and two-letter names, which are usually codes.
func shortNameFactor(value string) confidence.Factor {
	if len([]rune(value)) <= 2 {
		return confidence.Factor{Name: "short", Delta: -0.4}
	}
	return confidence.Factor{Name: "short"}
}

// DetectCurrency counts currency symbols and ISO codes across cells and
// returns the majority. Ties go to the currency listed first in the tables.
func (e *Extractor) DetectCurrency(cells []string) Currency {
	res := Currency{Counts: make(map[string]int)}
	total := 0

	for _, cell := range cells {
		for _, code := range e.currenciesIn(cell) {
			res.Counts[code]++
			total++
		}
	}
	if total == 0 {
		return res
	}

	best := 0
	for _, cur := range e.tables.Currencies {
		if n := res.Counts[cur.Code]; n > best {
			best = n
			res.Code = cur.Code
		}
	}
	res.Confidence = confidence.Combine(confidence.Ratio(best, total), sampleSizeFactor(total))
	return res
}

// sampleSizeFactor discounts votes decided by one or two cells.
func sampleSizeFactor(total int) confidence.Factor {
	if total < 3 {
		return confidence.Factor{Name: "sample-size", Delta: -0.2}
	}
	return confidence.Factor{Name: "sample-size"}
}

// currenciesIn returns the distinct currency codes mentioned in one cell.
func (e *Extractor) currenciesIn(cell string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}

	for _, cur := range e.tables.Currencies {
		if cur.Symbol != cur.Code && strings.Contains(cell, cur.Symbol) {
			add(cur.Code)
		}
	}
	for _, code := range isoCodeRegex.FindAllString(cell, -1) {
		if e.tables.IsCurrencyCode(code) {
			add(code)
		}
	}
	return out
}

// IdentifySpecialPeriods finds labels naming a special period, optionally
// followed by a parenthetical date range: "Easter (18-21 Apr)". Each period
// name is reported once, at its first occurrence.
func (e *Extractor) IdentifySpecialPeriods(labels []string) []SpecialPeriod {
	out := []SpecialPeriod{}
	seen := make(map[string]bool)

	for _, label := range labels {
		m := e.classifier.DetectMonth(label)
		if !m.IsMonth || m.Format != classify.FormatSpecial {
			continue
		}
		key := dictionary.Canonical(m.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		sp := SpecialPeriod{
			Label:      strings.TrimSpace(label),
			Name:       m.Name,
			Confidence: m.Confidence,
		}
		if dr := dateRangeRegex.FindStringSubmatch(label); dr != nil {
			sp.DateRange = strings.TrimSpace(dr[1])
		}
		out = append(out, sp)
	}
	return out
}
