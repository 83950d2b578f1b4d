package pricing

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
	"github.com/JonMunkholm/sheetimport/internal/metadata"
	"github.com/JonMunkholm/sheetimport/internal/numfmt"
)

// ErrMissingPrice is returned by NormalizePricing under MissingError when a
// cell holds no usable price.
var ErrMissingPrice = errors.New("missing price")

// MissingPolicy decides what happens to blank or unparseable price cells.
type MissingPolicy string

const (
	MissingMarkUnavailable MissingPolicy = "mark-unavailable"
	MissingSkip            MissingPolicy = "skip"
	MissingError           MissingPolicy = "error"
)

// ParseMissingPolicy validates a policy name.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(s); p {
	case MissingMarkUnavailable, MissingSkip, MissingError:
		return p, nil
	}
	return "", fmt.Errorf("unknown missing-price policy %q (want mark-unavailable, skip or error)", s)
}

// Conversion multiplies every fixed price by Rate and relabels it To. When
// From is set only matrices quoted in From are converted.
type Conversion struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}

// Rounding rounds fixed prices half-up to Precision decimals.
type Rounding struct {
	Enabled   bool `json:"enabled"`
	Precision int  `json:"precision"`
}

// NormalizerConfig configures a Normalizer. A nil PreserveSpecialPeriods
// keeps special periods.
type NormalizerConfig struct {
	PreserveSpecialPeriods *bool         `json:"preserveSpecialPeriods,omitempty"`
	HandleMissingPrices    MissingPolicy `json:"handleMissingPrices"`
	CurrencyConversion     *Conversion   `json:"currencyConversion,omitempty"`
	PriceRounding          Rounding      `json:"priceRounding"`
}

// DefaultNormalizerConfig keeps special periods, marks missing prices
// unavailable and rounds to cents.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		PreserveSpecialPeriods: Bool(true),
		HandleMissingPrices:    MissingMarkUnavailable,
		PriceRounding:          Rounding{Enabled: true, Precision: 2},
	}
}

// Bool returns a pointer to b, for NormalizerConfig.PreserveSpecialPeriods.
func Bool(b bool) *bool {
	return &b
}

// Summary counts the outcome of a normalization.
type Summary struct {
	TotalEntries       int      `json:"totalEntries"`
	AvailableEntries   int      `json:"availableEntries"`
	UnavailableEntries int      `json:"unavailableEntries"`
	SkippedEntries     int      `json:"skippedEntries,omitempty"`
	SpecialPeriods     []string `json:"specialPeriods"`
	ExcludedPeriods    []string `json:"excludedPeriods,omitempty"`
}

// Result is the outcome of NormalizePricing.
type Result struct {
	Success bool    `json:"success"`
	Data    []Entry `json:"data"`
	Summary Summary `json:"summary"`
}

// Normalizer flattens matrices into entries.
type Normalizer struct {
	cfg        NormalizerConfig
	classifier *classify.Classifier
	tables     dictionary.Tables
	meta       *metadata.Extractor
}

// NewNormalizer returns a Normalizer. An empty HandleMissingPrices means
// MissingMarkUnavailable and a nil PreserveSpecialPeriods means true.
func NewNormalizer(c *classify.Classifier, m *metadata.Extractor, cfg NormalizerConfig) *Normalizer {
	if cfg.HandleMissingPrices == "" {
		cfg.HandleMissingPrices = MissingMarkUnavailable
	}
	if cfg.PreserveSpecialPeriods == nil {
		cfg.PreserveSpecialPeriods = Bool(true)
	}
	return &Normalizer{cfg: cfg, classifier: c, tables: c.Tables(), meta: m}
}

// Config returns the effective configuration.
func (n *Normalizer) Config() NormalizerConfig {
	return n.cfg
}

// NormalizePricing emits one entry per (period x accommodation row) cell of
// m. On-request cells are always kept as unavailable ON_REQUEST entries. Under MissingMarkUnavailable every combination is kept and blank or
// unparseable cells become unavailable entries. Under MissingSkip they are
// left out and counted in Summary.SkippedEntries. Under MissingError the
// first such cell aborts with ErrMissingPrice.
//
// Ambiguous cells such as "1.200" are read in the separator convention the
// rest of the matrix uses. When PreserveSpecialPeriods is false, special-period columns are left out
// and listed in Summary.ExcludedPeriods.
func (n *Normalizer) NormalizePricing(m Matrix) (Result, error) {
	res := Result{
		Data:    []Entry{},
		Summary: Summary{SpecialPeriods: []string{}},
	}
	seenPeriod := make(map[string]bool)

	currency, rate := n.conversionFor(m.Metadata.Currency)
	hint := numfmt.DominantFormat(m.cells())

	for j, month := range m.Months {
		special := n.specialPeriod(month)
		if special != "" {
			if !*n.cfg.PreserveSpecialPeriods {
				res.Summary.ExcludedPeriods = append(res.Summary.ExcludedPeriods, month)
				continue
			}
			if !seenPeriod[special] {
				seenPeriod[special] = true
				res.Summary.SpecialPeriods = append(res.Summary.SpecialPeriods, special)
			}
		}

		for i, at := range m.AccommodationTypes {
			raw := m.Cell(i, j)
			row, col := m.source(i, j)

			entry := Entry{
				Month:             month,
				AccommodationType: at.Name,
				Category:          at.Category,
				Nights:            max(at.Nights, 1),
				Pax:               max(at.Pax, 1),
				PaxMax:            at.PaxMax,
				Currency:          currency,
				SpecialPeriod:     special,
				SourceRow:         row,
				SourceCol:         col,
			}

			price, ok := n.parsePrice(raw, hint)
			if price.Status == StatusOnRequest {
				entry.Price = price
				res.Data = append(res.Data, entry)
				res.Summary.UnavailableEntries++
				continue
			}
			if !ok {
				switch n.cfg.HandleMissingPrices {
				case MissingSkip:
					res.Summary.SkippedEntries++
					continue
				case MissingError:
					res.Success = false
					return res, fmt.Errorf("%w: %s / %s (cell %q)", ErrMissingPrice, at.Name, month, raw)
				}
				entry.Price = price
				res.Data = append(res.Data, entry)
				res.Summary.UnavailableEntries++
				continue
			}

			if code := n.cellCurrency(raw); code != "" && rate == 1 {
				entry.Currency = code
			}
			amount := price.Amount * rate
			if n.cfg.PriceRounding.Enabled {
				amount = numfmt.Round(amount, n.cfg.PriceRounding.Precision)
			}
			entry.Price = Fixed(amount)
			entry.IsAvailable = true
			res.Data = append(res.Data, entry)
			res.Summary.AvailableEntries++
		}
	}

	res.Summary.TotalEntries = len(res.Data)
	res.Success = true
	return res, nil
}

// parsePrice reads a cell. ok is false for anything that is not a fixed
// amount; the returned Price then carries the matching sentinel.
func (n *Normalizer) parsePrice(raw string, hint numfmt.Format) (Price, bool) {
	cleaned := numfmt.CleanCell(raw)
	if cleaned == "" {
		return Price{Status: StatusUnavailable}, false
	}
	if dictionary.Contains(n.tables.OnRequestTerms, cleaned) {
		return Price{Status: StatusOnRequest}, false
	}
	r := numfmt.ParseWith(cleaned, hint)
	if !r.Valid {
		return Price{Status: StatusUnavailable}, false
	}
	return Fixed(r.Value), true
}

// conversionFor returns the currency label and multiplier for a matrix
// quoted in from. A conversion restricted to one currency leaves matrices of
// unknown currency alone.
func (n *Normalizer) conversionFor(from string) (string, float64) {
	conv := n.cfg.CurrencyConversion
	if conv == nil || conv.Rate <= 0 || conv.To == "" {
		return from, 1
	}
	if conv.From != "" && conv.From != from {
		return from, 1
	}
	return conv.To, conv.Rate
}

// cellCurrency returns the currency written in a single cell, if any.
func (n *Normalizer) cellCurrency(raw string) string {
	if n.meta == nil {
		return ""
	}
	return n.meta.DetectCurrency([]string{raw}).Code
}

// specialPeriod returns the keyword portion of a special-period label, or
// "" for calendar months and plain column labels.
func (n *Normalizer) specialPeriod(label string) string {
	m := n.classifier.DetectMonth(label)
	if !m.IsMonth || m.Format != classify.FormatSpecial {
		return ""
	}
	return m.Name
}
