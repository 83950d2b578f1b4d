package pricing

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
	"github.com/JonMunkholm/sheetimport/internal/numfmt"
)

// Severity classifies a validation issue. Errors block acceptance.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rule names.
const (
	RuleCurrencyConsistency = "currency-consistency"
	RulePriceReasonableness = "price-reasonableness"
	RuleZeroPrices          = "zero-prices"
	RulePriceProgression    = "price-progression"
)

// Issue is one validation finding. Row and Column point at the source cell
// when it is known.
type Issue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Row      *int     `json:"row,omitempty"`
	Column   *int     `json:"column,omitempty"`
}

// Bounds is a per-person-per-night price band before category and currency
// scaling.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ValidatorConfig configures a Validator. Category multipliers scale Bounds
// by accommodation category; currency factors scale them for currencies
// whose unit is far from the euro's.
type ValidatorConfig struct {
	CurrencyConsistencyCheck bool               `json:"currencyConsistencyCheck"`
	PriceReasonablenessCheck bool               `json:"priceReasonablenessCheck"`
	AllowZeroPrices          bool               `json:"allowZeroPrices"`
	ProgressionCheck         bool               `json:"progressionCheck"`
	ExpectedCurrency         string             `json:"expectedCurrency,omitempty"`
	Bounds                   Bounds             `json:"bounds"`
	CategoryMultipliers      map[string]float64 `json:"categoryMultipliers"`
	CurrencyFactors          map[string]float64 `json:"currencyFactors"`
}

// DefaultValidatorConfig enables every rule with a 10-2000 base band.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		CurrencyConsistencyCheck: true,
		PriceReasonablenessCheck: true,
		ProgressionCheck:         true,
		Bounds:                   Bounds{Min: 10, Max: 2000},
		CategoryMultipliers: map[string]float64{
			"Self-Catering": 0.6,
			"Apartment":     0.8,
			"Hotel":         1.0,
			"Resort":        1.3,
			"Villa":         1.6,
		},
		CurrencyFactors: map[string]float64{
			"JPY": 150,
		},
	}
}

// Report is the outcome of Validate.
type Report struct {
	IsValid      bool    `json:"isValid"`
	Issues       []Issue `json:"issues"`
	ErrorCount   int     `json:"errorCount"`
	WarningCount int     `json:"warningCount"`
	InfoCount    int     `json:"infoCount"`
}

func (r *Report) add(iss Issue) {
	r.Issues = append(r.Issues, iss)
	switch iss.Severity {
	case SeverityError:
		r.ErrorCount++
	case SeverityWarning:
		r.WarningCount++
	default:
		r.InfoCount++
	}
}

// Validator checks normalized entries. It never modifies them.
type Validator struct {
	cfg        ValidatorConfig
	classifier *classify.Classifier
	tables     dictionary.Tables
}

// NewValidator returns a Validator. Zero Bounds fall back to the defaults.
func NewValidator(c *classify.Classifier, cfg ValidatorConfig) *Validator {
	def := DefaultValidatorConfig()
	if cfg.Bounds.Max <= 0 {
		cfg.Bounds = def.Bounds
	}
	if cfg.CategoryMultipliers == nil {
		cfg.CategoryMultipliers = def.CategoryMultipliers
	}
	if cfg.CurrencyFactors == nil {
		cfg.CurrencyFactors = def.CurrencyFactors
	}
	return &Validator{cfg: cfg, classifier: c, tables: c.Tables()}
}

// Validate runs the enabled rules over entries.
func (v *Validator) Validate(entries []Entry) Report {
	rep := Report{Issues: []Issue{}}

	if v.cfg.CurrencyConsistencyCheck {
		v.checkCurrencyConsistency(entries, &rep)
	}
	for _, e := range entries {
		if !e.IsAvailable || !e.Price.IsFixed() {
			continue
		}
		if e.Price.Amount == 0 {
			if !v.cfg.AllowZeroPrices {
				rep.add(entryIssue(e, RuleZeroPrices, SeverityWarning, "price",
					fmt.Sprintf("%s / %s has a zero price", e.AccommodationType, e.Month)))
			}
			continue
		}
		if v.cfg.PriceReasonablenessCheck {
			if rc := v.checkEntry(e); !rc.Reasonable {
				rep.add(entryIssue(e, RulePriceReasonableness, SeverityWarning, "price",
					fmt.Sprintf("%s / %s: %s", e.AccommodationType, e.Month, rc.Reason)))
			}
		}
	}
	if v.cfg.ProgressionCheck {
		v.checkProgression(entries, &rep)
	}

	rep.IsValid = rep.ErrorCount == 0
	return rep
}

// checkCurrencyConsistency flags entries whose currency differs from the
// expected one, or from the first currency seen when none is expected.
func (v *Validator) checkCurrencyConsistency(entries []Entry, rep *Report) {
	var seen []string
	for _, e := range entries {
		if e.Currency != "" && !slices.Contains(seen, e.Currency) {
			seen = append(seen, e.Currency)
		}
	}

	if want := v.cfg.ExpectedCurrency; want != "" {
		for _, cur := range seen {
			if cur != want {
				rep.add(Issue{
					Rule:     RuleCurrencyConsistency,
					Severity: SeverityError,
					Field:    "currency",
					Message:  fmt.Sprintf("Prices are quoted in %s but %s was expected", cur, want),
				})
			}
		}
		return
	}
	if len(seen) > 1 {
		rep.add(Issue{
			Rule:     RuleCurrencyConsistency,
			Severity: SeverityError,
			Field:    "currency",
			Message:  fmt.Sprintf("Multiple currencies found: %s", strings.Join(seen, ", ")),
		})
	}
}

// checkProgression warns when a longer stay costs less than a shorter one
// for the same accommodation, party size and period.
func (v *Validator) checkProgression(entries []Entry, rep *Report) {
	type key struct {
		typ, month  string
		pax, paxMax int
	}
	groups := make(map[key][]Entry)
	var order []key
	for _, e := range entries {
		if !e.IsAvailable || !e.Price.IsFixed() {
			continue
		}
		k := key{e.AccommodationType, e.Month, e.Pax, e.PaxMax}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	for _, k := range order {
		g := groups[k]
		if len(g) < 2 {
			continue
		}
		slices.SortStableFunc(g, func(a, b Entry) int { return a.Nights - b.Nights })
		for i := 1; i < len(g); i++ {
			prev, cur := g[i-1], g[i]
			if cur.Nights == prev.Nights || cur.Price.Amount >= prev.Price.Amount {
				continue
			}
			rep.add(entryIssue(cur, RulePriceProgression, SeverityWarning, "price",
				fmt.Sprintf("%s / %s: %d nights (%s) costs less than %d nights (%s)",
					k.typ, k.month, cur.Nights, cur.Price, prev.Nights, prev.Price)))
		}
	}
}

func entryIssue(e Entry, rule string, sev Severity, field, msg string) Issue {
	iss := Issue{Rule: rule, Severity: sev, Field: field, Message: msg}
	if e.SourceRow >= 0 && e.SourceCol >= 0 {
		row, col := e.SourceRow, e.SourceCol
		iss.Row, iss.Column = &row, &col
	}
	return iss
}

// CurrencyCheck is the result of DetectAndValidateCurrency.
type CurrencyCheck struct {
	Currency string  `json:"currency"`
	Symbol   string  `json:"symbol,omitempty"`
	Amount   float64 `json:"amount"`
	IsValid  bool    `json:"isValid"`
}

var currencyCodeRegex = regexp.MustCompile(`\b[A-Z]{3}\b`)

// DetectAndValidateCurrency reads the currency and amount from a price
// string: "€150.00" is EUR 150. IsValid requires both a known currency and a
// parseable amount.
func (v *Validator) DetectAndValidateCurrency(text string) CurrencyCheck {
	var res CurrencyCheck
	for _, cur := range v.tables.Currencies {
		if cur.Symbol != cur.Code && strings.Contains(text, cur.Symbol) {
			res.Currency, res.Symbol = cur.Code, cur.Symbol
			break
		}
	}
	if res.Currency == "" {
		for _, code := range currencyCodeRegex.FindAllString(text, -1) {
			if v.tables.IsCurrencyCode(code) {
				res.Currency = code
				break
			}
		}
	}

	amount, ok := numfmt.ParseFloat(text)
	res.Amount = amount
	res.IsValid = res.Currency != "" && ok
	return res
}

// ValidateNumberFormat parses text and reports which separator convention
// it was written in.
func (v *Validator) ValidateNumberFormat(text string) numfmt.Result {
	return numfmt.Parse(text)
}

// Reasonableness is the result of CheckPriceReasonableness.
type Reasonableness struct {
	Reasonable   bool    `json:"isReasonable"`
	PerPerson    float64 `json:"perPersonPerNight"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Reason       string  `json:"reason,omitempty"`
	CategoryUsed string  `json:"category,omitempty"`
}

// CheckPriceReasonableness reduces price to a per-person-per-night figure
// and compares it with the band for the accommodation's category.
func (v *Validator) CheckPriceReasonableness(price float64, currency, accommodationType string, nights, pax int) Reasonableness {
	category := ""
	if m := v.classifier.DetectAccommodationType(accommodationType); m.IsAccommodation {
		category = m.Category
	}
	return v.reasonableness(price, currency, category, nights, pax)
}

func (v *Validator) checkEntry(e Entry) Reasonableness {
	if e.Category == "" {
		return v.CheckPriceReasonableness(e.Price.Amount, e.Currency, e.AccommodationType, e.Nights, e.Pax)
	}
	return v.reasonableness(e.Price.Amount, e.Currency, e.Category, e.Nights, e.Pax)
}

func (v *Validator) reasonableness(price float64, currency, category string, nights, pax int) Reasonableness {
	nights, pax = max(nights, 1), max(pax, 1)
	scale := 1.0
	if m, ok := v.cfg.CategoryMultipliers[category]; ok {
		scale = m
	}
	if f, ok := v.cfg.CurrencyFactors[currency]; ok {
		scale *= f
	}

	res := Reasonableness{
		PerPerson:    numfmt.Round(price/float64(nights)/float64(pax), 2),
		Min:          v.cfg.Bounds.Min * scale,
		Max:          v.cfg.Bounds.Max * scale,
		CategoryUsed: category,
	}
	switch {
	case res.PerPerson < res.Min:
		res.Reason = fmt.Sprintf("%.2f per person per night is below the expected minimum of %.2f", res.PerPerson, res.Min)
	case res.PerPerson > res.Max:
		res.Reason = fmt.Sprintf("%.2f per person per night is above the expected maximum of %.2f", res.PerPerson, res.Max)
	default:
		res.Reasonable = true
	}
	return res
}
