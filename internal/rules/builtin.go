package rules

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
	"github.com/JonMunkholm/sheetimport/internal/numfmt"
)

// NewDefaultEngine returns an engine loaded with Builtin rules.
func NewDefaultEngine(c *classify.Classifier) *Engine {
	e := NewEngine()
	e.MustRegister(Builtin(c)...)
	return e
}

// Builtin returns the standard rules for the import fields: month and price
// are required, numbers and currencies must parse, and every field is
// checked for placeholder text and stray whitespace.
func Builtin(c *classify.Classifier) []Rule {
	t := c.Tables()
	return []Rule{
		{Name: "month-required", Field: "month", Description: "month must be present", Check: required("month")},
		{Name: "month-format", Field: "month", Description: "month must be a month name or special period", Check: monthFormat(c)},
		{Name: "price-required", Field: "price", Description: "price must be present", Check: required("price")},
		{Name: "price-format", Field: "price", Description: "price must be a non-negative amount or on request", Check: priceFormat(t)},
		{Name: "nights-positive", Field: "nights", Description: "nights must be a whole number of at least 1", Check: positiveInt("nights")},
		{Name: "pax-positive", Field: "pax", Description: "pax must be a whole number of at least 1", Check: positiveInt("pax")},
		{Name: "currency-code", Field: "currency", Description: "currency must be a known symbol or ISO code", Check: currency(t)},
		{Name: "placeholder", Field: Wildcard, Description: "placeholder text such as TBD", Check: placeholder(t)},
		{Name: "whitespace", Field: Wildcard, Description: "leading or trailing whitespace", Check: whitespace},
	}
}

func issue(sev Severity, format string, args ...any) []Issue {
	return []Issue{{Severity: sev, Message: fmt.Sprintf(format, args...)}}
}

func required(field string) Check {
	return func(v string, _ Context) []Issue {
		if numfmt.CleanCell(v) == "" {
			return issue(SeverityError, "Field '%s' is required", field)
		}
		return nil
	}
}

func monthFormat(c *classify.Classifier) Check {
	return func(v string, _ Context) []Issue {
		v = numfmt.CleanCell(v)
		if v == "" || c.DetectMonth(v).IsMonth {
			return nil
		}
		return issue(SeverityError, "'%s' is not a recognised month or period", v)
	}
}

func priceFormat(t dictionary.Tables) Check {
	return func(v string, _ Context) []Issue {
		v = numfmt.CleanCell(v)
		if v == "" || dictionary.Contains(t.OnRequestTerms, v) {
			return nil
		}
		f, ok := numfmt.ParseFloat(v)
		switch {
		case !ok:
			return issue(SeverityError, "'%s' is not a valid price", v)
		case f < 0:
			return issue(SeverityError, "Price %s is negative", v)
		case f == 0:
			return issue(SeverityWarning, "Price is zero; confirm this is intended")
		}
		return nil
	}
}

func positiveInt(field string) Check {
	return func(v string, _ Context) []Issue {
		v = numfmt.CleanCell(v)
		if v == "" {
			return nil
		}
		f, ok := numfmt.ParseFloat(v)
		if !ok || f != float64(int64(f)) || f < 1 {
			return issue(SeverityError, "%s must be a whole number of at least 1, got '%s'", field, v)
		}
		return nil
	}
}

func currency(t dictionary.Tables) Check {
	return func(v string, _ Context) []Issue {
		v = numfmt.CleanCell(v)
		if v == "" || t.IsCurrencyCode(strings.ToUpper(v)) {
			return nil
		}
		if _, ok := t.CurrencyBySymbol(v); ok {
			return nil
		}
		return issue(SeverityWarning, "'%s' is not a recognised currency", v)
	}
}

func placeholder(t dictionary.Tables) Check {
	return func(v string, _ Context) []Issue {
		if s := numfmt.CleanCell(v); s != "" && dictionary.Contains(t.Placeholders, s) {
			return issue(SeverityWarning, "'%s' looks like placeholder text", s)
		}
		return nil
	}
}

func whitespace(v string, _ Context) []Issue {
	if v != "" && v != strings.TrimSpace(v) {
		return issue(SeverityInfo, "Value has leading or trailing whitespace")
	}
	return nil
}
