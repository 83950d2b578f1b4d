// Package mapping maps arbitrary tabular headers onto the system's import
// fields, coerces mapped rows, and manages reusable mapping templates.
//
// Suggestions are scored the same way as the rest of the pipeline: a base
// confidence from the header pattern match, adjusted by named factors for
// sample-type consistency, co-occurring related headers and historical use.
package mapping

import (
	"regexp"
	"strings"
)

// DataType is how a mapped column's raw text is coerced.
type DataType string

const (
	TypeString   DataType = "string"
	TypeNumber   DataType = "number"
	TypeCurrency DataType = "currency"
	TypeList     DataType = "list"
)

// Valid reports whether d is a known data type.
func (d DataType) Valid() bool {
	switch d {
	case TypeString, TypeNumber, TypeCurrency, TypeList:
		return true
	}
	return false
}

// sampleKind is what a field's sample values are expected to look like.
type sampleKind int

const (
	kindAny sampleKind = iota
	kindMonth
	kindPrice
	kindInteger
	kindAccommodation
	kindText
)

// Field describes one system field that headers can be mapped to. Aliases
// are exact header spellings; Patterns are regular expressions matched
// against the normalised header. Related lists fields whose presence in the
// same header set makes this one more likely.
type Field struct {
	Name     string
	DataType DataType
	Required bool
	Aliases  []string
	Patterns []*regexp.Regexp
	Related  []string
	kind     sampleKind
}

func field(name string, dt DataType, required bool, kind sampleKind, aliases []string, patterns []string, related ...string) Field {
	f := Field{Name: name, DataType: dt, Required: required, Aliases: aliases, Related: related, kind: kind}
	for _, p := range patterns {
		f.Patterns = append(f.Patterns, regexp.MustCompile(`(?i)`+p))
	}
	return f
}

// DefaultFields returns the import fields for resort pricing sheets. Order
// breaks ties between equally scored fields.
func DefaultFields() []Field {
	return []Field{
		field("month", TypeString, true, kindMonth,
			[]string{"month", "months", "period", "season", "travel month"},
			[]string{`\bmonths?\b`, `\bperiod\b`, `\bseason\b`, `travel date`},
			"price", "accommodationType"),
		field("price", TypeCurrency, true, kindPrice,
			[]string{"price", "rate", "cost", "amount", "total", "price pp"},
			[]string{`\bprice`, `\brates?\b`, `\bcost\b`, `\bamount\b`, `\btariff\b`, `per person`},
			"month", "accommodationType", "currency"),
		field("accommodationType", TypeString, false, kindAccommodation,
			[]string{"accommodation", "accommodation type", "room type", "room", "unit type", "property type"},
			[]string{`accommodation`, `\broom\b`, `\bunit\b`, `\bproperty\b`, `\blodging\b`},
			"price", "month"),
		field("nights", TypeNumber, false, kindInteger,
			[]string{"nights", "night", "no. of nights", "duration", "length of stay"},
			[]string{`\bnights?\b`, `\bnts\b`, `\bduration\b`, `\bstay\b`},
			"pax", "price"),
		field("pax", TypeNumber, false, kindInteger,
			[]string{"pax", "people", "persons", "guests", "occupancy", "adults"},
			[]string{`\bpax\b`, `\bpeople\b`, `\bpersons?\b`, `\bguests?\b`, `\boccupancy\b`, `\badults?\b`},
			"nights", "price"),
		field("inclusions", TypeList, false, kindText,
			[]string{"inclusions", "includes", "included", "what's included", "amenities"},
			[]string{`includ`, `\bamenit`, `\bfacilities\b`}),
		field("currency", TypeString, false, kindAny,
			[]string{"currency", "ccy", "cur"},
			[]string{`\bcurrency\b`},
			"price"),
		field("resortName", TypeString, false, kindText,
			[]string{"resort", "resort name", "hotel name", "property name"},
			[]string{`\bresort\b`, `hotel name`, `property name`}),
		field("description", TypeString, false, kindText,
			[]string{"description", "notes", "details", "comments"},
			[]string{`\bdescription\b`, `\bnotes?\b`, `\bdetails\b`}),
	}
}

// normaliseHeader lowercases h and collapses punctuation and whitespace
// runs to single spaces.
func normaliseHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "-", " ", ".", " ", ":", " ", "/", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}
