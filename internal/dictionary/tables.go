// Package dictionary holds the static lookup tables used by the classification
// pipeline: month names, special-period keywords, accommodation categories,
// currency symbols, placeholder text and inclusion vocabularies.
//
// Tables are plain values. Components receive a Tables at construction and
// never mutate it, so a locale override is a matter of loading a different
// Tables (see LoadFile) rather than touching algorithm code.
package dictionary

import "strings"

// Month describes one calendar month and the spellings it is recognised by.
type Month struct {
	Number int      `yaml:"number"`
	Full   string   `yaml:"full"`
	Abbrev []string `yaml:"abbrev"`
}

// Category groups keywords under a canonical name. Order within a slice of
// categories is significant: earlier categories win ties.
type Category struct {
	Name     string   `yaml:"name"`
	Code     string   `yaml:"code,omitempty"`
	Keywords []string `yaml:"keywords"`
}

// Currency maps a printed symbol to its ISO 4217 code.
type Currency struct {
	Symbol string `yaml:"symbol"`
	Code   string `yaml:"code"`
}

// Tables is the full set of dictionaries consumed by the pipeline.
type Tables struct {
	Months              []Month    `yaml:"months"`
	SpecialPeriods      []string   `yaml:"specialPeriods"`
	Accommodation       []Category `yaml:"accommodation"`
	Currencies          []Currency `yaml:"currencies"`
	Placeholders        []string   `yaml:"placeholders"`
	PlaceholderPrefixes []string   `yaml:"placeholderPrefixes"`
	InclusionHeaders    []string   `yaml:"inclusionHeaders"`
	InclusionCategories []Category `yaml:"inclusionCategories"`
	InclusionBoostTerms []string   `yaml:"inclusionBoostTerms"`
	VagueTerms          []string   `yaml:"vagueTerms"`
	OnRequestTerms      []string   `yaml:"onRequestTerms"`
	UnavailableTerms    []string   `yaml:"unavailableTerms"`
}

// OtherCategory is assigned to inclusions that match no InclusionCategories entry.
const OtherCategory = "Other"

// Default returns the built-in English tables. Each call returns a fresh copy.
func Default() Tables {
	return Tables{
		Months: []Month{
			{Number: 1, Full: "january", Abbrev: []string{"jan"}},
			{Number: 2, Full: "february", Abbrev: []string{"feb"}},
			{Number: 3, Full: "march", Abbrev: []string{"mar"}},
			{Number: 4, Full: "april", Abbrev: []string{"apr"}},
			{Number: 5, Full: "may", Abbrev: []string{}},
			{Number: 6, Full: "june", Abbrev: []string{"jun"}},
			{Number: 7, Full: "july", Abbrev: []string{"jul"}},
			{Number: 8, Full: "august", Abbrev: []string{"aug"}},
			{Number: 9, Full: "september", Abbrev: []string{"sep", "sept"}},
			{Number: 10, Full: "october", Abbrev: []string{"oct"}},
			{Number: 11, Full: "november", Abbrev: []string{"nov"}},
			{Number: 12, Full: "december", Abbrev: []string{"dec"}},
		},
		SpecialPeriods: []string{
			"easter",
			"christmas",
			"new year",
			"peak season",
			"high season",
			"low season",
			"off season",
			"off-peak",
			"shoulder season",
			"half term",
			"summer holidays",
		},
		Accommodation: []Category{
			{Name: "Self-Catering", Code: "SC", Keywords: []string{"self-catering", "self catering", "selfcatering"}},
			{Name: "Villa", Code: "VIL", Keywords: []string{"villa", "chalet", "cottage", "bungalow"}},
			{Name: "Apartment", Code: "APT", Keywords: []string{"apartment", "apartments", "apt", "studio", "flat", "condo"}},
			{Name: "Resort", Code: "RES", Keywords: []string{"resort", "all inclusive", "all-inclusive"}},
			{Name: "Hotel", Code: "HTL", Keywords: []string{"hotel", "room", "suite", "guesthouse", "b&b", "inn"}},
		},
		Currencies: []Currency{
			{Symbol: "€", Code: "EUR"},
			{Symbol: "£", Code: "GBP"},
			{Symbol: "$", Code: "USD"},
			{Symbol: "¥", Code: "JPY"},
			{Symbol: "CHF", Code: "CHF"},
		},
		Placeholders: []string{
			"tbd",
			"tba",
			"n/a",
			"na",
			"---",
			"xxx",
			"coming soon",
			"lorem ipsum",
			"placeholder",
			"item",
			"sample",
		},
		PlaceholderPrefixes: []string{
			"example",
			"e.g.",
		},
		InclusionHeaders: []string{
			"what's included",
			"whats included",
			"what is included",
			"inclusions",
			"included",
			"includes",
			"package includes",
			"package contains",
			"price includes",
			"amenities",
			"facilities included",
		},
		InclusionCategories: []Category{
			{Name: "Dining", Keywords: []string{"breakfast", "lunch", "dinner", "meal", "meals", "board", "drinks", "restaurant", "dining", "food", "bar", "wine"}},
			{Name: "Internet", Keywords: []string{"wifi", "wi-fi", "internet", "broadband"}},
			{Name: "Facilities", Keywords: []string{"pool", "gym", "spa", "parking", "sauna", "tennis", "golf", "towels", "linen", "access", "room", "lounge"}},
			{Name: "Transport", Keywords: []string{"transfer", "transfers", "airport", "shuttle", "car hire", "flight", "flights", "taxi", "bus"}},
		},
		InclusionBoostTerms: []string{
			"included",
			"complimentary",
			"free",
			"daily",
			"unlimited",
			"access",
			"return",
		},
		VagueTerms: []string{
			"various",
			"some",
			"certain",
			"etc",
			"other",
			"stuff",
			"things",
		},
		OnRequestTerms: []string{
			"on request",
			"poa",
			"price on application",
			"request",
			"enquire",
		},
		UnavailableTerms: []string{
			"n/a",
			"na",
			"-",
			"--",
			"x",
			"closed",
			"not available",
			"unavailable",
		},
	}
}

// Canonical lowercases and trims s so that table lookups are case-insensitive.
func Canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Contains reports whether term appears in list after canonicalisation.
func Contains(list []string, term string) bool {
	term = Canonical(term)
	for _, v := range list {
		if Canonical(v) == term {
			return true
		}
	}
	return false
}

// CurrencyBySymbol returns the ISO code for a printed symbol.
func (t Tables) CurrencyBySymbol(symbol string) (string, bool) {
	for _, c := range t.Currencies {
		if c.Symbol == symbol {
			return c.Code, true
		}
	}
	return "", false
}

// IsCurrencyCode reports whether code is one of the known ISO codes.
func (t Tables) IsCurrencyCode(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range t.Currencies {
		if c.Code == code {
			return true
		}
	}
	return false
}
