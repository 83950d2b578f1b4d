// Package classify assigns a semantic type to the text of a single
// spreadsheet cell.
//
// Classification is total: every input yields a Token, and ambiguity shows up
// as a lower confidence or the catch-all text type rather than an error.
// Rules are evaluated in a fixed order and the first rule that matches wins:
//
//	empty -> price -> month -> accommodation -> nights-pax -> text
package classify

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/JonMunkholm/sheetimport/internal/dictionary"
	"github.com/JonMunkholm/sheetimport/internal/numfmt"
)

// TokenType is the semantic type of a cell.
type TokenType string

const (
	TypeEmpty         TokenType = "empty"
	TypePrice         TokenType = "price"
	TypeMonth         TokenType = "month"
	TypeAccommodation TokenType = "accommodation"
	TypeNightsPax     TokenType = "nights-pax"
	TypeText          TokenType = "text"
)

// typeOrder is the declaration order used to break ties between types.
var typeOrder = []TokenType{TypeEmpty, TypePrice, TypeMonth, TypeAccommodation, TypeNightsPax, TypeText}

// OnRequest is the parsed value of a price cell that holds no fixed rate.
const OnRequest = "ON_REQUEST"

// Token is the classification of one cell.
type Token struct {
	Type       TokenType `json:"type"`
	Confidence float64   `json:"confidence"`
	Value      any       `json:"parsedValue,omitempty"`
}

// rule is one step of the dispatcher.
type rule struct {
	name  TokenType
	match func(c *Classifier, text string) (Token, bool)
}

var rules = []rule{
	{TypeEmpty, (*Classifier).matchEmpty},
	{TypePrice, (*Classifier).matchPrice},
	{TypeMonth, (*Classifier).matchMonth},
	{TypeAccommodation, (*Classifier).matchAccommodation},
	{TypeNightsPax, (*Classifier).matchNightsPax},
}

// Classifier holds the dictionaries and the patterns compiled from them.
// It is safe for concurrent use.
type Classifier struct {
	tables dictionary.Tables

	months        map[string]monthEntry
	accommodation []accommodationPattern
	specials      []specialPattern
}

type monthEntry struct {
	number int
	full   string
	format MonthFormat
}

type accommodationPattern struct {
	category dictionary.Category
	keyword  string
	re       *regexp.Regexp
}

type specialPattern struct {
	keyword string
	re      *regexp.Regexp
}

// New builds a Classifier over the given tables.
func New(tables dictionary.Tables) *Classifier {
	c := &Classifier{
		tables: tables,
		months: make(map[string]monthEntry),
	}

	for _, m := range tables.Months {
		full := dictionary.Canonical(m.Full)
		c.months[full] = monthEntry{number: m.Number, full: full, format: FormatFull}
		for _, a := range m.Abbrev {
			a = dictionary.Canonical(a)
			if _, exists := c.months[a]; !exists {
				c.months[a] = monthEntry{number: m.Number, full: full, format: FormatAbbreviated}
			}
		}
	}

	for _, cat := range tables.Accommodation {
		for _, kw := range cat.Keywords {
			kw = dictionary.Canonical(kw)
			c.accommodation = append(c.accommodation, accommodationPattern{
				category: cat,
				keyword:  kw,
				re:       wordPattern(kw),
			})
		}
	}

	for _, kw := range tables.SpecialPeriods {
		kw = dictionary.Canonical(kw)
		c.specials = append(c.specials, specialPattern{keyword: kw, re: wordPattern(kw)})
	}

	return c
}

// Tables returns the dictionaries the classifier was built with.
func (c *Classifier) Tables() dictionary.Tables {
	return c.tables
}

// ClassifyContent classifies a single cell value.
func (c *Classifier) ClassifyContent(text string) Token {
	text = strings.TrimSpace(text)
	for _, r := range rules {
		if tok, ok := r.match(c, text); ok {
			return tok
		}
	}
	return Token{Type: TypeText, Confidence: textConfidence(text), Value: text}
}

func (c *Classifier) matchEmpty(text string) (Token, bool) {
	if text != "" {
		return Token{}, false
	}
	return Token{Type: TypeEmpty, Confidence: 1}, true
}

// matchPrice accepts amounts carrying a currency marker or a decimal
// separator, bare integers at lower confidence, and on-request sentinels.
func (c *Classifier) matchPrice(text string) (Token, bool) {
	if dictionary.Contains(c.tables.OnRequestTerms, text) {
		return Token{Type: TypePrice, Confidence: 0.6, Value: OnRequest}, true
	}

	res := numfmt.Parse(text)
	if !res.Valid {
		return Token{}, false
	}

	switch {
	case c.HasCurrencyMarker(text):
		return Token{Type: TypePrice, Confidence: 0.95, Value: res.Value}, true
	case strings.ContainsAny(numfmt.CleanCell(text), ".,"):
		return Token{Type: TypePrice, Confidence: 0.8, Value: res.Value}, true
	default:
		return Token{Type: TypePrice, Confidence: 0.5, Value: res.Value}, true
	}
}

func (c *Classifier) matchMonth(text string) (Token, bool) {
	m := c.DetectMonth(text)
	if !m.IsMonth {
		return Token{}, false
	}
	return Token{Type: TypeMonth, Confidence: m.Confidence, Value: m}, true
}

func (c *Classifier) matchAccommodation(text string) (Token, bool) {
	a := c.DetectAccommodationType(text)
	if !a.IsAccommodation {
		return Token{}, false
	}
	return Token{Type: TypeAccommodation, Confidence: a.Confidence, Value: a}, true
}

func (c *Classifier) matchNightsPax(text string) (Token, bool) {
	np := c.DetectNightsPax(text)
	if !np.HasNights && !np.HasPax {
		return Token{}, false
	}
	return Token{Type: TypeNightsPax, Confidence: np.Confidence, Value: np}, true
}

// HasCurrencyMarker reports whether text carries a currency symbol or a
// known ISO code.
func (c *Classifier) HasCurrencyMarker(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Sc, r) {
			return true
		}
	}
	upper := strings.ToUpper(text)
	for _, cur := range c.tables.Currencies {
		if strings.Contains(text, cur.Symbol) || strings.Contains(upper, cur.Code) {
			return true
		}
	}
	return false
}

// textConfidence is lower for very short fragments, which are more likely
// to be stray markers than meaningful labels.
func textConfidence(text string) float64 {
	if len([]rune(text)) < 3 {
		return 0.3
	}
	return 0.5
}

// wordPattern matches kw as a whole word, case-insensitively.
func wordPattern(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^\pL\pN])` + regexp.QuoteMeta(kw) + `($|[^\pL\pN])`)
}

// titleCase upper-cases the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
