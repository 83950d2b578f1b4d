// Package numfmt converts the messy number text found in partner spreadsheets
// into float64 values.
//
// It handles the realities of hand-edited pricing sheets:
//   - US (1,234.56) and European (1.234,56) separator conventions
//   - Currency symbols and ISO codes on either side of the amount
//   - Accounting negatives "(123.45)"
//   - Spaces, non-breaking spaces and apostrophes used as thousands separators
//   - Excel formula prefixes (="value") and stray quotes
//
// Parse never panics; unparseable input reports ok=false.
package numfmt

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Format names the separator convention detected in a number.
type Format string

const (
	FormatUS       Format = "US"
	FormatEuropean Format = "European"
	FormatPlain    Format = "plain"
	FormatInvalid  Format = "invalid"
)

var (
	// numericRegex validates the canonical form after separators are resolved.
	numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

	usGroupedRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)
	euGroupedRegex = regexp.MustCompile(`^[+-]?\d{1,3}(\.\d{3})+(,\d+)?$`)

	// ambiguousDotRegex is "1.200": European thousands or a plain decimal.
	ambiguousDotRegex = regexp.MustCompile(`^\d{1,3}\.\d{3}$`)

	leadingCodeRegex  = regexp.MustCompile(`^[A-Z]{3}([\s\d])`)
	trailingCodeRegex = regexp.MustCompile(`([\s\d])[A-Z]{3}$`)
)

// Result is the outcome of parsing one number.
type Result struct {
	Value  float64 `json:"value"`
	Format Format  `json:"format"`
	Valid  bool    `json:"isValid"`
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, an Excel formula prefix (="...") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// Parse converts s to a number, detecting its separator convention. The
// ambiguous "1.200" form is read as European thousands when s carries a euro
// sign and as a decimal otherwise.
func Parse(s string) Result {
	return ParseWith(s, "")
}

// ParseWith is Parse with the convention of the surrounding cells as a hint
// for the ambiguous "1.200" form. FormatEuropean reads it as 1200, FormatUS
// and FormatPlain as 1.2. An empty hint behaves like Parse.
func ParseWith(s string, hint Format) Result {
	s = CleanCell(s)
	if s == "" {
		return Result{Format: FormatInvalid}
	}
	if hint == "" && strings.ContainsRune(s, '€') {
		hint = FormatEuropean
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = stripCurrency(s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, s)

	canonical, format, ok := resolveSeparators(s, hint)
	if !ok || !numericRegex.MatchString(canonical) {
		return Result{Format: FormatInvalid}
	}

	v, err := strconv.ParseFloat(canonical, 64)
	if err != nil || math.IsInf(v, 0) {
		return Result{Format: FormatInvalid}
	}
	if negative {
		v = -v
	}

	return Result{Value: v, Format: format, Valid: true}
}

// ParseFloat is Parse reduced to value and ok.
func ParseFloat(s string) (float64, bool) {
	r := Parse(s)
	return r.Value, r.Valid
}

// IsNumeric reports whether s parses as a number.
func IsNumeric(s string) bool {
	return Parse(s).Valid
}

// stripCurrency removes currency symbols anywhere in s and an upper-case
// ISO code at either end.
func stripCurrency(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	s = leadingCodeRegex.ReplaceAllString(s, "$1")
	s = trailingCodeRegex.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// DominantFormat returns the separator convention used by the majority of
// values that state one unambiguously, or "" when none do or the count ties.
func DominantFormat(values []string) Format {
	us, eu := 0, 0
	for _, v := range values {
		switch ParseWith(v, FormatPlain).Format {
		case FormatUS:
			us++
		case FormatEuropean:
			eu++
		}
	}
	switch {
	case us > eu:
		return FormatUS
	case eu > us:
		return FormatEuropean
	}
	return ""
}

// resolveSeparators rewrites s into canonical "1234.56" form.
func resolveSeparators(s string, hint Format) (string, Format, bool) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			if !euGroupedRegex.MatchString(s) {
				return "", FormatInvalid, false
			}
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1), FormatEuropean, true
		}
		if !usGroupedRegex.MatchString(s) {
			return "", FormatInvalid, false
		}
		return strings.ReplaceAll(s, ",", ""), FormatUS, true

	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || usGroupedRegex.MatchString(s) && !strings.HasPrefix(s, "0") {
			if !usGroupedRegex.MatchString(s) {
				return "", FormatInvalid, false
			}
			return strings.ReplaceAll(s, ",", ""), FormatUS, true
		}
		return strings.Replace(s, ",", ".", 1), FormatEuropean, true

	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			if !euGroupedRegex.MatchString(s) {
				return "", FormatInvalid, false
			}
			return strings.ReplaceAll(s, ".", ""), FormatEuropean, true
		}
		if hint == FormatEuropean && ambiguousDotRegex.MatchString(s) {
			return strings.Replace(s, ".", "", 1), FormatEuropean, true
		}
		return s, FormatPlain, true
	}

	return s, FormatPlain, true
}

// Round rounds v half-up (away from zero) to precision decimal places.
// Precision 0 yields whole numbers; negative precision is treated as 0.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	pow := math.Pow(10, float64(precision))
	scaled := math.Abs(v) * pow
	// Nudge past binary representation error (2.675 is stored as 2.67499...).
	rounded := math.Floor(scaled+0.5+1e-9) / pow
	if v < 0 {
		return -rounded
	}
	return rounded
}
