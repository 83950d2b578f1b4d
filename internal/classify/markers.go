package classify

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Marker is the kind of list prefix found at the start of a line.
type Marker string

const (
	MarkerNone     Marker = ""
	MarkerBullet   Marker = "bullet"
	MarkerNumbered Marker = "numbered"
)

var (
	// "1.", "2)", "(3)"
	digitMarkerRegex = regexp.MustCompile(`^(?:\d{1,2}[.)]|\(\d{1,2}\))\s*`)
	// "a.", "b)", "iv."
	letterMarkerRegex = regexp.MustCompile(`^(?i:[a-z]|[ivx]{1,4})[.)]\s+`)
)

const bulletRunes = "•·◦▪▫■□●○‣⁃∙*>–—✓✔-+"

// DetectMarker reports the list marker prefixing text and returns text with
// the marker removed. Text without a marker is returned trimmed.
func DetectMarker(text string) (Marker, string) {
	t := strings.TrimSpace(text)
	if t == "" {
		return MarkerNone, ""
	}

	if loc := digitMarkerRegex.FindStringIndex(t); loc != nil {
		rest := t[loc[1]:]
		// "1.5 nights" is a number, not a numbered line.
		if rest != "" && !startsWithDigit(rest) {
			return MarkerNumbered, strings.TrimSpace(rest)
		}
	}
	if loc := letterMarkerRegex.FindStringIndex(t); loc != nil {
		return MarkerNumbered, strings.TrimSpace(t[loc[1]:])
	}

	r, size := utf8.DecodeRuneInString(t)
	if strings.ContainsRune(bulletRunes, r) {
		rest := t[size:]
		// "-50" and "+20" are signed numbers.
		if (r == '-' || r == '+') && startsWithDigit(rest) {
			return MarkerNone, t
		}
		// Repeated runes such as "---" are placeholder rules, not bullets.
		if strings.Trim(rest, string(r)) == "" {
			return MarkerNone, t
		}
		return MarkerBullet, strings.TrimSpace(rest)
	}
	if (r == 'o' || r == 'O') && len(t) > 2 && (t[1] == ' ' || t[1] == '\t') {
		return MarkerBullet, strings.TrimSpace(t[2:])
	}

	return MarkerNone, t
}

func startsWithDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsDigit(r)
}
