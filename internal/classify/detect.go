package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/confidence"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
)

// MonthFormat describes how a month was written.
type MonthFormat string

const (
	FormatFull        MonthFormat = "full"
	FormatAbbreviated MonthFormat = "abbreviated"
	FormatSpecial     MonthFormat = "special"
)

// MonthMatch is the result of DetectMonth. Number is 1-12 for calendar
// months and 0 for special periods.
type MonthMatch struct {
	IsMonth    bool        `json:"isMonth"`
	Format     MonthFormat `json:"format,omitempty"`
	Confidence float64     `json:"confidence"`
	Number     int         `json:"number,omitempty"`
	Name       string      `json:"name,omitempty"`
}

// AccommodationMatch is the result of DetectAccommodationType.
type AccommodationMatch struct {
	IsAccommodation bool    `json:"isAccommodation"`
	Category        string  `json:"category,omitempty"`
	Code            string  `json:"code,omitempty"`
	Keyword         string  `json:"keyword,omitempty"`
	Confidence      float64 `json:"confidence"`
}

// NightsPax is the result of DetectNightsPax. PaxMax is set for group-size
// tiers such as "6-11 People". Remainder is the input with every matched
// token removed.
type NightsPax struct {
	HasNights  bool    `json:"hasNights"`
	Nights     int     `json:"nights,omitempty"`
	HasPax     bool    `json:"hasPax"`
	Pax        int     `json:"pax,omitempty"`
	PaxMax     int     `json:"paxMax,omitempty"`
	Confidence float64 `json:"confidence"`
	Remainder  string  `json:"remainder,omitempty"`
}

var (
	// "January", "jan.", "Jan-24", "September 2025"
	monthTokenRegex = regexp.MustCompile(`^([\pL]+)\.?(?:[\s\-/'’]*(\d{2}|\d{4}))?$`)

	// "3N/2P", "3n2p", "7N x 2P"
	compactNightsPaxRegex = regexp.MustCompile(`(?i)\b(\d+)\s*n\s*[/x,\-]?\s*(\d+)\s*p\b`)
	nightsRegex           = regexp.MustCompile(`(?i)\b(\d+)\s*(nights?|nts?|n)\b`)
	paxRegex              = regexp.MustCompile(`(?i)\b(\d+)(?:\s*(?:-|–|to)\s*(\d+))?\s*(pax|people|persons?|guests?|adults?|ppl|p)\b`)
)

// DetectMonth recognises full and abbreviated month names, optionally
// followed by a year, and special-period keywords such as "Easter".
func (c *Classifier) DetectMonth(text string) MonthMatch {
	t := dictionary.Canonical(text)
	if t == "" {
		return MonthMatch{}
	}

	if m := monthTokenRegex.FindStringSubmatch(t); m != nil {
		if entry, ok := c.months[m[1]]; ok {
			conf := confidence.Combine(0.6,
				spellingFactor(entry.format),
				decorationFactor(m[2] != ""),
			)
			return MonthMatch{
				IsMonth:    true,
				Format:     entry.format,
				Confidence: conf,
				Number:     entry.number,
				Name:       titleCase(entry.full),
			}
		}
	}

	for _, sp := range c.specials {
		if !sp.re.MatchString(t) {
			continue
		}
		conf := confidence.Combine(0.6,
			spellingFactor(FormatSpecial),
			decorationFactor(t != sp.keyword),
		)
		return MonthMatch{
			IsMonth:    true,
			Format:     FormatSpecial,
			Confidence: conf,
			Name:       SpecialPeriodName(text),
		}
	}

	return MonthMatch{}
}

// SpecialPeriodName returns the keyword portion of a special-period label,
// dropping any parenthetical date range: "Easter (18-21 Apr)" -> "Easter".
func SpecialPeriodName(label string) string {
	if i := strings.Index(label, "("); i >= 0 {
		label = label[:i]
	}
	return strings.TrimSpace(label)
}

// spellingFactor rewards complete spellings over abbreviations.
func spellingFactor(f MonthFormat) confidence.Factor {
	delta := 0.0
	switch f {
	case FormatFull:
		delta = 0.4
	case FormatAbbreviated:
		delta = 0.3
	case FormatSpecial:
		delta = 0.25
	}
	return confidence.Factor{Name: "spelling", Delta: delta}
}

// decorationFactor penalises labels that carry more than the bare name,
// such as a year suffix or a date range.
func decorationFactor(decorated bool) confidence.Factor {
	if !decorated {
		return confidence.Factor{Name: "decoration"}
	}
	return confidence.Factor{Name: "decoration", Delta: -0.15}
}

// DetectAccommodationType matches text against the accommodation
// categories. An exact keyword scores higher than a keyword embedded in a
// longer label; among equal scores the earlier category wins.
func (c *Classifier) DetectAccommodationType(text string) AccommodationMatch {
	t := dictionary.Canonical(text)
	if t == "" {
		return AccommodationMatch{}
	}

	var best AccommodationMatch
	for _, p := range c.accommodation {
		var conf float64
		switch {
		case t == p.keyword:
			conf = confidence.Combine(0.7, exactnessFactor(true))
		case p.re.MatchString(t):
			conf = confidence.Combine(0.7, exactnessFactor(false))
		default:
			continue
		}
		if conf > best.Confidence {
			best = AccommodationMatch{
				IsAccommodation: true,
				Category:        p.category.Name,
				Code:            p.category.Code,
				Keyword:         p.keyword,
				Confidence:      conf,
			}
		}
	}
	return best
}

func exactnessFactor(exact bool) confidence.Factor {
	if exact {
		return confidence.Factor{Name: "exact", Delta: 0.25}
	}
	return confidence.Factor{Name: "exact", Delta: 0.1}
}

// DetectNightsPax extracts stay length and party size from labels such as
// "3N/2P", "2 nights 4 people", "4P" or the tier "6-11 People".
func (c *Classifier) DetectNightsPax(text string) NightsPax {
	var np NightsPax
	rest := text
	explicit := 0

	if m := compactNightsPaxRegex.FindStringSubmatchIndex(rest); m != nil {
		np.Nights, _ = strconv.Atoi(rest[m[2]:m[3]])
		np.Pax, _ = strconv.Atoi(rest[m[4]:m[5]])
		np.HasNights, np.HasPax = true, true
		explicit = 2
		rest = rest[:m[0]] + " " + rest[m[1]:]
	}

	if !np.HasNights {
		if m := nightsRegex.FindStringSubmatchIndex(rest); m != nil {
			np.Nights, _ = strconv.Atoi(rest[m[2]:m[3]])
			np.HasNights = true
			if len(rest[m[4]:m[5]]) > 1 {
				explicit++
			}
			rest = rest[:m[0]] + " " + rest[m[1]:]
		}
	}

	if !np.HasPax {
		if m := paxRegex.FindStringSubmatchIndex(rest); m != nil {
			np.Pax, _ = strconv.Atoi(rest[m[2]:m[3]])
			if m[4] >= 0 {
				np.PaxMax, _ = strconv.Atoi(rest[m[4]:m[5]])
				if np.PaxMax < np.Pax {
					np.Pax, np.PaxMax = np.PaxMax, np.Pax
				}
			}
			np.HasPax = true
			if len(rest[m[6]:m[7]]) > 1 {
				explicit++
			}
			rest = rest[:m[0]] + " " + rest[m[1]:]
		}
	}

	if !np.HasNights && !np.HasPax {
		return NightsPax{Remainder: strings.TrimSpace(text)}
	}

	np.Confidence = confidence.Combine(0.35,
		componentFactor(np.HasNights),
		componentFactor(np.HasPax),
		unitFactor(explicit),
	)
	np.Remainder = strings.Join(strings.Fields(strings.Trim(rest, " -/,|")), " ")
	return np
}

// componentFactor rewards each of nights and pax that was found.
func componentFactor(found bool) confidence.Factor {
	if !found {
		return confidence.Factor{Name: "component"}
	}
	return confidence.Factor{Name: "component", Delta: 0.25}
}

// unitFactor rewards units that are spelled out ("nights", "pax") or part of
// the compact NN/NP form over single-letter suffixes.
func unitFactor(explicit int) confidence.Factor {
	return confidence.Factor{Name: "unit", Delta: confidence.Bound(0.05*float64(explicit), 0.1)}
}
