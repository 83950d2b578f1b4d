package classify

import (
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/confidence"
)

// MonthSequence describes how well an ordered list of headers reads as a
// run of calendar months.
type MonthSequence struct {
	IsSequence bool    `json:"isSequence"`
	Months     []int   `json:"months"`
	Specials   int     `json:"specials"`
	Contiguous bool    `json:"contiguous"`
	Confidence float64 `json:"confidence"`
}

// SequenceAnalysis summarises the token types found in an ordered list.
type SequenceAnalysis struct {
	DominantType TokenType         `json:"dominantType"`
	Counts       map[TokenType]int `json:"counts"`
	Ratio        float64           `json:"ratio"`
	Confidence   float64           `json:"confidence"`
	Tokens       []Token           `json:"tokens"`
}

// DetectMonthSequence checks headers for consecutive calendar months.
// Blank headers are ignored; special periods may appear anywhere in the run
// without breaking contiguity. December wraps to January.
func (c *Classifier) DetectMonthSequence(headers []string) MonthSequence {
	seq := MonthSequence{Months: []int{}}
	nonEmpty := 0

	for _, h := range headers {
		if strings.TrimSpace(h) == "" {
			continue
		}
		nonEmpty++
		m := c.DetectMonth(h)
		if !m.IsMonth {
			continue
		}
		if m.Format == FormatSpecial {
			seq.Specials++
			continue
		}
		seq.Months = append(seq.Months, m.Number)
	}

	matched := len(seq.Months) + seq.Specials
	if matched == 0 {
		return seq
	}

	seq.Contiguous = len(seq.Months) > 0
	for i := 1; i < len(seq.Months); i++ {
		if seq.Months[i] != seq.Months[i-1]%12+1 {
			seq.Contiguous = false
			break
		}
	}

	ratio := confidence.Ratio(matched, nonEmpty)
	seq.Confidence = confidence.Combine(ratio, contiguityFactor(seq.Contiguous, len(seq.Months)))
	seq.IsSequence = matched >= 2 && ratio >= 0.5
	return seq
}

// contiguityFactor penalises month runs that skip or repeat months.
func contiguityFactor(contiguous bool, n int) confidence.Factor {
	if contiguous || n < 2 {
		return confidence.Factor{Name: "contiguity"}
	}
	return confidence.Factor{Name: "contiguity", Delta: -0.3}
}

// AnalyzeSequence classifies every value and reports the dominant
// non-empty type. Confidence is the share of non-empty values that carry
// the dominant type; ties go to the type declared first.
func (c *Classifier) AnalyzeSequence(values []string) SequenceAnalysis {
	out := SequenceAnalysis{
		DominantType: TypeEmpty,
		Counts:       make(map[TokenType]int),
		Tokens:       make([]Token, len(values)),
	}

	nonEmpty := 0
	for i, v := range values {
		tok := c.ClassifyContent(v)
		out.Tokens[i] = tok
		out.Counts[tok.Type]++
		if tok.Type != TypeEmpty {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return out
	}

	best := 0
	for _, t := range typeOrder {
		if t == TypeEmpty {
			continue
		}
		if n := out.Counts[t]; n > best {
			best = n
			out.DominantType = t
		}
	}

	out.Ratio = confidence.Ratio(best, nonEmpty)
	out.Confidence = out.Ratio
	return out
}
