package mapping

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/JonMunkholm/sheetimport/internal/numfmt"
)

// Record is one mapped row keyed by system field. Values are string,
// float64, int64, []string or nil for coercion failures.
type Record map[string]any

// Transformer rewrites a string value after coercion.
type Transformer func(string) string

// Transformers returns the named transformers templates may reference,
// including any registered with WithTransformer.
func (m *Mapper) Transformers() map[string]Transformer {
	ts := map[string]Transformer{
		"trim":  strings.TrimSpace,
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": titleWords,
		"month-name": func(s string) string {
			if mm := m.classifier.DetectMonth(s); mm.IsMonth {
				return mm.Name
			}
			return s
		},
		"nights-int": func(s string) string {
			if np := m.classifier.DetectNightsPax(s); np.HasNights {
				return fmt.Sprint(np.Nights)
			}
			return s
		},
	}
	for name, t := range m.custom {
		ts[name] = t
	}
	return ts
}

// ApplyMapping coerces rows according to mappings. Columns are looked up by
// header, case-insensitively; a mapping whose column is absent yields nil.
// Inputs are never modified, so applying the same mappings to the same rows
// always produces the same records.
func (m *Mapper) ApplyMapping(headers []string, rows [][]string, mappings []Mapping) []Record {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normaliseHeader(h)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	transformers := m.Transformers()

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := make(Record, len(mappings))
		for _, mp := range mappings {
			pos, ok := idx[normaliseHeader(mp.ExcelColumn)]
			if !ok || pos >= len(row) {
				rec[mp.SystemField] = nil
				continue
			}
			rec[mp.SystemField] = coerce(row[pos], mp, transformers)
		}
		out = append(out, rec)
	}
	return out
}

// coerce converts one raw cell per the mapping's data type.
func coerce(raw string, mp Mapping, transformers map[string]Transformer) any {
	v := numfmt.CleanCell(raw)

	switch mp.DataType {
	case TypeCurrency:
		f, ok := numfmt.ParseFloat(v)
		if !ok {
			return nil
		}
		return f
	case TypeNumber:
		f, ok := numfmt.ParseFloat(v)
		if !ok {
			return nil
		}
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case TypeList:
		return SplitList(v)
	}

	if t, ok := transformers[mp.Transformer]; ok {
		return t(v)
	}
	return v
}

// SplitList splits on commas, semicolons and pipes, dropping blank items.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validation is the result of ValidateMappings.
type Validation struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidateMappings checks that every required field is mapped, that no
// system field is mapped twice and that data types and transformers exist.
func (m *Mapper) ValidateMappings(mappings []Mapping) Validation {
	res := Validation{Errors: []string{}, Warnings: []string{}}

	counts := make(map[string]int)
	for _, mp := range mappings {
		if mp.SystemField != "" {
			counts[mp.SystemField]++
		}
	}
	var dups []string
	for f, n := range counts {
		if n > 1 {
			dups = append(dups, f)
		}
	}
	sort.Strings(dups)
	for _, f := range dups {
		res.Errors = append(res.Errors, fmt.Sprintf("Field '%s' is mapped multiple times", f))
	}

	for _, f := range m.fields {
		if f.Required && counts[f.Name] == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("Required field '%s' is not mapped", f.Name))
		}
	}

	transformers := m.Transformers()
	for _, mp := range mappings {
		switch {
		case mp.SystemField == "":
			res.Errors = append(res.Errors, fmt.Sprintf("Column '%s' has no system field", mp.ExcelColumn))
		case !mp.DataType.Valid():
			res.Errors = append(res.Errors, fmt.Sprintf("Column '%s' has unknown data type %q", mp.ExcelColumn, mp.DataType))
		}
		if mp.Transformer != "" {
			if _, ok := transformers[mp.Transformer]; !ok {
				res.Errors = append(res.Errors, fmt.Sprintf("Column '%s' uses unknown transformer %q", mp.ExcelColumn, mp.Transformer))
			}
		}
		if _, known := m.Field(mp.SystemField); mp.SystemField != "" && !known {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Field '%s' is not a known system field", mp.SystemField))
		}
		if mp.Confidence > 0 && mp.Confidence < 0.5 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Low confidence mapping for '%s'; please review", mp.ExcelColumn))
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func titleWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
