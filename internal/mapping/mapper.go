package mapping

import (
	"errors"
	"sort"
	"strings"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/confidence"
	"github.com/JonMunkholm/sheetimport/internal/numfmt"
)

// ErrHeadersMissing is returned when a tabular import has no header row.
var ErrHeadersMissing = errors.New("headers are missing")

// MinSuggestionConfidence is the lowest confidence a suggestion is emitted at.
const MinSuggestionConfidence = 0.3

// Mapping binds one source column to a system field.
type Mapping struct {
	ExcelColumn string   `json:"excelColumn"`
	SystemField string   `json:"systemField"`
	DataType    DataType `json:"dataType"`
	Required    bool     `json:"required"`
	Confidence  float64  `json:"confidence"`
	Transformer string   `json:"transformer,omitempty"`
}

// Suggestion is the best mapping for one header plus the runners-up.
type Suggestion struct {
	Mapping      Mapping   `json:"mapping"`
	Alternatives []Mapping `json:"alternatives"`
}

// History records which field a normalised header was mapped to before.
type History map[string]string

// HistoryFromTemplates collects the header to field bindings of templates.
func HistoryFromTemplates(templates []Template) History {
	h := make(History)
	for _, t := range templates {
		for _, m := range t.Mappings {
			h[normaliseHeader(m.ExcelColumn)] = m.SystemField
		}
	}
	return h
}

// Mapper suggests mappings. It is safe for concurrent use.
type Mapper struct {
	fields     []Field
	classifier *classify.Classifier
	history    History
	custom     map[string]Transformer
}

// NewMapper returns a Mapper over fields, or DefaultFields when fields is nil.
func NewMapper(c *classify.Classifier, fields []Field) *Mapper {
	if fields == nil {
		fields = DefaultFields()
	}
	return &Mapper{fields: fields, classifier: c}
}

// WithHistory returns a copy of m that boosts historical header matches.
func (m *Mapper) WithHistory(h History) *Mapper {
	cp := *m
	cp.history = h
	return &cp
}

// WithTransformer returns a copy of m with an extra named transformer.
func (m *Mapper) WithTransformer(name string, t Transformer) *Mapper {
	cp := *m
	cp.custom = make(map[string]Transformer, len(m.custom)+1)
	for k, v := range m.custom {
		cp.custom[k] = v
	}
	cp.custom[name] = t
	return &cp
}

// Fields returns the fields m maps onto.
func (m *Mapper) Fields() []Field {
	return m.fields
}

// Field looks up a field by name.
func (m *Mapper) Field(name string) (Field, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SuggestMappings scores every field for every header and returns one
// suggestion per header that has a candidate, in header order. sample rows
// are optional and indexed like headers. Each field is suggested at most
// once: when two headers want the same field the more confident one keeps
// it and the other falls back to its next candidate.
func (m *Mapper) SuggestMappings(headers []string, sample [][]string) ([]Suggestion, error) {
	if len(headers) == 0 {
		return nil, ErrHeadersMissing
	}

	normalised := make([]string, len(headers))
	for i, h := range headers {
		normalised[i] = normaliseHeader(h)
	}

	candidates := make([][]Mapping, len(headers))
	for i, h := range headers {
		if normalised[i] == "" {
			continue
		}
		column := sampleColumn(sample, i)
		for _, f := range m.fields {
			base, ok := patternBase(f, normalised[i])
			if !ok {
				continue
			}
			conf := confidence.Combine(base,
				m.typeConsistencyFactor(f.kind, column),
				m.cooccurrenceFactor(f, normalised, i),
				m.historicalFactor(f, normalised[i]),
			)
			if conf < MinSuggestionConfidence {
				continue
			}
			candidates[i] = append(candidates[i], Mapping{
				ExcelColumn: h,
				SystemField: f.Name,
				DataType:    f.DataType,
				Required:    f.Required,
				Confidence:  confidence.Round2(conf),
			})
		}
		sort.SliceStable(candidates[i], func(a, b int) bool {
			return candidates[i][a].Confidence > candidates[i][b].Confidence
		})
	}

	chosen := assign(candidates)

	out := []Suggestion{}
	for i, c := range chosen {
		if c < 0 {
			continue
		}
		s := Suggestion{Mapping: candidates[i][c], Alternatives: []Mapping{}}
		for j, alt := range candidates[i] {
			if j != c {
				s.Alternatives = append(s.Alternatives, alt)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// assign picks one candidate index per header, handing each field to the
// most confident header that wants it. Headers left without a free field
// get -1.
func assign(candidates [][]Mapping) []int {
	type pick struct {
		header, idx int
		conf        float64
	}
	var all []pick
	for h, cs := range candidates {
		for i, c := range cs {
			all = append(all, pick{h, i, c.Confidence})
		}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].conf > all[b].conf })

	chosen := make([]int, len(candidates))
	for i := range chosen {
		chosen[i] = -1
	}
	taken := make(map[string]bool)
	for _, p := range all {
		field := candidates[p.header][p.idx].SystemField
		if chosen[p.header] >= 0 || taken[field] {
			continue
		}
		chosen[p.header] = p.idx
		taken[field] = true
	}
	return chosen
}

// patternBase is the confidence a header earns from its spelling alone.
func patternBase(f Field, header string) (float64, bool) {
	for _, a := range f.Aliases {
		if normaliseHeader(a) == header {
			return 0.7, true
		}
	}
	for _, p := range f.Patterns {
		if p.MatchString(header) {
			return 0.5, true
		}
	}
	return 0, false
}

func matchesField(f Field, header string) bool {
	_, ok := patternBase(f, header)
	return ok
}

// typeConsistencyFactor rewards sample columns whose values look like the
// field and penalises columns that clearly do not.
func (m *Mapper) typeConsistencyFactor(kind sampleKind, column []string) confidence.Factor {
	f := confidence.Factor{Name: "type-consistency"}
	if kind == kindAny || len(column) == 0 {
		return f
	}
	hits := 0
	for _, v := range column {
		if m.looksLike(kind, v) {
			hits++
		}
	}
	switch ratio := confidence.Ratio(hits, len(column)); {
	case ratio >= 0.8:
		f.Delta = 0.2
	case ratio < 0.3:
		f.Delta = -0.3
	}
	return f
}

func (m *Mapper) looksLike(kind sampleKind, v string) bool {
	switch kind {
	case kindMonth:
		return m.classifier.DetectMonth(v).IsMonth
	case kindPrice:
		return numfmt.IsNumeric(v) || m.classifier.ClassifyContent(v).Type == classify.TypePrice
	case kindInteger:
		f, ok := numfmt.ParseFloat(v)
		if !ok {
			np := m.classifier.DetectNightsPax(v)
			return np.HasNights || np.HasPax
		}
		return f == float64(int64(f))
	case kindAccommodation:
		return m.classifier.DetectAccommodationType(v).IsAccommodation || !numfmt.IsNumeric(v)
	case kindText:
		return !numfmt.IsNumeric(v)
	}
	return true
}

// cooccurrenceFactor rewards a header when another header in the set maps
// to one of the field's related fields: "Price" beside "Month".
func (m *Mapper) cooccurrenceFactor(f Field, headers []string, self int) confidence.Factor {
	factor := confidence.Factor{Name: "co-occurrence"}
	for _, name := range f.Related {
		rel, ok := m.Field(name)
		if !ok {
			continue
		}
		for i, h := range headers {
			if i != self && h != "" && matchesField(rel, h) {
				factor.Delta = 0.1
				return factor
			}
		}
	}
	return factor
}

// historicalFactor rewards a header that was mapped to f before.
func (m *Mapper) historicalFactor(f Field, header string) confidence.Factor {
	if m.history != nil && m.history[header] == f.Name {
		return confidence.Factor{Name: "historical", Delta: 0.15}
	}
	return confidence.Factor{Name: "historical"}
}

// sampleColumn returns the non-blank values of column i.
func sampleColumn(sample [][]string, i int) []string {
	var out []string
	for _, row := range sample {
		if i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
