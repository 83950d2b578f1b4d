// Package rules is an extensible field-level validation engine for tabular
// data.
//
// Rules are registered against a field name or the wildcard "*" and run in
// registration order. A rule that panics is reported as a
// RULE_EXECUTION_FAILED issue on that field; it never aborts validation of
// the rest of the data.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Wildcard registers a rule for every field.
const Wildcard = "*"

// CodeRuleFailed marks an issue produced by a rule that panicked.
const CodeRuleFailed = "RULE_EXECUTION_FAILED"

// Severity grades an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var (
	ErrDuplicateRule = errors.New("rule already registered")
	ErrInvalidRule   = errors.New("rule needs a name and a check")
)

// Issue is one finding on one value.
type Issue struct {
	Rule     string   `json:"rule"`
	Code     string   `json:"code,omitempty"`
	Field    string   `json:"field"`
	Value    string   `json:"value,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Row      int      `json:"row,omitempty"`
}

// Context is what a rule may know beyond the value. Row is 1-based within
// the data rows and Record holds every mapped field of that row; both are
// zero when a value is validated on its own.
type Context struct {
	Row    int
	Record map[string]string
}

// Check inspects value and returns any issues. Field, Rule and Value of the
// returned issues are filled in by the engine.
type Check func(value string, ctx Context) []Issue

// Rule binds a check to a field.
type Rule struct {
	Name        string
	Field       string
	Description string
	Check       Check
}

// Engine holds the registered rules. It is safe for concurrent use.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewEngine returns an engine with no rules.
func NewEngine() *Engine {
	return &Engine{}
}

// Register adds r. An empty Field means Wildcard.
func (e *Engine) Register(r Rule) error {
	if r.Name == "" || r.Check == nil {
		return ErrInvalidRule
	}
	if r.Field == "" {
		r.Field = Wildcard
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.Name == r.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, r.Name)
		}
	}
	e.rules = append(e.rules, r)
	return nil
}

// MustRegister is Register that panics on error, for static rule sets.
func (e *Engine) MustRegister(rs ...Rule) {
	for _, r := range rs {
		if err := e.Register(r); err != nil {
			panic(err)
		}
	}
}

// Unregister removes the rule called name and reports whether it existed.
func (e *Engine) Unregister(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.rules {
		if r.Name == name {
			e.rules = append(e.rules[:i:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns the registered rules in run order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Rule(nil), e.rules...)
}

// rulesFor returns the rules that apply to field.
func (e *Engine) rulesFor(field string) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Rule
	for _, r := range e.rules {
		if r.Field == Wildcard || strings.EqualFold(r.Field, field) {
			out = append(out, r)
		}
	}
	return out
}

// FieldResult is the outcome of ValidateField.
type FieldResult struct {
	Field    string  `json:"field"`
	Value    string  `json:"value"`
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Info     []Issue `json:"info"`
}

func (r *FieldResult) add(is Issue) {
	switch is.Severity {
	case SeverityWarning:
		r.Warnings = append(r.Warnings, is)
	case SeverityInfo:
		r.Info = append(r.Info, is)
	default:
		is.Severity = SeverityError
		r.Errors = append(r.Errors, is)
	}
}

// Issues returns every issue, errors first.
func (r FieldResult) Issues() []Issue {
	out := make([]Issue, 0, len(r.Errors)+len(r.Warnings)+len(r.Info))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	return append(out, r.Info...)
}

// ValidateField runs every rule for field against value.
func (e *Engine) ValidateField(field, value string, ctx Context) FieldResult {
	res := FieldResult{Field: field, Value: value, Errors: []Issue{}, Warnings: []Issue{}, Info: []Issue{}}
	for _, r := range e.rulesFor(field) {
		for _, is := range run(r, value, ctx) {
			if is.Rule == "" {
				is.Rule = r.Name
			}
			is.Field, is.Value, is.Row = field, value, ctx.Row
			res.add(is)
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// run calls r.Check, converting a panic into a RULE_EXECUTION_FAILED issue.
func run(r Rule, value string, ctx Context) (issues []Issue) {
	defer func() {
		if p := recover(); p != nil {
			issues = []Issue{{
				Rule:     r.Name,
				Code:     CodeRuleFailed,
				Severity: SeverityError,
				Message:  fmt.Sprintf("Rule '%s' failed to run: %v", r.Name, p),
			}}
		}
	}()
	return r.Check(value, ctx)
}

// RowResult lists the issues of one data row. Row is 1-based.
type RowResult struct {
	Row    int     `json:"row"`
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// FieldSummary counts outcomes for one field across all rows.
type FieldSummary struct {
	Valid    int  `json:"valid"`
	Invalid  int  `json:"invalid"`
	Warnings int  `json:"warnings"`
	IsValid  bool `json:"isValid"`
}

// Report is the outcome of ValidateData.
type Report struct {
	IsValid      bool                    `json:"isValid"`
	TotalRows    int                     `json:"totalRows"`
	ValidRows    int                     `json:"validRows"`
	InvalidRows  int                     `json:"invalidRows"`
	ErrorCount   int                     `json:"errorCount"`
	WarningCount int                     `json:"warningCount"`
	InfoCount    int                     `json:"infoCount"`
	Rows         []RowResult             `json:"rows"`
	Fields       map[string]FieldSummary `json:"fields"`
	Suggestions  []string                `json:"suggestions"`
}

// ValidateData validates every cell. fieldMappings maps a header to the
// field its rules are looked up by; unmapped headers validate under their
// own name. Rows carries only the rows that produced issues.
func (e *Engine) ValidateData(rows [][]string, headers []string, fieldMappings map[string]string) Report {
	fields := make([]string, len(headers))
	for i, h := range headers {
		fields[i] = h
		if mapped, ok := lookup(fieldMappings, h); ok && mapped != "" {
			fields[i] = mapped
		}
	}

	rep := Report{
		TotalRows:   len(rows),
		Rows:        []RowResult{},
		Fields:      make(map[string]FieldSummary, len(fields)),
		Suggestions: []string{},
	}
	for _, f := range fields {
		rep.Fields[f] = FieldSummary{IsValid: true}
	}

	whitespace := false
	for i, row := range rows {
		record := make(map[string]string, len(fields))
		for c, f := range fields {
			if c < len(row) {
				record[f] = row[c]
			} else {
				record[f] = ""
			}
		}

		rr := RowResult{Row: i + 1, Valid: true, Issues: []Issue{}}
		for _, f := range fields {
			res := e.ValidateField(f, record[f], Context{Row: i + 1, Record: record})

			sum := rep.Fields[f]
			if res.Valid {
				sum.Valid++
			} else {
				sum.Invalid++
				sum.IsValid = false
				rr.Valid = false
			}
			sum.Warnings += len(res.Warnings)
			rep.Fields[f] = sum

			rep.ErrorCount += len(res.Errors)
			rep.WarningCount += len(res.Warnings)
			rep.InfoCount += len(res.Info)
			for _, is := range res.Info {
				if is.Rule == "whitespace" {
					whitespace = true
				}
			}
			rr.Issues = append(rr.Issues, res.Issues()...)
		}

		if rr.Valid {
			rep.ValidRows++
		} else {
			rep.InvalidRows++
		}
		if len(rr.Issues) > 0 {
			rep.Rows = append(rep.Rows, rr)
		}
	}

	rep.IsValid = rep.InvalidRows == 0
	rep.Suggestions = suggestions(rep, fields, whitespace)
	return rep
}

func suggestions(rep Report, fields []string, whitespace bool) []string {
	out := []string{}
	if rep.TotalRows == 0 {
		return append(out, "The file has no data rows")
	}
	if rep.InvalidRows > 0 {
		out = append(out, fmt.Sprintf("Fix %d row(s) with errors before importing", rep.InvalidRows))
	}

	names := append([]string(nil), fields...)
	sort.Strings(names)
	seen := make(map[string]bool)
	for _, f := range names {
		if seen[f] {
			continue
		}
		seen[f] = true
		sum := rep.Fields[f]
		if sum.Invalid*2 > rep.TotalRows {
			out = append(out, fmt.Sprintf("Column '%s' fails validation in %d of %d rows; check that it is mapped to the right field", f, sum.Invalid, rep.TotalRows))
		}
	}
	if whitespace {
		out = append(out, "Some values have leading or trailing spaces; trim them before importing")
	}
	return out
}

func lookup(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(key)) {
			return v, true
		}
	}
	return "", false
}
