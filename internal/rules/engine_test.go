package rules

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
)

func newTestEngine() *Engine {
	return NewDefaultEngine(classify.New(dictionary.Default()))
}

func ruleNames(issues []Issue) []string {
	var out []string
	for _, is := range issues {
		out = append(out, is.Rule)
	}
	return out
}

func TestRegister(t *testing.T) {
	e := NewEngine()
	check := func(string, Context) []Issue { return nil }

	if err := e.Register(Rule{Name: "a", Check: check}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := e.Register(Rule{Name: "a", Check: check}); !errors.Is(err, ErrDuplicateRule) {
		t.Errorf("Register(duplicate) error = %v, want ErrDuplicateRule", err)
	}
	if err := e.Register(Rule{Name: "b"}); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("Register(no check) error = %v, want ErrInvalidRule", err)
	}
	if got := e.Rules(); len(got) != 1 || got[0].Field != Wildcard {
		t.Errorf("Rules() = %+v, want one wildcard rule", got)
	}
	if !e.Unregister("a") || e.Unregister("a") {
		t.Error("Unregister() should succeed once")
	}
}

func TestValidateField(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name      string
		field     string
		value     string
		wantValid bool
		wantRules []string
	}{
		{"valid month", "month", "January", true, nil},
		{"special period", "month", "Easter", true, nil},
		{"bad month", "month", "Someday", false, []string{"month-format"}},
		{"missing month", "month", "", false, []string{"month-required"}},
		{"valid price", "price", "€1.234,50", true, nil},
		{"on request", "price", "On Request", true, nil},
		{"bad price", "price", "cheap", false, []string{"price-format"}},
		{"negative price", "price", "-20", false, []string{"price-format"}},
		{"zero price warns", "price", "0", true, []string{"price-format"}},
		{"fractional nights", "nights", "2.5", false, []string{"nights-positive"}},
		{"zero pax", "pax", "0", false, []string{"pax-positive"}},
		{"currency symbol", "currency", "€", true, nil},
		{"unknown currency", "currency", "XYZ", true, []string{"currency-code"}},
		{"placeholder anywhere", "description", "TBD", true, []string{"placeholder"}},
		{"whitespace info", "description", " sea view ", true, []string{"whitespace"}},
		{"optional blank", "nights", "", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ValidateField(tt.field, tt.value, Context{})
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (issues %+v)", got.Valid, tt.wantValid, got.Issues())
			}
			if rules := ruleNames(got.Issues()); !slices.Equal(rules, tt.wantRules) {
				t.Errorf("rules = %v, want %v", rules, tt.wantRules)
			}
			for _, is := range got.Issues() {
				if is.Field != tt.field || is.Value != tt.value {
					t.Errorf("issue attribution = %q/%q, want %q/%q", is.Field, is.Value, tt.field, tt.value)
				}
			}
		})
	}
}

func TestValidateField_PanickingRule(t *testing.T) {
	e := NewEngine()
	e.MustRegister(
		Rule{Name: "boom", Field: "price", Check: func(string, Context) []Issue { panic("index out of range") }},
		Rule{Name: "after", Field: "price", Check: func(string, Context) []Issue {
			return []Issue{{Severity: SeverityWarning, Message: "still ran"}}
		}},
	)

	got := e.ValidateField("price", "10", Context{})
	if got.Valid {
		t.Error("Valid = true, want false")
	}
	if len(got.Errors) != 1 || got.Errors[0].Code != CodeRuleFailed || got.Errors[0].Rule != "boom" {
		t.Errorf("Errors = %+v, want one %s from boom", got.Errors, CodeRuleFailed)
	}
	if !strings.Contains(got.Errors[0].Message, "index out of range") {
		t.Errorf("Message = %q", got.Errors[0].Message)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Rule != "after" {
		t.Errorf("Warnings = %+v, want the next rule to run", got.Warnings)
	}
}

func TestValidateField_ContextAvailable(t *testing.T) {
	e := NewEngine()
	e.MustRegister(Rule{Name: "max-pax", Field: "pax", Check: func(v string, ctx Context) []Issue {
		if ctx.Record["accommodationType"] == "Studio" && v != "1" && v != "2" {
			return []Issue{{Severity: SeverityError, Message: "studios sleep two"}}
		}
		return nil
	}})

	rep := e.ValidateData([][]string{{"Studio", "4"}, {"Villa", "4"}}, []string{"Type", "Pax"},
		map[string]string{"Type": "accommodationType", "Pax": "pax"})
	if rep.InvalidRows != 1 || len(rep.Rows) != 1 || rep.Rows[0].Row != 1 {
		t.Errorf("report = %+v, want row 1 invalid", rep)
	}
}

func TestValidateData(t *testing.T) {
	e := newTestEngine()
	headers := []string{"Month", "Price (EUR)", "Nights", "Notes"}
	mappings := map[string]string{"Month": "month", "price (eur)": "price", "Nights": "nights"}
	rows := [][]string{
		{"January", "150", "3", "Sea view"},
		{"Someday", "cheap", "2", "TBD"},
		{"March", "170"},
		{"April", "0", "x", " balcony"},
	}

	rep := e.ValidateData(rows, headers, mappings)

	if rep.IsValid {
		t.Error("IsValid = true, want false")
	}
	if rep.TotalRows != 4 || rep.ValidRows != 2 || rep.InvalidRows != 2 {
		t.Errorf("rows total/valid/invalid = %d/%d/%d, want 4/2/2", rep.TotalRows, rep.ValidRows, rep.InvalidRows)
	}

	var attributed []int
	for _, rr := range rep.Rows {
		attributed = append(attributed, rr.Row)
		for _, is := range rr.Issues {
			if is.Row != rr.Row {
				t.Errorf("issue row = %d, want %d", is.Row, rr.Row)
			}
		}
	}
	if want := []int{2, 4}; !slices.Equal(attributed, want) {
		t.Errorf("rows with issues = %v, want %v", attributed, want)
	}

	if s := rep.Fields["month"]; s.Valid != 3 || s.Invalid != 1 || s.IsValid {
		t.Errorf("Fields[month] = %+v", s)
	}
	if s := rep.Fields["nights"]; s.Valid != 3 || s.Invalid != 1 {
		t.Errorf("Fields[nights] = %+v", s)
	}
	if s := rep.Fields["Notes"]; s.Invalid != 0 || s.Warnings != 1 || !s.IsValid {
		t.Errorf("Fields[Notes] = %+v", s)
	}
	if rep.ErrorCount != 3 || rep.WarningCount != 2 || rep.InfoCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", rep.ErrorCount, rep.WarningCount, rep.InfoCount)
	}

	joined := strings.Join(rep.Suggestions, "\n")
	for _, want := range []string{"Fix 2 row(s) with errors", "leading or trailing spaces"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Suggestions = %v, want %q", rep.Suggestions, want)
		}
	}
}

func TestValidateData_MostlyInvalidColumn(t *testing.T) {
	e := newTestEngine()

	rep := e.ValidateData([][]string{{"12"}, {"15"}, {"January"}}, []string{"Period"}, map[string]string{"Period": "month"})
	if !containsPrefix(rep.Suggestions, "Column 'month' fails validation in 2 of 3 rows") {
		t.Errorf("Suggestions = %v", rep.Suggestions)
	}
}

func TestValidateData_NoRows(t *testing.T) {
	rep := newTestEngine().ValidateData(nil, []string{"Month"}, nil)
	if !rep.IsValid || !slices.Equal(rep.Suggestions, []string{"The file has no data rows"}) {
		t.Errorf("report = %+v", rep)
	}
}

func containsPrefix(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
