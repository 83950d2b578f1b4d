package mapping

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
)

func newTestMapper() *Mapper {
	return NewMapper(classify.New(dictionary.Default()), nil)
}

func TestSuggestMappings_SingleMonthHeader(t *testing.T) {
	m := newTestMapper()

	got, err := m.SuggestMappings([]string{"Month"}, [][]string{{"January"}, {"February"}})
	if err != nil {
		t.Fatalf("SuggestMappings() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(SuggestMappings()) = %d, want 1", len(got))
	}
	mp := got[0].Mapping
	if mp.SystemField != "month" {
		t.Errorf("SystemField = %q, want month", mp.SystemField)
	}
	if mp.DataType != TypeString {
		t.Errorf("DataType = %q, want string", mp.DataType)
	}
	if mp.ExcelColumn != "Month" || !mp.Required {
		t.Errorf("mapping = %+v", mp)
	}
}

func TestSuggestMappings_HeadersMissing(t *testing.T) {
	m := newTestMapper()

	if _, err := m.SuggestMappings(nil, nil); !errors.Is(err, ErrHeadersMissing) {
		t.Errorf("SuggestMappings(nil) error = %v, want ErrHeadersMissing", err)
	}
}

func TestSuggestMappings_FullHeaderSet(t *testing.T) {
	m := newTestMapper()

	headers := []string{"Month", "Room Type", "Nights", "Pax", "Price (EUR)", "What's Included", "Colour"}
	sample := [][]string{
		{"January", "Hotel", "3", "2", "€450", "Breakfast, WiFi", "blue"},
		{"February", "Villa", "7", "4", "€1.200,00", "Pool", "red"},
	}

	got, err := m.SuggestMappings(headers, sample)
	if err != nil {
		t.Fatalf("SuggestMappings() error = %v", err)
	}

	fields := make(map[string]string)
	for _, s := range got {
		fields[s.Mapping.ExcelColumn] = s.Mapping.SystemField
	}
	want := map[string]string{
		"Month":           "month",
		"Room Type":       "accommodationType",
		"Nights":          "nights",
		"Pax":             "pax",
		"Price (EUR)":     "price",
		"What's Included": "inclusions",
	}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}

	for _, s := range got {
		if s.Mapping.Confidence < 0 || s.Mapping.Confidence > 1 {
			t.Errorf("%s confidence = %v, out of [0,1]", s.Mapping.ExcelColumn, s.Mapping.Confidence)
		}
	}
}

func TestSuggestMappings_CooccurrenceBoost(t *testing.T) {
	m := newTestMapper()

	alone, _ := m.SuggestMappings([]string{"Price"}, nil)
	together, _ := m.SuggestMappings([]string{"Month", "Price"}, nil)

	if len(alone) != 1 || len(together) != 2 {
		t.Fatalf("suggestions = %d and %d, want 1 and 2", len(alone), len(together))
	}
	if together[1].Mapping.Confidence <= alone[0].Mapping.Confidence {
		t.Errorf("Price beside Month = %v, alone = %v; want a boost",
			together[1].Mapping.Confidence, alone[0].Mapping.Confidence)
	}
}

func TestSuggestMappings_TypeConsistency(t *testing.T) {
	m := newTestMapper()

	good, _ := m.SuggestMappings([]string{"Period"}, [][]string{{"Jan"}, {"Feb"}, {"Mar"}})
	bad, _ := m.SuggestMappings([]string{"Period"}, [][]string{{"12"}, {"15"}, {"30"}})

	if len(good) != 1 || len(bad) != 1 {
		t.Fatalf("suggestions = %d and %d, want 1 and 1", len(good), len(bad))
	}
	if bad[0].Mapping.Confidence >= good[0].Mapping.Confidence {
		t.Errorf("inconsistent samples = %v, consistent = %v", bad[0].Mapping.Confidence, good[0].Mapping.Confidence)
	}
}

func TestSuggestMappings_HistoricalBoost(t *testing.T) {
	m := newTestMapper()
	history := HistoryFromTemplates([]Template{{
		Mappings: []Mapping{{ExcelColumn: "Tarif", SystemField: "price"}},
	}})

	without, _ := m.SuggestMappings([]string{"Rate"}, nil)
	with, _ := m.WithHistory(History{"rate": "price"}).SuggestMappings([]string{"Rate"}, nil)
	if with[0].Mapping.Confidence <= without[0].Mapping.Confidence {
		t.Errorf("historical = %v, plain = %v; want a boost", with[0].Mapping.Confidence, without[0].Mapping.Confidence)
	}
	if history["tarif"] != "price" {
		t.Errorf("HistoryFromTemplates() = %v", history)
	}
}

func TestSuggestMappings_EachFieldOnce(t *testing.T) {
	m := newTestMapper()

	got, err := m.SuggestMappings([]string{"Total price", "Price"}, nil)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	var fields []string
	for _, s := range got {
		fields = append(fields, s.Mapping.SystemField)
	}
	if len(fields) != 1 || fields[0] != "price" {
		t.Errorf("fields = %v, want [price]", fields)
	}
	if got[0].Mapping.ExcelColumn != "Price" {
		t.Errorf("price went to %q, want the exact alias", got[0].Mapping.ExcelColumn)
	}
}

func TestApplyMapping(t *testing.T) {
	m := newTestMapper()

	headers := []string{"Month", "Price", "Nights", "Includes", "Room"}
	rows := [][]string{
		{"jan", "€1.234,50", "3", "Breakfast; WiFi | Pool", " hotel "},
		{"February", "n/a", "2.5", "", "villa"},
		{"March"},
	}
	mappings := []Mapping{
		{ExcelColumn: "month", SystemField: "month", DataType: TypeString, Transformer: "month-name"},
		{ExcelColumn: "Price", SystemField: "price", DataType: TypeCurrency},
		{ExcelColumn: "Nights", SystemField: "nights", DataType: TypeNumber},
		{ExcelColumn: "Includes", SystemField: "inclusions", DataType: TypeList},
		{ExcelColumn: "Room", SystemField: "accommodationType", DataType: TypeString, Transformer: "title"},
		{ExcelColumn: "Missing", SystemField: "description", DataType: TypeString},
	}

	got := m.ApplyMapping(headers, rows, mappings)
	if len(got) != 3 {
		t.Fatalf("len(ApplyMapping()) = %d, want 3", len(got))
	}

	first := got[0]
	if first["month"] != "January" {
		t.Errorf("month = %v, want January", first["month"])
	}
	if first["price"] != 1234.5 {
		t.Errorf("price = %v, want 1234.5", first["price"])
	}
	if first["nights"] != int64(3) {
		t.Errorf("nights = %#v, want int64(3)", first["nights"])
	}
	if want := []string{"Breakfast", "WiFi", "Pool"}; !reflect.DeepEqual(first["inclusions"], want) {
		t.Errorf("inclusions = %v, want %v", first["inclusions"], want)
	}
	if first["accommodationType"] != "Hotel" {
		t.Errorf("accommodationType = %v, want Hotel", first["accommodationType"])
	}
	if v, ok := first["description"]; !ok || v != nil {
		t.Errorf("description = %v, %v; want nil present", v, ok)
	}

	second := got[1]
	if second["price"] != nil {
		t.Errorf("unparseable price = %v, want nil", second["price"])
	}
	if second["nights"] != 2.5 {
		t.Errorf("nights = %v, want 2.5", second["nights"])
	}
	if list, _ := second["inclusions"].([]string); len(list) != 0 {
		t.Errorf("blank list = %v, want empty", list)
	}

	if got[2]["price"] != nil {
		t.Errorf("ragged row price = %v, want nil", got[2]["price"])
	}
}

func TestApplyMapping_Idempotent(t *testing.T) {
	m := newTestMapper()
	headers := []string{"Month", "Price"}
	rows := [][]string{{"jan", "€100"}, {"feb", "1,200.50"}}
	before := [][]string{{"jan", "€100"}, {"feb", "1,200.50"}}
	mappings := []Mapping{
		{ExcelColumn: "Month", SystemField: "month", DataType: TypeString, Transformer: "month-name"},
		{ExcelColumn: "Price", SystemField: "price", DataType: TypeCurrency},
	}

	first := m.ApplyMapping(headers, rows, mappings)
	second := m.ApplyMapping(headers, rows, mappings)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second application = %v, want %v", second, first)
	}
	if !reflect.DeepEqual(rows, before) {
		t.Error("ApplyMapping modified its input rows")
	}
}

func TestApplyMapping_CustomTransformer(t *testing.T) {
	m := newTestMapper().WithTransformer("snake", func(s string) string { return "x_" + s })

	got := m.ApplyMapping([]string{"Notes"}, [][]string{{"abc"}},
		[]Mapping{{ExcelColumn: "Notes", SystemField: "description", DataType: TypeString, Transformer: "snake"}})
	if got[0]["description"] != "x_abc" {
		t.Errorf("description = %v, want x_abc", got[0]["description"])
	}
	if _, ok := newTestMapper().Transformers()["snake"]; ok {
		t.Error("WithTransformer modified the original mapper")
	}
}

func TestValidateMappings(t *testing.T) {
	m := newTestMapper()

	tests := []struct {
		name      string
		mappings  []Mapping
		wantValid bool
		wantError string
	}{
		{
			name: "valid",
			mappings: []Mapping{
				{ExcelColumn: "Month", SystemField: "month", DataType: TypeString},
				{ExcelColumn: "Price", SystemField: "price", DataType: TypeCurrency},
			},
			wantValid: true,
		},
		{
			name: "duplicate field",
			mappings: []Mapping{
				{ExcelColumn: "Month", SystemField: "month", DataType: TypeString},
				{ExcelColumn: "Period", SystemField: "month", DataType: TypeString},
				{ExcelColumn: "Price", SystemField: "price", DataType: TypeCurrency},
			},
			wantError: "Field 'month' is mapped multiple times",
		},
		{
			name: "required field missing",
			mappings: []Mapping{
				{ExcelColumn: "Month", SystemField: "month", DataType: TypeString},
			},
			wantError: "Required field 'price' is not mapped",
		},
		{
			name: "unknown transformer",
			mappings: []Mapping{
				{ExcelColumn: "Month", SystemField: "month", DataType: TypeString, Transformer: "reverse"},
				{ExcelColumn: "Price", SystemField: "price", DataType: TypeCurrency},
			},
			wantError: `Column 'Month' uses unknown transformer "reverse"`,
		},
		{
			name: "unknown data type",
			mappings: []Mapping{
				{ExcelColumn: "Month", SystemField: "month", DataType: "date"},
				{ExcelColumn: "Price", SystemField: "price", DataType: TypeCurrency},
			},
			wantError: `Column 'Month' has unknown data type "date"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.ValidateMappings(tt.mappings)
			if got.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v (errors %v)", got.IsValid, tt.wantValid, got.Errors)
			}
			if tt.wantError != "" && !slices.Contains(got.Errors, tt.wantError) {
				t.Errorf("Errors = %v, want %q", got.Errors, tt.wantError)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a, b, c", []string{"a", "b", "c"}},
		{"a;b|c", []string{"a", "b", "c"}},
		{" , ;", []string{}},
		{"single", []string{"single"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SplitList(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitList(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
