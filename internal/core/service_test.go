package core

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/config"
	"github.com/JonMunkholm/sheetimport/internal/mapping"
	"github.com/JonMunkholm/sheetimport/internal/pricing"
	"github.com/JonMunkholm/sheetimport/internal/templatestore"
	"github.com/xuri/excelize/v2"
)

type testSheet struct {
	name string
	rows [][]string
}

// workbook builds .xlsx bytes in memory.
func workbook(t *testing.T, sheets ...testSheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				t.Fatal(err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			t.Fatal(err)
		}
		for r, row := range s.rows {
			for c, v := range row {
				if v == "" {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatal(err)
				}
				if err := f.SetCellValue(s.name, cell, v); err != nil {
					t.Fatal(err)
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var ratesSheet = testSheet{
	name: "Sunset Resort 2024",
	rows: [][]string{
		{"Accommodation", "January", "February", "March"},
		{"Hotel", "€150", "€160", "€170"},
		{"Villa", "€300", "€320", ""},
		{},
		{},
		{},
		{"What's Included"},
		{"• Daily breakfast"},
		{"• Free WiFi"},
		{"• Airport transfers"},
	},
}

var notesSheet = testSheet{
	name: "Notes",
	rows: [][]string{
		{"Terms apply to all bookings"},
		{"Contact the reservations team for groups"},
	},
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	return NewService(templatestore.NewMemory(), opts)
}

func TestAnalyzeWorkbook(t *testing.T) {
	svc := newTestService(t, DefaultOptions())

	res, err := svc.AnalyzeWorkbook(context.Background(), bytes.NewReader(workbook(t, ratesSheet, notesSheet)))
	if err != nil {
		t.Fatalf("AnalyzeWorkbook() error = %v", err)
	}
	if len(res.Sheets) != 2 {
		t.Fatalf("len(Sheets) = %d, want 2", len(res.Sheets))
	}

	rates := res.Sheets[0]
	if rates.Name != ratesSheet.name {
		t.Errorf("Sheets[0].Name = %q, want %q", rates.Name, ratesSheet.name)
	}
	if !rates.Extraction.Found {
		t.Fatalf("pricing not found; suggestions %v", rates.Suggestions)
	}
	if got := rates.Extraction.Matrix.Metadata.Currency; got != "EUR" {
		t.Errorf("currency = %q, want EUR", got)
	}
	sum := rates.Pricing.Summary
	if sum.TotalEntries != 6 || sum.AvailableEntries != 5 || sum.UnavailableEntries != 1 {
		t.Errorf("summary = %+v, want 6 total, 5 available, 1 unavailable", sum)
	}
	if len(rates.Inclusions) != 1 {
		t.Fatalf("len(Inclusions) = %d, want 1", len(rates.Inclusions))
	}
	if got := len(rates.Inclusions[0].Items.Valid); got != 3 {
		t.Errorf("valid inclusions = %d, want 3", got)
	}
	if got := rates.Inclusions[0].Items.Items[0].CleanedText; got != "Daily breakfast" {
		t.Errorf("first inclusion = %q, want Daily breakfast", got)
	}

	notes := res.Sheets[1]
	if notes.Extraction.Found {
		t.Error("Notes sheet reported a pricing block")
	}
	if len(notes.Pricing.Data) != 0 {
		t.Errorf("Notes entries = %d, want 0", len(notes.Pricing.Data))
	}

	for _, s := range res.Suggestions {
		if strings.Contains(s, "No sheet contains") {
			t.Errorf("unexpected workbook suggestion %q", s)
		}
	}
}

func TestAnalyzeWorkbook_NoPricingAnywhere(t *testing.T) {
	svc := newTestService(t, DefaultOptions())

	res, err := svc.AnalyzeWorkbook(context.Background(), bytes.NewReader(workbook(t, notesSheet)))
	if err != nil {
		t.Fatalf("AnalyzeWorkbook() error = %v", err)
	}
	if len(res.Suggestions) == 0 || res.Suggestions[0] != "No sheet contains a recognisable pricing grid" {
		t.Errorf("Suggestions = %v", res.Suggestions)
	}
}

func TestAnalyzeWorkbook_MissingPriceErrorPolicy(t *testing.T) {
	opts := DefaultOptions()
	opts.Normalizer.HandleMissingPrices = pricing.MissingError
	svc := newTestService(t, opts)

	_, err := svc.AnalyzeWorkbook(context.Background(), bytes.NewReader(workbook(t, ratesSheet)))
	if !errors.Is(err, pricing.ErrMissingPrice) {
		t.Fatalf("AnalyzeWorkbook() error = %v, want ErrMissingPrice", err)
	}
	if got := MapError(err).Code; got != "PRC001" {
		t.Errorf("MapError() code = %q, want PRC001", got)
	}
}

func TestAnalyzeWorkbook_InvalidFile(t *testing.T) {
	svc := newTestService(t, DefaultOptions())

	_, err := svc.AnalyzeWorkbook(context.Background(), strings.NewReader("not a workbook"))
	if err == nil {
		t.Fatal("AnalyzeWorkbook() error = nil")
	}
	if got := MapError(err).Code; got != "IMP002" {
		t.Errorf("MapError() code = %q, want IMP002 (err %v)", got, err)
	}
}

func TestAnalyzeWorkbook_Busy(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxConcurrent = 1
	opts.MaxWait = 20 * time.Millisecond
	svc := newTestService(t, opts)

	if err := svc.Limiter().Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer svc.Limiter().Release()

	_, err := svc.AnalyzeWorkbook(context.Background(), bytes.NewReader(workbook(t, ratesSheet)))
	if !errors.Is(err, ErrBusy) {
		t.Errorf("AnalyzeWorkbook() error = %v, want ErrBusy", err)
	}
}

func TestImportTabular_Suggested(t *testing.T) {
	svc := newTestService(t, DefaultOptions())

	headers := []string{"Month", "Price", "Nights"}
	rows := [][]string{
		{"January", "€100", "3"},
		{"February", "abc", "7"},
	}

	res, err := svc.ImportTabular(context.Background(), headers, rows, "")
	if err != nil {
		t.Fatalf("ImportTabular() error = %v", err)
	}
	if res.Source != SourceSuggested || res.Template != nil {
		t.Errorf("Source = %q, Template = %v; want suggested and no template", res.Source, res.Template)
	}
	if !res.Mapping.IsValid {
		t.Errorf("mapping validation errors = %v", res.Mapping.Errors)
	}
	if len(res.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(res.Records))
	}
	if res.Records[0]["price"] != 100.0 {
		t.Errorf("price = %v, want 100", res.Records[0]["price"])
	}
	if res.Records[1]["price"] != nil {
		t.Errorf("unparseable price = %v, want nil", res.Records[1]["price"])
	}
	if res.Validation.InvalidRows != 1 || res.Validation.ValidRows != 1 {
		t.Errorf("validation rows = %d valid, %d invalid; want 1 and 1",
			res.Validation.ValidRows, res.Validation.InvalidRows)
	}
}

func TestImportTabular_ExplicitTemplate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, DefaultOptions())

	tpl, err := svc.Templates().Create(ctx, mapping.Template{
		Name: "Partner A",
		Mappings: []mapping.Mapping{
			{ExcelColumn: "Mois", SystemField: "month", DataType: mapping.TypeString, Transformer: "month-name"},
			{ExcelColumn: "Tarif", SystemField: "price", DataType: mapping.TypeCurrency},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.ImportTabular(ctx, []string{"Mois", "Tarif"}, [][]string{{"jan", "1200"}}, tpl.ID)
	if err != nil {
		t.Fatalf("ImportTabular() error = %v", err)
	}
	if res.Source != SourceTemplate || res.Template == nil || res.Template.UseCount != 1 {
		t.Errorf("Source = %q, Template = %+v; want template with one use", res.Source, res.Template)
	}
	if res.Records[0]["month"] != "January" || res.Records[0]["price"] != 1200.0 {
		t.Errorf("record = %v", res.Records[0])
	}
}

func TestImportTabular_MatchedTemplate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, DefaultOptions())

	tpl, _ := svc.Templates().Create(ctx, mapping.Template{
		Name: "Standard",
		Mappings: []mapping.Mapping{
			{ExcelColumn: "Month", SystemField: "month", DataType: mapping.TypeString},
			{ExcelColumn: "Rate", SystemField: "price", DataType: mapping.TypeCurrency},
		},
		ApplicablePatterns: []string{"^month$", "^rate$"},
	})

	res, err := svc.ImportTabular(ctx, []string{"Month", "Rate"}, [][]string{{"March", "90"}}, "")
	if err != nil {
		t.Fatalf("ImportTabular() error = %v", err)
	}
	if res.Source != SourceMatched || res.Template == nil || res.Template.ID != tpl.ID {
		t.Errorf("Source = %q, Template = %+v; want matched %s", res.Source, res.Template, tpl.ID)
	}
}

func TestImportTabular_Errors(t *testing.T) {
	svc := newTestService(t, DefaultOptions())
	ctx := context.Background()

	if _, err := svc.ImportTabular(ctx, nil, nil, ""); !errors.Is(err, mapping.ErrHeadersMissing) {
		t.Errorf("ImportTabular(no headers) error = %v, want ErrHeadersMissing", err)
	}
	if _, err := svc.ImportTabular(ctx, []string{"Month"}, nil, "missing"); !errors.Is(err, mapping.ErrNotFound) {
		t.Errorf("ImportTabular(unknown template) error = %v, want ErrNotFound", err)
	}
}

func TestImportCSV(t *testing.T) {
	svc := newTestService(t, DefaultOptions())

	csv := "\xEF\xBB\xBFMonth,Price\nJanuary,€100\nFebruary,€120\n"
	res, err := svc.ImportCSV(context.Background(), strings.NewReader(csv), "")
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if len(res.Records) != 2 || res.Records[1]["price"] != 120.0 {
		t.Errorf("Records = %v", res.Records)
	}
	if !res.Validation.IsValid {
		t.Errorf("Validation = %+v, want valid", res.Validation)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Pipeline: config.PipelineConfig{ScanRows: 10, ScanCols: 12, BlankRunLimit: 2, MinSecondary: 0.4, MaxConcurrent: 2, MaxWait: time.Second},
		Pricing: config.PricingConfig{
			MissingPolicy: "skip", RoundingEnabled: true, RoundingPrecision: 0,
			ConvertTo: "USD", ConvertRate: 1.1, MinPerNight: 5, MaxPerNight: 500,
		},
		Inclusions: config.InclusionsConfig{MinLength: 4, MaxLength: 200, TargetWords: 6, MinLineLength: 2, MinPatternRun: 4, DedupeDistance: 1},
	}

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig() error = %v", err)
	}
	if opts.Layout.ScanRows != 10 || opts.Layout.BlankRunLimit != 2 || opts.Layout.MinPatternRun != 4 {
		t.Errorf("Layout = %+v", opts.Layout)
	}
	if opts.Normalizer.HandleMissingPrices != pricing.MissingSkip {
		t.Errorf("HandleMissingPrices = %q, want skip", opts.Normalizer.HandleMissingPrices)
	}
	if c := opts.Normalizer.CurrencyConversion; c == nil || c.To != "USD" || c.Rate != 1.1 {
		t.Errorf("CurrencyConversion = %+v", c)
	}
	if opts.Validator.Bounds != (pricing.Bounds{Min: 5, Max: 500}) {
		t.Errorf("Bounds = %+v", opts.Validator.Bounds)
	}
	if opts.Inclusions.MinLength != 4 || opts.Sections.DedupeDistance != 1 {
		t.Errorf("Inclusions = %+v, Sections = %+v", opts.Inclusions, opts.Sections)
	}
	if opts.MaxConcurrent != 2 {
		t.Errorf("MaxConcurrent = %d, want 2", opts.MaxConcurrent)
	}
}

func TestOptionsFromConfig_BadDictionary(t *testing.T) {
	cfg := &config.Config{
		Pipeline: config.PipelineConfig{DictionaryPath: filepath.Join(t.TempDir(), "missing.yaml")},
		Pricing:  config.PricingConfig{MissingPolicy: "mark-unavailable"},
	}

	_, err := OptionsFromConfig(cfg)
	if err == nil {
		t.Fatal("OptionsFromConfig() error = nil")
	}
	if got := MapError(err).Code; got != "DICT001" {
		t.Errorf("MapError() code = %q, want DICT001", got)
	}
}
