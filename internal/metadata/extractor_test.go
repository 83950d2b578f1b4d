package metadata

import (
	"testing"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
	"github.com/JonMunkholm/sheetimport/internal/sheet"
)

func newTestExtractor() *Extractor {
	return New(classify.New(dictionary.Default()))
}

func TestExtractResortName(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		input string
		want  string
	}{
		{"Sunset Bay Resort", "Sunset Bay Resort"},
		{"Sunset Bay Resort 2024", "Sunset Bay Resort"},
		{"Sunset Bay Resort 2024/25 Rates", "Sunset Bay Resort"},
		{"Alpine_Lodge_Price List", "Alpine Lodge"},
		{"Casa Blanca - 2025 v2", "Casa Blanca"},
		{"Sheet1", ""},
		{"2024", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := e.ExtractResortName(tt.input)
			if got.Value != tt.want {
				t.Errorf("ExtractResortName(%q) = %q, want %q", tt.input, got.Value, tt.want)
			}
			if tt.want == "" && got.Confidence != 0 {
				t.Errorf("ExtractResortName(%q).Confidence = %v, want 0", tt.input, got.Confidence)
			}
		})
	}
}

func TestExtractResortName_CleanScoresHigher(t *testing.T) {
	e := newTestExtractor()

	clean := e.ExtractResortName("Sunset Bay Resort").Confidence
	noisy := e.ExtractResortName("Sunset Bay Resort 2024 Rates").Confidence
	if clean <= noisy {
		t.Errorf("clean confidence %v <= noisy confidence %v", clean, noisy)
	}
}

func TestDetectCurrency(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name  string
		cells []string
		want  string
	}{
		{"euro symbols", []string{"€100", "€120", "€140"}, "EUR"},
		{"iso codes", []string{"Prices in GBP", "100", "120"}, "GBP"},
		{"majority wins", []string{"€100", "€120", "$90"}, "EUR"},
		{"tie goes to table order", []string{"$100", "£100"}, "GBP"},
		{"none", []string{"100", "Hotel"}, ""},
		{"lowercase word is not a code", []string{"eur"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.DetectCurrency(tt.cells)
			if got.Code != tt.want {
				t.Errorf("DetectCurrency() = %q, want %q", got.Code, tt.want)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("Confidence = %v, out of [0,1]", got.Confidence)
			}
		})
	}
}

func TestDetectCurrency_ConfidenceTracksAgreement(t *testing.T) {
	e := newTestExtractor()

	unanimous := e.DetectCurrency([]string{"€1", "€2", "€3", "€4"})
	split := e.DetectCurrency([]string{"€1", "€2", "$3", "$4", "€5"})

	if unanimous.Confidence != 1 {
		t.Errorf("unanimous confidence = %v, want 1", unanimous.Confidence)
	}
	if split.Confidence >= unanimous.Confidence {
		t.Errorf("split confidence %v >= unanimous %v", split.Confidence, unanimous.Confidence)
	}
	if split.Counts["USD"] != 2 {
		t.Errorf("Counts[USD] = %d, want 2", split.Counts["USD"])
	}
}

func TestIdentifySpecialPeriods(t *testing.T) {
	e := newTestExtractor()

	got := e.IdentifySpecialPeriods([]string{
		"January",
		"Easter (18–21 Apr)",
		"Peak Season",
		"Easter",
		"Hotel",
	})

	if len(got) != 2 {
		t.Fatalf("len(IdentifySpecialPeriods()) = %d, want 2", len(got))
	}
	if got[0].Name != "Easter" || got[0].DateRange != "18–21 Apr" || got[0].Label != "Easter (18–21 Apr)" {
		t.Errorf("first period = %+v", got[0])
	}
	if got[1].Name != "Peak Season" || got[1].DateRange != "" {
		t.Errorf("second period = %+v", got[1])
	}
}

func TestExtractMetadata(t *testing.T) {
	e := newTestExtractor()

	s := sheet.New("Sunset Resort 2024", [][]string{
		{"", "January", "Easter (29 Mar - 1 Apr)"},
		{"Hotel", "€150", "€200"},
	})

	got := e.ExtractMetadata(s.Name, s)
	if got.ResortName.Value != "Sunset Resort" {
		t.Errorf("ResortName = %q, want %q", got.ResortName.Value, "Sunset Resort")
	}
	if got.Currency.Code != "EUR" {
		t.Errorf("Currency = %q, want EUR", got.Currency.Code)
	}
	if len(got.SpecialPeriods) != 1 || got.SpecialPeriods[0].DateRange != "29 Mar - 1 Apr" {
		t.Errorf("SpecialPeriods = %+v", got.SpecialPeriods)
	}
}
