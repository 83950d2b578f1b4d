package pricing

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/JonMunkholm/sheetimport/internal/metadata"
	"github.com/JonMunkholm/sheetimport/internal/sheet"
)

func newTestNormalizer(cfg NormalizerConfig) *Normalizer {
	return NewNormalizer(testClassifier, metadata.New(testClassifier), cfg)
}

func hotelMatrix(months []string, prices ...[]string) Matrix {
	m := Matrix{
		Months:    months,
		PriceGrid: prices,
		Metadata:  MatrixMetadata{Currency: "EUR"},
	}
	names := []string{"Hotel", "Villa", "Apartment"}
	for i := range prices {
		m.AccommodationTypes = append(m.AccommodationTypes, AccommodationType{Name: names[i], Nights: 1, Pax: 1})
	}
	return m
}

func sheetWithBlank() *sheet.Sheet {
	return sheet.New("Resort", [][]string{
		{"", "January", "February"},
		{"Hotel", "€100", "€110"},
		{"Villa", "€200", ""},
	})
}

func TestNormalizePricing_BlankCellMarkedUnavailable(t *testing.T) {
	n := newTestNormalizer(DefaultNormalizerConfig())

	res, err := n.NormalizePricing(hotelMatrix([]string{"January", "February"}, []string{"150", ""}))
	if err != nil {
		t.Fatalf("NormalizePricing() error = %v", err)
	}
	if !res.Success {
		t.Error("Success = false")
	}
	if len(res.Data) != 2 {
		t.Fatalf("len(Data) = %d, want 2", len(res.Data))
	}

	first, second := res.Data[0], res.Data[1]
	if !first.IsAvailable || first.Price != Fixed(150) || first.Currency != "EUR" {
		t.Errorf("first = %+v", first)
	}
	if second.IsAvailable {
		t.Error("second.IsAvailable = true, want false")
	}
	if second.Price.Status != StatusUnavailable {
		t.Errorf("second.Price = %v, want UNAVAILABLE", second.Price)
	}
	if second.Nights != 1 || second.Pax != 1 {
		t.Errorf("nights/pax = %d/%d, want 1/1", second.Nights, second.Pax)
	}
	if second.SourceRow != -1 || second.SourceCol != -1 {
		t.Errorf("source = (%d, %d), want (-1, -1) for a hand-built matrix", second.SourceRow, second.SourceCol)
	}

	want := Summary{TotalEntries: 2, AvailableEntries: 1, UnavailableEntries: 1, SpecialPeriods: []string{}}
	if !reflect.DeepEqual(res.Summary, want) {
		t.Errorf("Summary = %+v, want %+v", res.Summary, want)
	}
}

func TestNormalizePricing_MarkUnavailableKeepsEveryCombination(t *testing.T) {
	n := newTestNormalizer(DefaultNormalizerConfig())
	m := hotelMatrix([]string{"January", "February", "March"},
		[]string{"100", "", "abc"},
		[]string{"200", "210"},
		[]string{"", "", ""},
	)

	res, err := n.NormalizePricing(m)
	if err != nil {
		t.Fatalf("NormalizePricing() error = %v", err)
	}
	if got, want := len(res.Data), 9; got != want {
		t.Errorf("len(Data) = %d, want %d", got, want)
	}
	if res.Summary.UnavailableEntries != 6 {
		t.Errorf("UnavailableEntries = %d, want 6", res.Summary.UnavailableEntries)
	}
	if res.Summary.AvailableEntries != 3 {
		t.Errorf("AvailableEntries = %d, want 3", res.Summary.AvailableEntries)
	}

	seen := make(map[[2]string]bool)
	for _, e := range res.Data {
		seen[[2]string{e.AccommodationType, e.Month}] = true
	}
	for _, at := range m.AccommodationTypes {
		for _, month := range m.Months {
			if !seen[[2]string{at.Name, month}] {
				t.Errorf("combination %s / %s dropped", at.Name, month)
			}
		}
	}
}

func TestNormalizePricing_MissingPolicies(t *testing.T) {
	m := hotelMatrix([]string{"January", "February"}, []string{"150", "n/a"})

	t.Run("skip", func(t *testing.T) {
		cfg := DefaultNormalizerConfig()
		cfg.HandleMissingPrices = MissingSkip
		res, err := newTestNormalizer(cfg).NormalizePricing(m)
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		if len(res.Data) != 1 || res.Summary.SkippedEntries != 1 {
			t.Errorf("len(Data) = %d, SkippedEntries = %d, want 1, 1", len(res.Data), res.Summary.SkippedEntries)
		}
	})

	t.Run("error", func(t *testing.T) {
		cfg := DefaultNormalizerConfig()
		cfg.HandleMissingPrices = MissingError
		res, err := newTestNormalizer(cfg).NormalizePricing(m)
		if !errors.Is(err, ErrMissingPrice) {
			t.Fatalf("error = %v, want ErrMissingPrice", err)
		}
		if res.Success {
			t.Error("Success = true on error")
		}
	})
}

func TestNormalizePricing_OnRequestKeptUnderEveryPolicy(t *testing.T) {
	m := hotelMatrix([]string{"January"}, []string{"On Request"})

	for _, policy := range []MissingPolicy{MissingMarkUnavailable, MissingSkip, MissingError} {
		t.Run(string(policy), func(t *testing.T) {
			cfg := DefaultNormalizerConfig()
			cfg.HandleMissingPrices = policy
			res, err := newTestNormalizer(cfg).NormalizePricing(m)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if len(res.Data) != 1 || res.Data[0].Price.Status != StatusOnRequest || res.Data[0].IsAvailable {
				t.Errorf("Data = %+v", res.Data)
			}
		})
	}
}

func TestNormalizePricing_ConversionAndRounding(t *testing.T) {
	tests := []struct {
		name     string
		cfg      func(*NormalizerConfig)
		cell     string
		want     float64
		currency string
	}{
		{"default rounding", func(*NormalizerConfig) {}, "150.456", 150.46, "EUR"},
		{"half up", func(*NormalizerConfig) {}, "2.675", 2.68, "EUR"},
		{"whole numbers", func(c *NormalizerConfig) { c.PriceRounding.Precision = 0 }, "150.5", 151, "EUR"},
		{"rounding off", func(c *NormalizerConfig) { c.PriceRounding.Enabled = false }, "150.456", 150.456, "EUR"},
		{"european format", func(*NormalizerConfig) {}, "1.234,50", 1234.5, "EUR"},
		{"conversion", func(c *NormalizerConfig) {
			c.CurrencyConversion = &Conversion{From: "EUR", To: "USD", Rate: 1.1}
		}, "100", 110, "USD"},
		{"conversion for another currency", func(c *NormalizerConfig) {
			c.CurrencyConversion = &Conversion{From: "GBP", To: "USD", Rate: 1.3}
		}, "100", 100, "EUR"},
		{"cell currency overrides", func(*NormalizerConfig) {}, "£120", 120, "GBP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultNormalizerConfig()
			tt.cfg(&cfg)
			res, err := newTestNormalizer(cfg).NormalizePricing(hotelMatrix([]string{"January"}, []string{tt.cell}))
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			got := res.Data[0]
			if got.Price.Amount != tt.want {
				t.Errorf("Price = %v, want %v", got.Price.Amount, tt.want)
			}
			if got.Currency != tt.currency {
				t.Errorf("Currency = %q, want %q", got.Currency, tt.currency)
			}
		})
	}
}

func TestNormalizePricing_SpecialPeriods(t *testing.T) {
	months := []string{"January", "Easter (18–21 Apr)"}
	m := hotelMatrix(months, []string{"100", "180"})

	res, err := newTestNormalizer(DefaultNormalizerConfig()).NormalizePricing(m)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if res.Data[1].Month != "Easter (18–21 Apr)" {
		t.Errorf("Month = %q, want the label verbatim", res.Data[1].Month)
	}
	if res.Data[1].SpecialPeriod != "Easter" {
		t.Errorf("SpecialPeriod = %q, want Easter", res.Data[1].SpecialPeriod)
	}
	if res.Data[0].SpecialPeriod != "" {
		t.Errorf("January SpecialPeriod = %q, want empty", res.Data[0].SpecialPeriod)
	}
	if want := []string{"Easter"}; !reflect.DeepEqual(res.Summary.SpecialPeriods, want) {
		t.Errorf("SpecialPeriods = %v, want %v", res.Summary.SpecialPeriods, want)
	}

	cfg := DefaultNormalizerConfig()
	cfg.PreserveSpecialPeriods = Bool(false)
	res, err = newTestNormalizer(cfg).NormalizePricing(m)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if len(res.Data) != 1 {
		t.Errorf("len(Data) = %d, want 1", len(res.Data))
	}
	if want := []string{"Easter (18–21 Apr)"}; !reflect.DeepEqual(res.Summary.ExcludedPeriods, want) {
		t.Errorf("ExcludedPeriods = %v, want %v", res.Summary.ExcludedPeriods, want)
	}
}

func TestNormalizePricing_FromSheetCarriesSource(t *testing.T) {
	e := newTestExtractor()
	s := sheetWithBlank()

	res, err := newTestNormalizer(DefaultNormalizerConfig()).NormalizePricing(e.ExtractPricingMatrix(s.Name, s).Matrix)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	last := res.Data[len(res.Data)-1]
	if last.SourceRow != 2 || last.SourceCol != 2 {
		t.Errorf("source = (%d, %d), want (2, 2)", last.SourceRow, last.SourceCol)
	}
	if last.IsAvailable {
		t.Error("blank sheet cell should be unavailable")
	}
}

func TestParseMissingPolicy(t *testing.T) {
	if p, err := ParseMissingPolicy("skip"); err != nil || p != MissingSkip {
		t.Errorf("ParseMissingPolicy(skip) = %q, %v", p, err)
	}
	if _, err := ParseMissingPolicy("ignore"); err == nil {
		t.Error("ParseMissingPolicy(ignore) error = nil")
	}
}

func TestPrice_JSON(t *testing.T) {
	tests := []struct {
		price Price
		json  string
	}{
		{Fixed(150), `150`},
		{Fixed(99.5), `99.5`},
		{Price{Status: StatusUnavailable}, `"UNAVAILABLE"`},
		{Price{Status: StatusOnRequest}, `"ON_REQUEST"`},
	}

	for _, tt := range tests {
		t.Run(tt.json, func(t *testing.T) {
			data, err := json.Marshal(tt.price)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.json {
				t.Errorf("Marshal() = %s, want %s", data, tt.json)
			}
			var back Price
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if back != tt.price {
				t.Errorf("Unmarshal() = %+v, want %+v", back, tt.price)
			}
		})
	}

	var p Price
	if err := json.Unmarshal([]byte(`"FREE"`), &p); err == nil {
		t.Error("Unmarshal(\"FREE\") error = nil")
	}
}

func TestNormalizePricing_AmbiguousThousands(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  []float64
	}{
		{"european block", []string{"1.200", "1.450,50", "980,00"}, []float64{1200, 1450.5, 980}},
		{"us block", []string{"1.200", "1,450.50", "980.00"}, []float64{1.2, 1450.5, 980}},
		{"euro sign without context", []string{"€1.200", "€ 2.500", "€900"}, []float64{1200, 2500, 900}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := hotelMatrix([]string{"January", "February", "March"}, tt.cells)
			res, err := newTestNormalizer(DefaultNormalizerConfig()).NormalizePricing(m)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			for i, want := range tt.want {
				if got := res.Data[i].Price.Amount; got != want {
					t.Errorf("Data[%d] = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestNewNormalizer_ZeroConfigKeepsSpecialPeriods(t *testing.T) {
	m := hotelMatrix([]string{"January", "Easter (18–21 Apr)"}, []string{"100", "180"})

	n := newTestNormalizer(NormalizerConfig{})
	if p := n.Config().PreserveSpecialPeriods; p == nil || !*p {
		t.Errorf("PreserveSpecialPeriods = %v, want true", p)
	}
	res, err := n.NormalizePricing(m)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if len(res.Data) != 2 || len(res.Summary.ExcludedPeriods) != 0 {
		t.Errorf("len(Data) = %d, ExcludedPeriods = %v, want 2 and none", len(res.Data), res.Summary.ExcludedPeriods)
	}
}

func TestNormalizePricing_ConversionNeedsKnownCurrency(t *testing.T) {
	tests := []struct {
		name     string
		conv     Conversion
		want     float64
		currency string
	}{
		{"restricted to EUR", Conversion{From: "EUR", To: "USD", Rate: 1.1}, 100, ""},
		{"unrestricted", Conversion{To: "USD", Rate: 1.1}, 110, "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultNormalizerConfig()
			cfg.CurrencyConversion = &tt.conv
			m := hotelMatrix([]string{"January"}, []string{"100"})
			m.Metadata.Currency = ""

			res, err := newTestNormalizer(cfg).NormalizePricing(m)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			got := res.Data[0]
			if got.Price.Amount != tt.want || got.Currency != tt.currency {
				t.Errorf("entry = %v %q, want %v %q", got.Price.Amount, got.Currency, tt.want, tt.currency)
			}
		})
	}
}
