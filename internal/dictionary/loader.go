package dictionary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML override file and merges it onto Default().
// Any table present in the file replaces the built-in table wholesale;
// tables omitted from the file keep their defaults.
func LoadFile(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read dictionary file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML override data and merges it onto Default().
func Parse(data []byte) (Tables, error) {
	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Tables{}, fmt.Errorf("invalid dictionary file: %w", err)
	}

	merged := Merge(Default(), override)
	if err := merged.Validate(); err != nil {
		return Tables{}, fmt.Errorf("invalid dictionary file: %w", err)
	}
	return merged, nil
}

// Merge returns base with every non-empty table of override substituted in.
func Merge(base, override Tables) Tables {
	if len(override.Months) > 0 {
		base.Months = override.Months
	}
	if len(override.SpecialPeriods) > 0 {
		base.SpecialPeriods = override.SpecialPeriods
	}
	if len(override.Accommodation) > 0 {
		base.Accommodation = override.Accommodation
	}
	if len(override.Currencies) > 0 {
		base.Currencies = override.Currencies
	}
	if len(override.Placeholders) > 0 {
		base.Placeholders = override.Placeholders
	}
	if len(override.PlaceholderPrefixes) > 0 {
		base.PlaceholderPrefixes = override.PlaceholderPrefixes
	}
	if len(override.InclusionHeaders) > 0 {
		base.InclusionHeaders = override.InclusionHeaders
	}
	if len(override.InclusionCategories) > 0 {
		base.InclusionCategories = override.InclusionCategories
	}
	if len(override.InclusionBoostTerms) > 0 {
		base.InclusionBoostTerms = override.InclusionBoostTerms
	}
	if len(override.VagueTerms) > 0 {
		base.VagueTerms = override.VagueTerms
	}
	if len(override.OnRequestTerms) > 0 {
		base.OnRequestTerms = override.OnRequestTerms
	}
	if len(override.UnavailableTerms) > 0 {
		base.UnavailableTerms = override.UnavailableTerms
	}
	return base
}

// Validate checks structural consistency of the tables.
func (t Tables) Validate() error {
	seen := make(map[int]bool, len(t.Months))
	for _, m := range t.Months {
		if m.Number < 1 || m.Number > 12 {
			return fmt.Errorf("month %q has number %d, want 1-12", m.Full, m.Number)
		}
		if m.Full == "" {
			return fmt.Errorf("month %d has no full name", m.Number)
		}
		if seen[m.Number] {
			return fmt.Errorf("month %d defined more than once", m.Number)
		}
		seen[m.Number] = true
	}
	for _, c := range t.Accommodation {
		if c.Name == "" || len(c.Keywords) == 0 {
			return fmt.Errorf("accommodation category needs a name and keywords")
		}
	}
	for _, c := range t.InclusionCategories {
		if c.Name == "" || len(c.Keywords) == 0 {
			return fmt.Errorf("inclusion category needs a name and keywords")
		}
	}
	for _, c := range t.Currencies {
		if c.Symbol == "" || len(c.Code) != 3 {
			return fmt.Errorf("currency %q needs a symbol and a 3-letter code", c.Symbol)
		}
	}
	return nil
}
