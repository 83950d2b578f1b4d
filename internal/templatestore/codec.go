package templatestore

import (
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/sheetimport/internal/mapping"
)

// encodeLists serialises the JSON columns shared by the SQL adapters.
func encodeLists(t mapping.Template) (mappings, patterns []byte, err error) {
	if mappings, err = json.Marshal(t.Mappings); err != nil {
		return nil, nil, fmt.Errorf("encode mappings: %w", err)
	}
	if patterns, err = json.Marshal(t.ApplicablePatterns); err != nil {
		return nil, nil, fmt.Errorf("encode applicable patterns: %w", err)
	}
	return mappings, patterns, nil
}

func decodeLists(t *mapping.Template, mappings, patterns []byte) error {
	t.Mappings = []mapping.Mapping{}
	t.ApplicablePatterns = []string{}
	if len(mappings) > 0 {
		if err := json.Unmarshal(mappings, &t.Mappings); err != nil {
			return fmt.Errorf("decode mappings: %w", err)
		}
	}
	if len(patterns) > 0 {
		if err := json.Unmarshal(patterns, &t.ApplicablePatterns); err != nil {
			return fmt.Errorf("decode applicable patterns: %w", err)
		}
	}
	return nil
}
