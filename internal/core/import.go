package core

import (
	"context"
	"io"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/logging"
	"github.com/JonMunkholm/sheetimport/internal/mapping"
	"github.com/JonMunkholm/sheetimport/internal/rules"
	"github.com/JonMunkholm/sheetimport/internal/sheet"
)

// sampleRows is how many data rows feed mapping suggestions.
const sampleRows = 20

// MappingSource records where an import's mappings came from.
type MappingSource string

const (
	SourceTemplate  MappingSource = "template"
	SourceMatched   MappingSource = "matched-template"
	SourceSuggested MappingSource = "suggested"
)

// ImportResult is the outcome of ImportTabular.
type ImportResult struct {
	Source      MappingSource        `json:"source"`
	Template    *mapping.Template    `json:"template,omitempty"`
	Suggestions []mapping.Suggestion `json:"suggestions,omitempty"`
	Mappings    []mapping.Mapping    `json:"mappings"`
	Mapping     mapping.Validation   `json:"mappingValidation"`
	Records     []mapping.Record     `json:"records"`
	Validation  rules.Report         `json:"validation"`
}

// ImportCSV parses r as CSV and imports it.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader, templateID string) (*ImportResult, error) {
	table, err := sheet.ReadCSV(r)
	if err != nil {
		return nil, err
	}
	return s.ImportTabular(ctx, table.Headers, table.Rows, templateID)
}

// ImportTabular maps and validates a header row plus data rows. Mappings
// come from templateID when given, which records a use of that template;
// otherwise from the best saved template matching the headers, else from
// fresh suggestions. Empty headers fail with mapping.ErrHeadersMissing and an
// unknown templateID with mapping.ErrNotFound.
func (s *Service) ImportTabular(ctx context.Context, headers []string, rows [][]string, templateID string) (*ImportResult, error) {
	if len(headers) == 0 {
		return nil, mapping.ErrHeadersMissing
	}

	var res *ImportResult
	err := s.limiter.Do(ctx, func() error {
		start := time.Now()
		var err error
		res, err = s.resolveMappings(ctx, headers, rows, templateID)
		if err != nil {
			return err
		}

		res.Mapping = s.mapper.ValidateMappings(res.Mappings)
		res.Records = s.mapper.ApplyMapping(headers, rows, res.Mappings)

		fields := make(map[string]string, len(res.Mappings))
		for _, m := range res.Mappings {
			fields[m.ExcelColumn] = m.SystemField
		}
		res.Validation = s.rules.ValidateData(rows, headers, fields)

		logging.FromContext(ctx).Info("tabular import processed",
			"source", res.Source,
			"rows", len(rows),
			"valid_rows", res.Validation.ValidRows,
			"errors", res.Validation.ErrorCount,
			"duration", time.Since(start),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) resolveMappings(ctx context.Context, headers []string, rows [][]string, templateID string) (*ImportResult, error) {
	if templateID != "" {
		t, err := s.templates.Use(ctx, templateID)
		if err != nil {
			return nil, err
		}
		return &ImportResult{Source: SourceTemplate, Template: &t, Mappings: t.Mappings}, nil
	}

	matches, err := s.templates.FindMatching(ctx, headers)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		t, err := s.templates.Use(ctx, matches[0].Template.ID)
		if err != nil {
			return nil, err
		}
		return &ImportResult{Source: SourceMatched, Template: &t, Mappings: t.Mappings}, nil
	}

	sample := rows
	if len(sample) > sampleRows {
		sample = sample[:sampleRows]
	}
	suggestions, err := s.SuggestMappings(ctx, headers, sample)
	if err != nil {
		return nil, err
	}
	mappings := make([]mapping.Mapping, 0, len(suggestions))
	for _, sg := range suggestions {
		mappings = append(mappings, sg.Mapping)
	}
	return &ImportResult{Source: SourceSuggested, Suggestions: suggestions, Mappings: mappings}, nil
}
