package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/inclusions"
	"github.com/JonMunkholm/sheetimport/internal/layout"
	"github.com/JonMunkholm/sheetimport/internal/logging"
	"github.com/JonMunkholm/sheetimport/internal/metadata"
	"github.com/JonMunkholm/sheetimport/internal/pricing"
	"github.com/JonMunkholm/sheetimport/internal/sheet"
)

// InclusionBlock is one detected inclusions section with its cleaned items.
type InclusionBlock struct {
	Section inclusions.Section `json:"section"`
	Items   inclusions.Batch   `json:"items"`
}

// SheetAnalysis is everything the pipeline found on one sheet.
type SheetAnalysis struct {
	Name        string             `json:"name"`
	Layout      layout.Result      `json:"layout"`
	Metadata    metadata.Metadata  `json:"metadata"`
	Extraction  pricing.Extraction `json:"extraction"`
	Pricing     pricing.Result     `json:"pricing"`
	Validation  pricing.Report     `json:"validation"`
	Inclusions  []InclusionBlock   `json:"inclusions"`
	Suggestions []string           `json:"suggestions"`
}

// WorkbookAnalysis is the result of AnalyzeWorkbook.
type WorkbookAnalysis struct {
	Sheets      []SheetAnalysis `json:"sheets"`
	Suggestions []string        `json:"suggestions"`
}

// AnalyzeWorkbook reads an .xlsx stream and analyses every sheet in
// workbook order. An empty workbook fails with sheet.ErrNoSheets; under the
// error missing-price policy the first missing price fails the whole
// analysis with pricing.ErrMissingPrice.
func (s *Service) AnalyzeWorkbook(ctx context.Context, r io.Reader) (*WorkbookAnalysis, error) {
	var res *WorkbookAnalysis
	err := s.limiter.Do(ctx, func() error {
		start := time.Now()
		wb, err := sheet.LoadWorkbook("", r)
		if err != nil {
			return err
		}

		res = &WorkbookAnalysis{Sheets: make([]SheetAnalysis, 0, len(wb.Sheets))}
		for _, sh := range wb.Sheets {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := s.AnalyzeSheet(ctx, sh)
			if err != nil {
				return err
			}
			res.Sheets = append(res.Sheets, a)
		}
		res.Suggestions = workbookSuggestions(res.Sheets)

		logging.FromContext(ctx).Info("workbook analysed",
			"sheets", len(res.Sheets),
			"duration", time.Since(start),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AnalyzeSheet runs the pipeline over one sheet.
func (s *Service) AnalyzeSheet(ctx context.Context, sh *sheet.Sheet) (SheetAnalysis, error) {
	log := logging.WithFields(ctx, "sheet", sh.Name)

	a := SheetAnalysis{
		Name:        sh.Name,
		Layout:      s.layout.Detect(sh),
		Metadata:    s.meta.ExtractMetadata(sh.Name, sh),
		Extraction:  s.extractor.ExtractPricingMatrix(sh.Name, sh),
		Pricing:     pricing.Result{Data: []pricing.Entry{}, Summary: pricing.Summary{SpecialPeriods: []string{}}},
		Validation:  pricing.Report{IsValid: true, Issues: []pricing.Issue{}},
		Inclusions:  []InclusionBlock{},
		Suggestions: []string{},
	}

	if a.Extraction.Found {
		norm, err := s.normalizer.NormalizePricing(a.Extraction.Matrix)
		if err != nil {
			return SheetAnalysis{}, fmt.Errorf("normalize sheet %q: %w", sh.Name, err)
		}
		a.Pricing = norm
		a.Validation = s.validator.Validate(norm.Data)
	}

	detection := s.sections.DetectSections(sh)
	for _, sec := range detection.Sections {
		a.Inclusions = append(a.Inclusions, InclusionBlock{
			Section: sec,
			Items:   s.processor.ProcessInclusions(sec.Content),
		})
	}

	a.Suggestions = append(a.Suggestions, a.Layout.Suggestions...)
	a.Suggestions = append(a.Suggestions, a.Extraction.Suggestions...)
	a.Suggestions = append(a.Suggestions, detection.Suggestions...)
	for _, b := range a.Inclusions {
		a.Suggestions = append(a.Suggestions, b.Items.Suggestions...)
	}
	a.Suggestions = dedupeStrings(a.Suggestions)

	log.Debug("sheet analysed",
		"layout", a.Layout.Primary.Type,
		"entries", a.Pricing.Summary.TotalEntries,
		"available", a.Pricing.Summary.AvailableEntries,
		"errors", a.Validation.ErrorCount,
		"inclusion_sections", len(a.Inclusions),
	)
	return a, nil
}

// workbookSuggestions reviews the sheets together.
func workbookSuggestions(sheets []SheetAnalysis) []string {
	out := []string{}

	priced := 0
	currencies := make(map[string]bool)
	for _, a := range sheets {
		if a.Extraction.Found {
			priced++
			if c := a.Extraction.Matrix.Metadata.Currency; c != "" {
				currencies[c] = true
			}
		}
		if a.Validation.ErrorCount > 0 {
			out = append(out, fmt.Sprintf("Sheet '%s' has %d pricing error(s) to fix before import", a.Name, a.Validation.ErrorCount))
		}
	}

	if priced == 0 {
		out = append([]string{"No sheet contains a recognisable pricing grid"}, out...)
	}
	if len(currencies) > 1 {
		codes := make([]string, 0, len(currencies))
		for c := range currencies {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		out = append(out, fmt.Sprintf("Sheets are quoted in different currencies (%s); confirm this is intended", strings.Join(codes, ", ")))
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
