package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/sheetimport/internal/classify"
	"github.com/JonMunkholm/sheetimport/internal/config"
	"github.com/JonMunkholm/sheetimport/internal/dictionary"
	"github.com/JonMunkholm/sheetimport/internal/inclusions"
	"github.com/JonMunkholm/sheetimport/internal/layout"
	"github.com/JonMunkholm/sheetimport/internal/mapping"
	"github.com/JonMunkholm/sheetimport/internal/metadata"
	"github.com/JonMunkholm/sheetimport/internal/pricing"
	"github.com/JonMunkholm/sheetimport/internal/rules"
)

// Options configures every pipeline component of a Service.
type Options struct {
	Tables        dictionary.Tables
	Layout        layout.Options
	Normalizer    pricing.NormalizerConfig
	Validator     pricing.ValidatorConfig
	Inclusions    inclusions.Options
	Sections      inclusions.DetectorOptions
	MaxConcurrent int
	MaxWait       time.Duration
}

// DefaultOptions returns the built-in dictionaries and thresholds.
func DefaultOptions() Options {
	return Options{
		Tables:        dictionary.Default(),
		Layout:        layout.DefaultOptions(),
		Normalizer:    pricing.DefaultNormalizerConfig(),
		Validator:     pricing.DefaultValidatorConfig(),
		Inclusions:    inclusions.DefaultOptions(),
		Sections:      inclusions.DefaultDetectorOptions(),
		MaxConcurrent: DefaultMaxConcurrent,
		MaxWait:       DefaultMaxWait,
	}
}

// OptionsFromConfig turns loaded configuration into component options. A
// configured dictionary path is read and merged onto the defaults.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()

	if path := cfg.Pipeline.DictionaryPath; path != "" {
		tables, err := dictionary.LoadFile(path)
		if err != nil {
			return Options{}, err
		}
		opts.Tables = tables
	}

	opts.Layout = layout.Options{
		ScanRows:      cfg.Pipeline.ScanRows,
		ScanCols:      cfg.Pipeline.ScanCols,
		MinSecondary:  cfg.Pipeline.MinSecondary,
		BlankRunLimit: cfg.Pipeline.BlankRunLimit,
		MinPatternRun: cfg.Inclusions.MinPatternRun,
	}

	policy, err := pricing.ParseMissingPolicy(cfg.Pricing.MissingPolicy)
	if err != nil {
		return Options{}, err
	}
	opts.Normalizer = pricing.NormalizerConfig{
		PreserveSpecialPeriods: pricing.Bool(cfg.Pricing.PreserveSpecialPeriods),
		HandleMissingPrices:    policy,
		PriceRounding: pricing.Rounding{
			Enabled:   cfg.Pricing.RoundingEnabled,
			Precision: cfg.Pricing.RoundingPrecision,
		},
	}
	if cfg.Pricing.ConvertTo != "" {
		opts.Normalizer.CurrencyConversion = &pricing.Conversion{
			From: cfg.Pricing.ConvertFrom,
			To:   cfg.Pricing.ConvertTo,
			Rate: cfg.Pricing.ConvertRate,
		}
	}

	opts.Validator.AllowZeroPrices = cfg.Pricing.AllowZeroPrices
	opts.Validator.ExpectedCurrency = cfg.Pricing.ExpectedCurrency
	opts.Validator.Bounds = pricing.Bounds{Min: cfg.Pricing.MinPerNight, Max: cfg.Pricing.MaxPerNight}

	opts.Inclusions = inclusions.Options{
		MinLength:   cfg.Inclusions.MinLength,
		MaxLength:   cfg.Inclusions.MaxLength,
		TargetWords: cfg.Inclusions.TargetWords,
	}
	opts.Sections = inclusions.DetectorOptions{
		MinLineLength:  cfg.Inclusions.MinLineLength,
		DedupeDistance: cfg.Inclusions.DedupeDistance,
	}

	opts.MaxConcurrent = cfg.Pipeline.MaxConcurrent
	opts.MaxWait = cfg.Pipeline.MaxWait
	return opts, nil
}

// Service runs the import pipeline. It is safe for concurrent use.
type Service struct {
	classifier *classify.Classifier
	layout     *layout.Detector
	meta       *metadata.Extractor
	extractor  *pricing.Extractor
	normalizer *pricing.Normalizer
	validator  *pricing.Validator
	sections   *inclusions.Detector
	processor  *inclusions.Processor
	rules      *rules.Engine
	mapper     *mapping.Mapper
	templates  *mapping.TemplateManager
	limiter    *Limiter
}

// NewService builds every component from opts over the template store.
// Zero Tables fall back to the built-in dictionaries.
func NewService(store mapping.Store, opts Options) *Service {
	if len(opts.Tables.Months) == 0 {
		opts.Tables = dictionary.Default()
	}

	c := classify.New(opts.Tables)
	ld := layout.NewDetector(c, opts.Layout)
	meta := metadata.New(c)

	return &Service{
		classifier: c,
		layout:     ld,
		meta:       meta,
		extractor:  pricing.NewExtractor(ld, meta),
		normalizer: pricing.NewNormalizer(c, meta, opts.Normalizer),
		validator:  pricing.NewValidator(c, opts.Validator),
		sections:   inclusions.NewDetector(ld, opts.Sections),
		processor:  inclusions.NewProcessor(opts.Tables, opts.Inclusions),
		rules:      rules.NewDefaultEngine(c),
		mapper:     mapping.NewMapper(c, nil),
		templates:  mapping.NewTemplateManager(store),
		limiter:    NewLimiter(opts.MaxConcurrent, opts.MaxWait),
	}
}

// Classifier returns the content classifier.
func (s *Service) Classifier() *classify.Classifier { return s.classifier }

// Mapper returns the column mapper without template history.
func (s *Service) Mapper() *mapping.Mapper { return s.mapper }

// Templates returns the template manager.
func (s *Service) Templates() *mapping.TemplateManager { return s.templates }

// Inclusions returns the inclusion text processor.
func (s *Service) Inclusions() *inclusions.Processor { return s.processor }

// Rules returns the data validation engine. Rules registered on it apply to
// every later import.
func (s *Service) Rules() *rules.Engine { return s.rules }

// Limiter returns the limiter shared by analyses and imports.
func (s *Service) Limiter() *Limiter { return s.limiter }

// Classify classifies one cell.
func (s *Service) Classify(text string) classify.Token {
	return s.classifier.ClassifyContent(text)
}

// SuggestMappings suggests mappings for headers, boosted by the bindings of
// every saved template.
func (s *Service) SuggestMappings(ctx context.Context, headers []string, sample [][]string) ([]mapping.Suggestion, error) {
	all, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.mapper.WithHistory(mapping.HistoryFromTemplates(all)).SuggestMappings(headers, sample)
}

// ProcessInclusions cleans and scores raw inclusion lines.
func (s *Service) ProcessInclusions(raws []string) inclusions.Batch {
	return s.processor.ProcessInclusions(raws)
}

// Drain waits for running analyses and imports to finish.
func (s *Service) Drain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

