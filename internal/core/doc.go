// Package core wires the sheet import pipeline behind a single Service.
//
// The pipeline packages are pure: they take grids and strings and return
// values. This package owns everything around them that a transport needs,
// so the HTTP server and the CLI share one implementation.
//
// # Workbook Analysis
//
// [Service.AnalyzeWorkbook] reads an .xlsx stream and, for every sheet, runs
//
//  1. layout detection (which archetypes the sheet follows)
//  2. metadata extraction (resort name, currency, special periods)
//  3. pricing extraction into a raw matrix
//  4. normalization into flat entries under the configured missing-price policy
//  5. price validation
//  6. inclusion section detection and text cleaning
//
// Only a normalization error under the "error" policy aborts the analysis.
// Everything else is reported as findings and suggestions.
//
// # Tabular Import
//
// [Service.ImportTabular] takes a header row and data rows (usually from
// [Service.ImportCSV]), picks mappings from an explicit template, the best
// matching saved template or fresh suggestions, then coerces the rows and
// runs the data validation rules over them.
//
// # Concurrency
//
// The Service is safe for concurrent use. Analyses and imports share a
// [Limiter]; callers that cannot get a slot in time receive [ErrBusy].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - TPL001-TPL003: Template errors (not found, name, patterns)
//   - IMP001-IMP005: Import errors (headers, workbook, CSV)
//   - PRC001: Missing price under the error policy
//   - DICT001: Invalid dictionary override
//   - SRV001-SRV003: Service errors (busy, store unreachable, timeout)
package core
