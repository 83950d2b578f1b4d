package sheet

// csv.go reads bulk tabular imports (CSV exports of partner sheets).
//
// Partner CSVs commonly arrive with a Windows UTF-8 BOM, stray invalid bytes
// from legacy encodings, and ragged rows where trailing empty cells were
// dropped by the exporting tool. All three are tolerated here so that the
// header and rows reach the column mapper intact.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyFile is returned when a CSV contains no records.
var ErrEmptyFile = errors.New("empty file")

// utf8BOM is the byte-order mark some Windows tools prepend to UTF-8 files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a header row plus data rows from a tabular import.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ReadCSV parses r as comma-separated values. The first non-blank record is
// the header row; fully blank records are skipped.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(skipBOM(r))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	// Invalid bytes become '?' so a single bad byte cannot reject the file.
	data = bytes.ToValidUTF8(data, []byte("?"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}

	var table *Table
	for _, rec := range records {
		if isBlankRecord(rec) {
			continue
		}
		if table == nil {
			table = &Table{Headers: trimAll(rec)}
			continue
		}
		table.Rows = append(table.Rows, rec)
	}

	if table == nil {
		return nil, ErrEmptyFile
	}
	return table, nil
}

// AsSheet exposes the table as a grid whose first row is the header.
func (t *Table) AsSheet(name string) *Sheet {
	rows := make([][]string, 0, len(t.Rows)+1)
	rows = append(rows, t.Headers)
	rows = append(rows, t.Rows...)
	return New(name, rows)
}

// skipBOM drops a leading UTF-8 byte-order mark if present.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
