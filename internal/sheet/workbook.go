package sheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned when a workbook contains no worksheets.
var ErrNoSheets = errors.New("workbook contains no sheets")

// Workbook is a parsed spreadsheet file.
type Workbook struct {
	Name   string   `json:"name"`
	Sheets []*Sheet `json:"sheets"`
}

// SheetNames returns the tab names in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		names[i] = s.Name
	}
	return names
}

// LoadWorkbook reads an .xlsx stream into memory, capturing each sheet's
// formatted cell values and merged ranges.
func LoadWorkbook(name string, r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, ErrNoSheets
	}

	wb := &Workbook{Name: name}
	for _, sheetName := range names {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
		}

		merges, err := readMerges(f, sheetName)
		if err != nil {
			return nil, fmt.Errorf("read merges of %q: %w", sheetName, err)
		}

		wb.Sheets = append(wb.Sheets, New(sheetName, rows, merges...))
	}

	return wb, nil
}

// readMerges converts excelize's A1-style merge references to zero-based ranges.
func readMerges(f *excelize.File, sheetName string) ([]MergeRange, error) {
	cells, err := f.GetMergeCells(sheetName)
	if err != nil {
		return nil, err
	}

	merges := make([]MergeRange, 0, len(cells))
	for _, mc := range cells {
		sc, sr, err := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if err != nil {
			continue
		}
		ec, er, err := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err != nil {
			continue
		}
		merges = append(merges, MergeRange{
			StartRow: sr - 1,
			StartCol: sc - 1,
			EndRow:   er - 1,
			EndCol:   ec - 1,
		})
	}
	return merges, nil
}
