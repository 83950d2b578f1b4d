// Package sheet models an in-memory worksheet grid and the merged-cell ranges
// laid over it.
//
// Every read goes through the merge resolver, so a value typed into the
// top-left cell of a merge is visible from every cell the merge spans.
// Callers never special-case merges themselves.
//
// Rows may be ragged: a missing trailing cell reads as blank.
package sheet

import "strings"

// Cell is a single grid value with its zero-based coordinates.
type Cell struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value"`
}

// Sheet is one worksheet: its tab name, its rows and its merged ranges.
// A Sheet is read-only once constructed.
type Sheet struct {
	Name   string       `json:"name"`
	Rows   [][]string   `json:"rows"`
	Merges []MergeRange `json:"merges,omitempty"`

	resolver *Resolver
}

// New constructs a Sheet and indexes its merges.
func New(name string, rows [][]string, merges ...MergeRange) *Sheet {
	return &Sheet{
		Name:     name,
		Rows:     rows,
		Merges:   merges,
		resolver: NewResolver(merges),
	}
}

// RowCount returns the number of rows, including blank ones.
func (s *Sheet) RowCount() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

// ColCount returns the width of the widest row, accounting for merges that
// extend past the last typed cell.
func (s *Sheet) ColCount() int {
	if s == nil {
		return 0
	}
	width := 0
	for _, r := range s.Rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for _, m := range s.Merges {
		if m.EndCol+1 > width {
			width = m.EndCol + 1
		}
	}
	return width
}

// Raw returns the value physically stored at (row, col), ignoring merges.
func (s *Sheet) Raw(row, col int) string {
	if s == nil || row < 0 || col < 0 || row >= len(s.Rows) || col >= len(s.Rows[row]) {
		return ""
	}
	return s.Rows[row][col]
}

// At returns the trimmed logical value at (row, col), resolving merges to
// their anchor cell.
func (s *Sheet) At(row, col int) string {
	if s == nil {
		return ""
	}
	r, c := s.res().Anchor(row, col)
	return strings.TrimSpace(s.Raw(r, c))
}

// IsBlank reports whether the logical value at (row, col) is empty.
func (s *Sheet) IsBlank(row, col int) bool {
	return s.At(row, col) == ""
}

// Row returns the logical values of a row padded to ColCount.
func (s *Sheet) Row(row int) []string {
	width := s.ColCount()
	out := make([]string, width)
	for c := 0; c < width; c++ {
		out[c] = s.At(row, c)
	}
	return out
}

// Column returns the logical values of a column across all rows.
func (s *Sheet) Column(col int) []string {
	n := s.RowCount()
	out := make([]string, n)
	for r := 0; r < n; r++ {
		out[r] = s.At(r, col)
	}
	return out
}

// IsBlankRow reports whether every cell in row between fromCol and toCol
// (inclusive) is blank.
func (s *Sheet) IsBlankRow(row, fromCol, toCol int) bool {
	for c := fromCol; c <= toCol; c++ {
		if !s.IsBlank(row, c) {
			return false
		}
	}
	return true
}

// IsBlankCol reports whether every cell in col between fromRow and toRow
// (inclusive) is blank.
func (s *Sheet) IsBlankCol(col, fromRow, toRow int) bool {
	for r := fromRow; r <= toRow; r++ {
		if !s.IsBlank(r, col) {
			return false
		}
	}
	return true
}

// NonEmpty returns every non-blank logical cell in row-major order.
// Only anchor cells of merges are reported so that a merged value appears once.
func (s *Sheet) NonEmpty() []Cell {
	var cells []Cell
	width := s.ColCount()
	for r := 0; r < s.RowCount(); r++ {
		for c := 0; c < width; c++ {
			if ar, ac := s.res().Anchor(r, c); ar != r || ac != c {
				continue
			}
			if v := s.At(r, c); v != "" {
				cells = append(cells, Cell{Row: r, Col: c, Value: v})
			}
		}
	}
	return cells
}

// IsEmpty reports whether the sheet holds no non-blank cell.
func (s *Sheet) IsEmpty() bool {
	for r := 0; r < s.RowCount(); r++ {
		for _, v := range s.Rows[r] {
			if strings.TrimSpace(v) != "" {
				return false
			}
		}
	}
	return true
}

func (s *Sheet) res() *Resolver {
	if s.resolver == nil {
		// Sheets built as literals rather than through New.
		return NewResolver(s.Merges)
	}
	return s.resolver
}
