package layout

// Grid is the read view the detector needs. *sheet.Sheet satisfies it.
type Grid interface {
	At(row, col int) string
	RowCount() int
	ColCount() int
}

// Transpose swaps rows and columns so that column-oriented logic can be
// reused for row-oriented layouts.
func Transpose(g Grid) Grid {
	if t, ok := g.(transposed); ok {
		return t.g
	}
	return transposed{g: g}
}

type transposed struct {
	g Grid
}

func (t transposed) At(row, col int) string { return t.g.At(col, row) }
func (t transposed) RowCount() int          { return t.g.ColCount() }
func (t transposed) ColCount() int          { return t.g.RowCount() }

// isBlankSpan reports whether row holds only blanks between fromCol and
// toCol inclusive.
func isBlankSpan(g Grid, row, fromCol, toCol int) bool {
	for c := fromCol; c <= toCol; c++ {
		if g.At(row, c) != "" {
			return false
		}
	}
	return true
}
