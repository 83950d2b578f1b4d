package sheet

import (
	"fmt"
	"sort"
)

// MergeRange is an inclusive, zero-based rectangle of merged cells.
type MergeRange struct {
	StartRow int `json:"startRow"`
	StartCol int `json:"startCol"`
	EndRow   int `json:"endRow"`
	EndCol   int `json:"endCol"`
}

// Contains reports whether (row, col) lies inside the range.
func (m MergeRange) Contains(row, col int) bool {
	return row >= m.StartRow && row <= m.EndRow && col >= m.StartCol && col <= m.EndCol
}

func (m MergeRange) String() string {
	return fmt.Sprintf("R%dC%d:R%dC%d", m.StartRow, m.StartCol, m.EndRow, m.EndCol)
}

// Resolver maps any cell of a merge to the merge's anchor (top-left) cell.
type Resolver struct {
	ranges []MergeRange
}

// NewResolver indexes the given merges. Inverted or negative ranges are
// normalised; degenerate single-cell merges are dropped.
func NewResolver(merges []MergeRange) *Resolver {
	ranges := make([]MergeRange, 0, len(merges))
	for _, m := range merges {
		if m.EndRow < m.StartRow {
			m.StartRow, m.EndRow = m.EndRow, m.StartRow
		}
		if m.EndCol < m.StartCol {
			m.StartCol, m.EndCol = m.EndCol, m.StartCol
		}
		if m.StartRow < 0 || m.StartCol < 0 {
			continue
		}
		if m.StartRow == m.EndRow && m.StartCol == m.EndCol {
			continue
		}
		ranges = append(ranges, m)
	}

	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].StartRow != ranges[j].StartRow {
			return ranges[i].StartRow < ranges[j].StartRow
		}
		return ranges[i].StartCol < ranges[j].StartCol
	})

	return &Resolver{ranges: ranges}
}

// Anchor returns the anchor coordinates for (row, col). Cells outside every
// merge are their own anchor. When merges overlap, the earliest by start
// position wins.
func (r *Resolver) Anchor(row, col int) (int, int) {
	if r == nil {
		return row, col
	}
	for _, m := range r.ranges {
		if m.StartRow > row {
			break
		}
		if m.Contains(row, col) {
			return m.StartRow, m.StartCol
		}
	}
	return row, col
}

// Len returns the number of indexed merges.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ranges)
}
