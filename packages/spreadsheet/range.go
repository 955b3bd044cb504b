package spreadsheet

import "iter"

// RangeAddress represents a rectangular block of cells, inclusive on both
// corners
type RangeAddress struct {
	StartRow    int
	StartColumn int
	EndRow      int
	EndColumn   int
}

// NewRange builds a range from its two corner cells
func NewRange(start, end Address) RangeAddress {
	return RangeAddress{
		StartRow:    start.Row,
		StartColumn: start.Column,
		EndRow:      end.Row,
		EndColumn:   end.Column,
	}
}

// Start returns the top-left corner
func (r RangeAddress) Start() Address {
	return Address{Row: r.StartRow, Column: r.StartColumn}
}

// End returns the bottom-right corner
func (r RangeAddress) End() Address {
	return Address{Row: r.EndRow, Column: r.EndColumn}
}

// IsWellFormed reports whether the start corner is above and left of (or
// equal to) the end corner
func (r RangeAddress) IsWellFormed() bool {
	return r.StartRow <= r.EndRow && r.StartColumn <= r.EndColumn
}

// Contains checks if a cell is within the range
func (r RangeAddress) Contains(cell Address) bool {
	return cell.Row >= r.StartRow && cell.Row <= r.EndRow &&
		cell.Column >= r.StartColumn && cell.Column <= r.EndColumn
}

// Size returns the number of cells covered by a well-formed range
func (r RangeAddress) Size() int {
	if !r.IsWellFormed() {
		return 0
	}
	return (r.EndRow - r.StartRow + 1) * (r.EndColumn - r.StartColumn + 1)
}

// Cells returns an iterator over every address in the range, row by row
func (r RangeAddress) Cells() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		for row := r.StartRow; row <= r.EndRow; row++ {
			for col := r.StartColumn; col <= r.EndColumn; col++ {
				if !yield(Address{Row: row, Column: col}) {
					return
				}
			}
		}
	}
}

func (r RangeAddress) String() string {
	return FormatAddress(r.Start()) + ":" + FormatAddress(r.End())
}
