package driver

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

const cellWidth = 9

// Grid is the read side of the engine the dump needs
type Grid interface {
	Rows() int
	Columns() int
	Read(addr spreadsheet.Address) (int64, bool, error)
}

// Dump writes the region under v as plain text: a header of column labels,
// then one line per row prefixed with its 1-based number. errored cells print
// as ERR.
func Dump(w io.Writer, grid Grid, v *Viewport) error {
	rowEnd, colEnd := v.Visible(grid.Rows(), grid.Columns())
	bw := bufio.NewWriter(w)

	bw.WriteString("   ")
	for col := v.Col; col < colEnd; col++ {
		bw.WriteString(center(spreadsheet.ColumnLabel(col), cellWidth))
	}
	bw.WriteByte('\n')

	for row := v.Row; row < rowEnd; row++ {
		fmt.Fprintf(bw, "%3d", row+1)
		for col := v.Col; col < colEnd; col++ {
			value, isError, err := grid.Read(spreadsheet.Address{Row: row, Column: col})
			if err != nil {
				return fmt.Errorf("dump: %w", err)
			}
			text := "ERR"
			if !isError {
				text = strconv.FormatInt(value, 10)
			}
			bw.WriteString(center(text, cellWidth))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// center pads s to width with the extra space going right; longer strings
// are left as they are
func center(s string, width int) string {
	gap := width - len(s)
	if gap <= 0 {
		return s
	}
	left := gap / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
}
