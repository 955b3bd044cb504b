package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorksheet(t *testing.T) {
	t.Run("UnwrittenCellsReadAsZero", func(t *testing.T) {
		ws := NewWorksheet(999, 18278)
		assert.Equal(t, Cell{}, ws.GetCell(Address{Row: 500, Column: 10000}))
		assert.Zero(t, ws.ChunkCount(), "reads must not allocate")
	})

	t.Run("ChunksAllocateLazily", func(t *testing.T) {
		ws := NewWorksheet(999, 18278)
		ws.SetFormula(Address{Row: 0, Column: 0}, Const(1))
		ws.SetFormula(Address{Row: 63, Column: 63}, Const(2))
		ws.SetFormula(Address{Row: 64, Column: 0}, Const(3))

		assert.Equal(t, 2, ws.ChunkCount())
		assert.Equal(t, 3, ws.TotalCells())
		assert.Equal(t, int64(2), ws.GetCell(Address{Row: 63, Column: 63}).Value)
	})

	t.Run("OccupancyTracksZeroCells", func(t *testing.T) {
		ws := NewWorksheet(10, 10)
		addr := Address{Row: 3, Column: 4}
		ws.SetFormula(addr, Const(5))
		assert.Equal(t, 1, ws.TotalCells())
		ws.SetFormula(addr, Const(0))
		assert.Zero(t, ws.TotalCells())

		ws.SetResult(addr, 0, ErrorCodeDiv0)
		assert.Equal(t, 1, ws.TotalCells())
	})

	t.Run("NonEmptyCellsReportsAddresses", func(t *testing.T) {
		ws := NewWorksheet(200, 200)
		written := []Address{{Row: 1, Column: 2}, {Row: 130, Column: 70}, {Row: 199, Column: 199}}
		for i, addr := range written {
			ws.SetFormula(addr, Const(int64(i+1)))
		}

		seen := map[Address]int64{}
		ws.NonEmptyCells(func(addr Address, cell Cell) {
			seen[addr] = cell.Value
		})
		assert.Equal(t, map[Address]int64{
			written[0]: 1,
			written[1]: 2,
			written[2]: 3,
		}, seen)
	})

	t.Run("FormulaIsCopied", func(t *testing.T) {
		ws := NewWorksheet(3, 3)
		operands := []Operand{CellArg(Address{}), ConstArg(1)}
		ws.SetFormula(Address{Row: 1}, Op(OpAdd, operands...))
		operands[1] = ConstArg(99)

		stored := ws.GetCell(Address{Row: 1}).Formula
		assert.Equal(t, int64(1), stored.Operands[1].Value)
	})

	t.Run("IndexRoundTrip", func(t *testing.T) {
		ws := NewWorksheet(7, 13)
		addr := Address{Row: 5, Column: 11}
		assert.Equal(t, 5*13+11, ws.Index(addr))
		assert.Equal(t, addr, ws.Address(ws.Index(addr)))
		assert.False(t, ws.InBounds(Address{Row: 7}))
		assert.False(t, ws.RangeInBounds(RangeAddress{EndRow: 2, EndColumn: 13}))
	})
}
