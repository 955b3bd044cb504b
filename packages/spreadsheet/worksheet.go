package spreadsheet

// ChunkKey represents the key for indexing chunks in Worksheet
type ChunkKey struct {
	ChunkRow int
	ChunkCol int
}

const (
	ChunkRows = 64                    // rows per chunk - power of 2 for efficient modulo
	ChunkCols = 64                    // columns per chunk
	ChunkSize = ChunkRows * ChunkCols // 4096 cells per chunk
)

// Chunk represents a 64x64 region of cells. a chunk is allocated the first
// time any of its cells is written; unwritten cells read as literal zero.
type Chunk struct {
	Cells         [ChunkSize]Cell
	NonEmptyCount int // count of cells that differ from the zero cell
}

// Worksheet is the cell store: a fixed-size grid of cell records backed by
// sparse chunks.
//
// architecture:
// - cells are partitioned into 64x64 chunks for spatial locality
// - chunks are allocated lazily, so a 999x18278 grid only pays for the
// regions that were written
//
// reads never allocate, which keeps concurrent readers safe while no writer
// holds the grid.
type Worksheet struct {
	rows       int
	columns    int
	chunks     map[ChunkKey]*Chunk // sparse map of chunks indexed by ChunkKey
	totalCells int                 // stats tracking total number of non-empty cells
}

// NewWorksheet creates an empty worksheet of fixed dimensions
func NewWorksheet(rows, columns int) *Worksheet {
	return &Worksheet{
		rows:    rows,
		columns: columns,
		chunks:  make(map[ChunkKey]*Chunk),
	}
}

// Rows returns the configured number of rows
func (w *Worksheet) Rows() int {
	return w.rows
}

// Columns returns the configured number of columns
func (w *Worksheet) Columns() int {
	return w.columns
}

// InBounds reports whether addr lies inside the grid
func (w *Worksheet) InBounds(addr Address) bool {
	return addr.Row >= 0 && addr.Row < w.rows && addr.Column >= 0 && addr.Column < w.columns
}

// RangeInBounds reports whether both corners of a well-formed range lie
// inside the grid
func (w *Worksheet) RangeInBounds(r RangeAddress) bool {
	return r.IsWellFormed() && w.InBounds(r.Start()) && w.InBounds(r.End())
}

// Index flattens an address into the graph's node index
func (w *Worksheet) Index(addr Address) int {
	return addr.Row*w.columns + addr.Column
}

// Address expands a flattened index
func (w *Worksheet) Address(index int) Address {
	return Address{Row: index / w.columns, Column: index % w.columns}
}

func locate(addr Address) (ChunkKey, int) {
	key := ChunkKey{ChunkRow: addr.Row / ChunkRows, ChunkCol: addr.Column / ChunkCols}
	// column-first indexing for better cache locality
	idx := (addr.Column%ChunkCols)*ChunkRows + addr.Row%ChunkRows
	return key, idx
}

// GetCell returns a copy of the cell at addr. callers check bounds first.
func (w *Worksheet) GetCell(addr Address) Cell {
	key, idx := locate(addr)
	chunk, exists := w.chunks[key]
	if !exists {
		return Cell{}
	}
	return chunk.Cells[idx]
}

// getChunk retrieves or creates a chunk
func (w *Worksheet) getChunk(key ChunkKey) *Chunk {
	chunk, exists := w.chunks[key]
	if !exists {
		chunk = &Chunk{}
		w.chunks[key] = chunk
	}
	return chunk
}

// update applies fn to the cell at addr, keeping the occupancy stats right
func (w *Worksheet) update(addr Address, fn func(c *Cell)) {
	key, idx := locate(addr)
	chunk := w.getChunk(key)
	cell := &chunk.Cells[idx]

	wasEmpty := cell.isZero()
	fn(cell)
	isEmpty := cell.isZero()

	switch {
	case wasEmpty && !isEmpty:
		chunk.NonEmptyCount++
		w.totalCells++
	case !wasEmpty && isEmpty:
		chunk.NonEmptyCount--
		w.totalCells--
	}
}

// SetFormula replaces the formula of a cell and clears its error flag. a
// constant formula is stored as a literal. dependents are not touched.
func (w *Worksheet) SetFormula(addr Address, formula Formula) {
	w.update(addr, func(c *Cell) {
		if formula.Kind == FormulaConstant {
			c.Formula = nil
			c.Value = formula.Value
		} else {
			c.Formula = formula.clone()
		}
		c.IsError = false
		c.ErrorCode = ErrorCodeNone
	})
}

// SetResult stores the outcome of evaluating a cell
func (w *Worksheet) SetResult(addr Address, value int64, code ErrorCode) {
	w.update(addr, func(c *Cell) {
		c.Value = value
		c.IsError = code != ErrorCodeNone
		c.ErrorCode = code
	})
}

// NonEmptyCells calls fn for every cell that differs from the zero cell
func (w *Worksheet) NonEmptyCells(fn func(addr Address, cell Cell)) {
	for key, chunk := range w.chunks {
		if chunk.NonEmptyCount == 0 {
			continue
		}
		for idx := range chunk.Cells {
			cell := chunk.Cells[idx]
			if cell.isZero() {
				continue
			}
			fn(Address{
				Row:    key.ChunkRow*ChunkRows + idx%ChunkRows,
				Column: key.ChunkCol*ChunkCols + idx/ChunkRows,
			}, cell)
		}
	}
}

// TotalCells returns the number of non-empty cells
func (w *Worksheet) TotalCells() int {
	return w.totalCells
}

// ChunkCount returns the number of allocated chunks
func (w *Worksheet) ChunkCount() int {
	return len(w.chunks)
}
