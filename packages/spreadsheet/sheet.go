// Package spreadsheet is a formula-driven grid engine. each cell holds a
// literal or a formula over other cells; an edit is validated, checked for
// cycles, committed, and then every cell that transitively depends on the
// edited one is recomputed in dependency order.
//
// the engine is single-writer: an Edit runs to completion under an exclusive
// lock, and readers only ever see the state before or after an edit.
package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxRows           = 999
	DefaultMaxColumns        = 18278
	DefaultParallelThreshold = 64

	// maxParallelWorkers caps evaluation goroutines regardless of CPU count
	maxParallelWorkers = 8
)

// DefaultMaxWorkers is the evaluation worker count used when none is
// configured: one per CPU, at most maxParallelWorkers
func DefaultMaxWorkers() int {
	return min(runtime.NumCPU(), maxParallelWorkers)
}

type options struct {
	maxRows           int
	maxColumns        int
	parallelThreshold int
	maxWorkers        int
	logger            *slog.Logger
	sleeper           Sleeper
	operators         map[OpID]OperatorSpec
}

// Option configures a Spreadsheet
type Option func(*options)

// WithLimits overrides the largest grid CreateGrid accepts
func WithLimits(maxRows, maxColumns int) Option {
	return func(o *options) {
		o.maxRows = maxRows
		o.maxColumns = maxColumns
	}
}

// WithParallelism sets how wide a recalculation level must be before it is
// evaluated concurrently, and the number of workers used. workers <= 1
// disables parallel evaluation.
func WithParallelism(threshold, workers int) Option {
	return func(o *options) {
		o.parallelThreshold = max(threshold, 1)
		o.maxWorkers = workers
	}
}

// WithLogger sets the structured logger. the default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSleeper replaces the clock behind SLEEP
func WithSleeper(sleeper Sleeper) Option {
	return func(o *options) {
		o.sleeper = sleeper
	}
}

// WithOperator registers an extra operator, or replaces a built-in one
func WithOperator(op OpID, spec OperatorSpec) Option {
	return func(o *options) {
		if o.operators == nil {
			o.operators = make(map[OpID]OperatorSpec)
		}
		o.operators[op] = spec
	}
}

// Spreadsheet combines the cell store, dependency tracking, and formula
// evaluation into a unified API
type Spreadsheet struct {
	mu                sync.RWMutex
	storage           *Storage
	functions         *BuiltInFunctions
	lastStatus        Status
	logger            *slog.Logger
	parallelThreshold int
	maxWorkers        int
}

// CreateGrid creates a grid of fixed dimensions. rows and columns must be at
// least 1 and at most the configured limits (999 x 18278 by default).
func CreateGrid(rows, columns int, opts ...Option) (*Spreadsheet, error) {
	o := options{
		maxRows:           DefaultMaxRows,
		maxColumns:        DefaultMaxColumns,
		parallelThreshold: DefaultParallelThreshold,
		maxWorkers:        DefaultMaxWorkers(),
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if rows < 1 || rows > o.maxRows || columns < 1 || columns > o.maxColumns {
		return nil, NewApplicationError(OutOfRange,
			fmt.Sprintf("grid dimensions %dx%d out of bounds: need 1-%d rows and 1-%d columns",
				rows, columns, o.maxRows, o.maxColumns))
	}

	functions := NewDefaultBuiltInFunctions(o.sleeper)
	for _, op := range sortedOps(o.operators) {
		if err := functions.Register(op, o.operators[op]); err != nil {
			return nil, err
		}
	}

	return &Spreadsheet{
		storage:           newStorage(rows, columns),
		functions:         functions,
		lastStatus:        StatusNone,
		logger:            o.logger,
		parallelThreshold: o.parallelThreshold,
		maxWorkers:        o.maxWorkers,
	}, nil
}

// Rows returns the number of rows
func (s *Spreadsheet) Rows() int {
	return s.storage.worksheet.Rows()
}

// Columns returns the number of columns
func (s *Spreadsheet) Columns() int {
	return s.storage.worksheet.Columns()
}

// Edit replaces the formula of a cell and recomputes everything that depends
// on it. the edit is all-or-nothing: InvalidInput and CyclicDependency leave
// the grid exactly as it was.
func (s *Spreadsheet) Edit(ctx context.Context, addr Address, formula Formula) Status {
	ctx, span := tracer.Start(ctx, "spreadsheet.Edit",
		trace.WithAttributes(
			attribute.String("cell", addr.String()),
			attribute.String("formula", formula.String()),
		),
	)
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	status, cells, levels, parallel := s.edit(addr, formula)
	s.lastStatus = status
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String("status", statusLabel(status)),
		attribute.Int("recomputed_cells", cells),
		attribute.Int("levels", levels),
		attribute.Int("parallel_levels", parallel),
	)
	recordEditMetrics(ctx, status, cells, parallel, time.Since(start))
	return status
}

// edit runs the transaction. callers hold the write lock.
func (s *Spreadsheet) edit(addr Address, formula Formula) (status Status, cells, levels, parallel int) {
	ws := s.storage.worksheet
	graph := s.storage.dependencyGraph

	if !ws.InBounds(addr) {
		s.logger.Debug("edit rejected: cell out of bounds", slog.String("cell", addr.String()))
		return StatusInvalidInput, 0, 0, 0
	}
	if !s.storage.validFormula(formula, s.functions) {
		s.logger.Debug("edit rejected: invalid formula",
			slog.String("cell", addr.String()),
			slog.String("formula", formula.String()),
		)
		return StatusInvalidInput, 0, 0, 0
	}

	// a formula reading its own cell is caught before ranges are expanded
	target := ws.Index(addr)
	var precedents map[int]struct{}
	if !readsCell(formula, addr) {
		precedents = s.storage.precedentsOf(formula)
	}
	if precedents == nil || graph.wouldCycle(target, precedents) {
		s.logger.Debug("edit rejected: cyclic dependency",
			slog.String("cell", addr.String()),
			slog.String("formula", formula.String()),
		)
		return StatusCyclicDependency, 0, 0, 0
	}

	graph.RebuildOutgoing(target, precedents)
	ws.SetFormula(addr, formula)

	closure := graph.DependentsClosure(target)
	order := graph.calculationLevels(closure)
	parallel = s.recalculate(order)

	s.logger.Debug("edit committed",
		slog.String("cell", addr.String()),
		slog.String("formula", formula.String()),
		slog.Int("recomputed_cells", len(closure)),
		slog.Int("levels", len(order)),
		slog.Int("graph_nodes", graph.NodeCount()),
		slog.Int("graph_edges", graph.EdgeCount()),
	)
	return StatusOK, len(closure), len(order), parallel
}

// Clear resets a cell to the literal zero. dependents are recomputed as for
// any other edit.
func (s *Spreadsheet) Clear(ctx context.Context, addr Address) Status {
	return s.Edit(ctx, addr, Const(0))
}

// Get returns a copy of the cell at addr
func (s *Spreadsheet) Get(addr Address) (Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws := s.storage.worksheet
	if !ws.InBounds(addr) {
		return Cell{}, outOfBounds(addr, ws.Rows(), ws.Columns())
	}
	return ws.GetCell(addr), nil
}

// Read returns the value and error flag of the cell at addr
func (s *Spreadsheet) Read(addr Address) (int64, bool, error) {
	cell, err := s.Get(addr)
	if err != nil {
		return 0, false, err
	}
	return cell.Value, cell.IsError, nil
}

// Snapshot returns every cell that differs from a fresh literal zero
func (s *Spreadsheet) Snapshot() map[Address]Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[Address]Cell, s.storage.worksheet.TotalCells())
	s.storage.worksheet.NonEmptyCells(func(addr Address, cell Cell) {
		if cell.Formula != nil {
			cell.Formula = cell.Formula.clone()
		}
		snapshot[addr] = cell
	})
	return snapshot
}

// StatusOfLastEdit returns the status recorded by the most recent edit, or
// StatusNone after ResetStatus
func (s *Spreadsheet) StatusOfLastEdit() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStatus
}

// ResetStatus returns the recorded status to StatusNone. the engine never
// does this on its own; the driver resets after showing the status.
func (s *Spreadsheet) ResetStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStatus = StatusNone
}

// LookupOperator resolves an operator name against this grid's catalog
func (s *Spreadsheet) LookupOperator(name string) (OpID, bool) {
	return s.functions.Lookup(name)
}

// Precedents returns the cells addr directly reads
func (s *Spreadsheet) Precedents(addr Address) ([]Address, error) {
	return s.neighbors(addr, s.storage.dependencyGraph.DirectPrecedents)
}

// Dependents returns the cells that directly read addr
func (s *Spreadsheet) Dependents(addr Address) ([]Address, error) {
	return s.neighbors(addr, s.storage.dependencyGraph.DirectDependents)
}

// DependsOn reports whether addr reads on, directly or through other cells.
// a cell is considered to depend on itself.
func (s *Spreadsheet) DependsOn(addr, on Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws := s.storage.worksheet
	for _, a := range []Address{addr, on} {
		if !ws.InBounds(a) {
			return false, outOfBounds(a, ws.Rows(), ws.Columns())
		}
	}
	return s.storage.dependencyGraph.DependsOn(ws.Index(addr), ws.Index(on)), nil
}

// HasCycle runs a full consistency check of the dependency graph. edits
// never commit a cycle, so this only ever reports false on a healthy grid.
func (s *Spreadsheet) HasCycle() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storage.dependencyGraph.HasCycle()
}

func (s *Spreadsheet) neighbors(addr Address, direct func(int) []int) ([]Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws := s.storage.worksheet
	if !ws.InBounds(addr) {
		return nil, outOfBounds(addr, ws.Rows(), ws.Columns())
	}
	indices := direct(ws.Index(addr))
	result := make([]Address, len(indices))
	for i, index := range indices {
		result[i] = ws.Address(index)
	}
	return result, nil
}

// RunnableSpreadsheet provides a chainable interface for spreadsheet
// operations. wraps the standard Spreadsheet and tracks errors internally;
// an edit that does not commit becomes the chain's error.
type RunnableSpreadsheet struct {
	spreadsheet *Spreadsheet
	ctx         context.Context
	err         error
	printLn     func(string)
}

// NewRunnableSpreadsheet creates a new RunnableSpreadsheet. printLn is
// required and will be used for all logging operations (Log, CheckError)
func NewRunnableSpreadsheet(rows, columns int, printLn func(string), opts ...Option) *RunnableSpreadsheet {
	s, err := CreateGrid(rows, columns, opts...)
	return &RunnableSpreadsheet{
		spreadsheet: s,
		ctx:         context.Background(),
		err:         err,
		printLn:     printLn,
	}
}

// Set edits a cell by label (chainable)
func (r *RunnableSpreadsheet) Set(label string, formula Formula) *RunnableSpreadsheet {
	if r.err != nil {
		return r // no-op if there's already an error
	}
	addr, err := ParseAddress(label)
	if err != nil {
		r.err = err
		return r
	}
	if status := r.spreadsheet.Edit(r.ctx, addr, formula); !status.Committed() {
		r.err = fmt.Errorf("set %s = %s: %s", label, formula, status)
	}
	return r
}

// Clear resets a cell by label (chainable)
func (r *RunnableSpreadsheet) Clear(label string) *RunnableSpreadsheet {
	return r.Set(label, Const(0))
}

// Value is a helper to get a single value from the chain
func (r *RunnableSpreadsheet) Value(label string) int64 {
	if r.err != nil {
		return 0
	}
	addr, err := ParseAddress(label)
	if err != nil {
		r.err = err
		return 0
	}
	value, _, err := r.spreadsheet.Read(addr)
	if err != nil {
		r.err = err
		return 0
	}
	return value
}

// ForEach applies a function to a block of cells (chainable)
func (r *RunnableSpreadsheet) ForEach(startRow, endRow, startCol, endCol int, fn func(addr Address, r *RunnableSpreadsheet)) *RunnableSpreadsheet {
	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			if r.err != nil {
				return r // stop on first error
			}
			fn(Address{Row: row, Column: col}, r)
		}
	}
	return r
}

// Log logs the value of a cell using the provided PrintLn function (chainable)
func (r *RunnableSpreadsheet) Log(label string) *RunnableSpreadsheet {
	if r.err != nil {
		return r
	}
	addr, err := ParseAddress(label)
	if err != nil {
		r.err = err
		return r
	}
	value, isError, err := r.spreadsheet.Read(addr)
	if err != nil {
		r.err = err
		return r
	}
	if isError {
		r.printLn(fmt.Sprintf("%s: ERR", label))
	} else {
		r.printLn(fmt.Sprintf("%s: %d", label, value))
	}
	return r
}

// CheckError logs the current error using the PrintLn function (chainable)
func (r *RunnableSpreadsheet) CheckError() *RunnableSpreadsheet {
	if r.err != nil {
		r.printLn(fmt.Sprintf("ERROR: %v", r.err))
	} else {
		r.printLn("No errors")
	}
	return r
}

// Must panics if there's an error (chainable)
func (r *RunnableSpreadsheet) Must() *RunnableSpreadsheet {
	if r.err != nil {
		panic(r.err)
	}
	return r
}

// Error returns the current error state
func (r *RunnableSpreadsheet) Error() error {
	return r.err
}

// Spreadsheet returns the underlying spreadsheet and any error
func (r *RunnableSpreadsheet) Spreadsheet() (*Spreadsheet, error) {
	return r.spreadsheet, r.err
}
