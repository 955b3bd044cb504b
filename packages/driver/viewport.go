package driver

import (
	"errors"
	"fmt"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

// ErrScrollOutOfBounds is returned when a scroll target lies outside the grid
var ErrScrollOutOfBounds = errors.New("out of bounds rows or columns")

// Viewport is the visible window of the grid: Size rows and Size columns
// starting at (Row, Col). it belongs to the driver; the engine has no notion
// of what is on screen.
type Viewport struct {
	Row  int
	Col  int
	Size int
}

// NewViewport returns a viewport at A1
func NewViewport(size int) Viewport {
	return Viewport{Size: size}
}

// Up pages one screen towards row 0, stopping at the top
func (v *Viewport) Up() {
	v.Row = max(v.Row-v.Size, 0)
}

// Left pages one screen towards column 0, stopping at the left edge
func (v *Viewport) Left() {
	v.Col = max(v.Col-v.Size, 0)
}

// Down pages one screen down. a full page that would run past the last row
// snaps the window to end at it; a window that already shows the last row
// does not move.
func (v *Viewport) Down(rows int) {
	v.Row = page(v.Row, v.Size, rows)
}

// Right pages one screen right, with the same snapping as Down
func (v *Viewport) Right(columns int) {
	v.Col = page(v.Col, v.Size, columns)
}

func page(start, size, limit int) int {
	switch {
	case start+size > limit:
		return start
	case start+2*size > limit:
		return limit - size
	default:
		return start + size
	}
}

// ScrollTo moves the top-left corner to addr
func (v *Viewport) ScrollTo(addr spreadsheet.Address, rows, columns int) error {
	if addr.Row < 0 || addr.Column < 0 || addr.Row >= rows || addr.Column >= columns {
		return fmt.Errorf("scroll to %s: %w", addr, ErrScrollOutOfBounds)
	}
	v.Row = addr.Row
	v.Col = addr.Column
	return nil
}

// Visible returns the half-open row and column spans currently on screen,
// clipped to the grid
func (v *Viewport) Visible(rows, columns int) (rowEnd, colEnd int) {
	return min(v.Row+v.Size, rows), min(v.Col+v.Size, columns)
}
