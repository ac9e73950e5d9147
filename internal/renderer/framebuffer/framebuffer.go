// Package framebuffer provides the cell grid a frame is painted into
// and the clip-aware painter that mutates it.
package framebuffer

import (
	"github.com/dshills/termdiff/internal/renderer/core"
)

// Framebuffer is a fixed cols x rows grid of cells stored row-major.
// It never resizes in place; resizing is Release followed by New.
type Framebuffer struct {
	cols, rows int
	cells      []core.Cell
}

// New creates a framebuffer cleared to blank cells in the default style.
func New(cols, rows int) (*Framebuffer, error) {
	if cols < 0 || rows < 0 {
		return nil, core.Errorf("fb_init", core.ErrInvalidArgument, "extent %dx%d", cols, rows)
	}
	fb := &Framebuffer{
		cols:  cols,
		rows:  rows,
		cells: make([]core.Cell, cols*rows),
	}
	fb.Clear(core.DefaultStyle())
	return fb, nil
}

// Size returns the framebuffer dimensions.
func (fb *Framebuffer) Size() (cols, rows int) {
	return fb.cols, fb.rows
}

// Bounds returns the full-frame rectangle.
func (fb *Framebuffer) Bounds() core.Rect {
	return core.RectFromSize(fb.cols, fb.rows)
}

// Cell returns a mutable reference to the cell at (x, y).
func (fb *Framebuffer) Cell(x, y int) (*core.Cell, error) {
	if x < 0 || x >= fb.cols || y < 0 || y >= fb.rows {
		return nil, core.Errorf("fb_cell", core.ErrOutOfBounds, "(%d,%d) in %dx%d", x, y, fb.cols, fb.rows)
	}
	return &fb.cells[y*fb.cols+x], nil
}

// At returns a copy of the cell at (x, y), or a blank cell outside the extent.
func (fb *Framebuffer) At(x, y int) core.Cell {
	if x < 0 || x >= fb.cols || y < 0 || y >= fb.rows {
		return core.EmptyCell()
	}
	return fb.cells[y*fb.cols+x]
}

// Row returns the cells of row y. The slice aliases framebuffer storage.
// Returns nil for rows outside the extent.
func (fb *Framebuffer) Row(y int) []core.Cell {
	if y < 0 || y >= fb.rows {
		return nil
	}
	return fb.cells[y*fb.cols : (y+1)*fb.cols : (y+1)*fb.cols]
}

// Clear resets every cell to a blank glyph with the given style.
func (fb *Framebuffer) Clear(style core.Style) {
	blank := core.BlankCell(style)
	for i := range fb.cells {
		fb.cells[i] = blank
	}
}

// CopyFrom copies every cell of src. Both framebuffers must share an extent.
func (fb *Framebuffer) CopyFrom(src *Framebuffer) error {
	if src == nil || src.cols != fb.cols || src.rows != fb.rows {
		return core.NewOpError("fb_copy", core.ErrInvalidArgument)
	}
	copy(fb.cells, src.cells)
	return nil
}

// Clone returns an independent copy of the framebuffer.
func (fb *Framebuffer) Clone() *Framebuffer {
	out := &Framebuffer{cols: fb.cols, rows: fb.rows, cells: make([]core.Cell, len(fb.cells))}
	copy(out.cells, fb.cells)
	return out
}

// SameExtent returns true if both framebuffers have identical dimensions.
func (fb *Framebuffer) SameExtent(other *Framebuffer) bool {
	return other != nil && fb.cols == other.cols && fb.rows == other.rows
}

// Equal returns true if both framebuffers share an extent and every cell.
func (fb *Framebuffer) Equal(other *Framebuffer) bool {
	if !fb.SameExtent(other) {
		return false
	}
	for i := range fb.cells {
		if fb.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// RowEqual compares row y of fb with row oy of other.
func (fb *Framebuffer) RowEqual(y int, other *Framebuffer, oy int) bool {
	a, b := fb.Row(y), other.Row(oy)
	if a == nil || b == nil || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Release frees cell storage. The framebuffer is empty afterwards.
func (fb *Framebuffer) Release() {
	fb.cells = nil
	fb.cols, fb.rows = 0, 0
}
