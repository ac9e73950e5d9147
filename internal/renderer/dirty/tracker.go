package dirty

import (
	"github.com/dshills/termdiff/internal/renderer/core"
	"github.com/dshills/termdiff/internal/renderer/framebuffer"
)

// Damage is the set of regions that differ between two framebuffers.
type Damage struct {
	// Runs lists damaged spans ordered by row then column.
	// On a full-frame fallback every row of the next frame is one run.
	Runs []Run

	// FullFrame is true when damage collapsed to the whole frame.
	FullFrame bool

	// Cols and Rows are the extent of the next frame.
	Cols, Rows int

	// DirtyLines counts rows with at least one changed cell.
	DirtyLines int

	// DirtyCells counts changed cells before wide-glyph expansion.
	DirtyCells int

	// CollisionGuardHits counts rows rewritten because their runs overlapped.
	CollisionGuardHits int
}

// Rects returns the damage as rectangles.
// A full-frame result is reported as a single rectangle.
func (d Damage) Rects() []core.DamageRect {
	if d.FullFrame {
		return []core.DamageRect{{X0: 0, Y0: 0, X1: d.Cols, Y1: d.Rows}}
	}
	rects := make([]core.DamageRect, len(d.Runs))
	for i, r := range d.Runs {
		rects[i] = r.Rect()
	}
	return rects
}

// RectCount returns the number of damage rectangles.
func (d Damage) RectCount() int {
	if d.FullFrame {
		return 1
	}
	return len(d.Runs)
}

// Cells returns the number of cells covered by the damage rectangles.
func (d Damage) Cells() int {
	if d.FullFrame {
		return d.Cols * d.Rows
	}
	n := 0
	for _, r := range d.Runs {
		n += r.Width()
	}
	return n
}

// IsEmpty returns true if nothing needs to be rewritten.
func (d Damage) IsEmpty() bool {
	return !d.FullFrame && len(d.Runs) == 0
}

// Tracker computes damage between framebuffers.
// It reuses internal buffers between calls and is not safe for concurrent use.
type Tracker struct {
	// maxRects is the run count above which damage collapses to the full frame.
	// Zero or negative means unlimited.
	maxRects int

	runs []Run
	row  []Run
}

// NewTracker creates a tracker with the given rectangle cap.
func NewTracker(maxRects int) *Tracker {
	return &Tracker{maxRects: maxRects}
}

// SetMaxRects changes the rectangle cap.
func (t *Tracker) SetMaxRects(n int) {
	t.maxRects = n
}

// MaxRects returns the rectangle cap.
func (t *Tracker) MaxRects() int {
	return t.maxRects
}

// Compute compares prev with next.
// Framebuffers with different extents always yield a full-frame result.
// The returned runs alias tracker storage until the next call.
func (t *Tracker) Compute(prev, next *framebuffer.Framebuffer) Damage {
	cols, rows := next.Size()
	d := Damage{Cols: cols, Rows: rows}

	if prev == nil || !prev.SameExtent(next) {
		d.DirtyLines = rows
		d.DirtyCells = cols * rows
		return t.fullFrame(d)
	}

	t.runs = t.runs[:0]
	for y := 0; y < rows; y++ {
		p, n := prev.Row(y), next.Row(y)
		t.row = t.row[:0]

		changed := 0
		for x := 0; x < cols; {
			if p[x] == n[x] {
				x++
				continue
			}
			start := x
			for x < cols && p[x] != n[x] {
				x++
			}
			changed += x - start
			t.row = append(t.row, expand(Run{Y: y, X0: start, X1: x}, p, n))
		}
		if changed == 0 {
			continue
		}
		d.DirtyLines++
		d.DirtyCells += changed

		resolved, collided := guardRow(t.row, cols)
		if collided {
			d.CollisionGuardHits++
		}
		t.runs = append(t.runs, resolved...)
	}

	if t.maxRects > 0 && len(t.runs) > t.maxRects {
		return t.fullFrame(d)
	}
	d.Runs = t.runs
	return d
}

func (t *Tracker) fullFrame(d Damage) Damage {
	t.runs = t.runs[:0]
	for y := 0; y < d.Rows; y++ {
		t.runs = append(t.runs, Run{Y: y, X0: 0, X1: d.Cols})
	}
	d.Runs = t.runs
	d.FullFrame = true
	return d
}
