// Package dirty detects the damaged regions between two framebuffers.
// Changes are reported as per-row runs of columns, widened so that wide
// glyph pairs are never split, and collapse to a full-frame rewrite when
// the run count exceeds the configured cap.
package dirty

import (
	"github.com/dshills/termdiff/internal/renderer/core"
)

// Run is a contiguous span of damaged columns on one row.
type Run struct {
	// Y is the row.
	Y int

	// X0 is the first column (inclusive).
	X0 int

	// X1 is the last column (exclusive).
	X1 int
}

// Width returns the number of columns covered.
func (r Run) Width() int {
	if r.X1 <= r.X0 {
		return 0
	}
	return r.X1 - r.X0
}

// Rect returns the run as a one-row damage rectangle.
func (r Run) Rect() core.DamageRect {
	return core.DamageRect{X0: r.X0, Y0: r.Y, X1: r.X1, Y1: r.Y + 1}
}

// Overlaps returns true if two runs on the same row share a column.
func (r Run) Overlaps(other Run) bool {
	return r.Y == other.Y && r.X0 < other.X1 && other.X0 < r.X1
}

// Adjacent returns true if other starts exactly where r ends on the same row.
func (r Run) Adjacent(other Run) bool {
	return r.Y == other.Y && r.X1 == other.X0
}

// expand widens r so it never starts on a continuation cell and never ends
// on a wide lead. prev and next are the two versions of the row.
func expand(r Run, prev, next []core.Cell) Run {
	cols := len(next)
	if r.X0 > 0 && (isContinuation(next, r.X0) || isContinuation(prev, r.X0)) {
		r.X0--
	}
	if r.X1 < cols && (isWideLead(next, r.X1-1) || isWideLead(prev, r.X1-1)) {
		r.X1++
	}
	return r
}

func isContinuation(row []core.Cell, x int) bool {
	return x >= 0 && x < len(row) && row[x].IsContinuation()
}

func isWideLead(row []core.Cell, x int) bool {
	return x >= 0 && x < len(row) && row[x].IsWideLead()
}

// guardRow resolves one row's expanded runs. Adjacent runs are coalesced.
// If any two runs overlap the row is rewritten in full and collided is true.
func guardRow(runs []Run, cols int) (out []Run, collided bool) {
	if len(runs) == 0 {
		return runs, false
	}
	out = runs[:1]
	for _, r := range runs[1:] {
		last := &out[len(out)-1]
		switch {
		case r.X0 < last.X1:
			return []Run{{Y: r.Y, X0: 0, X1: cols}}, true
		case last.Adjacent(r):
			last.X1 = r.X1
		default:
			out = append(out, r)
		}
	}
	return out, false
}
