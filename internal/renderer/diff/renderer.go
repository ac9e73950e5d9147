// Package diff turns two framebuffers into the escape sequence stream that
// transforms the first into the second on a real terminal, while tracking
// the cursor and style the terminal is believed to have.
package diff

import (
	"github.com/dshills/termdiff/internal/renderer/core"
	"github.com/dshills/termdiff/internal/renderer/dirty"
	"github.com/dshills/termdiff/internal/renderer/framebuffer"
	"github.com/dshills/termdiff/internal/renderer/sgr"
)

// Limits bounds one render pass.
type Limits struct {
	// MaxDamageRects collapses damage to the full frame when exceeded.
	// Zero means unlimited.
	MaxDamageRects int

	// MaxBytes fails the pass with ErrLimitExceeded when the stream would
	// be longer. Zero means unlimited.
	MaxBytes int
}

// Options configures a Renderer.
type Options struct {
	Caps   core.Capabilities
	Limits Limits

	// ScrollOptimizations enables scroll detection when the terminal
	// supports scroll regions.
	ScrollOptimizations bool

	// Strategy detects scrolls. Nil uses ShiftMatch{}.
	Strategy ScrollStrategy
}

// Stats describes one render pass.
type Stats struct {
	DirtyLines  int
	DirtyCells  int
	DamageRects int
	DamageCells int

	// FullFrame is true when every row was rewritten.
	FullFrame bool

	// PathSweep and PathDamage record which emission path ran.
	PathSweep  bool
	PathDamage bool

	ScrollAttempted bool
	ScrollHit       bool

	CollisionGuardHits int
	BytesEmitted       int
}

// Result is the output of a render pass.
type Result struct {
	// Bytes aliases renderer storage and is valid until the next Render.
	Bytes []byte

	// State is the terminal state after Bytes is written.
	State core.TerminalState

	Stats Stats
}

// Renderer computes frame diffs. It keeps scratch buffers between passes
// and is not safe for concurrent use.
type Renderer struct {
	opts    Options
	tracker *dirty.Tracker
	shadow  *framebuffer.Framebuffer
	out     []byte
}

// NewRenderer creates a renderer.
func NewRenderer(opts Options) *Renderer {
	r := &Renderer{tracker: dirty.NewTracker(opts.Limits.MaxDamageRects)}
	r.SetOptions(opts)
	return r
}

// SetOptions replaces the renderer options.
func (r *Renderer) SetOptions(opts Options) {
	if opts.Strategy == nil {
		opts.Strategy = ShiftMatch{}
	}
	r.opts = opts
	r.tracker.SetMaxRects(opts.Limits.MaxDamageRects)
}

// Options returns the active options.
func (r *Renderer) Options() Options {
	return r.opts
}

// Render diffs prev against next starting from the terminal state in and
// finishing with the cursor in the desired state.
//
// On ErrLimitExceeded nothing is committed: the returned state equals in.
func (r *Renderer) Render(prev, next *framebuffer.Framebuffer, in core.TerminalState, cursor core.CursorState) (Result, error) {
	if next == nil {
		return Result{State: in}, core.Errorf("diff_render", core.ErrInvalidArgument, "nil next frame")
	}

	caps := r.opts.Caps
	var stats Stats
	st := in
	out := r.out[:0]

	if caps.SyncUpdate {
		out = append(out, sgr.SyncBegin...)
	}
	bodyStart := len(out)

	base := prev
	if prev != nil && prev.SameExtent(next) && r.opts.ScrollOptimizations && caps.ScrollRegion {
		stats.ScrollAttempted = true
		if sc, ok := r.opts.Strategy.Detect(prev, next); ok {
			stats.ScrollHit = true
			out = appendScroll(out, sc)
			st.Style = core.DefaultStyle()
			st.StyleKnown = true
			st.PosKnown = false

			if r.shadow == nil || !r.shadow.SameExtent(next) {
				r.shadow = prev.Clone()
			}
			if err := applyScroll(r.shadow, prev, sc); err != nil {
				return Result{State: in}, err
			}
			base = r.shadow
		}
	}

	dmg := r.tracker.Compute(base, next)
	stats.DirtyLines = dmg.DirtyLines
	stats.DirtyCells = dmg.DirtyCells
	stats.DamageRects = dmg.RectCount()
	stats.DamageCells = dmg.Cells()
	stats.FullFrame = dmg.FullFrame
	stats.PathSweep = dmg.FullFrame
	stats.PathDamage = !dmg.FullFrame
	stats.CollisionGuardHits = dmg.CollisionGuardHits

	cols, _ := next.Size()
	for _, run := range dmg.Runs {
		out = emitRun(out, next.Row(run.Y), run, cols, caps, &st)
	}

	out = reconcileCursor(out, next, cursor, caps, &st)

	if caps.SyncUpdate {
		if len(out) == bodyStart {
			out = out[:0]
		} else {
			out = append(out, sgr.SyncEnd...)
		}
	}
	r.out = out

	stats.BytesEmitted = len(out)
	if r.opts.Limits.MaxBytes > 0 && len(out) > r.opts.Limits.MaxBytes {
		return Result{State: in, Stats: stats}, core.Errorf("diff_render", core.ErrLimitExceeded,
			"%d bytes over cap %d", len(out), r.opts.Limits.MaxBytes)
	}
	return Result{Bytes: out, State: st, Stats: stats}, nil
}

func appendScroll(out []byte, sc Scroll) []byte {
	out = append(out, sgr.Reset...)
	out = sgr.AppendScrollRegion(out, sc.Top, sc.Bottom)
	out = sgr.AppendScroll(out, sc.Delta)
	return append(out, sgr.ResetScrollRegion...)
}

// emitRun writes the cells of one damaged run.
func emitRun(out []byte, row []core.Cell, run dirty.Run, cols int, caps core.Capabilities, st *core.TerminalState) []byte {
	space := []byte{' '}
	for x := run.X0; x < run.X1 && x < len(row); {
		cell := &row[x]
		glyph := cell.Glyph()
		width := int(cell.Width)

		switch {
		case cell.IsContinuation():
			// The lead is not part of this run; fill the column instead.
			glyph, width = space, 1
		case cell.IsWideLead() && x+1 >= cols:
			// A wide glyph cannot fit in the last column.
			glyph, width = space, 1
		case len(glyph) == 0:
			glyph, width = space, 1
		}

		if !st.PosKnown || st.CursorX != x || st.CursorY != run.Y {
			out = sgr.AppendCUP(out, x, run.Y)
			st.CursorX, st.CursorY, st.PosKnown = x, run.Y, true
		}
		if sgr.NeedsTransition(st.Style, st.StyleKnown, cell.Style, caps) {
			out = sgr.AppendStyle(out, cell.Style, caps)
			st.Style = sgr.Normalize(cell.Style, caps)
			st.StyleKnown = true
		}
		out = append(out, glyph...)

		// Only a single ASCII byte is trusted to advance the cursor by one
		// column. Anything else, and the pending-wrap state after the last
		// column, forces a CUP before the next write.
		if width == 1 && len(glyph) == 1 && glyph[0] >= 0x20 && glyph[0] < 0x7F && x+1 < cols {
			st.CursorX = x + 1
		} else {
			st.PosKnown = false
		}
		x += width
	}
	return out
}

// reconcileCursor moves the terminal cursor to the desired final state.
func reconcileCursor(out []byte, next *framebuffer.Framebuffer, cursor core.CursorState, caps core.Capabilities, st *core.TerminalState) []byte {
	cols, rows := next.Size()
	if cursor.X >= 0 && cursor.Y >= 0 && cols > 0 && rows > 0 {
		x, y := min(cursor.X, cols-1), min(cursor.Y, rows-1)
		if !st.PosKnown || st.CursorX != x || st.CursorY != y {
			out = sgr.AppendCUP(out, x, y)
			st.CursorX, st.CursorY, st.PosKnown = x, y, true
		}
	}
	if caps.CursorShape && (st.CursorShape != cursor.Shape || st.CursorBlink != cursor.Blink) {
		out = sgr.AppendCursorShape(out, cursor.Shape, cursor.Blink)
		st.CursorShape, st.CursorBlink = cursor.Shape, cursor.Blink
	}
	if st.CursorVisible != cursor.Visible {
		out = sgr.AppendCursorVisible(out, cursor.Visible)
		st.CursorVisible = cursor.Visible
	}
	return out
}
