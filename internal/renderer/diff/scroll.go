package diff

import (
	"github.com/dshills/termdiff/internal/renderer/core"
	"github.com/dshills/termdiff/internal/renderer/framebuffer"
)

// Scroll describes a vertical shift of the whole frame.
type Scroll struct {
	// Top and Bottom bound the scroll region (inclusive rows).
	Top, Bottom int

	// Delta is the shift in rows. Positive moves content up (SU),
	// negative moves content down (SD).
	Delta int
}

// ScrollStrategy decides whether next is prev shifted vertically.
type ScrollStrategy interface {
	Detect(prev, next *framebuffer.Framebuffer) (Scroll, bool)
}

// ShiftMatch detects scrolls by counting rows of next that equal the row
// of prev Delta rows away. A shift is accepted when it matches at least
// MinRows rows and at least half of the overlapping rows, and matches more
// rows than leaving the frame in place would.
type ShiftMatch struct {
	// MinRows is the minimum number of matching rows. Defaults to 2.
	MinRows int

	// MaxDelta bounds the searched shift. Zero searches up to rows-1.
	MaxDelta int
}

// Detect implements ScrollStrategy.
func (s ShiftMatch) Detect(prev, next *framebuffer.Framebuffer) (Scroll, bool) {
	if !prev.SameExtent(next) {
		return Scroll{}, false
	}
	_, rows := next.Size()
	if rows < 2 {
		return Scroll{}, false
	}

	minRows := s.MinRows
	if minRows <= 0 {
		minRows = 2
	}
	maxDelta := s.MaxDelta
	if maxDelta <= 0 || maxDelta > rows-1 {
		maxDelta = rows - 1
	}

	baseline := 0
	for y := 0; y < rows; y++ {
		if next.RowEqual(y, prev, y) {
			baseline++
		}
	}
	if baseline == rows {
		return Scroll{}, false
	}

	best, bestMatches := 0, 0
	for d := 1; d <= maxDelta; d++ {
		for _, delta := range [2]int{d, -d} {
			m := shiftedMatches(prev, next, delta, rows)
			need := max(minRows, (rows-d+1)/2)
			if m < need || m <= baseline {
				continue
			}
			if m > bestMatches {
				best, bestMatches = delta, m
			}
		}
	}
	if best == 0 {
		return Scroll{}, false
	}
	return Scroll{Top: 0, Bottom: rows - 1, Delta: best}, true
}

// shiftedMatches counts rows y with next[y] == prev[y+delta].
func shiftedMatches(prev, next *framebuffer.Framebuffer, delta, rows int) int {
	n := 0
	for y := 0; y < rows; y++ {
		src := y + delta
		if src < 0 || src >= rows {
			continue
		}
		if next.RowEqual(y, prev, src) {
			n++
		}
	}
	return n
}

// applyScroll writes prev shifted by sc into dst, which must share prev's
// extent. Rows scrolled in are blank in the default style, matching what
// the terminal shows after an SGR reset.
func applyScroll(dst, prev *framebuffer.Framebuffer, sc Scroll) error {
	if err := dst.CopyFrom(prev); err != nil {
		return err
	}
	blank := core.EmptyCell()
	for y := sc.Top; y <= sc.Bottom; y++ {
		out := dst.Row(y)
		src := y + sc.Delta
		if src < sc.Top || src > sc.Bottom {
			for x := range out {
				out[x] = blank
			}
			continue
		}
		copy(out, prev.Row(src))
	}
	return nil
}
