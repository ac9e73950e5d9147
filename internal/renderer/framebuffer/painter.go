package framebuffer

import (
	"github.com/dshills/termdiff/internal/renderer/core"
)

// DefaultTabWidth is the tab stop interval used by DrawText.
const DefaultTabWidth = 4

// Measurer segments text into grapheme clusters and reports display widths.
type Measurer interface {
	// NextGrapheme splits the first grapheme cluster off text.
	// Width is 0 for clusters that occupy no columns.
	NextGrapheme(text string) (cluster, rest string, width int)
}

// Painter writes glyphs into one framebuffer through a bounded clip stack.
// The bottom entry of the stack is always the full-frame rectangle.
//
// A painter is transient: create it with Begin for each paint pass and
// discard it afterwards. It is not safe for concurrent use.
type Painter struct {
	fb       *Framebuffer
	stack    []core.Rect
	depth    int
	tabWidth int
}

// Begin binds a painter to fb using stack as clip storage.
// The capacity of the clip stack is len(stack), which must be at least 1.
func Begin(fb *Framebuffer, stack []core.Rect) (*Painter, error) {
	if fb == nil || len(stack) < 1 {
		return nil, core.NewOpError("painter_begin", core.ErrInvalidArgument)
	}
	stack[0] = fb.Bounds()
	return &Painter{fb: fb, stack: stack, depth: 1, tabWidth: DefaultTabWidth}, nil
}

// Framebuffer returns the framebuffer being painted.
func (p *Painter) Framebuffer() *Framebuffer {
	return p.fb
}

// SetTabWidth sets the tab stop interval. Values below 1 are ignored.
func (p *Painter) SetTabWidth(n int) {
	if n >= 1 {
		p.tabWidth = n
	}
}

// Clip returns the active clip rectangle.
func (p *Painter) Clip() core.Rect {
	return p.stack[p.depth-1]
}

// Depth returns the number of entries on the clip stack, base included.
func (p *Painter) Depth() int {
	return p.depth
}

// Push intersects r with the active clip and makes the result active.
func (p *Painter) Push(r core.Rect) error {
	if p.depth >= len(p.stack) {
		return core.Errorf("clip_push", core.ErrLimitExceeded, "depth %d", p.depth)
	}
	p.stack[p.depth] = p.Clip().Intersect(r)
	p.depth++
	return nil
}

// Pop restores the previous clip. The base entry cannot be popped.
func (p *Painter) Pop() error {
	if p.depth <= 1 {
		return core.Errorf("clip_pop", core.ErrInvalidArgument, "stack underflow")
	}
	p.depth--
	return nil
}

// PutGrapheme writes one grapheme cluster at (x, y).
//
// Writes outside the active clip are silent no-ops. Wide-glyph pairs are
// repaired whenever a write disturbs one half: a lead whose continuation is
// overwritten becomes a blank, and a continuation whose lead is overwritten
// becomes a blank, even when that neighbour lies outside the clip.
func (p *Painter) PutGrapheme(x, y int, glyph []byte, width int, style core.Style) error {
	cell, err := core.NewCell(glyph, width, style)
	if err != nil {
		return err
	}
	clip := p.Clip()
	if !clip.Contains(x, y) {
		return nil
	}

	row := p.fb.Row(y)
	if row == nil || x >= len(row) {
		return nil
	}
	cols := len(row)

	if row[x].IsContinuation() && x > 0 && row[x-1].IsWideLead() {
		row[x-1] = core.BlankCell(row[x-1].Style)
	}

	oldWasLead := row[x].IsWideLead()
	row[x] = cell

	if width == 2 && x+1 < cols && clip.Contains(x+1, y) {
		if row[x+1].IsWideLead() && x+2 < cols && row[x+2].IsContinuation() {
			row[x+2] = core.BlankCell(row[x+2].Style)
		}
		row[x+1] = core.ContinuationCell(style)
		return nil
	}

	if oldWasLead && x+1 < cols && row[x+1].IsContinuation() {
		row[x+1] = core.BlankCell(row[x+1].Style)
	}
	return nil
}

// FillRect blanks every cell of r inside the active clip with style.
func (p *Painter) FillRect(r core.Rect, style core.Style) error {
	area := p.Clip().Intersect(r)
	if area.IsEmpty() {
		return nil
	}
	space := []byte{' '}
	for y := area.Y; y < area.Bottom(); y++ {
		for x := area.X; x < area.Right(); x++ {
			if err := p.PutGrapheme(x, y, space, 1, style); err != nil {
				return err
			}
		}
	}
	return nil
}

// DrawText writes text starting at (x, y) one grapheme cluster at a time.
// Tabs advance to the next tab stop measured from x. Clusters with no
// display width are dropped. Returns the column after the last cluster.
func (p *Painter) DrawText(x, y int, text string, style core.Style, m Measurer) (int, error) {
	if m == nil {
		return x, core.Errorf("draw_text", core.ErrInvalidArgument, "nil measurer")
	}
	cols, _ := p.fb.Size()
	col := x
	space := []byte{' '}

	for text != "" && col < cols {
		if text[0] == '\t' {
			text = text[1:]
			stop := col + p.tabWidth - (col-x)%p.tabWidth
			for ; col < stop; col++ {
				if err := p.PutGrapheme(col, y, space, 1, style); err != nil {
					return col, err
				}
			}
			continue
		}

		cluster, rest, width := m.NextGrapheme(text)
		text = rest
		if width <= 0 || cluster == "" {
			continue
		}
		if width > 2 {
			width = 2
		}
		if len(cluster) > core.GlyphMax || !core.Printable([]byte(cluster)) {
			cluster = "\uFFFD"
		}
		if err := p.PutGrapheme(col, y, []byte(cluster), width, style); err != nil {
			return col, err
		}
		col += width
	}
	return col, nil
}

// Clear resets the whole framebuffer, ignoring the clip.
func (p *Painter) Clear(style core.Style) {
	p.fb.Clear(style)
}
