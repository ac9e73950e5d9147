package engine

import (
	"github.com/dshills/termdiff/internal/renderer/core"
	"github.com/dshills/termdiff/internal/renderer/framebuffer"
	"github.com/dshills/termdiff/internal/unicode"
)

// Canvas is the drawing surface handed to a PaintFunc. It embeds the clip
// painter and measures text with the engine's width policy.
type Canvas struct {
	*framebuffer.Painter

	width  *unicode.Service
	cursor core.CursorState
}

// Text draws s starting at (x, y) and returns the column after the last
// cluster drawn.
func (c *Canvas) Text(x, y int, s string, style core.Style) (int, error) {
	return c.DrawText(x, y, s, style, c.width)
}

// TextWidth returns the number of columns s occupies.
func (c *Canvas) TextWidth(s string) int {
	return c.width.StringWidth(s)
}

// SetCursor sets the cursor shown after the frame is presented.
// Negative coordinates leave the cursor wherever rendering ends.
func (c *Canvas) SetCursor(cur core.CursorState) {
	c.cursor = cur
}

// Cursor returns the cursor that will be shown with this frame.
func (c *Canvas) Cursor() core.CursorState {
	return c.cursor
}

// Size returns the canvas extent.
func (c *Canvas) Size() (cols, rows int) {
	return c.Framebuffer().Size()
}
