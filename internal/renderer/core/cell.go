package core

import "unicode/utf8"

// GlyphMax is the largest grapheme cluster a cell can hold, in bytes.
const GlyphMax = 32

// Cell represents a single terminal cell.
//
// The glyph is stored inline so framebuffers are flat arrays without
// per-cell allocations. Bytes past the glyph length are always zero,
// which keeps Cell comparable with ==.
type Cell struct {
	glyph    [GlyphMax]byte
	glyphLen uint8

	// Width is the display width of this cell.
	// 0 for continuation cells, 1 for normal glyphs, 2 for wide glyphs.
	Width uint8

	// Style is the visual style for this cell.
	Style Style
}

// NewCell creates a cell holding glyph with the given width and style.
// The glyph must be non-empty, at most GlyphMax bytes and printable UTF-8;
// width must be 1 or 2.
func NewCell(glyph []byte, width int, style Style) (Cell, error) {
	if len(glyph) == 0 || len(glyph) > GlyphMax {
		return Cell{}, Errorf("new_cell", ErrInvalidArgument, "glyph length %d", len(glyph))
	}
	if !Printable(glyph) {
		return Cell{}, Errorf("new_cell", ErrInvalidArgument, "glyph %q has control bytes", glyph)
	}
	if width != 1 && width != 2 {
		return Cell{}, Errorf("new_cell", ErrInvalidArgument, "width %d", width)
	}
	c := Cell{Width: uint8(width), Style: style}
	c.glyphLen = uint8(copy(c.glyph[:], glyph))
	return c, nil
}

// Printable reports whether glyph is valid UTF-8 free of C0, DEL and C1
// controls. Anything else would be interpreted by the terminal rather than
// drawn, desynchronizing the tracked cursor and style.
func Printable(glyph []byte) bool {
	for len(glyph) > 0 {
		r, n := utf8.DecodeRune(glyph)
		switch {
		case r == utf8.RuneError && n <= 1:
			return false
		case r < 0x20, r == 0x7F, r >= 0x80 && r <= 0x9F:
			return false
		}
		glyph = glyph[n:]
	}
	return true
}

// BlankCell returns a single space of width 1 in the given style.
func BlankCell(style Style) Cell {
	c := Cell{Width: 1, Style: style, glyphLen: 1}
	c.glyph[0] = ' '
	return c
}

// EmptyCell returns a blank cell in the default style.
func EmptyCell() Cell {
	return BlankCell(DefaultStyle())
}

// ContinuationCell returns the right half of a wide glyph.
// It holds no glyph of its own.
func ContinuationCell(style Style) Cell {
	return Cell{Width: 0, Style: style}
}

// Glyph returns the glyph bytes. The slice aliases the cell copy.
func (c *Cell) Glyph() []byte {
	return c.glyph[:c.glyphLen]
}

// String returns the glyph as a string.
func (c Cell) String() string {
	return string(c.glyph[:c.glyphLen])
}

// GlyphLen returns the glyph length in bytes.
func (c Cell) GlyphLen() int {
	return int(c.glyphLen)
}

// IsContinuation returns true if this is a continuation cell
// (second cell of a wide character).
func (c Cell) IsContinuation() bool {
	return c.Width == 0
}

// IsWideLead returns true if this cell starts a wide glyph.
func (c Cell) IsWideLead() bool {
	return c.Width == 2
}

// IsBlank returns true if this is a width-1 space.
func (c Cell) IsBlank() bool {
	return c.Width == 1 && c.glyphLen == 1 && c.glyph[0] == ' '
}

// IsASCII returns true if the glyph is a single printable ASCII byte.
func (c Cell) IsASCII() bool {
	return c.glyphLen == 1 && c.glyph[0] >= 0x20 && c.glyph[0] < 0x7F
}

// WithStyle returns a new cell with the given style.
func (c Cell) WithStyle(style Style) Cell {
	c.Style = style
	return c
}

// Equals returns true if two cells are identical.
func (c Cell) Equals(other Cell) bool {
	return c == other
}
