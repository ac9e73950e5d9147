// Package core provides shared types for the renderer subsystem.
// This package breaks import cycles between the framebuffer, codec and diff packages.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Attribute represents text attributes (bold, italic, etc.).
// Bit positions are part of the engine ABI and must not be renumbered.
type Attribute uint32

// Text attribute flags.
const (
	AttrNone          Attribute = 0
	AttrBold          Attribute = 1 << 0
	AttrItalic        Attribute = 1 << 1
	AttrUnderline     Attribute = 1 << 2
	AttrReverse       Attribute = 1 << 3
	AttrDim           Attribute = 1 << 4 // Faint; shares the intensity class with bold
	AttrStrikethrough Attribute = 1 << 5
	AttrBlink         Attribute = 1 << 6

	// AttrAll is every attribute the codec knows how to emit.
	AttrAll = AttrBold | AttrItalic | AttrUnderline | AttrReverse | AttrDim | AttrStrikethrough | AttrBlink

	// AttrIntensity groups the mutually exclusive bold/dim class.
	AttrIntensity = AttrBold | AttrDim
)

// Has returns true if the attribute set contains the given attribute.
func (a Attribute) Has(attr Attribute) bool {
	return a&attr != 0
}

// With returns a new attribute set with the given attribute added.
func (a Attribute) With(attr Attribute) Attribute {
	return a | attr
}

// Without returns a new attribute set with the given attribute removed.
func (a Attribute) Without(attr Attribute) Attribute {
	return a &^ attr
}

// Color is a packed 0xRRGGBB value.
// ColorDefault selects the terminal's own default color instead of an RGB value.
type Color uint32

// ColorDefault represents the terminal's default color.
const ColorDefault Color = 1 << 24

// Common colors.
const (
	ColorBlack   Color = 0x000000
	ColorWhite   Color = 0xFFFFFF
	ColorRed     Color = 0xFF0000
	ColorGreen   Color = 0x00FF00
	ColorBlue    Color = 0x0000FF
	ColorYellow  Color = 0xFFFF00
	ColorCyan    Color = 0x00FFFF
	ColorMagenta Color = 0xFF00FF
	ColorGray    Color = 0x808080
)

// ColorFromRGB creates a true color from RGB components.
func ColorFromRGB(r, g, b uint8) Color {
	return Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// ColorFromHex creates a color from a hex string.
// Supports formats: "#RGB", "#RRGGBB", "RGB", "RRGGBB".
func ColorFromHex(hex string) (Color, error) {
	hex = strings.TrimPrefix(hex, "#")

	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return 0, fmt.Errorf("invalid hex color length: %s", hex)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex color: %s", hex)
	}
	return Color(v), nil
}

// RGB returns the color components. The default color reports black.
func (c Color) RGB() (r, g, b uint8) {
	if c.IsDefault() {
		return 0, 0, 0
	}
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// IsDefault returns true if this is the terminal default color.
func (c Color) IsDefault() bool {
	return c&ColorDefault != 0
}

// String returns a string representation of the color.
func (c Color) String() string {
	if c.IsDefault() {
		return "default"
	}
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// Style represents the visual style of a cell.
type Style struct {
	Fg    Color
	Bg    Color
	Attrs Attribute
}

// DefaultStyle returns the default terminal style.
func DefaultStyle() Style {
	return Style{Fg: ColorDefault, Bg: ColorDefault}
}

// NewStyle creates a style with the given colors and no attributes.
func NewStyle(fg, bg Color) Style {
	return Style{Fg: fg, Bg: bg}
}

// WithForeground returns a new style with the given foreground color.
func (s Style) WithForeground(fg Color) Style {
	s.Fg = fg
	return s
}

// WithBackground returns a new style with the given background color.
func (s Style) WithBackground(bg Color) Style {
	s.Bg = bg
	return s
}

// WithAttributes returns a new style with the given attributes.
func (s Style) WithAttributes(attrs Attribute) Style {
	s.Attrs = attrs
	return s
}

// Bold returns a new style with bold attribute added.
func (s Style) Bold() Style {
	s.Attrs |= AttrBold
	return s
}

// Dim returns a new style with dim attribute added.
func (s Style) Dim() Style {
	s.Attrs |= AttrDim
	return s
}

// Italic returns a new style with italic attribute added.
func (s Style) Italic() Style {
	s.Attrs |= AttrItalic
	return s
}

// Underline returns a new style with underline attribute added.
func (s Style) Underline() Style {
	s.Attrs |= AttrUnderline
	return s
}

// Reverse returns a new style with reverse video attribute added.
func (s Style) Reverse() Style {
	s.Attrs |= AttrReverse
	return s
}

// Masked returns the style with attributes outside mask removed.
func (s Style) Masked(mask Attribute) Style {
	s.Attrs &= mask
	return s
}

// Equals returns true if two styles are identical.
func (s Style) Equals(other Style) bool {
	return s == other
}

// IsDefault returns true if this is the default style.
func (s Style) IsDefault() bool {
	return s == DefaultStyle()
}

// Rect is a rectangle in framebuffer coordinates.
type Rect struct {
	X, Y int
	W, H int
}

// RectFromSize creates a rectangle anchored at the origin.
func RectFromSize(w, h int) Rect {
	return Rect{W: w, H: h}
}

// Right returns the exclusive right column.
func (r Rect) Right() int { return r.X + r.W }

// Bottom returns the exclusive bottom row.
func (r Rect) Bottom() int { return r.Y + r.H }

// IsEmpty returns true if the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// Contains returns true if (x, y) is within the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Intersect returns the overlapping region of two rectangles.
// Disjoint rectangles yield an empty rect positioned at r's origin.
func (r Rect) Intersect(other Rect) Rect {
	x0 := max(r.X, other.X)
	y0 := max(r.Y, other.Y)
	x1 := min(r.Right(), other.Right())
	y1 := min(r.Bottom(), other.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{X: r.X, Y: r.Y}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// DamageRect is a changed region between two framebuffers.
// X1 and Y1 are exclusive.
type DamageRect struct {
	X0, Y0 int
	X1, Y1 int
}

// Cells returns the number of cells covered.
func (d DamageRect) Cells() int {
	if d.X1 <= d.X0 || d.Y1 <= d.Y0 {
		return 0
	}
	return (d.X1 - d.X0) * (d.Y1 - d.Y0)
}

// Overlaps returns true if two damage rects share at least one cell.
func (d DamageRect) Overlaps(other DamageRect) bool {
	return d.X0 < other.X1 && other.X0 < d.X1 &&
		d.Y0 < other.Y1 && other.Y0 < d.Y1
}

// CursorShape selects the terminal cursor glyph.
type CursorShape uint8

const (
	CursorBlock CursorShape = iota
	CursorUnderline
	CursorBar
)

// String returns the shape name.
func (s CursorShape) String() string {
	switch s {
	case CursorBlock:
		return "block"
	case CursorUnderline:
		return "underline"
	case CursorBar:
		return "bar"
	default:
		return "unknown"
	}
}

// CursorState is the cursor the host wants after a frame.
// Negative X or Y leaves the position wherever rendering left it.
type CursorState struct {
	X, Y    int
	Shape   CursorShape
	Visible bool
	Blink   bool
}

// TerminalState is what the renderer believes is active on the real terminal.
// It is threaded frame to frame: the output of one diff is the input of the next.
type TerminalState struct {
	CursorX, CursorY int
	// PosKnown is false when the real cursor position cannot be trusted.
	PosKnown bool

	CursorVisible bool
	CursorShape   CursorShape
	CursorBlink   bool

	Style Style
	// StyleKnown is false until an SGR sequence has been emitted.
	StyleKnown bool
}

// ColorMode indicates terminal color capability.
type ColorMode uint8

const (
	ColorModeUnknown ColorMode = iota
	ColorMode16
	ColorMode256
	ColorModeRGB
)

// String returns the mode name.
func (m ColorMode) String() string {
	switch m {
	case ColorMode16:
		return "16"
	case ColorMode256:
		return "256"
	case ColorModeRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// Capabilities describes what the attached terminal supports.
type Capabilities struct {
	ColorMode         ColorMode
	SGRAttrsSupported Attribute

	Mouse              bool
	BracketedPaste     bool
	FocusEvents        bool
	OSC52              bool
	SyncUpdate         bool
	ScrollRegion       bool
	CursorShape        bool
	OutputWaitWritable bool
}

// DefaultCapabilities returns a conservative xterm-compatible capability set.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		ColorMode:         ColorMode256,
		SGRAttrsSupported: AttrAll,
		Mouse:             true,
		BracketedPaste:    true,
		FocusEvents:       true,
		ScrollRegion:      true,
		CursorShape:       true,
	}
}
