// Package sgr encodes style transitions and cursor control as terminal
// escape sequences. All functions are pure and append to a caller buffer.
package sgr

import (
	"strconv"

	"github.com/dshills/termdiff/internal/renderer/core"
)

// attrCodes lists every attribute in emission order with its SGR code.
var attrCodes = [...]struct {
	attr core.Attribute
	code byte
}{
	{core.AttrBold, '1'},
	{core.AttrDim, '2'},
	{core.AttrItalic, '3'},
	{core.AttrUnderline, '4'},
	{core.AttrBlink, '5'},
	{core.AttrReverse, '7'},
	{core.AttrStrikethrough, '9'},
}

// Normalize returns the style as it will actually be rendered under caps:
// unsupported attributes are masked out and bold wins over dim when both
// intensity bits are set.
func Normalize(s core.Style, caps core.Capabilities) core.Style {
	s = s.Masked(caps.SGRAttrsSupported)
	if s.Attrs&core.AttrIntensity == core.AttrIntensity {
		s.Attrs = s.Attrs.Without(core.AttrDim)
	}
	return s
}

// NeedsTransition reports whether moving from cur to next requires an SGR.
// An unknown current style always requires one.
func NeedsTransition(cur core.Style, curKnown bool, next core.Style, caps core.Capabilities) bool {
	if !curKnown {
		return true
	}
	return Normalize(cur, caps) != Normalize(next, caps)
}

// AppendTransition appends the sequence that moves the terminal from cur to
// next, or nothing when no change is visible. Every change is a full
// reset-and-rebuild; attributes are never toggled off individually.
func AppendTransition(dst []byte, cur core.Style, curKnown bool, next core.Style, caps core.Capabilities) []byte {
	if !NeedsTransition(cur, curKnown, next, caps) {
		return dst
	}
	return AppendStyle(dst, next, caps)
}

// AppendStyle appends ESC[0 followed by every attribute and colour code of s.
func AppendStyle(dst []byte, s core.Style, caps core.Capabilities) []byte {
	s = Normalize(s, caps)
	dst = append(dst, "\x1b[0"...)
	for _, ac := range attrCodes {
		if s.Attrs.Has(ac.attr) {
			dst = append(dst, ';', ac.code)
		}
	}
	dst = appendColor(dst, s.Fg, false, caps.ColorMode)
	dst = appendColor(dst, s.Bg, true, caps.ColorMode)
	return append(dst, 'm')
}

// appendColor appends ";" and the colour parameters for one plane.
func appendColor(dst []byte, c core.Color, background bool, mode core.ColorMode) []byte {
	dst = append(dst, ';')
	if c.IsDefault() {
		if background {
			return append(dst, "49"...)
		}
		return append(dst, "39"...)
	}

	switch mode {
	case core.ColorModeRGB:
		r, g, b := c.RGB()
		if background {
			dst = append(dst, "48;2;"...)
		} else {
			dst = append(dst, "38;2;"...)
		}
		dst = strconv.AppendUint(dst, uint64(r), 10)
		dst = append(dst, ';')
		dst = strconv.AppendUint(dst, uint64(g), 10)
		dst = append(dst, ';')
		return strconv.AppendUint(dst, uint64(b), 10)

	case core.ColorMode256:
		if background {
			dst = append(dst, "48;5;"...)
		} else {
			dst = append(dst, "38;5;"...)
		}
		return strconv.AppendUint(dst, uint64(Index256(c)), 10)

	default:
		idx := int(Index16(c))
		base := 30
		if idx >= 8 {
			base = 90
			idx -= 8
		}
		if background {
			base += 10
		}
		return strconv.AppendInt(dst, int64(base+idx), 10)
	}
}
