package sgr

import (
	"sync"
	"sync/atomic"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/termdiff/internal/renderer/core"
)

// xterm system colours 0-15.
var system16 = [16]uint32{
	0x000000, 0xCD0000, 0x00CD00, 0xCDCD00, 0x0000EE, 0xCD00CD, 0x00CDCD, 0xE5E5E5,
	0x7F7F7F, 0xFF0000, 0x00FF00, 0xFFFF00, 0x5C5CFF, 0xFF00FF, 0x00FFFF, 0xFFFFFF,
}

var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

var (
	paletteOnce sync.Once
	palette     [256]colorful.Color

	table256 indexTable
	table16  indexTable
)

// indexTable memoises downsampling per 18-bit colour (6 bits per channel),
// so its size is fixed no matter how many distinct colours are drawn.
// Entries hold index+1; zero means not yet computed.
type indexTable struct {
	entries [1 << 18]atomic.Uint32
}

func (t *indexTable) lookup(c core.Color, lo, hi int) uint8 {
	key := quantize(c)
	if v := t.entries[key].Load(); v != 0 {
		return uint8(v - 1)
	}
	idx := nearest(dequantize(key), lo, hi)
	t.entries[key].Store(uint32(idx) + 1)
	return idx
}

// computed returns how many entries are filled.
func (t *indexTable) computed() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].Load() != 0 {
			n++
		}
	}
	return n
}

func quantize(c core.Color) uint32 {
	r, g, b := c.RGB()
	return uint32(r>>2)<<12 | uint32(g>>2)<<6 | uint32(b>>2)
}

// dequantize expands an 18-bit key back to 8 bits per channel, mapping
// 0 and 63 to 0 and 255 exactly.
func dequantize(key uint32) core.Color {
	expand := func(v uint32) uint8 {
		v &= 0x3F
		return uint8(v<<2 | v>>4)
	}
	return core.ColorFromRGB(expand(key>>12), expand(key>>6), expand(key))
}

// PaletteRGB returns the xterm RGB value of a 256-colour index.
func PaletteRGB(idx uint8) core.Color {
	switch {
	case idx < 16:
		return core.Color(system16[idx])
	case idx < 232:
		n := idx - 16
		return core.ColorFromRGB(cubeLevels[n/36], cubeLevels[n/6%6], cubeLevels[n%6])
	default:
		l := 8 + 10*(idx-232)
		return core.ColorFromRGB(l, l, l)
	}
}

func initPalette() {
	for i := range palette {
		palette[i] = toColorful(PaletteRGB(uint8(i)))
	}
}

func toColorful(c core.Color) colorful.Color {
	r, g, b := c.RGB()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// nearest returns the palette index in [lo, hi] closest to c in CIE Lab.
func nearest(c core.Color, lo, hi int) uint8 {
	paletteOnce.Do(initPalette)
	target := toColorful(c)
	best, bestDist := lo, -1.0
	for i := lo; i <= hi; i++ {
		d := target.DistanceLab(palette[i])
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return uint8(best)
}

// Index256 maps an RGB colour to the nearest xterm 256-colour index.
// The system colours are skipped since terminals theme them freely.
func Index256(c core.Color) uint8 {
	return table256.lookup(c, 16, 255)
}

// Index16 maps an RGB colour to the nearest of the 16 system colours.
func Index16(c core.Color) uint8 {
	return table16.lookup(c, 0, 15)
}
