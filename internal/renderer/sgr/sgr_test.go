package sgr

import (
	"strings"
	"testing"

	"github.com/dshills/termdiff/internal/renderer/core"
)

func rgbCaps() core.Capabilities {
	caps := core.DefaultCapabilities()
	caps.ColorMode = core.ColorModeRGB
	caps.SGRAttrsSupported = ^core.Attribute(0)
	return caps
}

func TestAppendStyle(t *testing.T) {
	caps := rgbCaps()
	tests := []struct {
		name  string
		style core.Style
		want  string
	}{
		{"default", core.DefaultStyle(), "\x1b[0;39;49m"},
		{"dim", core.DefaultStyle().Dim(), "\x1b[0;2;39;49m"},
		{"bold underline", core.DefaultStyle().Bold().Underline(), "\x1b[0;1;4;39;49m"},
		{"rgb", core.NewStyle(core.ColorRed, core.ColorBlack), "\x1b[0;38;2;255;0;0;48;2;0;0;0m"},
		{
			"all attrs",
			core.DefaultStyle().WithAttributes(core.AttrAll),
			"\x1b[0;1;3;4;5;7;9;39;49m", // dim yields to bold
		},
	}
	for _, tt := range tests {
		got := string(AppendStyle(nil, tt.style, caps))
		if got != tt.want {
			t.Errorf("%s: AppendStyle = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIntensityTransitions(t *testing.T) {
	caps := rgbCaps()
	normal := core.NewStyle(core.ColorWhite, core.ColorBlack)
	dim := normal.Dim()
	bold := normal.Bold()

	tests := []struct {
		name     string
		from, to core.Style
		want     string
		reject   string
	}{
		{"normal to dim", normal, dim, "\x1b[0;2;", "\x1b[0;1;"},
		{"dim to normal", dim, normal, "\x1b[0;38;", "\x1b[0;2;"},
		{"dim to bold", dim, bold, "\x1b[0;1;", "\x1b[0;1;2;"},
		{"bold to dim", bold, dim, "\x1b[0;2;", "\x1b[0;1;"},
		{"dim to dim underline", dim, dim.Underline(), "\x1b[0;2;4;", "\x1b[0;1;"},
	}
	for _, tt := range tests {
		got := string(AppendTransition(nil, tt.from, true, tt.to, caps))
		if !strings.Contains(got, tt.want) {
			t.Errorf("%s: %q does not contain %q", tt.name, got, tt.want)
		}
		if strings.Contains(got, tt.reject) {
			t.Errorf("%s: %q unexpectedly contains %q", tt.name, got, tt.reject)
		}
	}
}

func TestTransitionSkipsIdenticalStyles(t *testing.T) {
	caps := rgbCaps()
	s := core.DefaultStyle().Bold()

	if got := AppendTransition(nil, s, true, s, caps); len(got) != 0 {
		t.Errorf("identical known style emitted %q", got)
	}
	if got := AppendTransition(nil, s, false, s, caps); len(got) == 0 {
		t.Error("unknown current style must emit")
	}
}

func TestAttributeMask(t *testing.T) {
	caps := rgbCaps()
	caps.SGRAttrsSupported = core.AttrBold

	from := core.DefaultStyle().Bold()
	to := from.Underline()
	if got := AppendTransition(nil, from, true, to, caps); len(got) != 0 {
		t.Errorf("unsupported attribute change emitted %q", got)
	}
	if got := string(AppendStyle(nil, to, caps)); got != "\x1b[0;1;39;49m" {
		t.Errorf("masked style = %q", got)
	}
}

func TestColorModes(t *testing.T) {
	style := core.NewStyle(core.ColorRed, core.ColorBlack)
	tests := []struct {
		mode core.ColorMode
		want string
	}{
		{core.ColorMode256, "\x1b[0;38;5;196;48;5;16m"},
		{core.ColorMode16, "\x1b[0;91;40m"},
		{core.ColorModeUnknown, "\x1b[0;91;40m"},
	}
	for _, tt := range tests {
		caps := core.DefaultCapabilities()
		caps.ColorMode = tt.mode
		if got := string(AppendStyle(nil, style, caps)); got != tt.want {
			t.Errorf("mode %s: %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestPalette(t *testing.T) {
	tests := []struct {
		c    core.Color
		want uint8
	}{
		{core.ColorFromRGB(255, 0, 0), 196},
		{core.ColorFromRGB(0, 0, 0), 16},
		{core.ColorFromRGB(128, 128, 128), 244},
		{core.ColorFromRGB(255, 255, 255), 231},
	}
	for _, tt := range tests {
		if got := Index256(tt.c); got != tt.want {
			t.Errorf("Index256(%s) = %d, want %d", tt.c, got, tt.want)
		}
		// memoised path
		if got := Index256(tt.c); got != tt.want {
			t.Errorf("cached Index256(%s) = %d, want %d", tt.c, got, tt.want)
		}
	}

	if got := Index16(core.ColorWhite); got != 15 {
		t.Errorf("Index16(white) = %d, want 15", got)
	}
	if got := PaletteRGB(196); got != core.ColorFromRGB(255, 0, 0) {
		t.Errorf("PaletteRGB(196) = %s", got)
	}
	if got := PaletteRGB(232); got != core.ColorFromRGB(8, 8, 8) {
		t.Errorf("PaletteRGB(232) = %s", got)
	}
}

func TestCursorSequences(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"cup origin", AppendCUP(nil, 0, 0), "\x1b[1;1H"},
		{"cup", AppendCUP(nil, 1, 0), "\x1b[1;2H"},
		{"block blink", AppendCursorShape(nil, core.CursorBlock, true), "\x1b[1 q"},
		{"underline steady", AppendCursorShape(nil, core.CursorUnderline, false), "\x1b[4 q"},
		{"bar steady", AppendCursorShape(nil, core.CursorBar, false), "\x1b[6 q"},
		{"show", AppendCursorVisible(nil, true), "\x1b[?25h"},
		{"hide", AppendCursorVisible(nil, false), "\x1b[?25l"},
		{"region", AppendScrollRegion(nil, 0, 4), "\x1b[1;5r"},
		{"scroll up", AppendScroll(nil, 2), "\x1b[2S"},
		{"scroll down", AppendScroll(nil, -1), "\x1b[1T"},
		{"no scroll", AppendScroll(nil, 0), ""},
	}
	for _, tt := range tests {
		if string(tt.got) != tt.want {
			t.Errorf("%s: %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestPaletteTableBounded(t *testing.T) {
	drawn := 0
	for r := 0; r < 256; r += 3 {
		for g := 0; g < 256; g += 5 {
			Index256(core.ColorFromRGB(uint8(r), uint8(g), 7))
			drawn++
		}
	}
	if n := table256.computed(); n >= drawn {
		t.Errorf("computed entries = %d for %d distinct colours, want bucketed", n, drawn)
	}
	if len(table256.entries) != 1<<18 {
		t.Errorf("table size = %d, want %d", len(table256.entries), 1<<18)
	}

	a, b := core.ColorFromRGB(200, 40, 96), core.ColorFromRGB(203, 43, 99)
	if quantize(a) != quantize(b) {
		t.Fatal("colours should share a bucket")
	}
	if Index256(a) != Index256(b) {
		t.Errorf("same bucket mapped to %d and %d", Index256(a), Index256(b))
	}

	for _, c := range []core.Color{core.ColorBlack, core.ColorWhite, core.ColorRed} {
		if got := dequantize(quantize(c)); got != c {
			t.Errorf("dequantize(quantize(%s)) = %s", c, got)
		}
	}
}
