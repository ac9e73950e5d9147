package framebuffer

import (
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/dshills/termdiff/internal/renderer/core"
)

// runeMeasurer treats every rune as a cluster; CJK ideographs are wide.
type runeMeasurer struct{}

func (runeMeasurer) NextGrapheme(text string) (string, string, int) {
	r, n := utf8.DecodeRuneInString(text)
	w := 1
	switch {
	case r < 0x20:
		w = 0
	case r >= 0x4E00 && r <= 0x9FFF:
		w = 2
	}
	return text[:n], text[n:], w
}

func mustNew(t *testing.T, cols, rows int) *Framebuffer {
	t.Helper()
	fb, err := New(cols, rows)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", cols, rows, err)
	}
	return fb
}

func mustBegin(t *testing.T, fb *Framebuffer, depth int) *Painter {
	t.Helper()
	p, err := Begin(fb, make([]core.Rect, depth))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return p
}

func put(t *testing.T, p *Painter, x, y int, glyph string, width int) {
	t.Helper()
	if err := p.PutGrapheme(x, y, []byte(glyph), width, core.DefaultStyle()); err != nil {
		t.Fatalf("PutGrapheme(%d, %d, %q): %v", x, y, glyph, err)
	}
}

func assertBlank(t *testing.T, fb *Framebuffer, x, y int) {
	t.Helper()
	c := fb.At(x, y)
	if !c.IsBlank() {
		t.Errorf("cell(%d,%d) = %q width %d, want blank width 1", x, y, c.String(), c.Width)
	}
}

func TestNewAndClear(t *testing.T) {
	fb := mustNew(t, 3, 2)
	cols, rows := fb.Size()
	if cols != 3 || rows != 2 {
		t.Fatalf("Size() = %dx%d, want 3x2", cols, rows)
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			assertBlank(t, fb, x, y)
		}
	}

	style := core.DefaultStyle().WithBackground(core.ColorBlue)
	fb.Clear(style)
	if got := fb.At(2, 1).Style; got != style {
		t.Errorf("cleared style = %+v, want %+v", got, style)
	}

	if _, err := New(-1, 2); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("New(-1, 2) error = %v, want ErrInvalidArgument", err)
	}
}

func TestCellBounds(t *testing.T) {
	fb := mustNew(t, 2, 2)

	tests := []struct {
		x, y int
		ok   bool
	}{
		{0, 0, true},
		{1, 1, true},
		{2, 0, false},
		{0, 2, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		c, err := fb.Cell(tt.x, tt.y)
		if tt.ok {
			if err != nil || c == nil {
				t.Errorf("Cell(%d,%d) unexpected error %v", tt.x, tt.y, err)
			}
			continue
		}
		if !errors.Is(err, core.ErrOutOfBounds) {
			t.Errorf("Cell(%d,%d) error = %v, want ErrOutOfBounds", tt.x, tt.y, err)
		}
	}

	c, _ := fb.Cell(1, 0)
	*c = core.BlankCell(core.DefaultStyle().Bold())
	if !fb.At(1, 0).Style.Attrs.Has(core.AttrBold) {
		t.Error("Cell should return a mutable reference")
	}
}

func TestCopyFromAndEqual(t *testing.T) {
	a := mustNew(t, 3, 1)
	b := mustNew(t, 3, 1)
	p := mustBegin(t, a, 1)
	put(t, p, 0, 0, "x", 1)

	if a.Equal(b) {
		t.Error("framebuffers should differ")
	}
	if err := b.CopyFrom(a); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if !a.Equal(b) {
		t.Error("framebuffers should be equal after copy")
	}

	c := mustNew(t, 4, 1)
	if err := c.CopyFrom(a); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("CopyFrom mismatched extent error = %v", err)
	}
}

func TestRelease(t *testing.T) {
	fb := mustNew(t, 4, 4)
	fb.Release()
	cols, rows := fb.Size()
	if cols != 0 || rows != 0 || fb.Row(0) != nil {
		t.Error("released framebuffer should be empty")
	}
}

func TestClipRoundTrip(t *testing.T) {
	fb := mustNew(t, 10, 5)
	p := mustBegin(t, fb, 4)

	rects := []core.Rect{
		{X: 2, Y: 1, W: 4, H: 2},
		{X: 8, Y: 0, W: 10, H: 10},
		{X: 20, Y: 20, W: 1, H: 1},
	}
	for _, r := range rects {
		before := p.Clip()
		if err := p.Push(r); err != nil {
			t.Fatalf("Push(%v): %v", r, err)
		}
		if err := p.Pop(); err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if p.Clip() != before {
			t.Errorf("after push/pop clip = %v, want %v", p.Clip(), before)
		}
	}
}

func TestClipNesting(t *testing.T) {
	fb := mustNew(t, 10, 5)
	p := mustBegin(t, fb, 3)

	_ = p.Push(core.Rect{X: 2, Y: 0, W: 6, H: 5})
	_ = p.Push(core.Rect{X: 0, Y: 1, W: 4, H: 1})

	want := core.Rect{X: 2, Y: 1, W: 2, H: 1}
	if p.Clip() != want {
		t.Errorf("nested clip = %v, want %v", p.Clip(), want)
	}

	if err := p.Push(core.Rect{W: 1, H: 1}); !errors.Is(err, core.ErrLimitExceeded) {
		t.Errorf("push past capacity error = %v, want ErrLimitExceeded", err)
	}

	_ = p.Pop()
	_ = p.Pop()
	if err := p.Pop(); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("pop of base error = %v, want ErrInvalidArgument", err)
	}
	if p.Clip() != fb.Bounds() {
		t.Errorf("base clip = %v, want %v", p.Clip(), fb.Bounds())
	}
}

func TestBeginRequiresStorage(t *testing.T) {
	fb := mustNew(t, 1, 1)
	if _, err := Begin(fb, nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Begin without storage error = %v", err)
	}
	if _, err := Begin(nil, make([]core.Rect, 1)); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Begin without framebuffer error = %v", err)
	}
}

func TestPutGraphemeClippedIsNoop(t *testing.T) {
	fb := mustNew(t, 4, 2)
	p := mustBegin(t, fb, 2)
	_ = p.Push(core.Rect{X: 0, Y: 0, W: 2, H: 1})

	if err := p.PutGrapheme(3, 0, []byte("x"), 1, core.DefaultStyle()); err != nil {
		t.Errorf("clipped write should succeed, got %v", err)
	}
	if err := p.PutGrapheme(99, 99, []byte("x"), 1, core.DefaultStyle()); err != nil {
		t.Errorf("out of frame write should succeed, got %v", err)
	}
	assertBlank(t, fb, 3, 0)
}

func TestPutGraphemeRejectsInvalid(t *testing.T) {
	fb := mustNew(t, 4, 1)
	p := mustBegin(t, fb, 1)

	if err := p.PutGrapheme(0, 0, nil, 1, core.DefaultStyle()); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("empty glyph error = %v", err)
	}
	if err := p.PutGrapheme(0, 0, []byte("a"), 3, core.DefaultStyle()); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("width 3 error = %v", err)
	}
}

func TestPutGraphemeRejectsControls(t *testing.T) {
	fb := mustNew(t, 4, 1)
	p := mustBegin(t, fb, 1)
	put(t, p, 0, 0, "a", 1)

	for _, glyph := range []string{"\x1b[2J", "\x07", "\x7f", "a\x00", "\u009b1m", "\x9b", "\xff"} {
		if err := p.PutGrapheme(0, 0, []byte(glyph), 1, core.DefaultStyle()); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("PutGrapheme(%q) error = %v, want ErrInvalidArgument", glyph, err)
		}
	}
	if got := fb.At(0, 0).String(); got != "a" {
		t.Errorf("rejected glyph replaced cell with %q", got)
	}
}

func TestDrawTextReplacesControls(t *testing.T) {
	fb := mustNew(t, 4, 1)
	p := mustBegin(t, fb, 1)

	end, err := p.DrawText(0, 0, "a\u009bb\xffc", core.DefaultStyle(), runeMeasurer{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "\uFFFD", "b", "\uFFFD"}
	for x, w := range want {
		if got := fb.At(x, 0).String(); got != w {
			t.Errorf("cell(%d) = %q, want %q", x, got, w)
		}
	}
	if end != 4 {
		t.Errorf("end column = %d, want 4", end)
	}
}

func TestWideGlyphPair(t *testing.T) {
	fb := mustNew(t, 4, 1)
	p := mustBegin(t, fb, 1)
	put(t, p, 1, 0, "世", 2)

	if c := fb.At(1, 0); !c.IsWideLead() || c.String() != "世" {
		t.Errorf("lead = %q width %d", c.String(), c.Width)
	}
	if c := fb.At(2, 0); !c.IsContinuation() {
		t.Errorf("continuation width = %d, want 0", c.Width)
	}
}

// Scenario A: a continuation overwritten inside a clip blanks its lead outside it.
func TestScenarioA(t *testing.T) {
	fb := mustNew(t, 4, 1)
	p := mustBegin(t, fb, 2)
	put(t, p, 1, 0, "W", 2)
	if err := p.Push(core.Rect{X: 2, Y: 0, W: 2, H: 1}); err != nil {
		t.Fatal(err)
	}
	put(t, p, 2, 0, "A", 1)

	assertBlank(t, fb, 1, 0)
	if c := fb.At(2, 0); c.String() != "A" || c.Width != 1 {
		t.Errorf("cell(2,0) = %q width %d, want A width 1", c.String(), c.Width)
	}
}

// Scenario B: a lead overwritten inside a clip blanks its continuation outside it.
func TestScenarioB(t *testing.T) {
	fb := mustNew(t, 4, 1)
	p := mustBegin(t, fb, 2)
	put(t, p, 1, 0, "W", 2)
	if err := p.Push(core.Rect{X: 1, Y: 0, W: 1, H: 1}); err != nil {
		t.Fatal(err)
	}
	put(t, p, 1, 0, "B", 1)

	if c := fb.At(1, 0); c.String() != "B" || c.Width != 1 {
		t.Errorf("cell(1,0) = %q width %d, want B width 1", c.String(), c.Width)
	}
	assertBlank(t, fb, 2, 0)
}

func TestOverwriteLeadClearsContinuation(t *testing.T) {
	const cols = 6
	for x := 0; x < cols-1; x++ {
		for _, second := range []struct {
			glyph string
			width int
		}{{"a", 1}, {"界", 2}} {
			fb := mustNew(t, cols, 1)
			p := mustBegin(t, fb, 1)
			put(t, p, x, 0, "世", 2)
			put(t, p, x, 0, second.glyph, second.width)

			if second.width == 1 {
				assertBlank(t, fb, x+1, 0)
			} else if !fb.At(x+1, 0).IsContinuation() {
				t.Errorf("x=%d: wide rewrite should keep a continuation", x)
			}
		}
	}
}

func TestOverwriteContinuationClearsLead(t *testing.T) {
	const cols = 6
	for x := 0; x < cols-1; x++ {
		fb := mustNew(t, cols, 1)
		p := mustBegin(t, fb, 1)
		put(t, p, x, 0, "世", 2)
		put(t, p, x+1, 0, "b", 1)

		assertBlank(t, fb, x, 0)
		if c := fb.At(x+1, 0); c.String() != "b" {
			t.Errorf("x=%d: cell = %q, want b", x, c.String())
		}
	}
}

func TestWideOverlappingWideShiftsPair(t *testing.T) {
	fb := mustNew(t, 5, 1)
	p := mustBegin(t, fb, 1)
	put(t, p, 2, 0, "世", 2)
	put(t, p, 1, 0, "界", 2)

	if c := fb.At(1, 0); !c.IsWideLead() || c.String() != "界" {
		t.Errorf("cell(1,0) = %q", c.String())
	}
	if !fb.At(2, 0).IsContinuation() {
		t.Error("cell(2,0) should be a continuation")
	}
	assertBlank(t, fb, 3, 0)
}

func TestWideLeadWithClippedContinuation(t *testing.T) {
	fb := mustNew(t, 4, 1)
	p := mustBegin(t, fb, 2)
	put(t, p, 2, 0, "x", 1)
	_ = p.Push(core.Rect{X: 0, Y: 0, W: 2, H: 1})
	put(t, p, 1, 0, "世", 2)

	if !fb.At(1, 0).IsWideLead() {
		t.Error("lead should be written")
	}
	if c := fb.At(2, 0); c.String() != "x" {
		t.Errorf("clipped neighbour = %q, want untouched x", c.String())
	}
}

func TestFillRect(t *testing.T) {
	fb := mustNew(t, 4, 2)
	p := mustBegin(t, fb, 2)
	put(t, p, 0, 0, "世", 2)
	_ = p.Push(core.Rect{X: 1, Y: 0, W: 3, H: 2})

	style := core.DefaultStyle().WithBackground(core.ColorRed)
	if err := p.FillRect(core.Rect{X: 0, Y: 0, W: 4, H: 2}, style); err != nil {
		t.Fatal(err)
	}
	assertBlank(t, fb, 0, 0)
	if fb.At(0, 0).Style == style {
		t.Error("cell outside clip should keep its style")
	}
	if fb.At(3, 1).Style != style {
		t.Error("cell inside clip should be filled")
	}
}

func TestDrawText(t *testing.T) {
	fb := mustNew(t, 12, 1)
	p := mustBegin(t, fb, 1)
	p.SetTabWidth(4)

	end, err := p.DrawText(0, 0, "a世\tb\x01c", core.DefaultStyle(), runeMeasurer{})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"a", "世", "", " ", "b", "c"}
	cols := []int{0, 1, 2, 3, 4, 5}
	for i, x := range cols {
		if got := fb.At(x, 0).String(); got != want[i] {
			t.Errorf("cell(%d) = %q, want %q", x, got, want[i])
		}
	}
	if end != 6 {
		t.Errorf("end column = %d, want 6", end)
	}

	if _, err := p.DrawText(0, 0, "x", core.DefaultStyle(), nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("nil measurer error = %v", err)
	}
}
