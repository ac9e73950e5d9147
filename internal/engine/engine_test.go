package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/dshills/termdiff/internal/config"
	"github.com/dshills/termdiff/internal/event"
	"github.com/dshills/termdiff/internal/renderer/backend"
	"github.com/dshills/termdiff/internal/renderer/core"
)

func testCaps() core.Capabilities {
	c := core.DefaultCapabilities()
	c.ColorMode = core.ColorModeRGB
	return c
}

func newTestEngine(t *testing.T, cols, rows int, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithSize(cols, rows), WithCapabilities(testCaps())}, opts...)
	e, err := New(config.DefaultCreate(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func present(t *testing.T, e *Engine) string {
	t.Helper()
	out, err := e.Present()
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	return string(out)
}

func TestFirstPresentRedrawsEverything(t *testing.T) {
	e := newTestEngine(t, 4, 2)

	want := "\x1b[1;1H\x1b[0;39;49m    \x1b[2;1H    "
	if got := present(t, e); got != want {
		t.Errorf("first present = %q, want %q", got, want)
	}
	if got := present(t, e); got != "" {
		t.Errorf("idle present = %q, want empty", got)
	}

	m := e.Metrics()
	if m.FrameIndex != 2 {
		t.Errorf("FrameIndex = %d, want 2", m.FrameIndex)
	}
	if m.BytesEmittedTotal != uint64(len(want)) || m.BytesEmittedLastFrame != 0 {
		t.Errorf("bytes total=%d last=%d", m.BytesEmittedTotal, m.BytesEmittedLastFrame)
	}
}

func TestSubmitPaintCommitsOnSuccess(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	present(t, e)

	err := e.SubmitPaint(func(c *Canvas) error {
		_, err := c.Text(0, 0, "hi", core.DefaultStyle())
		return err
	})
	if err != nil {
		t.Fatalf("SubmitPaint: %v", err)
	}
	if got, want := present(t, e), "\x1b[1;1Hhi"; got != want {
		t.Errorf("present = %q, want %q", got, want)
	}
	m := e.Metrics()
	if m.DirtyLinesLastFrame != 1 || m.DirtyColsLastFrame != 2 || m.DamageRectsLastFrame != 1 {
		t.Errorf("damage metrics = %+v", m)
	}
}

func TestSubmitPaintDiscardsOnError(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	present(t, e)

	boom := errors.New("boom")
	err := e.SubmitPaint(func(c *Canvas) error {
		_, _ = c.Text(0, 0, "lost", core.DefaultStyle())
		c.SetCursor(core.CursorState{X: 1, Y: 1, Visible: false})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("SubmitPaint error = %v", err)
	}
	if got := present(t, e); got != "" {
		t.Errorf("present after failed paint = %q, want empty", got)
	}
}

func TestSubmitPaintStartsFromPresentedFrame(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	present(t, e)

	_ = e.SubmitPaint(func(c *Canvas) error {
		_, err := c.Text(0, 0, "ab", core.DefaultStyle())
		return err
	})
	_ = e.SubmitPaint(func(c *Canvas) error {
		return c.PutGrapheme(3, 1, []byte("x"), 1, core.DefaultStyle())
	})
	if got, want := present(t, e), "\x1b[2;4Hx"; got != want {
		t.Errorf("present = %q, want %q", got, want)
	}
}

func TestSubmitPaintNil(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	if err := e.SubmitPaint(nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestCursorReconciled(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	present(t, e)

	_ = e.SubmitPaint(func(c *Canvas) error {
		c.SetCursor(core.CursorState{X: 2, Y: 1, Shape: core.CursorBar, Visible: false})
		return nil
	})
	if got, want := present(t, e), "\x1b[2;3H\x1b[6 q\x1b[?25l"; got != want {
		t.Errorf("present = %q, want %q", got, want)
	}
	if got := present(t, e); got != "" {
		t.Errorf("cursor should persist between frames, got %q", got)
	}
}

func TestPresentByteLimit(t *testing.T) {
	cfg := config.DefaultCreate()
	cfg.Limits.OutMaxBytesPerFrame = 8
	e, err := New(cfg, WithSize(4, 2), WithCapabilities(testCaps()))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, err := e.Present(); !errors.Is(err, core.ErrLimitExceeded) {
		t.Fatalf("error = %v, want ErrLimitExceeded", err)
	}
	m := e.Metrics()
	if m.OutputLimitFailuresTotal != 1 || m.FrameIndex != 0 {
		t.Errorf("metrics = %+v", m)
	}

	rt := e.Config()
	rt.Limits.OutMaxBytesPerFrame = 0
	if err := e.SetConfig(rt); err != nil {
		t.Fatal(err)
	}
	if got := present(t, e); len(got) == 0 {
		t.Error("retry after raising the limit should redraw")
	}
}

func TestResize(t *testing.T) {
	e := newTestEngine(t, 4, 2)
	present(t, e)

	if err := e.Resize(2, 1); err != nil {
		t.Fatal(err)
	}
	if cols, rows := e.Size(); cols != 2 || rows != 1 {
		t.Errorf("Size() = %dx%d", cols, rows)
	}
	evs, err := e.PollEvents(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Kind != event.KindResize || evs[0].Cols != 2 {
		t.Errorf("events = %+v", evs)
	}
	if got, want := present(t, e), "\x1b[1;1H  "; got != want {
		t.Errorf("present after resize = %q, want %q", got, want)
	}
	if err := e.Resize(-1, 2); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("negative resize error = %v", err)
	}
}

func TestVersionNegotiation(t *testing.T) {
	cfg := config.DefaultCreate()
	cfg.Requested.EngineABIMajor = 2
	if _, err := New(cfg, WithSize(1, 1)); !errors.Is(err, core.ErrUnsupported) {
		t.Errorf("major 2 error = %v, want ErrUnsupported", err)
	}

	cfg = config.DefaultCreate()
	cfg.Requested.EngineABIMinor = 0
	e, err := New(cfg, WithSize(1, 1))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	v := e.Metrics().Versions
	if v.EngineABIMajor != 1 || v.EngineABIMinor != 0 || v.DrawlistVersion != 1 || v.EventBatchVersion != 1 {
		t.Errorf("versions = %+v", v)
	}
}

func TestCapabilitiesFollowConfig(t *testing.T) {
	tests := []struct {
		name    string
		probed  core.ColorMode
		request uint8
		want    core.ColorMode
	}{
		{"unknown request keeps probe", core.ColorModeRGB, config.RequestedColorUnknown, core.ColorModeRGB},
		{"request below probe", core.ColorModeRGB, config.RequestedColor256, core.ColorMode256},
		{"request above probe", core.ColorMode16, config.RequestedColorRGB, core.ColorMode16},
		{"unknown probe takes request", core.ColorModeUnknown, config.RequestedColor256, core.ColorMode256},
	}
	for _, tt := range tests {
		caps := testCaps()
		caps.ColorMode = tt.probed
		cfg := config.DefaultCreate()
		cfg.Plat.RequestedColorMode = tt.request
		cfg.Plat.EnableMouse = false
		e, err := New(cfg, WithSize(1, 1), WithCapabilities(caps))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		got := e.Capabilities()
		if got.ColorMode != tt.want {
			t.Errorf("%s: ColorMode = %s, want %s", tt.name, got.ColorMode, tt.want)
		}
		if got.Mouse {
			t.Errorf("%s: mouse should be disabled by config", tt.name)
		}
		e.Close()
	}
}

func TestSetConfig(t *testing.T) {
	e := newTestEngine(t, 10, 1)

	bad := e.Config()
	bad.TabWidth = 0
	if err := e.SetConfig(bad); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("invalid config error = %v", err)
	}
	if e.Config().TabWidth != 4 {
		t.Error("rejected config should not apply")
	}

	deep := e.Config()
	deep.Limits.DLMaxClipDepth = 1 << 28
	if err := e.SetConfig(deep); !errors.Is(err, config.ErrValidationFailed) {
		t.Errorf("oversized clip depth error = %v", err)
	}
	if got := len(e.clip); got != 64 {
		t.Errorf("clip storage = %d, want 64", got)
	}
	if _, err := New(config.Create{Requested: config.SupportedVersion(), Runtime: deep}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("New with oversized clip depth error = %v", err)
	}

	rt := e.Config()
	rt.TabWidth = 8
	if err := e.SetConfig(rt); err != nil {
		t.Fatal(err)
	}
	var end int
	_ = e.SubmitPaint(func(c *Canvas) error {
		var err error
		end, err = c.Text(0, 0, "\tx", core.DefaultStyle())
		return err
	})
	if end != 9 {
		t.Errorf("text end = %d, want 9", end)
	}
	if e.FrameInterval() != time.Second/60 {
		t.Errorf("FrameInterval() = %s", e.FrameInterval())
	}
}

func TestPostUserEventWakesPoll(t *testing.T) {
	e := newTestEngine(t, 1, 1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = e.PostUserEvent(42, []byte("wake"))
	}()

	evs, err := e.PollEvents(5 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Tag != 42 || string(evs[0].Payload) != "wake" {
		t.Errorf("events = %+v", evs)
	}
	if e.Metrics().EventsOutLastPoll != 1 {
		t.Errorf("EventsOutLastPoll = %d", e.Metrics().EventsOutLastPoll)
	}
	if _, err := e.PollEvents(-time.Second); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("negative timeout error = %v", err)
	}
}

func TestDroppedEventsCounted(t *testing.T) {
	e := newTestEngine(t, 1, 1, WithEventCapacity(1))
	_ = e.PostUserEvent(1, nil)
	if err := e.PostUserEvent(2, nil); !errors.Is(err, core.ErrLimitExceeded) {
		t.Errorf("error = %v", err)
	}
	if got := e.Metrics().EventsDroppedTotal; got != 1 {
		t.Errorf("EventsDroppedTotal = %d, want 1", got)
	}

	// A resize on a full queue still resizes and counts the lost event.
	if err := e.Resize(2, 1); err != nil {
		t.Fatal(err)
	}
	if got, want := e.Metrics().EventsDroppedTotal, uint32(e.events.Dropped()); got != 2 || got != want {
		t.Errorf("EventsDroppedTotal = %d, queue dropped %d, want 2", got, want)
	}
}

func TestBackendReceivesFrames(t *testing.T) {
	h := backend.NewHeadless(3, 1, testCaps())
	e, err := New(config.DefaultCreate(), WithBackend(h))
	if err != nil {
		t.Fatal(err)
	}
	if cols, rows := e.Size(); cols != 3 || rows != 1 {
		t.Errorf("Size() = %dx%d, want backend extent", cols, rows)
	}

	out := present(t, e)
	if string(h.Bytes()) != out || h.Writes() != 1 {
		t.Errorf("backend got %q in %d writes, want %q", h.Bytes(), h.Writes(), out)
	}
	present(t, e)
	if h.Writes() != 1 {
		t.Error("empty frames should not be written")
	}

	e.Close()
	if _, err := h.Write([]byte("x")); !errors.Is(err, core.ErrPlatform) {
		t.Error("Close should shut the backend down")
	}
	if _, err := e.Present(); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Present after Close error = %v", err)
	}
}

func TestWriteFailureForcesRedraw(t *testing.T) {
	h := backend.NewHeadless(2, 1, testCaps())
	e, err := New(config.DefaultCreate(), WithBackend(h))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	h.Shutdown()
	if _, err := e.Present(); !errors.Is(err, core.ErrPlatform) {
		t.Fatalf("error = %v, want ErrPlatform", err)
	}

	_ = h.Init()
	if got, want := present(t, e), "\x1b[1;1H\x1b[0;39;49m  "; got != want {
		t.Errorf("present after failure = %q, want %q", got, want)
	}
}

func TestControlGlyphNeverReachesOutput(t *testing.T) {
	e := newTestEngine(t, 2, 1)
	present(t, e)

	err := e.SubmitPaint(func(c *Canvas) error {
		return c.PutGrapheme(0, 0, []byte("\x1b[2J"), 1, core.DefaultStyle())
	})
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("SubmitPaint error = %v, want ErrInvalidArgument", err)
	}
	if got := present(t, e); got != "" {
		t.Errorf("present after rejected glyph = %q, want empty", got)
	}

	if err := e.SubmitPaint(func(c *Canvas) error {
		_, err := c.Text(0, 0, "\x1b]0;t\x07", core.DefaultStyle())
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if got := present(t, e); got != "\x1b[1;1H]0" {
		t.Errorf("present = %q, want %q", got, "\x1b[1;1H]0")
	}
}
