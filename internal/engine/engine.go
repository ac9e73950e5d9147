package engine

import (
	"errors"
	"time"

	"github.com/dshills/termdiff/internal/config"
	"github.com/dshills/termdiff/internal/event"
	"github.com/dshills/termdiff/internal/logging"
	"github.com/dshills/termdiff/internal/metrics"
	"github.com/dshills/termdiff/internal/renderer/backend"
	"github.com/dshills/termdiff/internal/renderer/core"
	"github.com/dshills/termdiff/internal/renderer/diff"
	"github.com/dshills/termdiff/internal/renderer/framebuffer"
	"github.com/dshills/termdiff/internal/unicode"
)

// DefaultCols and DefaultRows are used when neither an explicit size nor
// a backend extent is available.
const (
	DefaultCols = 80
	DefaultRows = 24
)

// Engine is a single rendering instance.
type Engine struct {
	cfg      config.Runtime
	versions config.Version
	probed   core.Capabilities
	caps     core.Capabilities
	sink     backend.Backend
	log      *logging.Logger
	now      func() time.Time

	// prev is what the terminal shows, next is the committed pending
	// frame and stage receives paints until they succeed.
	prev, next, stage *framebuffer.Framebuffer
	clip              []core.Rect
	fullRedraw        bool

	state   core.TerminalState
	cursor  core.CursorState
	pending core.CursorState

	renderer *diff.Renderer
	width    *unicode.Service
	events   *event.Queue
	metrics  *metrics.Metrics
	closed   bool
}

type options struct {
	backend   backend.Backend
	caps      *core.Capabilities
	cols      int
	rows      int
	logger    *logging.Logger
	now       func() time.Time
	strategy  diff.ScrollStrategy
	eventsCap int
}

// Option configures an Engine.
type Option func(*options)

// WithBackend sets the output sink presented frames are written to.
// The engine initializes it on creation and shuts it down on Close.
func WithBackend(b backend.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithCapabilities overrides the terminal capabilities.
func WithCapabilities(c core.Capabilities) Option {
	return func(o *options) { o.caps = &c }
}

// WithSize sets the initial framebuffer extent.
func WithSize(cols, rows int) Option {
	return func(o *options) { o.cols, o.rows = cols, rows }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the time source used for metrics.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithScrollStrategy replaces the scroll detection heuristic.
func WithScrollStrategy(s diff.ScrollStrategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithEventCapacity sets the event queue size.
func WithEventCapacity(n int) Option {
	return func(o *options) { o.eventsCap = n }
}

// New creates an engine from a creation config.
//
// The requested versions are negotiated first: a different ABI major or
// wire format version fails with core.ErrUnsupported. Capabilities come
// from WithCapabilities, then the backend, then a conservative default.
func New(cfg config.Create, opts ...Option) (*Engine, error) {
	o := options{logger: logging.NullLogger, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	versions, err := cfg.Requested.Negotiate()
	if err != nil {
		return nil, err
	}
	if err := cfg.Runtime.Validate(); err != nil {
		return nil, err
	}

	probed := core.DefaultCapabilities()
	switch {
	case o.caps != nil:
		probed = *o.caps
	case o.backend != nil:
		probed = o.backend.Capabilities()
	}

	cols, rows := o.cols, o.rows
	if cols == 0 && rows == 0 {
		cols, rows = DefaultCols, DefaultRows
		if o.backend != nil {
			c, r, err := o.backend.Size()
			if err != nil {
				return nil, core.Errorf("engine_create", core.ErrPlatform, "size: %v", err)
			}
			cols, rows = c, r
		}
	}
	if cols < 0 || rows < 0 {
		return nil, core.Errorf("engine_create", core.ErrInvalidArgument, "extent %dx%d", cols, rows)
	}

	if o.backend != nil {
		if err := o.backend.Init(); err != nil {
			return nil, core.Errorf("engine_create", core.ErrPlatform, "backend init: %v", err)
		}
	}

	e := &Engine{
		versions:   versions,
		probed:     probed,
		sink:       o.backend,
		log:        o.logger.WithComponent("engine"),
		now:        o.now,
		fullRedraw: true,
		state: core.TerminalState{
			CursorVisible: true,
			CursorShape:   core.CursorBlock,
		},
		cursor: core.CursorState{X: -1, Y: -1, Shape: core.CursorBlock, Visible: true},
		events: event.NewQueue(o.eventsCap),
		metrics: metrics.New(metrics.Versions{
			EngineABIMajor:    versions.EngineABIMajor,
			EngineABIMinor:    versions.EngineABIMinor,
			EngineABIPatch:    versions.EngineABIPatch,
			DrawlistVersion:   versions.DrawlistVersion,
			EventBatchVersion: versions.EventBatchVersion,
		}),
	}
	e.pending = e.cursor
	e.metrics.SetDroppedSource(e.events.Dropped)
	if err := e.allocFrames(cols, rows); err != nil {
		if e.sink != nil {
			e.sink.Shutdown()
		}
		return nil, err
	}
	e.renderer = diff.NewRenderer(diff.Options{Strategy: o.strategy})
	e.applyRuntime(cfg.Runtime)

	e.log.Debug("engine created",
		"cols", cols, "rows", rows,
		"abi", versions.EngineABIMajor, "minor", versions.EngineABIMinor,
		"color", e.caps.ColorMode.String())
	return e, nil
}

func (e *Engine) allocFrames(cols, rows int) error {
	for _, fb := range []*framebuffer.Framebuffer{e.prev, e.next, e.stage} {
		if fb != nil {
			fb.Release()
		}
	}
	var err error
	if e.prev, err = framebuffer.New(cols, rows); err != nil {
		return err
	}
	if e.next, err = framebuffer.New(cols, rows); err != nil {
		return err
	}
	e.stage, err = framebuffer.New(cols, rows)
	return err
}

// applyRuntime installs a validated runtime config.
func (e *Engine) applyRuntime(rt config.Runtime) {
	e.cfg = rt
	e.caps = effectiveCaps(e.probed, rt.Plat)

	depth := int(rt.Limits.DLMaxClipDepth)
	if cap(e.clip) < depth {
		e.clip = make([]core.Rect, depth)
	}
	e.clip = e.clip[:depth]

	if e.width == nil || e.width.Policy() != unicode.WidthPolicy(rt.WidthPolicy) {
		e.width = unicode.New(unicode.WidthPolicy(rt.WidthPolicy))
	}

	opts := e.renderer.Options()
	opts.Caps = e.caps
	opts.Limits = diff.Limits{
		MaxDamageRects: int(rt.Limits.DiffMaxDamageRects),
		MaxBytes:       int(rt.Limits.OutMaxBytesPerFrame),
	}
	opts.ScrollOptimizations = rt.EnableScrollOptimizations
	e.renderer.SetOptions(opts)
}

// effectiveCaps narrows probed capabilities by what the config requests.
// A requested color mode never exceeds the probed one.
func effectiveCaps(probed core.Capabilities, plat config.Platform) core.Capabilities {
	c := probed
	if req := plat.ColorMode(); req != core.ColorModeUnknown {
		if probed.ColorMode == core.ColorModeUnknown || req < probed.ColorMode {
			c.ColorMode = req
		}
	}
	c.Mouse = probed.Mouse && plat.EnableMouse
	c.BracketedPaste = probed.BracketedPaste && plat.EnableBracketedPaste
	c.FocusEvents = probed.FocusEvents && plat.EnableFocusEvents
	c.OSC52 = probed.OSC52 && plat.EnableOSC52
	return c
}

// PaintFunc draws a frame onto a canvas. Returning an error discards
// everything painted in the call.
type PaintFunc func(c *Canvas) error

// SubmitPaint paints a new pending frame.
//
// The canvas starts as a copy of the presented frame. The result replaces
// the pending frame only if fn succeeds; otherwise the pending frame and
// cursor are left as they were.
func (e *Engine) SubmitPaint(fn PaintFunc) error {
	if e.closed {
		return core.Errorf("submit_paint", core.ErrInvalidArgument, "engine closed")
	}
	if fn == nil {
		return core.Errorf("submit_paint", core.ErrInvalidArgument, "nil paint func")
	}

	start := e.now()
	if err := e.stage.CopyFrom(e.prev); err != nil {
		return err
	}
	p, err := framebuffer.Begin(e.stage, e.clip)
	if err != nil {
		return err
	}
	p.SetTabWidth(int(e.cfg.TabWidth))

	c := &Canvas{Painter: p, width: e.width, cursor: e.cursor}
	if err := fn(c); err != nil {
		e.log.Debug("paint discarded", "err", err)
		return err
	}

	e.next, e.stage = e.stage, e.next
	e.pending = c.cursor
	e.metrics.RecordPaint(e.now().Sub(start))
	return nil
}

// Present diffs the pending frame against the presented one, writes the
// bytes to the backend and returns them. The returned slice is owned by
// the caller.
//
// On failure nothing is committed: the presented frame and terminal state
// are unchanged, so a later Present retries the same transition.
func (e *Engine) Present() ([]byte, error) {
	if e.closed {
		return nil, core.Errorf("present", core.ErrInvalidArgument, "engine closed")
	}

	prev := e.prev
	if e.fullRedraw {
		prev = nil
	}

	diffStart := e.now()
	res, err := e.renderer.Render(prev, e.next, e.state, e.pending)
	diffTime := e.now().Sub(diffStart)
	if err != nil {
		if errors.Is(err, core.ErrLimitExceeded) {
			e.metrics.RecordLimitFailure()
		}
		e.log.Warn("present failed", "err", err, "bytes", res.Stats.BytesEmitted)
		return nil, err
	}
	out := append([]byte(nil), res.Bytes...)

	var writeTime time.Duration
	if e.sink != nil && len(out) > 0 {
		writeStart := e.now()
		if _, err := e.sink.Write(out); err != nil {
			// Part of the frame may have reached the terminal.
			e.state.PosKnown = false
			e.state.StyleKnown = false
			e.fullRedraw = true
			return nil, core.Errorf("present", core.ErrPlatform, "write: %v", err)
		}
		writeTime = e.now().Sub(writeStart)
	}

	e.state = res.State
	e.cursor = e.pending
	if err := e.prev.CopyFrom(e.next); err != nil {
		return nil, err
	}
	if e.fullRedraw {
		e.log.Debug("full redraw presented", "bytes", len(out))
	}
	e.fullRedraw = false

	st := res.Stats
	e.metrics.RecordFrame(metrics.Frame{
		BytesEmitted:       len(out),
		DirtyLines:         st.DirtyLines,
		DirtyCells:         st.DirtyCells,
		DamageRects:        st.DamageRects,
		DamageCells:        st.DamageCells,
		FullFrame:          st.FullFrame,
		ScrollHit:          st.ScrollHit,
		CollisionGuardHits: st.CollisionGuardHits,
		Diff:               diffTime,
		Write:              writeTime,
	}, e.now())
	return out, nil
}

// Resize reallocates the framebuffers. The next Present redraws every cell
// and a resize event is queued.
func (e *Engine) Resize(cols, rows int) error {
	if e.closed {
		return core.Errorf("resize", core.ErrInvalidArgument, "engine closed")
	}
	if cols < 0 || rows < 0 {
		return core.Errorf("resize", core.ErrInvalidArgument, "extent %dx%d", cols, rows)
	}
	if err := e.allocFrames(cols, rows); err != nil {
		return err
	}
	e.fullRedraw = true
	e.state.PosKnown = false
	if err := e.events.PostResize(cols, rows); err != nil {
		e.log.Debug("resize event dropped", "err", err)
	}
	e.log.Debug("engine resized", "cols", cols, "rows", rows)
	return nil
}

// Size returns the framebuffer extent.
func (e *Engine) Size() (cols, rows int) {
	return e.next.Size()
}

// SetConfig replaces the runtime configuration.
func (e *Engine) SetConfig(rt config.Runtime) error {
	if e.closed {
		return core.Errorf("set_config", core.ErrInvalidArgument, "engine closed")
	}
	if err := rt.Validate(); err != nil {
		return err
	}
	e.applyRuntime(rt)
	e.log.Info("config updated",
		"tabWidth", rt.TabWidth, "widthPolicy", unicode.WidthPolicy(rt.WidthPolicy).String(),
		"scrollOptimizations", rt.EnableScrollOptimizations)
	return nil
}

// Config returns the active runtime configuration.
func (e *Engine) Config() config.Runtime {
	return e.cfg
}

// FrameInterval is the target time between presents.
func (e *Engine) FrameInterval() time.Duration {
	return time.Second / time.Duration(e.cfg.TargetFPS)
}

// Metrics returns a snapshot of the engine metrics.
func (e *Engine) Metrics() metrics.Snapshot {
	return e.metrics.Snapshot()
}

// Capabilities returns the effective terminal capabilities.
func (e *Engine) Capabilities() core.Capabilities {
	return e.caps
}

// Versions returns the negotiated versions.
func (e *Engine) Versions() config.Version {
	return e.versions
}

// PollEvents waits up to timeout for queued events.
func (e *Engine) PollEvents(timeout time.Duration) ([]event.Event, error) {
	evs, err := e.events.Poll(nil, timeout, 0)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordPoll(len(evs))
	return evs, nil
}

// PostUserEvent queues a user event and wakes a blocked PollEvents.
// It is safe to call from any goroutine.
func (e *Engine) PostUserEvent(tag uint32, payload []byte) error {
	return e.events.PostUser(tag, payload)
}

// Close releases the framebuffers and shuts the backend down.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.events.Close()
	for _, fb := range []*framebuffer.Framebuffer{e.prev, e.next, e.stage} {
		fb.Release()
	}
	if e.sink != nil {
		e.sink.Shutdown()
	}
	e.log.Debug("engine closed")
}
