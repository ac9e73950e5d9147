// Package script drives the clip painter from Lua.
//
// A script defines a global function frame(n) that is called once per
// submitted frame. Drawing happens through the global table td:
//
//	td.size()                         -> cols, rows
//	td.put(x, y, glyph, width, style)
//	td.text(x, y, s, style)           -> column after the text
//	td.fill(x, y, w, h, style)
//	td.clear(style)
//	td.push_clip(x, y, w, h)
//	td.pop_clip()
//	td.cursor(x, y, {shape=, visible=, blink=})
//
// Styles are tables: {fg="#rrggbb", bg=0x102030, bold=true, ...}. Omitted
// colors use the terminal default.
package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/termdiff/internal/engine"
	"github.com/dshills/termdiff/internal/logging"
	"github.com/dshills/termdiff/internal/renderer/core"
)

// DefaultFrameTimeout bounds a single frame callback.
const DefaultFrameTimeout = time.Second

// FrameFunc is the global the script must define.
const FrameFunc = "frame"

// Errors returned by scripts.
var (
	ErrScriptClosed = errors.New("script closed")
	ErrNoFrameFunc  = errors.New("script does not define frame(n)")
)

// Script is a loaded paint script. It is not safe for concurrent use.
type Script struct {
	mu      sync.Mutex
	L       *lua.LState
	name    string
	timeout time.Duration
	log     *logging.Logger
	closed  bool

	// canvas is only set while frame(n) runs.
	canvas *engine.Canvas
	// failed keeps the Go error behind a raised Lua error.
	failed error
}

// Option configures a Script.
type Option func(*Script)

// WithFrameTimeout sets the per-frame execution limit.
func WithFrameTimeout(d time.Duration) Option {
	return func(s *Script) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used by td.log.
func WithLogger(l *logging.Logger) Option {
	return func(s *Script) { s.log = l }
}

// Load compiles and runs source, which must define frame(n).
func Load(name, source string, opts ...Option) (*Script, error) {
	s := &Script{name: name, timeout: DefaultFrameTimeout, log: logging.NullLogger}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	s.L = L
	s.install()

	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	if fn := L.GetGlobal(FrameFunc); fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("loading %s: %w", name, ErrNoFrameFunc)
	}
	return s, nil
}

// openSafeLibraries opens the libraries a paint script may use. io, os,
// debug and package are left out and the file loaders are removed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Paint returns a paint function that calls frame(n).
func (s *Script) Paint(n int) engine.PaintFunc {
	return func(c *engine.Canvas) error {
		return s.runFrame(c, n)
	}
}

func (s *Script) runFrame(c *engine.Canvas, n int) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrScriptClosed
	}

	s.canvas, s.failed = c, nil
	defer func() { s.canvas = nil }()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: lua panic: %v", s.name, r)
		}
	}()

	callErr := s.L.CallByParam(lua.P{
		Fn:      s.L.GetGlobal(FrameFunc),
		NRet:    0,
		Protect: true,
	}, lua.LNumber(n))
	if callErr == nil {
		return nil
	}
	if s.failed != nil {
		return fmt.Errorf("%s: frame %d: %w", s.name, n, s.failed)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: frame %d: %w", s.name, n, ctx.Err())
	}
	return fmt.Errorf("%s: frame %d: %w", s.name, n, callErr)
}

// Close releases the Lua state.
func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}

// fail records err and raises it in Lua, unwinding the frame.
func (s *Script) fail(L *lua.LState, err error) int {
	s.failed = err
	L.RaiseError("%v", err)
	return 0
}

func (s *Script) active(L *lua.LState) *engine.Canvas {
	if s.canvas == nil {
		s.fail(L, core.Errorf("script", core.ErrInvalidArgument, "drawing outside frame()"))
	}
	return s.canvas
}
