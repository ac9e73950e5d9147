package handle

import (
	"time"

	"github.com/dshills/termdiff/internal/config"
	"github.com/dshills/termdiff/internal/engine"
	"github.com/dshills/termdiff/internal/event"
	"github.com/dshills/termdiff/internal/metrics"
	"github.com/dshills/termdiff/internal/renderer/core"
)

// Handle is a scoped owner of one engine. Close destroys it.
type Handle struct {
	r  *Registry
	ex *Executor
	id ID
}

// Open creates an engine owned by ex.
func Open(r *Registry, ex *Executor, cfg config.Create, opts ...engine.Option) (*Handle, error) {
	id, err := r.Create(ex, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Handle{r: r, ex: ex, id: id}, nil
}

// ID returns the engine id, or 0 after Close.
func (h *Handle) ID() ID { return h.id }

// Executor returns the owning executor.
func (h *Handle) Executor() *Executor { return h.ex }

// Waker returns the wake path for this engine.
func (h *Handle) Waker() Waker { return h.r.Waker(h.id) }

func (h *Handle) SubmitPaint(fn engine.PaintFunc) error {
	return h.r.SubmitPaint(h.ex, h.id, fn)
}

func (h *Handle) Present() ([]byte, error) {
	return h.r.Present(h.ex, h.id)
}

func (h *Handle) SetConfig(cfg config.Runtime) error {
	return h.r.SetConfig(h.ex, h.id, cfg)
}

func (h *Handle) Metrics() (metrics.Snapshot, error) {
	return h.r.Metrics(h.ex, h.id)
}

func (h *Handle) Capabilities() (core.Capabilities, error) {
	return h.r.Capabilities(h.ex, h.id)
}

func (h *Handle) PollEvents(timeout time.Duration) ([]event.Event, error) {
	return h.r.PollEvents(h.ex, h.id, timeout)
}

func (h *Handle) Resize(cols, rows int) error {
	return h.r.Resize(h.ex, h.id, cols, rows)
}

// Close destroys the engine. Later calls through the handle fail with
// core.ErrInvalidArgument.
func (h *Handle) Close() {
	if h.id == 0 {
		return
	}
	h.r.Destroy(h.ex, h.id)
	h.id = 0
}
