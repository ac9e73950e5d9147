// Package handle exposes engines through numeric ids bound to an executor.
//
// A Registry maps ids to engine slots. Calls are counted per slot so that
// Destroy can remove an engine from the registry, wait for in-flight calls
// to drain and only then free it.
package handle

import (
	"math"
	"sync"
	"time"

	"github.com/dshills/termdiff/internal/config"
	"github.com/dshills/termdiff/internal/engine"
	"github.com/dshills/termdiff/internal/event"
	"github.com/dshills/termdiff/internal/logging"
	"github.com/dshills/termdiff/internal/metrics"
	"github.com/dshills/termdiff/internal/renderer/core"
)

// ID identifies an engine in a registry. Zero is never a valid id.
type ID uint32

// State is the lifecycle state of an engine slot.
type State uint8

const (
	StateActive State = iota
	StateDestroying
	StateFreed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDestroying:
		return "destroying"
	case StateFreed:
		return "freed"
	default:
		return "unknown"
	}
}

type slot struct {
	eng   *engine.Engine
	owner *Executor

	mu     sync.Mutex
	drain  *sync.Cond
	active int
	state  State
}

// Registry owns a set of engines.
type Registry struct {
	mu     sync.Mutex
	slots  map[ID]*slot
	nextID uint32

	engineOpts []engine.Option
	log        *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger. Engines inherit it.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithNextID sets the next id to allocate.
func WithNextID(id uint32) Option {
	return func(r *Registry) { r.nextID = id }
}

// WithEngineOptions sets options applied to every engine created.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(r *Registry) { r.engineOpts = append(r.engineOpts, opts...) }
}

// NewRegistry creates an empty registry. Ids start at 1.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		slots:  make(map[ID]*slot),
		nextID: 1,
		log:    logging.NullLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// allocID hands out ids monotonically. After the last id the counter parks
// at zero and every later allocation fails. Caller holds r.mu.
func (r *Registry) allocID() (ID, error) {
	cur := r.nextID
	if cur == 0 {
		return 0, core.Errorf("engine_create", core.ErrLimitExceeded, "engine ids exhausted")
	}
	if cur == math.MaxUint32 {
		r.nextID = 0
	} else {
		r.nextID = cur + 1
	}
	return ID(cur), nil
}

// Create builds an engine bound to ex and returns its id.
func (r *Registry) Create(ex *Executor, cfg config.Create, opts ...engine.Option) (ID, error) {
	if ex == nil {
		return 0, core.Errorf("engine_create", core.ErrInvalidArgument, "nil executor")
	}

	all := make([]engine.Option, 0, len(r.engineOpts)+len(opts)+1)
	all = append(all, engine.WithLogger(r.log))
	all = append(all, r.engineOpts...)
	all = append(all, opts...)
	eng, err := engine.New(cfg, all...)
	if err != nil {
		return 0, err
	}

	s := &slot{eng: eng, owner: ex}
	s.drain = sync.NewCond(&s.mu)

	r.mu.Lock()
	id, err := r.allocID()
	if err == nil {
		r.slots[id] = s
	}
	r.mu.Unlock()
	if err != nil {
		eng.Close()
		return 0, err
	}

	r.log.Info("engine created", "id", uint32(id), "executor", ex.String())
	return id, nil
}

// CreateJSON is Create with a strict JSON creation config.
func (r *Registry) CreateJSON(ex *Executor, data []byte, opts ...engine.Option) (ID, error) {
	cfg, err := config.ParseCreateJSON(data)
	if err != nil {
		return 0, err
	}
	return r.Create(ex, cfg, opts...)
}

// Destroy removes the engine, waits for in-flight calls and frees it.
// Unknown ids and calls from a foreign executor are ignored.
func (r *Registry) Destroy(ex *Executor, id ID) {
	r.mu.Lock()
	s, ok := r.slots[id]
	if !ok || s.owner != ex {
		r.mu.Unlock()
		r.log.Debug("destroy ignored", "id", uint32(id), "known", ok, "executor", ex.String())
		return
	}
	delete(r.slots, id)
	r.mu.Unlock()

	s.mu.Lock()
	s.state = StateDestroying
	for s.active > 0 {
		s.drain.Wait()
	}
	s.eng.Close()
	s.state = StateFreed
	s.mu.Unlock()

	r.log.Info("engine destroyed", "id", uint32(id))
}

// acquire looks up id and counts a call against it. The returned release
// must be called exactly once.
func (r *Registry) acquire(op string, id ID) (*slot, func(), error) {
	if id == 0 {
		return nil, nil, core.Errorf(op, core.ErrInvalidArgument, "engine id 0")
	}
	r.mu.Lock()
	s, ok := r.slots[id]
	if ok {
		s.mu.Lock()
		s.active++
		s.mu.Unlock()
	}
	r.mu.Unlock()
	if !ok {
		return nil, nil, core.Errorf(op, core.ErrInvalidArgument, "unknown engine id %d", id)
	}

	release := func() {
		s.mu.Lock()
		s.active--
		if s.active == 0 {
			s.drain.Broadcast()
		}
		s.mu.Unlock()
	}
	return s, release, nil
}

// call runs fn against the engine when ex owns it.
func (r *Registry) call(op string, ex *Executor, id ID, fn func(*engine.Engine) error) error {
	s, release, err := r.acquire(op, id)
	if err != nil {
		return err
	}
	defer release()

	if s.owner != ex {
		return core.Errorf(op, core.ErrInvalidArgument, "engine %d not owned by %s", id, ex)
	}
	return fn(s.eng)
}

// SubmitPaint paints the pending frame of engine id.
func (r *Registry) SubmitPaint(ex *Executor, id ID, fn engine.PaintFunc) error {
	return r.call("submit_paint", ex, id, func(e *engine.Engine) error {
		return e.SubmitPaint(fn)
	})
}

// Present renders the pending frame and returns the emitted bytes.
func (r *Registry) Present(ex *Executor, id ID) ([]byte, error) {
	var out []byte
	err := r.call("present", ex, id, func(e *engine.Engine) error {
		var err error
		out, err = e.Present()
		return err
	})
	return out, err
}

// SetConfig replaces the runtime config of engine id.
func (r *Registry) SetConfig(ex *Executor, id ID, cfg config.Runtime) error {
	return r.call("set_config", ex, id, func(e *engine.Engine) error {
		return e.SetConfig(cfg)
	})
}

// SetConfigJSON applies a strict JSON runtime config. Keys not present
// take their default values, not the engine's current ones.
func (r *Registry) SetConfigJSON(ex *Executor, id ID, data []byte) error {
	if len(data) == 0 {
		return core.Errorf("set_config", core.ErrInvalidArgument, "empty config")
	}
	cfg, err := config.ParseRuntimeJSON(data, config.DefaultRuntime())
	if err != nil {
		return err
	}
	return r.SetConfig(ex, id, cfg)
}

// Metrics returns a metrics snapshot of engine id.
func (r *Registry) Metrics(ex *Executor, id ID) (metrics.Snapshot, error) {
	var snap metrics.Snapshot
	err := r.call("get_metrics", ex, id, func(e *engine.Engine) error {
		snap = e.Metrics()
		return nil
	})
	return snap, err
}

// Capabilities returns the effective capabilities of engine id.
func (r *Registry) Capabilities(ex *Executor, id ID) (core.Capabilities, error) {
	var caps core.Capabilities
	err := r.call("get_caps", ex, id, func(e *engine.Engine) error {
		caps = e.Capabilities()
		return nil
	})
	return caps, err
}

// PollEvents waits up to timeout for events on engine id.
func (r *Registry) PollEvents(ex *Executor, id ID, timeout time.Duration) ([]event.Event, error) {
	var evs []event.Event
	err := r.call("poll_events", ex, id, func(e *engine.Engine) error {
		var err error
		evs, err = e.PollEvents(timeout)
		return err
	})
	return evs, err
}

// Resize changes the framebuffer extent of engine id.
func (r *Registry) Resize(ex *Executor, id ID, cols, rows int) error {
	return r.call("resize", ex, id, func(e *engine.Engine) error {
		return e.Resize(cols, rows)
	})
}

// Len returns the number of live engines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Waker returns the cross-goroutine wake path for engine id.
func (r *Registry) Waker(id ID) Waker {
	return Waker{r: r, id: id}
}

// Waker posts user events to an engine from any goroutine.
type Waker struct {
	r  *Registry
	id ID
}

// PostUserEvent queues a user event on the engine and wakes its poller.
// It fails with core.ErrInvalidArgument once the engine is destroyed.
func (w Waker) PostUserEvent(tag uint32, payload []byte) error {
	s, release, err := w.r.acquire("post_user_event", w.id)
	if err != nil {
		return err
	}
	defer release()
	return s.eng.PostUserEvent(tag, payload)
}
