package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the delay used to coalesce bursts of file writes.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a runtime config file when it changes.
// Each successful reload is delivered on Updates; parse failures go to
// Errors and the last good config stays in effect.
type Watcher struct {
	path  string
	delay time.Duration

	mu      sync.Mutex
	current Runtime
	timer   *time.Timer
	closed  bool

	fsw     *fsnotify.Watcher
	updates chan Runtime
	errors  chan error
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the coalescing delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// NewWatcher watches path, parsing changes on top of base.
// The parent directory is watched so editors that replace the file by
// rename are still observed.
func NewWatcher(path string, base Runtime, opts ...WatcherOption) (*Watcher, error) {
	if _, err := FormatOf(path); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    abs,
		delay:   DefaultDebounce,
		current: base,
		fsw:     fsw,
		updates: make(chan Runtime, 1),
		errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Updates returns the channel of reloaded configs.
func (w *Watcher) Updates() <-chan Runtime {
	return w.updates
}

// Errors returns the channel of reload errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Current returns the last successfully loaded config.
func (w *Watcher) Current() Runtime {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.closeCh)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) processLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	base := w.current
	w.mu.Unlock()

	cfg, err := LoadRuntimeFile(w.path, base)
	if err != nil {
		w.sendError(err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	// Keep only the newest pending update.
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- cfg:
	case <-w.closeCh:
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}
