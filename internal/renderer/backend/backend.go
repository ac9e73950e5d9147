// Package backend provides the platform layer rendered frames are written
// to, and the capability probe that describes the attached terminal.
package backend

import (
	"bytes"
	"io"
	"sync"

	"github.com/dshills/termdiff/internal/renderer/core"
)

// Backend is an output sink for rendered frames.
type Backend interface {
	io.Writer

	// Init prepares the device for rendering.
	Init() error

	// Shutdown restores the device. It is safe to call more than once.
	Shutdown()

	// Size returns the current extent in cells.
	Size() (cols, rows int, err error)

	// Capabilities returns what the device supports.
	Capabilities() core.Capabilities
}

// Features selects optional terminal modes enabled on Init.
type Features struct {
	Mouse          bool
	BracketedPaste bool
	FocusEvents    bool
	AltScreen      bool
}

// Headless is an in-memory backend with a fixed extent.
// It is used for tests, dry runs and hosts that transport bytes themselves.
type Headless struct {
	mu         sync.Mutex
	cols, rows int
	caps       core.Capabilities
	buf        bytes.Buffer
	writes     int
	closed     bool
}

// NewHeadless creates a headless backend.
func NewHeadless(cols, rows int, caps core.Capabilities) *Headless {
	return &Headless{cols: cols, rows: rows, caps: caps}
}

func (h *Headless) Init() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = false
	return nil
}

func (h *Headless) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

func (h *Headless) Size() (int, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cols, h.rows, nil
}

// SetSize changes the reported extent.
func (h *Headless) SetSize(cols, rows int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cols, h.rows = cols, rows
}

func (h *Headless) Capabilities() core.Capabilities {
	return h.caps
}

func (h *Headless) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, core.Errorf("backend_write", core.ErrPlatform, "backend shut down")
	}
	h.writes++
	return h.buf.Write(p)
}

// Bytes returns a copy of everything written so far.
func (h *Headless) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return bytes.Clone(h.buf.Bytes())
}

// Writes returns the number of Write calls.
func (h *Headless) Writes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes
}

// Reset discards buffered output.
func (h *Headless) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf.Reset()
	h.writes = 0
}
