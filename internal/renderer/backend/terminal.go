package backend

import (
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/dshills/termdiff/internal/renderer/core"
)

// Mode sequences written on Init and reverted on Shutdown.
const (
	seqAltScreenEnter = "\x1b[?1049h"
	seqAltScreenExit  = "\x1b[?1049l"
	seqMouseOn        = "\x1b[?1000h\x1b[?1002h\x1b[?1006h"
	seqMouseOff       = "\x1b[?1006l\x1b[?1002l\x1b[?1000l"
	seqPasteOn        = "\x1b[?2004h"
	seqPasteOff       = "\x1b[?2004l"
	seqFocusOn        = "\x1b[?1004h"
	seqFocusOff       = "\x1b[?1004l"
	seqRestore        = "\x1b[0m\x1b[?25h"
)

// Terminal writes frames to a tty in raw mode.
type Terminal struct {
	mu       sync.Mutex
	in, out  *os.File
	caps     core.Capabilities
	features Features
	state    *term.State
	active   bool
}

// NewTerminal creates a terminal backend. in is put into raw mode; out
// receives frames. Features the capabilities do not report are ignored.
func NewTerminal(in, out *os.File, caps core.Capabilities, features Features) *Terminal {
	caps.OutputWaitWritable = true
	return &Terminal{in: in, out: out, caps: caps, features: features}
}

func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		return nil
	}
	fd := int(t.in.Fd())
	if !term.IsTerminal(fd) {
		return core.Errorf("terminal_init", core.ErrPlatform, "%s is not a terminal", t.in.Name())
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return core.Errorf("terminal_init", core.ErrPlatform, "raw mode: %v", err)
	}
	t.state = state
	t.active = true

	var seq []byte
	if t.features.AltScreen {
		seq = append(seq, seqAltScreenEnter...)
	}
	if t.features.Mouse && t.caps.Mouse {
		seq = append(seq, seqMouseOn...)
	}
	if t.features.BracketedPaste && t.caps.BracketedPaste {
		seq = append(seq, seqPasteOn...)
	}
	if t.features.FocusEvents && t.caps.FocusEvents {
		seq = append(seq, seqFocusOn...)
	}
	return t.writeLocked(seq)
}

func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	seq := []byte(seqRestore)
	if t.features.FocusEvents && t.caps.FocusEvents {
		seq = append(seq, seqFocusOff...)
	}
	if t.features.BracketedPaste && t.caps.BracketedPaste {
		seq = append(seq, seqPasteOff...)
	}
	if t.features.Mouse && t.caps.Mouse {
		seq = append(seq, seqMouseOff...)
	}
	if t.features.AltScreen {
		seq = append(seq, seqAltScreenExit...)
	}
	_ = t.writeLocked(seq)

	if t.state != nil {
		_ = term.Restore(int(t.in.Fd()), t.state)
		t.state = nil
	}
	t.active = false
}

func (t *Terminal) Size() (int, int, error) {
	cols, rows, err := term.GetSize(int(t.out.Fd()))
	if err != nil {
		return 0, 0, core.Errorf("terminal_size", core.ErrPlatform, "%v", err)
	}
	return cols, rows, nil
}

func (t *Terminal) Capabilities() core.Capabilities {
	return t.caps
}

func (t *Terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.writeLocked(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeLocked writes all of p, retrying short writes.
func (t *Terminal) writeLocked(p []byte) error {
	for len(p) > 0 {
		n, err := t.out.Write(p)
		if err != nil {
			return core.Errorf("terminal_write", core.ErrPlatform, "%v", err)
		}
		p = p[n:]
	}
	return nil
}
