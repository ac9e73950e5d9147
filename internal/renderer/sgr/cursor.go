package sgr

import (
	"strconv"

	"github.com/dshills/termdiff/internal/renderer/core"
)

// Fixed control sequences.
const (
	Reset             = "\x1b[0m"
	CursorShow        = "\x1b[?25h"
	CursorHide        = "\x1b[?25l"
	SyncBegin         = "\x1b[?2026h"
	SyncEnd           = "\x1b[?2026l"
	ResetScrollRegion = "\x1b[r"
)

// AppendCUP appends an absolute cursor position for 0-based (x, y).
func AppendCUP(dst []byte, x, y int) []byte {
	dst = append(dst, "\x1b["...)
	dst = strconv.AppendInt(dst, int64(y+1), 10)
	dst = append(dst, ';')
	dst = strconv.AppendInt(dst, int64(x+1), 10)
	return append(dst, 'H')
}

// AppendCursorShape appends DECSCUSR for shape and blink.
func AppendCursorShape(dst []byte, shape core.CursorShape, blink bool) []byte {
	var n byte
	switch shape {
	case core.CursorUnderline:
		n = 3
	case core.CursorBar:
		n = 5
	default:
		n = 1
	}
	if !blink {
		n++
	}
	return append(dst, '\x1b', '[', '0'+n, ' ', 'q')
}

// AppendCursorVisible appends DECTCEM show or hide.
func AppendCursorVisible(dst []byte, visible bool) []byte {
	if visible {
		return append(dst, CursorShow...)
	}
	return append(dst, CursorHide...)
}

// AppendScrollRegion appends DECSTBM for the inclusive 0-based rows top..bottom.
func AppendScrollRegion(dst []byte, top, bottom int) []byte {
	dst = append(dst, "\x1b["...)
	dst = strconv.AppendInt(dst, int64(top+1), 10)
	dst = append(dst, ';')
	dst = strconv.AppendInt(dst, int64(bottom+1), 10)
	return append(dst, 'r')
}

// AppendScroll appends SU for positive n (content moves up) or SD for negative n.
func AppendScroll(dst []byte, n int) []byte {
	if n == 0 {
		return dst
	}
	final := byte('S')
	if n < 0 {
		final = 'T'
		n = -n
	}
	dst = append(dst, "\x1b["...)
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, final)
}
