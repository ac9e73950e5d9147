package backend

import (
	"os"
	"strings"

	"github.com/gdamore/tcell/v2/terminfo"
	// Registers the terminal descriptions LookupTerminfo searches.
	_ "github.com/gdamore/tcell/v2/terminfo/extended"

	"github.com/dshills/termdiff/internal/renderer/core"
)

// Prober derives terminal capabilities from the environment and terminfo.
type Prober struct {
	// Getenv reads environment variables. Defaults to os.Getenv.
	Getenv func(string) string

	// Lookup finds a terminfo entry. Defaults to terminfo.LookupTerminfo.
	Lookup func(name string) (*terminfo.Terminfo, error)
}

// NewProber returns a prober reading the process environment.
func NewProber() Prober {
	return Prober{Getenv: os.Getenv, Lookup: terminfo.LookupTerminfo}
}

// modernTerms lists TERM prefixes known to implement the xterm extensions
// beyond what terminfo describes (scroll regions, DECSCUSR, focus, paste).
var modernTerms = []string{"xterm", "kitty", "alacritty", "foot", "wezterm", "ghostty", "tmux", "screen", "rxvt", "vte", "st-"}

// syncTerms lists terminals known to honour synchronized updates (DEC 2026).
var syncTerms = []string{"kitty", "alacritty", "foot", "wezterm", "ghostty", "contour"}

var syncPrograms = []string{"WezTerm", "iTerm.app", "ghostty", "kitty", "vscode"}

// Probe returns the capabilities of the terminal named by $TERM.
// An empty or "dumb" TERM, or one with no terminfo entry, is ErrPlatform.
func (p Prober) Probe() (core.Capabilities, error) {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lookup := p.Lookup
	if lookup == nil {
		lookup = terminfo.LookupTerminfo
	}

	name := getenv("TERM")
	if name == "" || name == "dumb" {
		return core.Capabilities{}, core.Errorf("probe", core.ErrPlatform, "TERM %q is not addressable", name)
	}
	ti, err := lookup(name)
	if err != nil {
		return core.Capabilities{}, core.Errorf("probe", core.ErrPlatform, "terminfo %s: %v", name, err)
	}

	var caps core.Capabilities

	switch ct := getenv("COLORTERM"); {
	case ct == "truecolor" || ct == "24bit" || ct == "24-bit" || ti.TrueColor:
		caps.ColorMode = core.ColorModeRGB
	case ti.Colors >= 256:
		caps.ColorMode = core.ColorMode256
	case ti.Colors >= 8:
		caps.ColorMode = core.ColorMode16
	default:
		caps.ColorMode = core.ColorModeUnknown
	}

	attrs := []struct {
		seq  string
		attr core.Attribute
	}{
		{ti.Bold, core.AttrBold},
		{ti.Dim, core.AttrDim},
		{ti.Italic, core.AttrItalic},
		{ti.Underline, core.AttrUnderline},
		{ti.Blink, core.AttrBlink},
		{ti.Reverse, core.AttrReverse},
		{ti.StrikeThrough, core.AttrStrikethrough},
	}
	for _, a := range attrs {
		if a.seq != "" {
			caps.SGRAttrsSupported |= a.attr
		}
	}

	modern := ti.XTermLike || hasAnyPrefix(name, modernTerms)
	caps.Mouse = ti.Mouse != ""
	caps.BracketedPaste = modern
	caps.FocusEvents = modern
	caps.OSC52 = modern
	caps.ScrollRegion = ti.SetCursor != "" && modern
	caps.CursorShape = modern
	caps.SyncUpdate = hasAnyPrefix(name, syncTerms) || contains(syncPrograms, getenv("TERM_PROGRAM"))

	return caps, nil
}

// Probe runs NewProber().Probe().
func Probe() (core.Capabilities, error) {
	return NewProber().Probe()
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
