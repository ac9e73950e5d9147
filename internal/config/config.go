// Package config defines engine configuration and its strict parsers.
//
// Configuration arrives as host JSON (camelCase or snake_case keys) or as
// TOML, YAML or JSON files. Every source goes through the same validator:
// unknown keys are rejected, numbers must be integral u32 values and
// booleans may be true, false, 0 or 1.
package config

import (
	"fmt"

	"github.com/dshills/termdiff/internal/renderer/core"
	"github.com/dshills/termdiff/internal/unicode"
)

// Supported engine ABI and wire format versions.
const (
	EngineABIMajor    uint32 = 1
	EngineABIMinor    uint32 = 2
	EngineABIPatch    uint32 = 0
	DrawlistVersion   uint32 = 1
	EventBatchVersion uint32 = 1
)

// MaxClipDepth bounds Limits.DLMaxClipDepth. The clip stack is allocated
// up front at the configured depth.
const MaxClipDepth = 4096

// Requested color modes. RequestedColorUnknown defers to the probed mode.
const (
	RequestedColorUnknown uint8 = 0
	RequestedColor16      uint8 = 1
	RequestedColor256     uint8 = 2
	RequestedColorRGB     uint8 = 3
)

// Limits bounds per-engine resource usage.
type Limits struct {
	ArenaMaxTotalBytes   uint32
	ArenaInitialBytes    uint32
	OutMaxBytesPerFrame  uint32
	DLMaxTotalBytes      uint32
	DLMaxCmds            uint32
	DLMaxStrings         uint32
	DLMaxBlobs           uint32
	DLMaxClipDepth       uint32
	DLMaxTextRunSegments uint32
	DiffMaxDamageRects   uint32
}

// Platform holds terminal feature requests.
type Platform struct {
	RequestedColorMode   uint8
	EnableMouse          bool
	EnableBracketedPaste bool
	EnableFocusEvents    bool
	EnableOSC52          bool
}

// ColorMode maps the requested mode to a core color mode.
func (p Platform) ColorMode() core.ColorMode {
	switch p.RequestedColorMode {
	case RequestedColor16:
		return core.ColorMode16
	case RequestedColor256:
		return core.ColorMode256
	case RequestedColorRGB:
		return core.ColorModeRGB
	default:
		return core.ColorModeUnknown
	}
}

// Runtime is the configuration that may change after creation.
type Runtime struct {
	Limits Limits
	Plat   Platform

	TabWidth    uint32
	WidthPolicy uint32
	TargetFPS   uint32

	EnableScrollOptimizations bool
	EnableDebugOverlay        bool
	EnableReplayRecording     bool
	WaitForOutputDrain        bool
}

// Version is a requested ABI and wire format version set.
type Version struct {
	EngineABIMajor    uint32
	EngineABIMinor    uint32
	EngineABIPatch    uint32
	DrawlistVersion   uint32
	EventBatchVersion uint32
}

// Create is the configuration accepted when an engine is created.
type Create struct {
	Requested Version
	Runtime
}

// DefaultLimits returns the pinned default limits.
func DefaultLimits() Limits {
	return Limits{
		ArenaMaxTotalBytes:   4 * 1024 * 1024,
		ArenaInitialBytes:    64 * 1024,
		OutMaxBytesPerFrame:  256 * 1024,
		DLMaxTotalBytes:      256 * 1024,
		DLMaxCmds:            4096,
		DLMaxStrings:         4096,
		DLMaxBlobs:           4096,
		DLMaxClipDepth:       64,
		DLMaxTextRunSegments: 4096,
		DiffMaxDamageRects:   4096,
	}
}

// DefaultRuntime returns the pinned default runtime configuration.
func DefaultRuntime() Runtime {
	return Runtime{
		Limits: DefaultLimits(),
		Plat: Platform{
			RequestedColorMode:   RequestedColorUnknown,
			EnableMouse:          true,
			EnableBracketedPaste: true,
			EnableFocusEvents:    true,
		},
		TabWidth:                  4,
		WidthPolicy:               uint32(unicode.EmojiWide),
		TargetFPS:                 60,
		EnableScrollOptimizations: true,
	}
}

// SupportedVersion returns the versions this engine implements.
func SupportedVersion() Version {
	return Version{
		EngineABIMajor:    EngineABIMajor,
		EngineABIMinor:    EngineABIMinor,
		EngineABIPatch:    EngineABIPatch,
		DrawlistVersion:   DrawlistVersion,
		EventBatchVersion: EventBatchVersion,
	}
}

// DefaultCreate returns the default creation config requesting the
// supported versions.
func DefaultCreate() Create {
	return Create{Requested: SupportedVersion(), Runtime: DefaultRuntime()}
}

// Validate checks value ranges the parsers cannot express.
func (r Runtime) Validate() error {
	switch {
	case r.Limits.DLMaxClipDepth == 0 || r.Limits.DLMaxClipDepth > MaxClipDepth:
		return invalid("dlMaxClipDepth", fmt.Sprintf("%d out of range 1..%d", r.Limits.DLMaxClipDepth, MaxClipDepth))
	case r.TabWidth == 0 || r.TabWidth > 64:
		return invalid("tabWidth", fmt.Sprintf("%d out of range 1..64", r.TabWidth))
	case !unicode.WidthPolicy(r.WidthPolicy).Valid():
		return invalid("widthPolicy", fmt.Sprintf("unknown policy %d", r.WidthPolicy))
	case r.TargetFPS == 0 || r.TargetFPS > 1000:
		return invalid("targetFps", fmt.Sprintf("%d out of range 1..1000", r.TargetFPS))
	case r.Plat.RequestedColorMode > RequestedColorRGB:
		return invalid("requestedColorMode", fmt.Sprintf("unknown mode %d", r.Plat.RequestedColorMode))
	}
	return nil
}

// Negotiate checks the requested versions against what the engine supports.
// The major ABI version must match exactly; minor and patch negotiate down.
// Wire format versions other than the supported ones are rejected.
func (v Version) Negotiate() (Version, error) {
	sup := SupportedVersion()
	if v.EngineABIMajor != sup.EngineABIMajor {
		return Version{}, core.Errorf("engine_create", core.ErrUnsupported,
			"engine abi major %d, supported %d", v.EngineABIMajor, sup.EngineABIMajor)
	}
	if v.DrawlistVersion != sup.DrawlistVersion {
		return Version{}, core.Errorf("engine_create", core.ErrUnsupported,
			"drawlist version %d", v.DrawlistVersion)
	}
	if v.EventBatchVersion != sup.EventBatchVersion {
		return Version{}, core.Errorf("engine_create", core.ErrUnsupported,
			"event batch version %d", v.EventBatchVersion)
	}

	out := sup
	if v.EngineABIMinor < sup.EngineABIMinor {
		out.EngineABIMinor = v.EngineABIMinor
		out.EngineABIPatch = v.EngineABIPatch
	} else if v.EngineABIMinor == sup.EngineABIMinor {
		out.EngineABIPatch = min(v.EngineABIPatch, sup.EngineABIPatch)
	}
	return out, nil
}

func invalid(key, msg string) error {
	return &KeyError{Context: "config", Key: key + " (" + msg + ")", Err: ErrValidationFailed}
}
