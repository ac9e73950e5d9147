package config

import (
	"math"

	"github.com/tidwall/gjson"
)

// keyPair is an accepted key in camelCase with its snake_case alias.
type keyPair struct {
	primary, alias string
}

var limitsKeys = []keyPair{
	{"arenaMaxTotalBytes", "arena_max_total_bytes"},
	{"arenaInitialBytes", "arena_initial_bytes"},
	{"outMaxBytesPerFrame", "out_max_bytes_per_frame"},
	{"dlMaxTotalBytes", "dl_max_total_bytes"},
	{"dlMaxCmds", "dl_max_cmds"},
	{"dlMaxStrings", "dl_max_strings"},
	{"dlMaxBlobs", "dl_max_blobs"},
	{"dlMaxClipDepth", "dl_max_clip_depth"},
	{"dlMaxTextRunSegments", "dl_max_text_run_segments"},
	{"diffMaxDamageRects", "diff_max_damage_rects"},
}

var platKeys = []keyPair{
	{"requestedColorMode", "requested_color_mode"},
	{"enableMouse", "enable_mouse"},
	{"enableBracketedPaste", "enable_bracketed_paste"},
	{"enableFocusEvents", "enable_focus_events"},
	{"enableOsc52", "enable_osc52"},
}

var runtimeKeys = []keyPair{
	{"limits", "limits"},
	{"plat", "plat"},
	{"tabWidth", "tab_width"},
	{"widthPolicy", "width_policy"},
	{"targetFps", "target_fps"},
	{"enableScrollOptimizations", "enable_scroll_optimizations"},
	{"enableDebugOverlay", "enable_debug_overlay"},
	{"enableReplayRecording", "enable_replay_recording"},
	{"waitForOutputDrain", "wait_for_output_drain"},
}

var versionKeys = []keyPair{
	{"requestedEngineAbiMajor", "requested_engine_abi_major"},
	{"requestedEngineAbiMinor", "requested_engine_abi_minor"},
	{"requestedEngineAbiPatch", "requested_engine_abi_patch"},
	{"requestedDrawlistVersion", "requested_drawlist_version"},
	{"requestedEventBatchVersion", "requested_event_batch_version"},
}

var createKeys = append(append([]keyPair{}, versionKeys...), runtimeKeys...)

// ParseCreateJSON parses an engine creation config on top of the defaults.
// Empty input yields the defaults.
func ParseCreateJSON(data []byte) (Create, error) {
	cfg := DefaultCreate()
	if len(data) == 0 {
		return cfg, nil
	}
	root, err := rootObject(data, "engineCreate config")
	if err != nil {
		return cfg, err
	}
	p := parser{ctx: "engineCreate config"}
	if err := p.checkKeys(root, createKeys); err != nil {
		return cfg, err
	}

	v := &cfg.Requested
	p.u32(root, versionKeys[0], &v.EngineABIMajor)
	p.u32(root, versionKeys[1], &v.EngineABIMinor)
	p.u32(root, versionKeys[2], &v.EngineABIPatch)
	p.u32(root, versionKeys[3], &v.DrawlistVersion)
	p.u32(root, versionKeys[4], &v.EventBatchVersion)
	p.runtime(root, &cfg.Runtime)
	if p.err != nil {
		return cfg, p.err
	}
	return cfg, cfg.Runtime.Validate()
}

// ParseRuntimeJSON parses a runtime config on top of base.
func ParseRuntimeJSON(data []byte, base Runtime) (Runtime, error) {
	cfg := base
	if len(data) == 0 {
		return cfg, nil
	}
	root, err := rootObject(data, "engineSetConfig config")
	if err != nil {
		return base, err
	}
	p := parser{ctx: "engineSetConfig config"}
	if err := p.checkKeys(root, runtimeKeys); err != nil {
		return base, err
	}
	p.runtime(root, &cfg)
	if p.err != nil {
		return base, p.err
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

func rootObject(data []byte, ctx string) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, &KeyError{Context: ctx, Key: "<document>", Err: ErrTypeMismatch}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return gjson.Result{}, &KeyError{Context: ctx, Key: "<document>", Err: ErrTypeMismatch}
	}
	return root, nil
}

// parser accumulates the first error so field extraction reads linearly.
type parser struct {
	ctx string
	err error
}

func (p *parser) fail(key string, cause error) {
	if p.err == nil {
		p.err = &KeyError{Context: p.ctx, Key: key, Err: cause}
	}
}

func (p *parser) checkKeys(obj gjson.Result, allowed []keyPair) error {
	var bad string
	obj.ForEach(func(k, _ gjson.Result) bool {
		name := k.String()
		for _, kp := range allowed {
			if name == kp.primary || name == kp.alias {
				return true
			}
		}
		bad = name
		return false
	})
	if bad != "" {
		return &KeyError{Context: p.ctx, Key: bad, Err: ErrUnknownKey}
	}
	return nil
}

// lookup returns the value under the primary key, falling back to the alias.
// JSON null counts as absent.
func lookup(obj gjson.Result, kp keyPair) (gjson.Result, bool) {
	for _, name := range [2]string{kp.primary, kp.alias} {
		v := obj.Get(name)
		if v.Exists() && v.Type != gjson.Null {
			return v, true
		}
	}
	return gjson.Result{}, false
}

func (p *parser) u32(obj gjson.Result, kp keyPair, dst *uint32) {
	v, ok := lookup(obj, kp)
	if !ok || p.err != nil {
		return
	}
	if v.Type != gjson.Number {
		p.fail(kp.primary, ErrTypeMismatch)
		return
	}
	f := v.Num
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		p.fail(kp.primary, ErrValidationFailed)
		return
	}
	*dst = uint32(f)
}

func (p *parser) boolean(obj gjson.Result, kp keyPair, dst *bool) {
	v, ok := lookup(obj, kp)
	if !ok || p.err != nil {
		return
	}
	switch v.Type {
	case gjson.True:
		*dst = true
	case gjson.False:
		*dst = false
	case gjson.Number:
		switch v.Num {
		case 0:
			*dst = false
		case 1:
			*dst = true
		default:
			p.fail(kp.primary, ErrValidationFailed)
		}
	default:
		p.fail(kp.primary, ErrTypeMismatch)
	}
}

func (p *parser) object(obj gjson.Result, kp keyPair, allowed []keyPair) (gjson.Result, bool) {
	v, ok := lookup(obj, kp)
	if !ok || p.err != nil {
		return gjson.Result{}, false
	}
	if !v.IsObject() {
		p.fail(kp.primary, ErrTypeMismatch)
		return gjson.Result{}, false
	}
	sub := parser{ctx: p.ctx + "." + kp.primary}
	if err := sub.checkKeys(v, allowed); err != nil {
		p.err = err
		return gjson.Result{}, false
	}
	return v, true
}

func (p *parser) runtime(root gjson.Result, r *Runtime) {
	if lim, ok := p.object(root, runtimeKeys[0], limitsKeys); ok {
		sub := parser{ctx: p.ctx + ".limits"}
		l := &r.Limits
		for i, dst := range []*uint32{
			&l.ArenaMaxTotalBytes, &l.ArenaInitialBytes, &l.OutMaxBytesPerFrame,
			&l.DLMaxTotalBytes, &l.DLMaxCmds, &l.DLMaxStrings, &l.DLMaxBlobs,
			&l.DLMaxClipDepth, &l.DLMaxTextRunSegments, &l.DiffMaxDamageRects,
		} {
			sub.u32(lim, limitsKeys[i], dst)
		}
		if sub.err != nil && p.err == nil {
			p.err = sub.err
		}
	}
	if plat, ok := p.object(root, runtimeKeys[1], platKeys); ok {
		sub := parser{ctx: p.ctx + ".plat"}
		mode := uint32(r.Plat.RequestedColorMode)
		sub.u32(plat, platKeys[0], &mode)
		r.Plat.RequestedColorMode = uint8(mode & 0xFF)
		sub.boolean(plat, platKeys[1], &r.Plat.EnableMouse)
		sub.boolean(plat, platKeys[2], &r.Plat.EnableBracketedPaste)
		sub.boolean(plat, platKeys[3], &r.Plat.EnableFocusEvents)
		sub.boolean(plat, platKeys[4], &r.Plat.EnableOSC52)
		if sub.err != nil && p.err == nil {
			p.err = sub.err
		}
	}
	p.u32(root, runtimeKeys[2], &r.TabWidth)
	p.u32(root, runtimeKeys[3], &r.WidthPolicy)
	p.u32(root, runtimeKeys[4], &r.TargetFPS)
	p.boolean(root, runtimeKeys[5], &r.EnableScrollOptimizations)
	p.boolean(root, runtimeKeys[6], &r.EnableDebugOverlay)
	p.boolean(root, runtimeKeys[7], &r.EnableReplayRecording)
	p.boolean(root, runtimeKeys[8], &r.WaitForOutputDrain)
}
