package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/termdiff/internal/renderer/core"
)

func (s *Script) install() {
	td := s.L.NewTable()
	s.L.SetFuncs(td, map[string]lua.LGFunction{
		"size":      s.luaSize,
		"put":       s.luaPut,
		"text":      s.luaText,
		"fill":      s.luaFill,
		"clear":     s.luaClear,
		"push_clip": s.luaPushClip,
		"pop_clip":  s.luaPopClip,
		"cursor":    s.luaCursor,
		"width":     s.luaWidth,
		"log":       s.luaLog,
	})
	s.L.SetGlobal("td", td)
}

func (s *Script) luaSize(L *lua.LState) int {
	c := s.active(L)
	cols, rows := c.Size()
	L.Push(lua.LNumber(cols))
	L.Push(lua.LNumber(rows))
	return 2
}

func (s *Script) luaPut(L *lua.LState) int {
	c := s.active(L)
	x, y := L.CheckInt(1), L.CheckInt(2)
	glyph := L.CheckString(3)
	width := L.OptInt(4, 1)
	st := s.style(L, 5)
	if err := c.PutGrapheme(x, y, []byte(glyph), width, st); err != nil {
		return s.fail(L, err)
	}
	return 0
}

func (s *Script) luaText(L *lua.LState) int {
	c := s.active(L)
	x, y := L.CheckInt(1), L.CheckInt(2)
	text := L.CheckString(3)
	st := s.style(L, 4)
	end, err := c.Text(x, y, text, st)
	if err != nil {
		return s.fail(L, err)
	}
	L.Push(lua.LNumber(end))
	return 1
}

func (s *Script) luaFill(L *lua.LState) int {
	c := s.active(L)
	r := core.Rect{X: L.CheckInt(1), Y: L.CheckInt(2), W: L.CheckInt(3), H: L.CheckInt(4)}
	if err := c.FillRect(r, s.style(L, 5)); err != nil {
		return s.fail(L, err)
	}
	return 0
}

func (s *Script) luaClear(L *lua.LState) int {
	c := s.active(L)
	c.Clear(s.style(L, 1))
	return 0
}

func (s *Script) luaPushClip(L *lua.LState) int {
	c := s.active(L)
	r := core.Rect{X: L.CheckInt(1), Y: L.CheckInt(2), W: L.CheckInt(3), H: L.CheckInt(4)}
	if err := c.Push(r); err != nil {
		return s.fail(L, err)
	}
	return 0
}

func (s *Script) luaPopClip(L *lua.LState) int {
	c := s.active(L)
	if err := c.Pop(); err != nil {
		return s.fail(L, err)
	}
	return 0
}

func (s *Script) luaCursor(L *lua.LState) int {
	c := s.active(L)
	cur := c.Cursor()
	cur.X, cur.Y = L.CheckInt(1), L.CheckInt(2)
	if opts := L.OptTable(3, nil); opts != nil {
		if v := opts.RawGetString("visible"); v != lua.LNil {
			cur.Visible = lua.LVAsBool(v)
		}
		if v := opts.RawGetString("blink"); v != lua.LNil {
			cur.Blink = lua.LVAsBool(v)
		}
		if v := opts.RawGetString("shape"); v != lua.LNil {
			switch lua.LVAsString(v) {
			case "block":
				cur.Shape = core.CursorBlock
			case "underline":
				cur.Shape = core.CursorUnderline
			case "bar":
				cur.Shape = core.CursorBar
			default:
				return s.fail(L, core.Errorf("cursor", core.ErrInvalidArgument, "shape %q", lua.LVAsString(v)))
			}
		}
	}
	c.SetCursor(cur)
	return 0
}

func (s *Script) luaWidth(L *lua.LState) int {
	c := s.active(L)
	L.Push(lua.LNumber(c.TextWidth(L.CheckString(1))))
	return 1
}

func (s *Script) luaLog(L *lua.LState) int {
	s.log.Debug(L.CheckString(1), "script", s.name)
	return 0
}

var styleAttrs = map[string]core.Attribute{
	"bold":          core.AttrBold,
	"italic":        core.AttrItalic,
	"underline":     core.AttrUnderline,
	"reverse":       core.AttrReverse,
	"dim":           core.AttrDim,
	"strikethrough": core.AttrStrikethrough,
	"blink":         core.AttrBlink,
}

// style reads an optional style table at stack index n.
func (s *Script) style(L *lua.LState, n int) core.Style {
	st := core.DefaultStyle()
	tbl := L.OptTable(n, nil)
	if tbl == nil {
		return st
	}
	st.Fg = s.color(L, tbl.RawGetString("fg"))
	st.Bg = s.color(L, tbl.RawGetString("bg"))
	for name, attr := range styleAttrs {
		if lua.LVAsBool(tbl.RawGetString(name)) {
			st.Attrs |= attr
		}
	}
	return st
}

func (s *Script) color(L *lua.LState, v lua.LValue) core.Color {
	switch v := v.(type) {
	case *lua.LNilType:
		return core.ColorDefault
	case lua.LNumber:
		if v < 0 || v > 0xFFFFFF {
			s.fail(L, core.Errorf("style", core.ErrInvalidArgument, "color %v out of range", v))
		}
		return core.Color(uint32(v))
	case lua.LString:
		if v == "default" {
			return core.ColorDefault
		}
		c, err := core.ColorFromHex(string(v))
		if err != nil {
			s.fail(L, core.Errorf("style", core.ErrInvalidArgument, "%v", err))
		}
		return c
	default:
		s.fail(L, core.Errorf("style", core.ErrInvalidArgument, "color of type %s", v.Type()))
		return core.ColorDefault
	}
}
