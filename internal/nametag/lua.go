// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NPCForge Contributors

package nametag

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/npcforge/npcforge/internal/entity"
	"github.com/npcforge/npcforge/pkg/errutil"
)

// CodeLuaTransformInvalid marks a script that failed to load.
const CodeLuaTransformInvalid = "LUA_TRANSFORM_INVALID"

// luaTransformFunc is the global a transform script must define.
const luaTransformFunc = "transform"

// DefaultLuaTimeout bounds one script run so a runaway transform cannot
// stall the tick.
const DefaultLuaTimeout = 10 * time.Millisecond

// Blocked base functions give filesystem or code-loading access.
var unsafeBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load", "require"}

// LuaTransform runs a sandboxed script of the form
//
//	function transform(text, entity_id, world) return text end
//
// over rendered nametags. Only the base, table, string and math libraries
// are loaded. Runtime errors and runs exceeding the timeout fall back to
// the untransformed text.
type LuaTransform struct {
	state   *lua.LState
	fn      lua.LValue
	logger  *slog.Logger
	timeout time.Duration
}

// LuaOption configures a LuaTransform.
type LuaOption func(*LuaTransform)

// WithLuaTimeout sets the per-run execution bound.
func WithLuaTimeout(d time.Duration) LuaOption {
	return func(t *LuaTransform) { t.timeout = d }
}

// NewLuaTransform compiles script into a transform.
func NewLuaTransform(script string, logger *slog.Logger, opts ...LuaOption) (*LuaTransform, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &LuaTransform{logger: logger, timeout: DefaultLuaTimeout}
	for _, opt := range opts {
		opt(t)
	}
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.Code(CodeLuaTransformInvalid).With("library", lib.name).Wrap(err)
		}
	}
	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	t.state = L
	cancel := t.bound()
	err := L.DoString(script)
	cancel()
	if err != nil {
		L.Close()
		return nil, oops.Code(CodeLuaTransformInvalid).Wrapf(err, "loading nametag transform")
	}
	fn := L.GetGlobal(luaTransformFunc)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, oops.Code(CodeLuaTransformInvalid).
			Errorf("script must define a global %s function", luaTransformFunc)
	}
	t.fn = fn
	return t, nil
}

// bound attaches a deadline to the state; the returned func detaches it.
func (t *LuaTransform) bound() func() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	t.state.SetContext(ctx)
	return func() {
		t.state.RemoveContext()
		cancel()
	}
}

// Transform implements Transformer.
func (t *LuaTransform) Transform(text string, e *entity.Entity) string {
	cancel := t.bound()
	err := t.state.CallByParam(lua.P{Fn: t.fn, NRet: 1, Protect: true},
		lua.LString(text), lua.LNumber(e.ID()), lua.LString(e.World()))
	cancel()
	if err != nil {
		errutil.LogError(t.logger, "nametag transform failed",
			oops.Code(CodeLuaTransformInvalid).Wrap(err), "entity_id", int64(e.ID()))
		return text
	}
	ret := t.state.Get(-1)
	t.state.Pop(1)
	if ret == lua.LNil {
		return text
	}
	return lua.LVAsString(ret)
}

// Close releases the Lua state.
func (t *LuaTransform) Close() error {
	t.state.Close()
	return nil
}
