// Package script implements graph.Host on top of an embedded Lua runtime
// (github.com/yuin/gopher-lua), mirroring the original Rust engine's
// mlua-based script host: a node script calls one of the set_* globals to
// request a directive, and a flow's condition script calls set_result to
// report its boolean. Absence of any call defaults to Null/false, exactly
// as the original's `RefCell<Next>` default.
package script

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/ronbb/donut/graph"
	"github.com/ronbb/donut/variant"
)

func timeNowPlus(seconds lua.LNumber) time.Time {
	return time.Now().Add(time.Duration(float64(seconds) * float64(time.Second)))
}

// Host runs node and flow scripts against a fresh *lua.LState per call.
// A fresh state per invocation keeps scripts from leaking globals across
// unrelated cursors — cheap enough for the embedded, short script bodies
// this engine runs (spec.md §4.G).
type Host struct{}

// New constructs a Host. It holds no state of its own; every exported
// method is safe to call concurrently.
func New() *Host { return &Host{} }

// RunNode executes a node script, returning the directive it requested.
func (h *Host) RunNode(ctx context.Context, source string, ec graph.ExecContext) (graph.Next, error) {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	next := graph.Null()
	var callErr error

	register := func(name string, fn func(L *lua.LState) int) {
		L.SetGlobal(name, L.NewFunction(fn))
	}

	register("set_continue", func(L *lua.LState) int {
		next = graph.Continue()
		return 0
	})
	register("set_one", func(L *lua.LState) int {
		name := L.CheckString(1)
		e, err := ec.Find(name)
		if err != nil {
			callErr = err
			return 0
		}
		next = graph.One(e)
		return 0
	})
	register("set_parallel", func(L *lua.LState) int {
		names := checkStringArray(L, 1)
		es, err := resolveAll(ec, names)
		if err != nil {
			callErr = err
			return 0
		}
		next = graph.Parallel(es)
		return 0
	})
	register("set_select", func(L *lua.LState) int {
		names := checkStringArray(L, 1)
		es, err := resolveAll(ec, names)
		if err != nil {
			callErr = err
			return 0
		}
		next = graph.Select(es)
		return 0
	})
	register("set_wait", func(L *lua.LState) int {
		name := L.CheckString(1)
		seconds := L.CheckNumber(2)
		e, err := ec.Find(name)
		if err != nil {
			callErr = err
			return 0
		}
		next = graph.Wait(e, timeNowPlus(seconds))
		return 0
	})
	register("set_complete", func(L *lua.LState) int {
		next = graph.Complete()
		return 0
	})
	register("set_bubble", func(L *lua.LState) int {
		next = graph.Bubble()
		return 0
	})
	register("set_state", func(L *lua.LState) int {
		key := L.CheckString(1)
		v, err := luaToVariant(L.Get(2))
		if err != nil {
			callErr = err
			return 0
		}
		ec.State.Set(key, v)
		return 0
	})
	register("get_state", func(L *lua.LState) int {
		key := L.CheckString(1)
		v, ok := ec.State.Get(key)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(variantToLua(L, v))
		return 1
	})
	register("has_state", func(L *lua.LState) int {
		key := L.CheckString(1)
		L.Push(lua.LBool(ec.State.Has(key)))
		return 1
	})
	register("remove_state", func(L *lua.LState) int {
		key := L.CheckString(1)
		ec.State.Remove(key)
		return 0
	})

	if err := L.DoString(source); err != nil {
		return graph.Next{}, graph.NewScriptFailed(err.Error())
	}
	if callErr != nil {
		return graph.Next{}, callErr
	}
	return next, nil
}

// EvalCondition executes a flow's condition script, returning the boolean
// it reported via set_result. A script that never calls set_result
// evaluates to false.
func (h *Host) EvalCondition(ctx context.Context, source string, ec graph.ExecContext) (bool, error) {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	result := false
	L.SetGlobal("set_result", L.NewFunction(func(L *lua.LState) int {
		result = L.CheckBool(1)
		return 0
	}))
	L.SetGlobal("get_state", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		v, ok := ec.State.Get(key)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(variantToLua(L, v))
		return 1
	}))
	L.SetGlobal("has_state", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		L.Push(lua.LBool(ec.State.Has(key)))
		return 1
	}))

	if err := L.DoString(source); err != nil {
		return false, graph.NewScriptFailed(err.Error())
	}
	return result, nil
}

var _ graph.Host = (*Host)(nil)

func checkStringArray(L *lua.LState, idx int) []string {
	tbl := L.CheckTable(idx)
	var out []string
	tbl.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}

func resolveAll(ec graph.ExecContext, names []string) ([]graph.Executable, error) {
	out := make([]graph.Executable, 0, len(names))
	for _, name := range names {
		e, err := ec.Find(name)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// luaToVariant converts a Lua value into a variant.Variant, mirroring the
// original engine's FromLua<Variant> table: nil -> Null, string -> String,
// number -> Integer when it has no fractional part and Float otherwise
// (gopher-lua has no distinct integer subtype at the value level the way
// mlua does),
// boolean -> Boolean, table -> Array (sequential integer keys) or Object
// (any string key), everything else (function, userdata, thread) -> Null.
func luaToVariant(v lua.LValue) (variant.Variant, error) {
	if v == lua.LNil {
		return variant.Null(), nil
	}
	switch val := v.(type) {
	case lua.LString:
		return variant.String(string(val)), nil
	case lua.LNumber:
		f := float64(val)
		if f == float64(int64(f)) {
			return variant.Integer(int64(f)), nil
		}
		return variant.Float(f), nil
	case lua.LBool:
		return variant.Boolean(bool(val)), nil
	case *lua.LTable:
		return luaTableToVariant(val)
	default:
		return variant.Null(), nil
	}
}

func luaTableToVariant(t *lua.LTable) (variant.Variant, error) {
	obj := make(map[string]variant.Variant)
	var arr []variant.Variant
	isArray := true

	n := t.Len()
	for i := 1; i <= n; i++ {
		v, err := luaToVariant(t.RawGetInt(i))
		if err != nil {
			return variant.Variant{}, err
		}
		arr = append(arr, v)
	}

	t.ForEach(func(k, v lua.LValue) {
		if ik, ok := k.(lua.LNumber); ok {
			i := int(ik)
			if i >= 1 && i <= n {
				return
			}
		}
		isArray = false
		key := k.String()
		cv, err := luaToVariant(v)
		if err == nil {
			obj[key] = cv
		}
	})

	if !isArray || len(obj) > 0 {
		for i, v := range arr {
			obj[fmt.Sprintf("%d", i+1)] = v
		}
		return variant.Object(obj), nil
	}
	return variant.Array(arr), nil
}

// variantToLua converts a variant.Variant into a Lua value for exposure
// to get_state.
func variantToLua(L *lua.LState, v variant.Variant) lua.LValue {
	switch v.Kind() {
	case variant.KindNull:
		return lua.LNil
	case variant.KindString:
		s, _ := v.AsString()
		return lua.LString(s)
	case variant.KindInteger:
		i, _ := v.AsInteger()
		return lua.LNumber(i)
	case variant.KindFloat:
		f, _ := v.AsFloat()
		return lua.LNumber(f)
	case variant.KindBoolean:
		b, _ := v.AsBoolean()
		return lua.LBool(b)
	case variant.KindArray:
		elems, _ := v.AsArray()
		tbl := L.NewTable()
		for i, e := range elems {
			tbl.RawSetInt(i+1, variantToLua(L, e))
		}
		return tbl
	case variant.KindObject:
		fields, _ := v.AsObject()
		tbl := L.NewTable()
		for k, fv := range fields {
			tbl.RawSetString(k, variantToLua(L, fv))
		}
		return tbl
	default:
		return lua.LNil
	}
}
