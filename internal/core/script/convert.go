package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/variant"
	"github.com/keel-engine/keel/internal/core/vmath"
)

// toLua renders a variant as a Lua value. Scalars map to the obvious
// Lua types, buffers to byte strings, vectors and colors to tables with
// named fields, collections to tables. Kinds with no sensible script
// form (matrices, rects, pointers, custom payloads) become nil.
func toLua(L *lua.LState, v variant.Variant) lua.LValue {
	switch v.Kind() {
	case variant.KindNone:
		return lua.LNil
	case variant.KindInt, variant.KindInt64, variant.KindFloat, variant.KindDouble:
		return lua.LNumber(v.Double())
	case variant.KindBool:
		return lua.LBool(v.Bool())
	case variant.KindString:
		return lua.LString(v.Str())
	case variant.KindBuffer:
		return lua.LString(v.Buffer())
	case variant.KindVector2:
		vec := v.Vector2()
		return vectorTable(L, map[string]float64{"x": float64(vec.X), "y": float64(vec.Y)})
	case variant.KindVector3:
		vec := v.Vector3()
		return vectorTable(L, map[string]float64{"x": float64(vec.X), "y": float64(vec.Y), "z": float64(vec.Z)})
	case variant.KindVector4:
		vec := v.Vector4()
		return vectorTable(L, map[string]float64{"x": float64(vec.X), "y": float64(vec.Y), "z": float64(vec.Z), "w": float64(vec.W)})
	case variant.KindQuaternion:
		q := v.Quaternion()
		return vectorTable(L, map[string]float64{"w": float64(q.W), "x": float64(q.X), "y": float64(q.Y), "z": float64(q.Z)})
	case variant.KindColor:
		c := v.Color()
		return vectorTable(L, map[string]float64{"r": float64(c.R), "g": float64(c.G), "b": float64(c.B), "a": float64(c.A)})
	case variant.KindIntVector2:
		vec := v.IntVector2()
		return vectorTable(L, map[string]float64{"x": float64(vec.X), "y": float64(vec.Y)})
	case variant.KindIntVector3:
		vec := v.IntVector3()
		return vectorTable(L, map[string]float64{"x": float64(vec.X), "y": float64(vec.Y), "z": float64(vec.Z)})
	case variant.KindStringVector:
		tbl := L.NewTable()
		for _, s := range v.StringVector() {
			tbl.Append(lua.LString(s))
		}
		return tbl
	case variant.KindVariantVector:
		tbl := L.NewTable()
		for _, item := range v.VariantVector() {
			tbl.Append(toLua(L, item))
		}
		return tbl
	case variant.KindVariantMap:
		tbl := L.NewTable()
		for k, item := range v.VariantMap() {
			tbl.RawSetString(k.String(), toLua(L, item))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// mapToTable renders an event payload as a Lua table keyed by the
// registered parameter names.
func mapToTable(L *lua.LState, data variant.Map) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range data {
		tbl.RawSetString(k.String(), toLua(L, v))
	}
	return tbl
}

// fromLua infers a variant from a Lua value: booleans, numbers (integral
// numbers become int64), strings, and tables. An array-shaped table
// becomes a VariantVector, any other table a VariantMap keyed by the
// hash of the rendered key.
func fromLua(lv lua.LValue) variant.Variant {
	switch v := lv.(type) {
	case lua.LBool:
		return variant.New(bool(v))
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return variant.New(int64(f))
		}
		return variant.New(f)
	case lua.LString:
		return variant.New(string(v))
	case *lua.LTable:
		if n := arrayLen(v); n > 0 {
			items := make([]variant.Variant, 0, n)
			for i := 1; i <= n; i++ {
				items = append(items, fromLua(v.RawGetInt(i)))
			}
			return variant.New(items)
		}
		m := variant.Map{}
		v.ForEach(func(k, item lua.LValue) {
			m[hash.Register(k.String())] = fromLua(item)
		})
		return variant.New(m)
	default:
		return variant.Variant{}
	}
}

// coerceLua converts a Lua value to the given attribute kind, erroring
// on shape mismatches instead of guessing.
func coerceLua(lv lua.LValue, kind variant.Kind) (variant.Variant, error) {
	switch kind {
	case variant.KindInt:
		n, err := checkNumber(lv, kind)
		return variant.New(int(n)), err
	case variant.KindInt64:
		n, err := checkNumber(lv, kind)
		return variant.New(int64(n)), err
	case variant.KindFloat:
		n, err := checkNumber(lv, kind)
		return variant.New(float32(n)), err
	case variant.KindDouble:
		n, err := checkNumber(lv, kind)
		return variant.New(n), err
	case variant.KindBool:
		if b, ok := lv.(lua.LBool); ok {
			return variant.New(bool(b)), nil
		}
		return variant.Variant{}, conversionError(lv, kind)
	case variant.KindString:
		if s, ok := lv.(lua.LString); ok {
			return variant.New(string(s)), nil
		}
		return variant.Variant{}, conversionError(lv, kind)
	case variant.KindBuffer:
		if s, ok := lv.(lua.LString); ok {
			return variant.New([]byte(s)), nil
		}
		return variant.Variant{}, conversionError(lv, kind)
	case variant.KindVector2:
		f, err := checkFields(lv, kind, "x", "y")
		return variant.New(vmath.Vector2{X: float32(f[0]), Y: float32(f[1])}), err
	case variant.KindVector3:
		f, err := checkFields(lv, kind, "x", "y", "z")
		return variant.New(vmath.Vector3{X: float32(f[0]), Y: float32(f[1]), Z: float32(f[2])}), err
	case variant.KindVector4:
		f, err := checkFields(lv, kind, "x", "y", "z", "w")
		return variant.New(vmath.Vector4{X: float32(f[0]), Y: float32(f[1]), Z: float32(f[2]), W: float32(f[3])}), err
	case variant.KindQuaternion:
		f, err := checkFields(lv, kind, "w", "x", "y", "z")
		return variant.New(vmath.Quaternion{W: float32(f[0]), X: float32(f[1]), Y: float32(f[2]), Z: float32(f[3])}), err
	case variant.KindColor:
		f, err := checkFields(lv, kind, "r", "g", "b", "a")
		return variant.New(vmath.Color{R: float32(f[0]), G: float32(f[1]), B: float32(f[2]), A: float32(f[3])}), err
	case variant.KindIntVector2:
		f, err := checkFields(lv, kind, "x", "y")
		return variant.New(vmath.IntVector2{X: int(f[0]), Y: int(f[1])}), err
	case variant.KindIntVector3:
		f, err := checkFields(lv, kind, "x", "y", "z")
		return variant.New(vmath.IntVector3{X: int(f[0]), Y: int(f[1]), Z: int(f[2])}), err
	case variant.KindStringVector:
		tbl, ok := lv.(*lua.LTable)
		if !ok {
			return variant.Variant{}, conversionError(lv, kind)
		}
		n := arrayLen(tbl)
		items := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			s, ok := tbl.RawGetInt(i).(lua.LString)
			if !ok {
				return variant.Variant{}, conversionError(tbl.RawGetInt(i), variant.KindString)
			}
			items = append(items, string(s))
		}
		return variant.New(items), nil
	case variant.KindVariantVector, variant.KindVariantMap:
		if _, ok := lv.(*lua.LTable); !ok {
			return variant.Variant{}, conversionError(lv, kind)
		}
		v := fromLua(lv)
		if kind == variant.KindVariantVector && v.Kind() != variant.KindVariantVector {
			return variant.Variant{}, conversionError(lv, kind)
		}
		if kind == variant.KindVariantMap && v.Kind() != variant.KindVariantMap {
			return variant.Variant{}, conversionError(lv, kind)
		}
		return v, nil
	default:
		return variant.Variant{}, fmt.Errorf("script: kind %v has no lua form", kind)
	}
}

func vectorTable(L *lua.LState, fields map[string]float64) *lua.LTable {
	tbl := L.NewTable()
	for name, val := range fields {
		tbl.RawSetString(name, lua.LNumber(val))
	}
	return tbl
}

func checkNumber(lv lua.LValue, kind variant.Kind) (float64, error) {
	if n, ok := lv.(lua.LNumber); ok {
		return float64(n), nil
	}
	return 0, conversionError(lv, kind)
}

// checkFields reads named numeric fields from a table value.
func checkFields(lv lua.LValue, kind variant.Kind, names ...string) ([]float64, error) {
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return make([]float64, len(names)), conversionError(lv, kind)
	}
	out := make([]float64, len(names))
	for i, name := range names {
		n, ok := tbl.RawGetString(name).(lua.LNumber)
		if !ok {
			return out, fmt.Errorf("script: field %q missing or not a number for %v", name, kind)
		}
		out[i] = float64(n)
	}
	return out, nil
}

// arrayLen returns n when the table is a contiguous 1..n array, else 0.
func arrayLen(tbl *lua.LTable) int {
	n := tbl.Len()
	if n == 0 {
		return 0
	}
	total := 0
	tbl.ForEach(func(lua.LValue, lua.LValue) { total++ })
	if total != n {
		return 0
	}
	return n
}

func conversionError(lv lua.LValue, kind variant.Kind) error {
	return fmt.Errorf("script: cannot convert %s to %v", lv.Type().String(), kind)
}
