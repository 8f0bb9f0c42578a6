// Package variant implements the engine's tagged-union value type. A
// Variant holds any of a fixed set of value kinds with value semantics:
// construction, comparison, stringification, and deep cloning. The zero
// Variant is the none kind and is a valid terminal state.
package variant

import (
	"bytes"
	"strconv"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/vmath"
)

// Kind identifies the active payload of a Variant. The numeric order is
// part of the binary wire format and must not be rearranged.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindBool
	KindFloat
	KindVector2
	KindVector3
	KindVector4
	KindQuaternion
	KindColor
	KindString
	KindBuffer
	KindVoidPtr
	KindResourceRef
	KindResourceRefList
	KindVariantVector
	KindVariantMap
	KindIntRect
	KindIntVector2
	KindPtr
	KindMatrix3
	KindMatrix3x4
	KindMatrix4
	KindDouble
	KindStringVector
	KindRect
	KindIntVector3
	KindInt64
	KindCustom

	maxKind
)

// Variant is a tagged union. The tag always matches the live payload;
// assigning through a constructor replaces both together. Reference
// payloads (buffers, vectors, maps) are shared on plain assignment; use
// Clone for an independent copy.
type Variant struct {
	kind Kind
	data any
}

// New builds a Variant from a Go value. Unrecognized types yield the none
// kind. Integer types narrower than 64 bits map to the int kind; RefCounted
// implementations are wrapped as weak object references.
func New(value any) Variant {
	switch v := value.(type) {
	case nil:
		return Variant{}
	case Variant:
		return v
	case bool:
		return Variant{KindBool, v}
	case int:
		return Variant{KindInt, int32(v)}
	case int8:
		return Variant{KindInt, int32(v)}
	case int16:
		return Variant{KindInt, int32(v)}
	case int32:
		return Variant{KindInt, v}
	case uint8:
		return Variant{KindInt, int32(v)}
	case uint16:
		return Variant{KindInt, int32(v)}
	case uint32:
		return Variant{KindInt, int32(v)}
	case int64:
		return Variant{KindInt64, v}
	case uint64:
		return Variant{KindInt64, int64(v)}
	case float32:
		return Variant{KindFloat, v}
	case float64:
		return Variant{KindDouble, v}
	case string:
		return Variant{KindString, v}
	case []byte:
		return Variant{KindBuffer, v}
	case vmath.Vector2:
		return Variant{KindVector2, v}
	case vmath.Vector3:
		return Variant{KindVector3, v}
	case vmath.Vector4:
		return Variant{KindVector4, v}
	case vmath.Quaternion:
		return Variant{KindQuaternion, v}
	case vmath.Color:
		return Variant{KindColor, v}
	case vmath.Rect:
		return Variant{KindRect, v}
	case vmath.IntRect:
		return Variant{KindIntRect, v}
	case vmath.IntVector2:
		return Variant{KindIntVector2, v}
	case vmath.IntVector3:
		return Variant{KindIntVector3, v}
	case vmath.Matrix3:
		return Variant{KindMatrix3, v}
	case vmath.Matrix3x4:
		return Variant{KindMatrix3x4, v}
	case vmath.Matrix4:
		return Variant{KindMatrix4, v}
	case ResourceRef:
		return Variant{KindResourceRef, v}
	case ResourceRefList:
		return Variant{KindResourceRefList, v}
	case []Variant:
		return Variant{KindVariantVector, v}
	case Map:
		return Variant{KindVariantMap, v}
	case []string:
		return Variant{KindStringVector, v}
	case WeakRef:
		return Variant{KindPtr, v}
	case RefCounted:
		return Variant{KindPtr, NewWeakRef(v)}
	case CustomValue:
		return Variant{KindCustom, v}
	default:
		return Variant{}
	}
}

// NewVoidPtr wraps an opaque reference. The value must be comparable; it is
// excluded from every serialization codec.
func NewVoidPtr(p any) Variant {
	return Variant{KindVoidPtr, p}
}

// Kind returns the active tag.
func (v Variant) Kind() Kind { return v.kind }

// IsNone reports whether the variant holds no value.
func (v Variant) IsNone() bool { return v.kind == KindNone }

// Int returns the numeric payload widened to int, or 0 on kind mismatch.
func (v Variant) Int() int {
	switch v.kind {
	case KindInt:
		return int(v.data.(int32))
	case KindInt64:
		return int(v.data.(int64))
	case KindFloat:
		return int(v.data.(float32))
	case KindDouble:
		return int(v.data.(float64))
	}
	return 0
}

// Int64 returns the numeric payload widened to int64, or 0 on mismatch.
func (v Variant) Int64() int64 {
	switch v.kind {
	case KindInt:
		return int64(v.data.(int32))
	case KindInt64:
		return v.data.(int64)
	case KindFloat:
		return int64(v.data.(float32))
	case KindDouble:
		return int64(v.data.(float64))
	}
	return 0
}

// Float returns the numeric payload as float32, or 0 on mismatch.
func (v Variant) Float() float32 {
	switch v.kind {
	case KindInt:
		return float32(v.data.(int32))
	case KindInt64:
		return float32(v.data.(int64))
	case KindFloat:
		return v.data.(float32)
	case KindDouble:
		return float32(v.data.(float64))
	}
	return 0
}

// Double returns the numeric payload as float64, or 0 on mismatch.
func (v Variant) Double() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.data.(int32))
	case KindInt64:
		return float64(v.data.(int64))
	case KindFloat:
		return float64(v.data.(float32))
	case KindDouble:
		return v.data.(float64)
	}
	return 0
}

// Bool returns the bool payload, or false on mismatch. No numeric coercion.
func (v Variant) Bool() bool {
	if v.kind == KindBool {
		return v.data.(bool)
	}
	return false
}

// Str returns the string payload, or "" on mismatch.
func (v Variant) Str() string {
	if v.kind == KindString {
		return v.data.(string)
	}
	return ""
}

// Buffer returns the byte buffer payload, or nil on mismatch. The slice is
// shared, not copied.
func (v Variant) Buffer() []byte {
	if v.kind == KindBuffer {
		return v.data.([]byte)
	}
	return nil
}

func (v Variant) Vector2() vmath.Vector2 {
	if v.kind == KindVector2 {
		return v.data.(vmath.Vector2)
	}
	return vmath.Vector2{}
}

func (v Variant) Vector3() vmath.Vector3 {
	if v.kind == KindVector3 {
		return v.data.(vmath.Vector3)
	}
	return vmath.Vector3{}
}

func (v Variant) Vector4() vmath.Vector4 {
	if v.kind == KindVector4 {
		return v.data.(vmath.Vector4)
	}
	return vmath.Vector4{}
}

func (v Variant) Quaternion() vmath.Quaternion {
	if v.kind == KindQuaternion {
		return v.data.(vmath.Quaternion)
	}
	return vmath.QuaternionIdentity
}

func (v Variant) Color() vmath.Color {
	if v.kind == KindColor {
		return v.data.(vmath.Color)
	}
	return vmath.Color{}
}

func (v Variant) Rect() vmath.Rect {
	if v.kind == KindRect {
		return v.data.(vmath.Rect)
	}
	return vmath.Rect{}
}

func (v Variant) IntRect() vmath.IntRect {
	if v.kind == KindIntRect {
		return v.data.(vmath.IntRect)
	}
	return vmath.IntRect{}
}

func (v Variant) IntVector2() vmath.IntVector2 {
	if v.kind == KindIntVector2 {
		return v.data.(vmath.IntVector2)
	}
	return vmath.IntVector2{}
}

func (v Variant) IntVector3() vmath.IntVector3 {
	if v.kind == KindIntVector3 {
		return v.data.(vmath.IntVector3)
	}
	return vmath.IntVector3{}
}

func (v Variant) Matrix3() vmath.Matrix3 {
	if v.kind == KindMatrix3 {
		return v.data.(vmath.Matrix3)
	}
	return vmath.Matrix3Identity
}

func (v Variant) Matrix3x4() vmath.Matrix3x4 {
	if v.kind == KindMatrix3x4 {
		return v.data.(vmath.Matrix3x4)
	}
	return vmath.Matrix3x4Identity
}

func (v Variant) Matrix4() vmath.Matrix4 {
	if v.kind == KindMatrix4 {
		return v.data.(vmath.Matrix4)
	}
	return vmath.Matrix4Identity
}

func (v Variant) ResourceRef() ResourceRef {
	if v.kind == KindResourceRef {
		return v.data.(ResourceRef)
	}
	return ResourceRef{}
}

func (v Variant) ResourceRefList() ResourceRefList {
	if v.kind == KindResourceRefList {
		return v.data.(ResourceRefList)
	}
	return ResourceRefList{}
}

// VariantVector returns the nested vector payload, shared not copied.
func (v Variant) VariantVector() []Variant {
	if v.kind == KindVariantVector {
		return v.data.([]Variant)
	}
	return nil
}

// VariantMap returns the nested map payload, shared not copied.
func (v Variant) VariantMap() Map {
	if v.kind == KindVariantMap {
		return v.data.(Map)
	}
	return nil
}

func (v Variant) StringVector() []string {
	if v.kind == KindStringVector {
		return v.data.([]string)
	}
	return nil
}

// WeakRef returns the weak object reference payload, or an empty ref.
func (v Variant) WeakRef() WeakRef {
	if v.kind == KindPtr {
		return v.data.(WeakRef)
	}
	return WeakRef{}
}

// VoidPtr returns the opaque reference payload, or nil.
func (v Variant) VoidPtr() any {
	if v.kind == KindVoidPtr {
		return v.data
	}
	return nil
}

// Custom returns the custom payload, or nil.
func (v Variant) Custom() CustomValue {
	if v.kind == KindCustom {
		return v.data.(CustomValue)
	}
	return nil
}

// Equals compares tag and payload. Same-kind comparison only, with one
// coercion: a weak object reference and an opaque pointer holding the same
// target compare equal.
func (v Variant) Equals(o Variant) bool {
	if v.kind != o.kind {
		if bothPointerKinds(v.kind, o.kind) {
			return pointerTarget(v) == pointerTarget(o)
		}
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindBuffer:
		return bytes.Equal(v.data.([]byte), o.data.([]byte))
	case KindVariantVector:
		a, b := v.data.([]Variant), o.data.([]Variant)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equals(b[i]) {
				return false
			}
		}
		return true
	case KindVariantMap:
		a, b := v.data.(Map), o.data.(Map)
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !av.Equals(bv) {
				return false
			}
		}
		return true
	case KindStringVector:
		a, b := v.data.([]string), o.data.([]string)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	case KindResourceRefList:
		a, b := v.data.(ResourceRefList), o.data.(ResourceRefList)
		if a.Type != b.Type || len(a.Names) != len(b.Names) {
			return false
		}
		for i := range a.Names {
			if a.Names[i] != b.Names[i] {
				return false
			}
		}
		return true
	case KindPtr:
		return v.data.(WeakRef).Raw() == o.data.(WeakRef).Raw()
	case KindVoidPtr:
		return v.data == o.data
	case KindCustom:
		a, b := v.data.(CustomValue), o.data.(CustomValue)
		if a == nil || b == nil {
			return a == b
		}
		return a.Equals(b)
	default:
		return v.data == o.data
	}
}

func bothPointerKinds(a, b Kind) bool {
	return (a == KindPtr && b == KindVoidPtr) || (a == KindVoidPtr && b == KindPtr)
}

func pointerTarget(v Variant) any {
	if v.kind == KindPtr {
		ref := v.data.(WeakRef)
		if ref.Raw() == nil {
			return nil
		}
		return ref.Raw()
	}
	return v.data
}

// Clone returns a deep copy: nested vectors, maps, buffers, string lists,
// and custom values are duplicated so the copy shares no mutable state.
func (v Variant) Clone() Variant {
	switch v.kind {
	case KindBuffer:
		src := v.data.([]byte)
		dup := make([]byte, len(src))
		copy(dup, src)
		return Variant{KindBuffer, dup}
	case KindVariantVector:
		src := v.data.([]Variant)
		dup := make([]Variant, len(src))
		for i := range src {
			dup[i] = src[i].Clone()
		}
		return Variant{KindVariantVector, dup}
	case KindVariantMap:
		src := v.data.(Map)
		dup := make(Map, len(src))
		for k, e := range src {
			dup[k] = e.Clone()
		}
		return Variant{KindVariantMap, dup}
	case KindStringVector:
		src := v.data.([]string)
		dup := make([]string, len(src))
		copy(dup, src)
		return Variant{KindStringVector, dup}
	case KindResourceRefList:
		src := v.data.(ResourceRefList)
		dup := ResourceRefList{Type: src.Type, Names: make([]string, len(src.Names))}
		copy(dup.Names, src.Names)
		return Variant{KindResourceRefList, dup}
	case KindCustom:
		if cv := v.data.(CustomValue); cv != nil {
			return Variant{KindCustom, cv.Clone()}
		}
		return v
	default:
		return v
	}
}

// String renders the payload in the kind's textual form. Pointer-holding
// kinds render empty; nested vectors and maps are excluded from the string
// codec and render empty as well.
func (v Variant) String() string {
	switch v.kind {
	case KindInt:
		return strconv.Itoa(int(v.data.(int32)))
	case KindInt64:
		return strconv.FormatInt(v.data.(int64), 10)
	case KindBool:
		return strconv.FormatBool(v.data.(bool))
	case KindFloat:
		return strconv.FormatFloat(float64(v.data.(float32)), 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(v.data.(float64), 'g', -1, 64)
	case KindString:
		return v.data.(string)
	case KindBuffer:
		return bufferToString(v.data.([]byte))
	case KindVector2:
		return v.data.(vmath.Vector2).String()
	case KindVector3:
		return v.data.(vmath.Vector3).String()
	case KindVector4:
		return v.data.(vmath.Vector4).String()
	case KindQuaternion:
		return v.data.(vmath.Quaternion).String()
	case KindColor:
		return v.data.(vmath.Color).String()
	case KindRect:
		return v.data.(vmath.Rect).String()
	case KindIntRect:
		return v.data.(vmath.IntRect).String()
	case KindIntVector2:
		return v.data.(vmath.IntVector2).String()
	case KindIntVector3:
		return v.data.(vmath.IntVector3).String()
	case KindMatrix3:
		return v.data.(vmath.Matrix3).String()
	case KindMatrix3x4:
		return v.data.(vmath.Matrix3x4).String()
	case KindMatrix4:
		return v.data.(vmath.Matrix4).String()
	case KindResourceRef:
		return v.data.(ResourceRef).String()
	case KindResourceRefList:
		return v.data.(ResourceRefList).String()
	case KindStringVector:
		return joinStringVector(v.data.([]string))
	case KindCustom:
		if cv := v.data.(CustomValue); cv != nil {
			return cv.String()
		}
		return ""
	default:
		// None, VoidPtr, Ptr, VariantVector, VariantMap.
		return ""
	}
}

// Key used by tests and diagnostics; hashes through the engine name hash.
func Key(name string) hash.StringHash { return hash.New(name) }
