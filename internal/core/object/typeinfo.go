// Package object implements the engine's reflection and event core:
// runtime type registration, attribute introspection driving file and
// network serialization, and single-goroutine event dispatch with safe
// mutation during delivery.
package object

import "github.com/keel-engine/keel/internal/core/hash"

// TypeInfo identifies one registered object type. Instances are created
// once per type at registration time and compared by pointer.
type TypeInfo struct {
	name     string
	typeHash hash.StringHash
	base     *TypeInfo
}

// NewTypeInfo records a type name in the hash registry and links it to
// its base type, or nil for a root type.
func NewTypeInfo(name string, base *TypeInfo) *TypeInfo {
	return &TypeInfo{
		name:     name,
		typeHash: hash.Register(name),
		base:     base,
	}
}

// Name returns the registered type name.
func (t *TypeInfo) Name() string { return t.name }

// Type returns the hashed type identifier.
func (t *TypeInfo) Type() hash.StringHash { return t.typeHash }

// Base returns the base type, or nil.
func (t *TypeInfo) Base() *TypeInfo { return t.base }

// IsTypeOf reports whether this type is, or derives from, the type with
// the given hash.
func (t *TypeInfo) IsTypeOf(typeHash hash.StringHash) bool {
	for cur := t; cur != nil; cur = cur.base {
		if cur.typeHash == typeHash {
			return true
		}
	}
	return false
}

// IsTypeOfInfo reports whether this type is, or derives from, other.
func (t *TypeInfo) IsTypeOfInfo(other *TypeInfo) bool {
	if other == nil {
		return false
	}
	return t.IsTypeOf(other.typeHash)
}
