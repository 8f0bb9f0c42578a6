package object

import (
	"github.com/keel-engine/keel/internal/core/variant"
)

// AttributeMode is a bitmask deciding where an attribute participates:
// file serialization, network replication, editor visibility, and the
// identity flags excluded from ResetToDefault.
type AttributeMode uint32

const (
	// AttrFile marks the attribute for binary, XML, and JSON forms.
	AttrFile AttributeMode = 1 << iota
	// AttrNet marks the attribute for network replication.
	AttrNet
	// AttrLatestData routes the attribute through the unconditional
	// latest-data path instead of the delta bitset.
	AttrLatestData
	// AttrNoEdit hides the attribute from editing tools.
	AttrNoEdit
	// AttrReadOnly marks the attribute as externally immutable.
	AttrReadOnly
	// AttrNodeID and AttrComponentID mark identity fields that scene
	// cloning rewrites; they are never reset to defaults.
	AttrNodeID
	AttrComponentID
	// AttrEdit marks the attribute as editor-visible.
	AttrEdit
)

// AttrDefault is the usual mode for a gameplay attribute.
const AttrDefault = AttrFile | AttrNet | AttrEdit

// Accessor reads and writes one attribute of an object. Implementations
// are shared between every instance of the registered type.
type Accessor interface {
	Get(obj Object, dest *variant.Variant) error
	Set(obj Object, value variant.Variant) error
}

type funcAccessor[T Object] struct {
	get func(T) variant.Variant
	set func(T, variant.Variant)
}

// AccessorOf builds an Accessor from a typed getter/setter pair. Either
// func may be nil: a nil getter reads the none value, a nil setter makes
// the attribute read only. Invoking the accessor on an object of another
// type fails with ErrTypeMismatch.
func AccessorOf[T Object](get func(T) variant.Variant, set func(T, variant.Variant)) Accessor {
	return &funcAccessor[T]{get: get, set: set}
}

func (a *funcAccessor[T]) Get(obj Object, dest *variant.Variant) error {
	t, ok := obj.(T)
	if !ok {
		return ErrTypeMismatch
	}
	if a.get == nil {
		*dest = variant.Variant{}
		return nil
	}
	*dest = a.get(t)
	return nil
}

func (a *funcAccessor[T]) Set(obj Object, value variant.Variant) error {
	t, ok := obj.(T)
	if !ok {
		return ErrTypeMismatch
	}
	if a.set == nil {
		return ErrAttributeReadOnly
	}
	a.set(t, value)
	return nil
}

// AttributeInfo describes one serializable field of a registered type.
// Table order is significant: it defines the binary layout and the
// network attribute index.
type AttributeInfo struct {
	// Kind is the variant kind attribute values must carry.
	Kind variant.Kind
	// Name is the display and lookup name, matched case-sensitively.
	Name string
	// Accessor reads and writes the field.
	Accessor Accessor
	// EnumNames, when non-nil, marks an enumeration: the int value
	// indexes this table, files store the name, binary stores one byte.
	EnumNames []string
	// Default doubles as the documented default and the omit-from-text
	// sentinel.
	Default variant.Variant
	// Mode decides which serialization paths include the attribute.
	Mode AttributeMode
}

// IsEnum reports whether the attribute carries an enum name table.
func (a *AttributeInfo) IsEnum() bool { return len(a.EnumNames) > 0 }

// enumName renders an enum value, falling back to nothing when the value
// is outside the table.
func (a *AttributeInfo) enumName(value int) (string, bool) {
	if value < 0 || value >= len(a.EnumNames) {
		return "", false
	}
	return a.EnumNames[value], true
}
