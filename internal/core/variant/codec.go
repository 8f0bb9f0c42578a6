package variant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/keel-engine/keel/internal/core/vmath"
)

var (
	// ErrUnsupportedKind marks kinds excluded from the string codec:
	// buffers, nested vectors and maps, pointers, and custom payloads.
	ErrUnsupportedKind = errors.New("variant: kind not supported by the string codec")
	// ErrUnknownKind marks a kind value outside the defined range.
	ErrUnknownKind = errors.New("variant: unknown kind")
)

var kindNames = [maxKind]string{
	KindNone:            "None",
	KindInt:             "Int",
	KindBool:            "Bool",
	KindFloat:           "Float",
	KindVector2:         "Vector2",
	KindVector3:         "Vector3",
	KindVector4:         "Vector4",
	KindQuaternion:      "Quaternion",
	KindColor:           "Color",
	KindString:          "String",
	KindBuffer:          "Buffer",
	KindVoidPtr:         "VoidPtr",
	KindResourceRef:     "ResourceRef",
	KindResourceRefList: "ResourceRefList",
	KindVariantVector:   "VariantVector",
	KindVariantMap:      "VariantMap",
	KindIntRect:         "IntRect",
	KindIntVector2:      "IntVector2",
	KindPtr:             "Ptr",
	KindMatrix3:         "Matrix3",
	KindMatrix3x4:       "Matrix3x4",
	KindMatrix4:         "Matrix4",
	KindDouble:          "Double",
	KindStringVector:    "StringVector",
	KindRect:            "Rect",
	KindIntVector3:      "IntVector3",
	KindInt64:           "Int64",
	KindCustom:          "Custom",
}

// String returns the kind's stable name, used in structured serialization
// and diagnostics.
func (k Kind) String() string {
	if k < maxKind {
		return kindNames[k]
	}
	return "Unknown"
}

// IsValid reports whether k names a defined kind.
func (k Kind) IsValid() bool { return k < maxKind }

// KindFromName resolves a kind by its stable name. Unknown names resolve
// to the none kind with ok false.
func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return KindNone, false
}

// FromString parses the textual form produced by Variant.String back into
// a value of the given kind. Byte buffers, nested vectors and maps,
// pointers, and custom payloads are not representable as strings and
// return ErrUnsupportedKind.
func FromString(kind Kind, s string) (Variant, error) {
	switch kind {
	case KindNone:
		return Variant{}, nil
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Variant{}, parseErr(kind, err)
		}
		return Variant{KindInt, int32(n)}, nil
	case KindInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Variant{}, parseErr(kind, err)
		}
		return Variant{KindInt64, n}, nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Variant{}, parseErr(kind, err)
		}
		return Variant{KindBool, b}, nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Variant{}, parseErr(kind, err)
		}
		return Variant{KindFloat, float32(f)}, nil
	case KindDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Variant{}, parseErr(kind, err)
		}
		return Variant{KindDouble, f}, nil
	case KindString:
		return Variant{KindString, s}, nil
	case KindVector2:
		v, err := vmath.ParseVector2(s)
		return wrapParsed(kind, v, err)
	case KindVector3:
		v, err := vmath.ParseVector3(s)
		return wrapParsed(kind, v, err)
	case KindVector4:
		v, err := vmath.ParseVector4(s)
		return wrapParsed(kind, v, err)
	case KindQuaternion:
		v, err := vmath.ParseQuaternion(s)
		return wrapParsed(kind, v, err)
	case KindColor:
		v, err := vmath.ParseColor(s)
		return wrapParsed(kind, v, err)
	case KindRect:
		v, err := vmath.ParseRect(s)
		return wrapParsed(kind, v, err)
	case KindIntRect:
		v, err := vmath.ParseIntRect(s)
		return wrapParsed(kind, v, err)
	case KindIntVector2:
		v, err := vmath.ParseIntVector2(s)
		return wrapParsed(kind, v, err)
	case KindIntVector3:
		v, err := vmath.ParseIntVector3(s)
		return wrapParsed(kind, v, err)
	case KindMatrix3:
		v, err := vmath.ParseMatrix3(s)
		return wrapParsed(kind, v, err)
	case KindMatrix3x4:
		v, err := vmath.ParseMatrix3x4(s)
		return wrapParsed(kind, v, err)
	case KindMatrix4:
		v, err := vmath.ParseMatrix4(s)
		return wrapParsed(kind, v, err)
	case KindResourceRef:
		r, err := parseResourceRef(s)
		return wrapParsed(kind, r, err)
	case KindResourceRefList:
		r, err := parseResourceRefList(s)
		return wrapParsed(kind, r, err)
	case KindStringVector:
		return Variant{KindStringVector, splitStringVector(s)}, nil
	case KindBuffer, KindVariantVector, KindVariantMap, KindVoidPtr, KindPtr, KindCustom:
		return Variant{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	default:
		return Variant{}, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}
}

func parseErr(kind Kind, err error) error {
	return fmt.Errorf("variant: parse %s: %w", kind, err)
}

func wrapParsed(kind Kind, value any, err error) (Variant, error) {
	if err != nil {
		return Variant{}, parseErr(kind, err)
	}
	return New(value), nil
}

// bufferToString renders bytes as space-separated decimal values.
func bufferToString(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(int(b)))
	}
	return sb.String()
}

// String vectors join on semicolons; elements containing the separator do
// not survive the round trip.
func joinStringVector(values []string) string {
	return strings.Join(values, ";")
}

func splitStringVector(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}
