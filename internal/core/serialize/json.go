package serialize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/variant"
)

// EscapeJSONPath escapes the characters sjson and gjson treat as path
// syntax, so arbitrary attribute names can be used as keys.
func EscapeJSONPath(s string) string {
	if !strings.ContainsAny(s, ".*?|#@\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// SetJSONValue writes the variant's value at path, untagged. The reader
// must supply the kind to JSONValue. Numbers, bools and strings map to
// their JSON forms, buffers to a decimal string, string vectors to
// arrays, nested variant collections to tagged objects, and the math
// and resource kinds to their string forms.
func SetJSONValue(doc []byte, path string, v variant.Variant) ([]byte, error) {
	switch v.Kind() {
	case variant.KindVoidPtr, variant.KindPtr, variant.KindCustom:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, v.Kind())
	case variant.KindNone:
		return sjson.SetRawBytes(doc, path, []byte("null"))
	case variant.KindInt:
		return sjson.SetBytes(doc, path, int64(v.Int()))
	case variant.KindInt64:
		return sjson.SetBytes(doc, path, v.Int64())
	case variant.KindBool:
		return sjson.SetBytes(doc, path, v.Bool())
	case variant.KindFloat:
		return sjson.SetBytes(doc, path, float64(v.Float()))
	case variant.KindDouble:
		return sjson.SetBytes(doc, path, v.Double())
	case variant.KindString:
		return sjson.SetBytes(doc, path, v.Str())
	case variant.KindBuffer:
		return sjson.SetBytes(doc, path, v.String())
	case variant.KindStringVector:
		out, err := sjson.SetRawBytes(doc, path, []byte("[]"))
		if err != nil {
			return nil, err
		}
		for _, s := range v.StringVector() {
			out, err = sjson.SetBytes(out, path+".-1", s)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case variant.KindVariantVector:
		out, err := sjson.SetRawBytes(doc, path, []byte("[]"))
		if err != nil {
			return nil, err
		}
		for _, item := range v.VariantVector() {
			out, err = SetJSONVariant(out, path+".-1", item)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	case variant.KindVariantMap:
		out, err := sjson.SetRawBytes(doc, path, []byte("{}"))
		if err != nil {
			return nil, err
		}
		for k, item := range v.VariantMap() {
			key := strconv.FormatUint(uint64(k.Value()), 10)
			out, err = SetJSONVariant(out, path+"."+key, item)
			if err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return sjson.SetBytes(doc, path, v.String())
	}
}

// SetJSONVariant writes the variant at path as a tagged object with
// type and value members, readable without knowing the kind up front.
func SetJSONVariant(doc []byte, path string, v variant.Variant) ([]byte, error) {
	out, err := sjson.SetBytes(doc, path+".type", v.Kind().String())
	if err != nil {
		return nil, err
	}
	return SetJSONValue(out, path+".value", v)
}

// JSONValue reads an untagged value of a known kind.
func JSONValue(res gjson.Result, kind variant.Kind) (variant.Variant, error) {
	if !res.Exists() {
		return variant.Variant{}, fmt.Errorf("%w: missing json value", ErrMalformed)
	}
	switch kind {
	case variant.KindVoidPtr, variant.KindPtr, variant.KindCustom:
		return variant.Variant{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	case variant.KindNone:
		return variant.Variant{}, nil
	case variant.KindInt:
		return variant.New(int(int32(res.Int()))), nil
	case variant.KindInt64:
		return variant.New(res.Int()), nil
	case variant.KindBool:
		return variant.New(res.Bool()), nil
	case variant.KindFloat:
		return variant.New(float32(res.Float())), nil
	case variant.KindDouble:
		return variant.New(res.Float()), nil
	case variant.KindString:
		return variant.New(res.String()), nil
	case variant.KindBuffer:
		data, err := parseBufferString(res.String())
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.New(data), nil
	case variant.KindStringVector:
		if !res.IsArray() {
			return variant.Variant{}, fmt.Errorf("%w: string vector is not an array", ErrMalformed)
		}
		var values []string
		for _, el := range res.Array() {
			values = append(values, el.String())
		}
		return variant.New(values), nil
	case variant.KindVariantVector:
		if !res.IsArray() {
			return variant.Variant{}, fmt.Errorf("%w: variant vector is not an array", ErrMalformed)
		}
		var values []variant.Variant
		for _, el := range res.Array() {
			item, err := JSONVariant(el)
			if err != nil {
				return variant.Variant{}, err
			}
			values = append(values, item)
		}
		return variant.New(values), nil
	case variant.KindVariantMap:
		if !res.IsObject() {
			return variant.Variant{}, fmt.Errorf("%w: variant map is not an object", ErrMalformed)
		}
		m := make(variant.Map)
		var loopErr error
		res.ForEach(func(key, value gjson.Result) bool {
			h, err := strconv.ParseUint(key.String(), 10, 32)
			if err != nil {
				loopErr = fmt.Errorf("%w: variant map key %q", ErrMalformed, key.String())
				return false
			}
			item, err := JSONVariant(value)
			if err != nil {
				loopErr = err
				return false
			}
			m[hash.StringHash(h)] = item
			return true
		})
		if loopErr != nil {
			return variant.Variant{}, loopErr
		}
		return variant.New(m), nil
	default:
		return variant.FromString(kind, res.String())
	}
}

// JSONVariant reads a tagged object written with SetJSONVariant.
func JSONVariant(res gjson.Result) (variant.Variant, error) {
	kind, ok := variant.KindFromName(res.Get("type").String())
	if !ok {
		return variant.Variant{}, fmt.Errorf("%w: unknown variant type %q", ErrMalformed, res.Get("type").String())
	}
	return JSONValue(res.Get("value"), kind)
}
