package serialize

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/variant"
	"github.com/keel-engine/keel/internal/core/vmath"
)

type testBlob struct{ tag string }

func (b testBlob) Equals(o variant.CustomValue) bool {
	ob, ok := o.(testBlob)
	return ok && ob == b
}
func (b testBlob) Clone() variant.CustomValue { return b }
func (b testBlob) String() string             { return b.tag }

func sampleVariants() map[string]variant.Variant {
	return map[string]variant.Variant{
		"none":    {},
		"int":     variant.New(-42),
		"int64":   variant.New(int64(1) << 40),
		"bool":    variant.New(true),
		"float":   variant.New(float32(1.5)),
		"double":  variant.New(0.125),
		"string":  variant.New("hello <world> & \"friends\""),
		"buffer":  variant.New([]byte{0, 1, 127, 255}),
		"vec2":    variant.New(vmath.Vector2{X: 1, Y: 2}),
		"vec3":    variant.New(vmath.Vector3{X: 1, Y: 2, Z: 3}),
		"vec4":    variant.New(vmath.Vector4{X: 1, Y: 2, Z: 3, W: 4}),
		"quat":    variant.New(vmath.Quaternion{W: 1, X: 0, Y: 0.5, Z: 0}),
		"color":   variant.New(vmath.Color{R: 0.25, G: 0.5, B: 0.75, A: 1}),
		"rect":    variant.New(vmath.Rect{Min: vmath.Vector2{X: 0, Y: 0}, Max: vmath.Vector2{X: 4, Y: 3}}),
		"intrect": variant.New(vmath.IntRect{Left: -1, Top: 2, Right: 3, Bottom: 4}),
		"ivec2":   variant.New(vmath.IntVector2{X: 7, Y: -8}),
		"ivec3":   variant.New(vmath.IntVector3{X: 7, Y: -8, Z: 9}),
		"mat3":    variant.New(vmath.Matrix3{M: [9]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}}),
		"mat3x4":  variant.New(vmath.Matrix3x4{M: [12]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}),
		"mat4":    variant.New(vmath.Matrix4{M: [16]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}}),
		"ref":     variant.New(variant.ResourceRef{Type: hash.New("Material"), Name: "stone.mat"}),
		"reflist": variant.New(variant.ResourceRefList{Type: hash.New("Texture"), Names: []string{"a.png", "b.png"}}),
		"strvec":  variant.New([]string{"alpha", "beta", ""}),
		"vector": variant.New([]variant.Variant{
			variant.New(1),
			variant.New("two"),
			variant.New([]variant.Variant{variant.New(true)}),
		}),
		"map": variant.New(variant.Map{
			hash.New("health"): variant.New(100),
			hash.New("name"):   variant.New("orc"),
		}),
	}
}

func TestBinaryVariantRoundTrip(t *testing.T) {
	for name, v := range sampleVariants() {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewWriter(&buf).WriteVariant(v))

			got, err := NewBytesReader(buf.Bytes()).ReadVariant()
			require.NoError(t, err)
			require.Equal(t, v.Kind(), got.Kind())
			require.True(t, v.Equals(got), "want %s got %s", v, got)
		})
	}
}

func TestBinaryDataRoundTripKnownKind(t *testing.T) {
	v := variant.New(vmath.Vector3{X: 9, Y: 8, Z: 7})
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteVariantData(v))
	// No kind byte on the wire.
	require.Len(t, buf.Bytes(), 12)

	got, err := NewBytesReader(buf.Bytes()).ReadVariantData(variant.KindVector3)
	require.NoError(t, err)
	require.True(t, v.Equals(got))
}

func TestBinaryPrimitives(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteString("keel"))
	require.NoError(t, w.WriteUvarint(300))
	require.NoError(t, w.WriteHash(hash.New("Node")))
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteRaw([]byte{0xAA, 0xBB}))
	require.NoError(t, w.WriteFloat32(2.5))

	r := NewBytesReader(buf.Bytes())
	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "keel", s)
	n, err := r.ReadUvarint()
	require.NoError(t, err)
	require.Equal(t, uint64(300), n)
	h, err := r.ReadHash()
	require.NoError(t, err)
	require.Equal(t, hash.New("Node"), h)
	b, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, b)
	raw := make([]byte, 2)
	require.NoError(t, r.ReadRaw(raw))
	require.Equal(t, []byte{0xAA, 0xBB}, raw)
	f, err := r.ReadFloat32()
	require.NoError(t, err)
	require.Equal(t, float32(2.5), f)
}

func TestBinaryShortRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteUint64(77))

	r := NewBytesReader(buf.Bytes()[:5])
	_, err := r.ReadUint64()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = NewBytesReader(nil).ReadByte()
	require.Error(t, err)
}

func TestBinaryBlobGuard(t *testing.T) {
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], maxBlob+1)

	_, err := NewBytesReader(prefix[:n]).ReadString()
	require.ErrorIs(t, err, ErrBlobTooLarge)
	_, err = NewBytesReader(prefix[:n]).ReadBuffer()
	require.ErrorIs(t, err, ErrBlobTooLarge)
}

func TestBinaryInvalidKind(t *testing.T) {
	_, err := NewBytesReader([]byte{200}).ReadVariant()
	require.ErrorIs(t, err, ErrMalformed)
}

func TestBinaryPointerPlaceholders(t *testing.T) {
	target := 7
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteVariant(variant.NewVoidPtr(&target)))
	require.NoError(t, w.WriteVariant(variant.New(variant.WeakRef{})))

	r := NewBytesReader(buf.Bytes())
	got, err := r.ReadVariant()
	require.NoError(t, err)
	require.Equal(t, variant.KindVoidPtr, got.Kind())
	require.Nil(t, got.VoidPtr())

	got, err = r.ReadVariant()
	require.NoError(t, err)
	require.Equal(t, variant.KindPtr, got.Kind())
	require.Nil(t, got.WeakRef().Get())
}

func TestBinaryCustomRejected(t *testing.T) {
	v := variant.New(testBlob{tag: "x"})
	require.Equal(t, variant.KindCustom, v.Kind())

	var buf bytes.Buffer
	require.ErrorIs(t, NewWriter(&buf).WriteVariantData(v), ErrUnsupportedKind)
	_, err := NewBytesReader(nil).ReadVariantData(variant.KindCustom)
	require.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestXMLElementTree(t *testing.T) {
	root := NewXMLElement("scene")
	root.SetAttribute("version", "1")
	root.SetAttribute("version", "2")
	require.Equal(t, "2", root.Attribute("version"))
	require.True(t, root.HasAttribute("version"))
	require.False(t, root.HasAttribute("missing"))
	require.Equal(t, "", root.Attribute("missing"))

	a := root.CreateChild("node")
	a.SetAttribute("name", "a")
	b := root.CreateChild("node")
	b.SetAttribute("name", "b")
	root.CreateChild("meta").SetText("note")

	require.Equal(t, a, root.Child("node"))
	require.Len(t, root.Children("node"), 2)
	require.Len(t, root.Children(""), 3)
	require.Nil(t, root.Child("missing"))
	require.Equal(t, "note", root.Child("meta").Text())
}

func TestXMLVariantRoundTrip(t *testing.T) {
	for name, v := range sampleVariants() {
		t.Run(name, func(t *testing.T) {
			el := NewXMLElement("attribute")
			require.NoError(t, el.SetVariant(v))

			got, err := el.Variant()
			require.NoError(t, err)
			require.Equal(t, v.Kind(), got.Kind())
			require.True(t, v.Equals(got), "want %s got %s", v, got)
		})
	}
}

func TestXMLUnsupportedKinds(t *testing.T) {
	el := NewXMLElement("attribute")
	require.ErrorIs(t, el.SetVariant(variant.NewVoidPtr(nil)), ErrUnsupportedKind)
	require.ErrorIs(t, el.SetVariant(variant.New(testBlob{})), ErrUnsupportedKind)
	_, err := el.VariantValue(variant.KindPtr)
	require.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestXMLDocumentRoundTrip(t *testing.T) {
	root := NewXMLElement("object")
	root.SetAttribute("type", "Light")
	attr := root.CreateChild("attribute")
	attr.SetAttribute("name", "Color")
	require.NoError(t, attr.SetVariantValue(variant.New(vmath.Color{R: 1, G: 0.5, B: 0, A: 1})))
	root.CreateChild("note").SetText("hand edited")

	data, err := root.Bytes()
	require.NoError(t, err)

	parsed, err := ParseXML(data)
	require.NoError(t, err)
	require.Equal(t, "object", parsed.Name())
	require.Equal(t, "Light", parsed.Attribute("type"))
	require.Equal(t, "hand edited", parsed.Child("note").Text())

	got, err := parsed.Child("attribute").VariantValue(variant.KindColor)
	require.NoError(t, err)
	require.True(t, variant.New(vmath.Color{R: 1, G: 0.5, B: 0, A: 1}).Equals(got))
}

func TestXMLMalformed(t *testing.T) {
	_, err := ParseXML([]byte("<open"))
	require.Error(t, err)

	el := NewXMLElement("attribute")
	el.SetAttribute("type", "NoSuchKind")
	_, err = el.Variant()
	require.ErrorIs(t, err, ErrMalformed)

	el = NewXMLElement("attribute")
	el.SetAttribute("value", "1 2 bogus")
	_, err = el.VariantValue(variant.KindBuffer)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestJSONValueRoundTrip(t *testing.T) {
	for name, v := range sampleVariants() {
		t.Run(name, func(t *testing.T) {
			doc, err := SetJSONValue([]byte(`{}`), "attr", v)
			require.NoError(t, err)

			got, err := JSONValue(gjson.GetBytes(doc, "attr"), v.Kind())
			require.NoError(t, err)
			require.Equal(t, v.Kind(), got.Kind())
			require.True(t, v.Equals(got), "want %s got %s in %s", v, got, doc)
		})
	}
}

func TestJSONVariantTagged(t *testing.T) {
	v := variant.New([]variant.Variant{variant.New(5), variant.New("five")})
	doc, err := SetJSONVariant([]byte(`{}`), "value", v)
	require.NoError(t, err)
	require.Equal(t, "VariantVector", gjson.GetBytes(doc, "value.type").String())

	got, err := JSONVariant(gjson.GetBytes(doc, "value"))
	require.NoError(t, err)
	require.True(t, v.Equals(got))

	_, err = JSONVariant(gjson.Parse(`{"type":"Nope","value":1}`))
	require.ErrorIs(t, err, ErrMalformed)
}

func TestJSONUnsupportedKinds(t *testing.T) {
	_, err := SetJSONValue([]byte(`{}`), "p", variant.NewVoidPtr(nil))
	require.ErrorIs(t, err, ErrUnsupportedKind)
	_, err = JSONValue(gjson.Parse("0"), variant.KindPtr)
	require.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestJSONEscapePath(t *testing.T) {
	require.Equal(t, "plain", EscapeJSONPath("plain"))
	require.Equal(t, `dotted\.name`, EscapeJSONPath("dotted.name"))

	doc, err := SetJSONValue([]byte(`{}`), EscapeJSONPath("a.b"), variant.New(3))
	require.NoError(t, err)
	got := gjson.GetBytes(doc, EscapeJSONPath("a.b"))
	require.Equal(t, int64(3), got.Int())
	require.False(t, gjson.GetBytes(doc, "a.b").Exists())
}
