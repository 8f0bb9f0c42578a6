package object

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/serialize"
	"github.com/keel-engine/keel/internal/core/variant"
)

func TestAttributeAccessByName(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)
	w := newWidget(ctx)

	require.NoError(t, w.SetAttribute("X", variant.New(5)))
	require.Equal(t, 5, w.x)

	got, err := w.GetAttribute("X")
	require.NoError(t, err)
	require.Equal(t, 5, got.Int())

	_, err = w.GetAttribute("Zork")
	require.ErrorIs(t, err, ErrAttributeNotFound)
	require.ErrorIs(t, w.SetAttribute("Zork", variant.New(1)), ErrAttributeNotFound)

	// The stored kind must match the declared kind exactly.
	require.ErrorIs(t, w.SetAttribute("X", variant.New("five")), ErrKindMismatch)
	require.Equal(t, 5, w.x)
}

func TestBinarySaveLoadRoundTrip(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)

	src := newWidget(ctx)
	src.name = "bolt"
	src.x = 5
	src.health = 42
	src.mode = 2
	src.id = 77
	src.y = 9 // network-only, must not travel in the file form

	var buf bytes.Buffer
	w := serialize.NewWriter(&buf)
	require.NoError(t, src.Save(w))

	// Name(1+4) + X(4) + Health(4) + Mode as one byte + ID(4).
	require.Equal(t, 18, buf.Len())

	dst := newWidget(ctx)
	require.NoError(t, dst.Load(serialize.NewBytesReader(buf.Bytes())))
	require.Equal(t, "bolt", dst.name)
	require.Equal(t, 5, dst.x)
	require.Equal(t, 42, dst.health)
	require.Equal(t, 2, dst.mode)
	require.Equal(t, 77, dst.id)
	require.Zero(t, dst.y)
}

func TestBinaryLoadShortData(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)

	src := newWidget(ctx)
	src.name = "bolt"
	var buf bytes.Buffer
	require.NoError(t, src.Save(serialize.NewWriter(&buf)))

	dst := newWidget(ctx)
	require.Error(t, dst.Load(serialize.NewBytesReader(buf.Bytes()[:3])))
}

func TestXMLOmitsDefaultValues(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)
	w := newWidget(ctx)

	elem := serialize.NewXMLElement("widget")
	require.NoError(t, w.SaveXML(elem))
	require.Empty(t, elem.Children("attribute"))

	w.x = 5
	elem = serialize.NewXMLElement("widget")
	require.NoError(t, w.SaveXML(elem))
	children := elem.Children("attribute")
	require.Len(t, children, 1)
	require.Equal(t, "X", children[0].Attribute("name"))
	require.Equal(t, "5", children[0].Attribute("value"))
}

func TestXMLSaveDefaultsForced(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)
	w := newWidget(ctx)
	w.SetSaveDefaults(true)

	elem := serialize.NewXMLElement("widget")
	require.NoError(t, w.SaveXML(elem))
	require.Len(t, elem.Children("attribute"), 5)
}

func TestXMLRoundTrip(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)

	src := newWidget(ctx)
	src.name = "bolt"
	src.x = 5
	src.health = 42
	src.mode = 2

	elem := serialize.NewXMLElement("widget")
	require.NoError(t, src.SaveXML(elem))

	// Enums are written by name, not by index.
	var modeElem *serialize.XMLElement
	for _, child := range elem.Children("attribute") {
		if child.Attribute("name") == "Mode" {
			modeElem = child
		}
	}
	require.NotNil(t, modeElem)
	require.Equal(t, "Run", modeElem.Attribute("value"))

	dst := newWidget(ctx)
	require.NoError(t, dst.LoadXML(elem))
	require.Equal(t, "bolt", dst.name)
	require.Equal(t, 5, dst.x)
	require.Equal(t, 42, dst.health)
	require.Equal(t, 2, dst.mode)
}

func TestXMLEnumNameMatchingIsCaseInsensitive(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)
	w := newWidget(ctx)

	elem := serialize.NewXMLElement("widget")
	child := elem.CreateChild("attribute")
	child.SetAttribute("name", "Mode")
	child.SetAttribute("value", "run")
	require.NoError(t, w.LoadXML(elem))
	require.Equal(t, 2, w.mode)
}

func TestXMLUnknownAttributeAndEnumNameSkipped(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)
	w := newWidget(ctx)
	w.mode = 1

	elem := serialize.NewXMLElement("widget")
	bogus := elem.CreateChild("attribute")
	bogus.SetAttribute("name", "Bogus")
	bogus.SetAttribute("value", "1")
	flying := elem.CreateChild("attribute")
	flying.SetAttribute("name", "Mode")
	flying.SetAttribute("value", "Flying")
	known := elem.CreateChild("attribute")
	known.SetAttribute("name", "X")
	known.SetAttribute("value", "8")

	require.NoError(t, w.LoadXML(elem))
	require.Equal(t, 8, w.x)
	require.Equal(t, 1, w.mode)
}

func TestXMLEnumOutOfRangeFallsBackToNumber(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)
	w := newWidget(ctx)
	w.mode = 9

	elem := serialize.NewXMLElement("widget")
	require.NoError(t, w.SaveXML(elem))
	children := elem.Children("attribute")
	require.Len(t, children, 1)
	require.Equal(t, "9", children[0].Attribute("value"))
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)

	src := newWidget(ctx)
	src.name = "bolt"
	src.x = 5
	src.health = 42
	src.mode = 1

	data, err := src.SaveJSON()
	require.NoError(t, err)
	require.Equal(t, "Widget", gjson.GetBytes(data, "type").String())
	require.Equal(t, "Walk", gjson.GetBytes(data, "attributes.Mode").String())

	dst := newWidget(ctx)
	require.NoError(t, dst.LoadJSON(data))
	require.Equal(t, "bolt", dst.name)
	require.Equal(t, 5, dst.x)
	require.Equal(t, 42, dst.health)
	require.Equal(t, 1, dst.mode)
}

func TestJSONTypeMismatch(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)
	w := newWidget(ctx)

	err := w.LoadJSON([]byte(`{"type":"Gadget","attributes":{}}`))
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestJSONUnknownAttributeSkipped(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)
	w := newWidget(ctx)

	require.NoError(t, w.LoadJSON([]byte(`{"attributes":{"Bogus":1,"X":4}}`)))
	require.Equal(t, 4, w.x)
}

func TestResetToDefault(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)

	w := newWidget(ctx)
	w.SetInstanceDefault("X", variant.New(10))
	w.name = "zed"
	w.x = 3
	w.health = 7
	w.mode = 1
	w.id = 99

	w.ResetToDefault()
	require.Equal(t, "", w.name)
	require.Equal(t, 10, w.x)
	require.Equal(t, 100, w.health)
	require.Zero(t, w.mode)
	// Identity attributes survive a reset.
	require.Equal(t, 99, w.id)
}

func TestInstanceDefaults(t *testing.T) {
	ctx := NewContext(log.Nop())
	registerWidget(ctx)

	w := newWidget(ctx)
	w.SetInstanceDefault("X", variant.New(10))
	require.Equal(t, 10, w.AttributeDefault("X").Int())
	require.Equal(t, 100, w.AttributeDefault("Health").Int())
	require.True(t, w.AttributeDefault("Nope").IsNone())

	// A value equal to the instance default is omitted from the XML
	// form even though it differs from the class default.
	w.x = 10
	elem := serialize.NewXMLElement("widget")
	require.NoError(t, w.SaveXML(elem))
	require.Empty(t, elem.Children("attribute"))
}
