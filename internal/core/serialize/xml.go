package serialize

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/variant"
	"github.com/keel-engine/keel/pkg/generic"
)

// XMLElement is one node of the XML document tree used for name-matched
// serialization. Attributes keep insertion order so output is stable.
type XMLElement struct {
	name     string
	attrs    []XMLAttr
	children []*XMLElement
	text     string
}

// XMLAttr is one name="value" pair on an element.
type XMLAttr struct {
	Name  string
	Value string
}

// NewXMLElement returns a root element with the given name.
func NewXMLElement(name string) *XMLElement {
	return &XMLElement{name: name}
}

func (e *XMLElement) Name() string { return e.name }

// CreateChild appends a new child element and returns it.
func (e *XMLElement) CreateChild(name string) *XMLElement {
	child := &XMLElement{name: name}
	e.children = append(e.children, child)
	return child
}

// Child returns the first child with the given name, or nil.
func (e *XMLElement) Child(name string) *XMLElement {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Children returns the children with the given name; an empty name
// returns all children.
func (e *XMLElement) Children(name string) []*XMLElement {
	if name == "" {
		return e.children
	}
	var out []*XMLElement
	for _, c := range e.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// SetAttribute sets or replaces an attribute.
func (e *XMLElement) SetAttribute(name, value string) {
	for i := range e.attrs {
		if e.attrs[i].Name == name {
			e.attrs[i].Value = value
			return
		}
	}
	e.attrs = append(e.attrs, XMLAttr{Name: name, Value: value})
}

// Attribute returns the attribute value, or "" when absent.
func (e *XMLElement) Attribute(name string) string {
	for _, a := range e.attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// HasAttribute reports whether the attribute is present.
func (e *XMLElement) HasAttribute(name string) bool {
	for _, a := range e.attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (e *XMLElement) SetText(text string) { e.text = text }
func (e *XMLElement) Text() string        { return e.text }

// SetVariant writes the value with its kind tag, so it can be read back
// with Variant.
func (e *XMLElement) SetVariant(v variant.Variant) error {
	e.SetAttribute("type", v.Kind().String())
	return e.SetVariantValue(v)
}

// SetVariantValue writes the value alone; the reader must know the kind.
// Scalar kinds land in the value attribute, nested vectors and maps
// become variant child elements. Pointer and custom kinds are rejected.
func (e *XMLElement) SetVariantValue(v variant.Variant) error {
	switch v.Kind() {
	case variant.KindVoidPtr, variant.KindPtr, variant.KindCustom:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, v.Kind())
	case variant.KindVariantVector:
		for _, item := range v.VariantVector() {
			child := e.CreateChild("variant")
			if err := child.SetVariant(item); err != nil {
				return err
			}
		}
		return nil
	case variant.KindVariantMap:
		for k, item := range v.VariantMap() {
			child := e.CreateChild("variant")
			child.SetAttribute("hash", strconv.FormatUint(uint64(k.Value()), 10))
			if err := child.SetVariant(item); err != nil {
				return err
			}
		}
		return nil
	default:
		e.SetAttribute("value", v.String())
		return nil
	}
}

// Variant reads a value written with SetVariant.
func (e *XMLElement) Variant() (variant.Variant, error) {
	kind, ok := variant.KindFromName(e.Attribute("type"))
	if !ok {
		return variant.Variant{}, fmt.Errorf("%w: unknown variant type %q", ErrMalformed, e.Attribute("type"))
	}
	return e.VariantValue(kind)
}

// VariantValue reads a value of a known kind written with
// SetVariantValue.
func (e *XMLElement) VariantValue(kind variant.Kind) (variant.Variant, error) {
	switch kind {
	case variant.KindVoidPtr, variant.KindPtr, variant.KindCustom:
		return variant.Variant{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	case variant.KindBuffer:
		data, err := parseBufferString(e.Attribute("value"))
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.New(data), nil
	case variant.KindVariantVector:
		var values []variant.Variant
		for _, child := range e.Children("variant") {
			item, err := child.Variant()
			if err != nil {
				return variant.Variant{}, err
			}
			values = append(values, item)
		}
		return variant.New(values), nil
	case variant.KindVariantMap:
		m := make(variant.Map)
		for _, child := range e.Children("variant") {
			key, err := strconv.ParseUint(child.Attribute("hash"), 10, 32)
			if err != nil {
				return variant.Variant{}, fmt.Errorf("%w: variant map key %q", ErrMalformed, child.Attribute("hash"))
			}
			item, err := child.Variant()
			if err != nil {
				return variant.Variant{}, err
			}
			m[hash.StringHash(key)] = item
		}
		return variant.New(m), nil
	default:
		return variant.FromString(kind, e.Attribute("value"))
	}
}

// parseBufferString inverts the buffer's space-separated decimal form.
func parseBufferString(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	fields := strings.Fields(s)
	data := make([]byte, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: buffer byte %q", ErrMalformed, f)
		}
		data = append(data, byte(n))
	}
	return data, nil
}

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

func (e *XMLElement) toNode() xmlNode {
	n := xmlNode{
		XMLName: xml.Name{Local: e.name},
		Content: e.text,
	}
	for _, a := range e.attrs {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	for _, c := range e.children {
		n.Nodes = append(n.Nodes, c.toNode())
	}
	return n
}

func fromNode(n xmlNode) *XMLElement {
	e := &XMLElement{
		name: n.XMLName.Local,
		text: strings.TrimSpace(n.Content),
	}
	for _, a := range n.Attrs {
		e.attrs = append(e.attrs, XMLAttr{Name: a.Name.Local, Value: a.Value})
	}
	for _, c := range n.Nodes {
		e.children = append(e.children, fromNode(c))
	}
	return e
}

var xmlBufPool = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) })

// Bytes renders the element tree as indented XML.
func (e *XMLElement) Bytes() ([]byte, error) {
	buf := xmlBufPool.Get()
	defer func() {
		buf.Reset()
		xmlBufPool.Put(buf)
	}()
	enc := xml.NewEncoder(buf)
	enc.Indent("", "  ")
	if err := enc.Encode(e.toNode()); err != nil {
		return nil, fmt.Errorf("serialize: encode xml: %w", err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// ParseXML parses an XML document into an element tree.
func ParseXML(data []byte) (*XMLElement, error) {
	var n xmlNode
	if err := xml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("serialize: parse xml: %w", err)
	}
	return fromNode(n), nil
}
