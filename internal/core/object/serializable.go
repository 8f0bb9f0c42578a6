package object

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/serialize"
	"github.com/keel-engine/keel/internal/core/variant"
)

// Serializable extends BaseObject with bulk attribute access driven by
// the type's registered attribute table: binary, XML, and JSON forms of
// the file-mode attributes plus the network replication paths.
//
// The binary form is positional with no names or version tag; reader
// and writer must run against the same registered schema. The XML and
// JSON forms match by name and tolerate added, removed, and reordered
// attributes.
type Serializable struct {
	BaseObject

	// instanceDefaults overlays per-instance defaults over the class
	// defaults, allocated on first use.
	instanceDefaults map[string]variant.Variant
	// interceptMask claims network attribute indices whose inbound
	// updates are re-published as events instead of applied.
	interceptMask uint64
	// saveDefaults forces text forms to write attributes that equal
	// their default.
	saveDefaults bool
}

// Attributes returns the receiver type's full attribute table.
func (o *Serializable) Attributes() []*AttributeInfo {
	if o.context == nil || o.typeInfo == nil {
		return nil
	}
	return o.context.Attributes(o.typeInfo.Type())
}

// NetworkAttributes returns the network-filtered attribute table.
func (o *Serializable) NetworkAttributes() []*AttributeInfo {
	if o.context == nil || o.typeInfo == nil {
		return nil
	}
	return o.context.NetworkAttributes(o.typeInfo.Type())
}

// OnGetAttribute reads one attribute into dest through its accessor.
func (o *Serializable) OnGetAttribute(info *AttributeInfo, dest *variant.Variant) error {
	return info.Accessor.Get(o.self, dest)
}

// OnSetAttribute writes one attribute through its accessor. The value's
// kind must match the declared kind exactly; attribute writes never
// coerce.
func (o *Serializable) OnSetAttribute(info *AttributeInfo, value variant.Variant) error {
	if value.Kind() != info.Kind {
		o.logAttr().Error("attribute write with mismatched kind",
			log.String("attribute", info.Name),
			log.String("want", info.Kind.String()),
			log.String("got", value.Kind().String()))
		return fmt.Errorf("%w: %s wants %s, got %s", ErrKindMismatch, info.Name, info.Kind, value.Kind())
	}
	return info.Accessor.Set(o.self, value)
}

// GetAttribute reads an attribute by name.
func (o *Serializable) GetAttribute(name string) (variant.Variant, error) {
	info := o.findAttribute(name)
	if info == nil {
		return variant.Variant{}, fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
	}
	var value variant.Variant
	err := o.OnGetAttribute(info, &value)
	return value, err
}

// SetAttribute writes an attribute by name.
func (o *Serializable) SetAttribute(name string, value variant.Variant) error {
	info := o.findAttribute(name)
	if info == nil {
		return fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
	}
	return o.OnSetAttribute(info, value)
}

// Save writes every file-mode attribute in table order. Enum attributes
// shrink to one byte; everything else is the kind's payload form.
func (o *Serializable) Save(w *serialize.Writer) error {
	for _, info := range o.Attributes() {
		if info.Mode&AttrFile == 0 {
			continue
		}
		var value variant.Variant
		if err := o.OnGetAttribute(info, &value); err != nil {
			return err
		}
		if info.IsEnum() {
			if err := w.WriteByte(byte(value.Int())); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteVariantData(value); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every file-mode attribute in table order. The stream must
// have been written against the same attribute schema. Already-applied
// attributes stay applied when a later read fails.
func (o *Serializable) Load(r *serialize.Reader) error {
	for _, info := range o.Attributes() {
		if info.Mode&AttrFile == 0 {
			continue
		}
		var value variant.Variant
		if info.IsEnum() {
			b, err := r.ReadByte()
			if err != nil {
				return o.loadFailed(info, err)
			}
			value = variant.New(int(b))
		} else {
			var err error
			value, err = r.ReadVariantData(info.Kind)
			if err != nil {
				return o.loadFailed(info, err)
			}
		}
		if err := o.OnSetAttribute(info, value); err != nil {
			return err
		}
	}
	return nil
}

func (o *Serializable) loadFailed(info *AttributeInfo, err error) error {
	o.logAttr().Error("attribute load failed",
		log.String("attribute", info.Name),
		log.Error(err))
	return fmt.Errorf("load attribute %s: %w", info.Name, err)
}

// SaveXML writes file-mode attributes as named child elements, omitting
// attributes that equal their effective default unless save-defaults is
// on.
func (o *Serializable) SaveXML(elem *serialize.XMLElement) error {
	for _, info := range o.Attributes() {
		if info.Mode&AttrFile == 0 {
			continue
		}
		var value variant.Variant
		if err := o.OnGetAttribute(info, &value); err != nil {
			return err
		}
		if !o.saveDefaults && value.Equals(o.attributeDefault(info)) {
			continue
		}
		child := elem.CreateChild("attribute")
		child.SetAttribute("name", info.Name)
		if info.IsEnum() {
			child.SetAttribute("value", o.enumValueName(info, value))
			continue
		}
		if err := child.SetVariantValue(value); err != nil {
			return err
		}
	}
	return nil
}

// LoadXML applies attribute child elements by name. Unknown attribute
// and enum names are logged and skipped; a malformed value fails the
// load, leaving earlier attributes applied.
func (o *Serializable) LoadXML(elem *serialize.XMLElement) error {
	for _, child := range elem.Children("attribute") {
		name := child.Attribute("name")
		info := o.findAttribute(name)
		if info == nil {
			o.logAttr().Warn("unknown attribute in document skipped",
				log.String("attribute", name))
			continue
		}
		var value variant.Variant
		if info.IsEnum() {
			index, ok := o.enumIndexOf(info, child.Attribute("value"))
			if !ok {
				continue
			}
			value = variant.New(index)
		} else {
			var err error
			value, err = child.VariantValue(info.Kind)
			if err != nil {
				return o.loadFailed(info, err)
			}
		}
		if err := o.OnSetAttribute(info, value); err != nil {
			return err
		}
	}
	return nil
}

// SaveJSON renders the object as a standalone document with its type
// name and named attributes, following the XML omission rules.
func (o *Serializable) SaveJSON() ([]byte, error) {
	doc, err := sjson.SetBytes([]byte(`{}`), "type", o.typeInfo.Name())
	if err != nil {
		return nil, err
	}
	for _, info := range o.Attributes() {
		if info.Mode&AttrFile == 0 {
			continue
		}
		var value variant.Variant
		if err := o.OnGetAttribute(info, &value); err != nil {
			return nil, err
		}
		if !o.saveDefaults && value.Equals(o.attributeDefault(info)) {
			continue
		}
		path := "attributes." + serialize.EscapeJSONPath(info.Name)
		if info.IsEnum() {
			doc, err = sjson.SetBytes(doc, path, o.enumValueName(info, value))
		} else {
			doc, err = serialize.SetJSONValue(doc, path, value)
		}
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// LoadJSON applies a document written by SaveJSON. A type member, when
// present, must match the receiver's type.
func (o *Serializable) LoadJSON(data []byte) error {
	doc := gjson.ParseBytes(data)
	if typeName := doc.Get("type"); typeName.Exists() && typeName.String() != o.typeInfo.Name() {
		return fmt.Errorf("%w: document is %q, receiver is %q", ErrTypeMismatch, typeName.String(), o.typeInfo.Name())
	}
	var loadErr error
	doc.Get("attributes").ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		info := o.findAttribute(name)
		if info == nil {
			o.logAttr().Warn("unknown attribute in document skipped",
				log.String("attribute", name))
			return true
		}
		var v variant.Variant
		if info.IsEnum() {
			index, ok := o.enumIndexOf(info, value.String())
			if !ok {
				return true
			}
			v = variant.New(index)
		} else {
			var err error
			v, err = serialize.JSONValue(value, info.Kind)
			if err != nil {
				loadErr = o.loadFailed(info, err)
				return false
			}
		}
		if err := o.OnSetAttribute(info, v); err != nil {
			loadErr = err
			return false
		}
		return true
	})
	return loadErr
}

// ResetToDefault restores every editable attribute to its effective
// default. Read-only, hidden, and identity attributes are left alone;
// they describe what the object is, not how it is configured.
func (o *Serializable) ResetToDefault() {
	for _, info := range o.Attributes() {
		if info.Mode&(AttrReadOnly|AttrNoEdit|AttrNodeID|AttrComponentID) != 0 {
			continue
		}
		value := o.attributeDefault(info).Clone()
		if err := o.OnSetAttribute(info, value); err != nil {
			o.logAttr().Error("attribute reset failed",
				log.String("attribute", info.Name),
				log.Error(err))
		}
	}
}

// AttributeDefault returns the effective default for a named attribute:
// the instance-level override when present, else the class default. An
// unknown name yields the none value.
func (o *Serializable) AttributeDefault(name string) variant.Variant {
	info := o.findAttribute(name)
	if info == nil {
		return variant.Variant{}
	}
	return o.attributeDefault(info)
}

// SetInstanceDefault overlays a per-instance default for one attribute.
// The overlay map is allocated on first use; ordinary instances never
// pay for it.
func (o *Serializable) SetInstanceDefault(name string, value variant.Variant) {
	if o.instanceDefaults == nil {
		o.instanceDefaults = make(map[string]variant.Variant)
	}
	o.instanceDefaults[name] = value
}

// SetSaveDefaults forces text serialization to keep attributes that
// equal their default.
func (o *Serializable) SetSaveDefaults(enable bool) { o.saveDefaults = enable }

func (o *Serializable) attributeDefault(info *AttributeInfo) variant.Variant {
	if o.instanceDefaults != nil {
		if value, ok := o.instanceDefaults[info.Name]; ok {
			return value
		}
	}
	return info.Default
}

func (o *Serializable) findAttribute(name string) *AttributeInfo {
	for _, info := range o.Attributes() {
		if info.Name == name {
			return info
		}
	}
	return nil
}

func (o *Serializable) enumValueName(info *AttributeInfo, value variant.Variant) string {
	name, ok := info.enumName(value.Int())
	if !ok {
		o.logAttr().Warn("enum value outside the name table written numerically",
			log.String("attribute", info.Name),
			log.Int("value", value.Int()))
		return strconv.Itoa(value.Int())
	}
	return name
}

func (o *Serializable) enumIndexOf(info *AttributeInfo, name string) (int, bool) {
	for i, candidate := range info.EnumNames {
		if strings.EqualFold(candidate, name) {
			return i, true
		}
	}
	o.logAttr().Warn("unknown enum name in document skipped",
		log.String("attribute", info.Name),
		log.String("value", name))
	return 0, false
}

func (o *Serializable) logAttr() log.Log {
	if o.context != nil {
		return o.context.log
	}
	return log.Provide()
}
