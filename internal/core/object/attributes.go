package object

import (
	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/variant"
)

// MaxNetworkAttributes bounds the per-type network attribute list; the
// replication delta bitset is sized for it.
const MaxNetworkAttributes = 64

// RegisterAttribute appends an attribute descriptor to a type's table.
// Kinds with no serialized form (none, opaque pointer, weak reference)
// and descriptors without an accessor are rejected with a warning. The
// network-filtered table shares the stored descriptor when AttrNet is
// set.
func (c *Context) RegisterAttribute(typeHash hash.StringHash, info AttributeInfo) {
	switch info.Kind {
	case variant.KindNone, variant.KindVoidPtr, variant.KindPtr:
		c.log.Warn("attribute kind cannot be serialized, registration ignored",
			log.String("attribute", info.Name),
			log.String("kind", info.Kind.String()))
		return
	}
	if info.Accessor == nil {
		c.log.Warn("attribute has no accessor, registration ignored",
			log.String("attribute", info.Name))
		return
	}
	if info.Mode&AttrNet != 0 && len(c.networkAttributes[typeHash]) >= MaxNetworkAttributes {
		c.log.Error("network attribute limit reached, attribute kept file-only",
			log.String("attribute", info.Name),
			log.Int("limit", MaxNetworkAttributes))
		info.Mode &^= AttrNet
	}
	stored := &info
	c.attributes[typeHash] = append(c.attributes[typeHash], stored)
	if info.Mode&AttrNet != 0 {
		c.networkAttributes[typeHash] = append(c.networkAttributes[typeHash], stored)
	}
}

// RemoveAttribute removes the first attribute matching name from both
// tables. A type whose table empties is dropped from the map entirely.
func (c *Context) RemoveAttribute(typeHash hash.StringHash, name string) {
	attrs := c.attributes[typeHash]
	for i, info := range attrs {
		if info.Name != name {
			continue
		}
		c.attributes[typeHash] = append(attrs[:i], attrs[i+1:]...)
		if len(c.attributes[typeHash]) == 0 {
			delete(c.attributes, typeHash)
		}
		c.removeNetworkAttribute(typeHash, info)
		return
	}
}

func (c *Context) removeNetworkAttribute(typeHash hash.StringHash, info *AttributeInfo) {
	netAttrs := c.networkAttributes[typeHash]
	for i, netInfo := range netAttrs {
		if netInfo != info {
			continue
		}
		c.networkAttributes[typeHash] = append(netAttrs[:i], netAttrs[i+1:]...)
		if len(c.networkAttributes[typeHash]) == 0 {
			delete(c.networkAttributes, typeHash)
		}
		return
	}
}

// CopyBaseAttributes appends a copy of every base-type attribute onto
// the derived type's tables, preserving modes. Copying a type onto
// itself is rejected; it would double the table on every call.
func (c *Context) CopyBaseAttributes(baseHash, derivedHash hash.StringHash) {
	if baseHash == derivedHash {
		c.log.Warn("attribute inheritance from a type to itself ignored",
			log.String("type", c.TypeNameOf(baseHash)))
		return
	}
	for _, info := range c.attributes[baseHash] {
		c.RegisterAttribute(derivedHash, *info)
	}
}

// Attribute returns the named attribute of a type, or nil.
func (c *Context) Attribute(typeHash hash.StringHash, name string) *AttributeInfo {
	for _, info := range c.attributes[typeHash] {
		if info.Name == name {
			return info
		}
	}
	return nil
}

// Attributes returns a type's full attribute table in registration
// order, or nil. The slice is the live table; callers must not mutate.
func (c *Context) Attributes(typeHash hash.StringHash) []*AttributeInfo {
	return c.attributes[typeHash]
}

// NetworkAttributes returns the network-filtered table, or nil.
func (c *Context) NetworkAttributes(typeHash hash.StringHash) []*AttributeInfo {
	return c.networkAttributes[typeHash]
}
