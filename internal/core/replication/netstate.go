package replication

import (
	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/serialize"
	"github.com/keel-engine/keel/internal/core/variant"
)

// Replicated is the contract a type must meet to travel over the wire.
// Anything embedding object.Serializable satisfies it; the interface
// exists so the server can hold mixed object types without reflection.
type Replicated interface {
	object.Object

	NetworkAttributes() []*object.AttributeInfo
	OnGetAttribute(info *object.AttributeInfo, dest *variant.Variant) error
	WriteInitialDeltaUpdate(w *serialize.Writer) error
	WriteDeltaUpdate(w *serialize.Writer, bits object.DirtyBits) error
	WriteLatestDataUpdate(w *serialize.Writer) error
	ReadDeltaUpdate(r *serialize.Reader) (bool, error)
	ReadLatestDataUpdate(r *serialize.Reader) (bool, error)
}

// netState shadows the last broadcast value of every reliable network
// attribute of one server object, so a tick only sends what changed.
type netState struct {
	obj       Replicated
	netID     uint32
	shadow    []variant.Variant
	hasLatest bool

	// Frames staged by encodeTick and flushed by the server tick.
	pendingDelta  []byte
	pendingLatest []byte
}

func newNetState(obj Replicated, netID uint32) *netState {
	attrs := obj.NetworkAttributes()
	s := &netState{
		obj:    obj,
		netID:  netID,
		shadow: make([]variant.Variant, len(attrs)),
	}
	for i, info := range attrs {
		if info.Mode&object.AttrLatestData != 0 {
			s.hasLatest = true
			continue
		}
		var value variant.Variant
		if err := obj.OnGetAttribute(info, &value); err != nil {
			continue
		}
		s.shadow[i] = value.Clone()
	}
	return s
}

// scanDirty compares the object against its shadow and returns the
// changed reliable attributes, committing the new values. Latest-data
// attributes are excluded; they are broadcast every tick.
func (s *netState) scanDirty() (object.DirtyBits, bool) {
	attrs := s.obj.NetworkAttributes()
	if len(attrs) > len(s.shadow) {
		grown := make([]variant.Variant, len(attrs))
		copy(grown, s.shadow)
		s.shadow = grown
	}
	var bits object.DirtyBits
	dirty := false
	for i, info := range attrs {
		if info.Mode&object.AttrLatestData != 0 {
			continue
		}
		var value variant.Variant
		if err := s.obj.OnGetAttribute(info, &value); err != nil {
			continue
		}
		if value.Equals(s.shadow[i]) {
			continue
		}
		s.shadow[i] = value.Clone()
		bits.Set(i)
		dirty = true
	}
	return bits, dirty
}
