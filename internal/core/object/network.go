package object

import (
	"fmt"

	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/serialize"
	"github.com/keel-engine/keel/internal/core/variant"
)

// DirtyBits tracks which network attributes changed since the last
// replication pass, one bit per attribute in network-table order. The
// zero value is all-clean.
type DirtyBits struct {
	data  [MaxNetworkAttributes / 8]byte
	count int
}

// Set marks attribute index i dirty. Out-of-range indices are ignored.
func (b *DirtyBits) Set(i int) {
	if i < 0 || i >= MaxNetworkAttributes {
		return
	}
	mask := byte(1) << (i & 7)
	if b.data[i>>3]&mask == 0 {
		b.data[i>>3] |= mask
		b.count++
	}
}

// Clear unmarks attribute index i.
func (b *DirtyBits) Clear(i int) {
	if i < 0 || i >= MaxNetworkAttributes {
		return
	}
	mask := byte(1) << (i & 7)
	if b.data[i>>3]&mask != 0 {
		b.data[i>>3] &^= mask
		b.count--
	}
}

// ClearAll resets every bit.
func (b *DirtyBits) ClearAll() {
	b.data = [MaxNetworkAttributes / 8]byte{}
	b.count = 0
}

// IsSet reports whether attribute index i is dirty.
func (b *DirtyBits) IsSet(i int) bool {
	if i < 0 || i >= MaxNetworkAttributes {
		return false
	}
	return b.data[i>>3]&(byte(1)<<(i&7)) != 0
}

// Count returns the number of set bits.
func (b *DirtyBits) Count() int { return b.count }

// WriteInitialDeltaUpdate writes the snapshot a new connection starts
// from: a bitset covering the network attributes, with bits set for the
// ones differing from their class default, followed by those values in
// table order. Latest-data attributes travel through the latest-data
// path instead and never appear here.
func (o *Serializable) WriteInitialDeltaUpdate(w *serialize.Writer) error {
	attrs := o.NetworkAttributes()
	if len(attrs) == 0 {
		return nil
	}
	var bits DirtyBits
	for i, info := range attrs {
		if info.Mode&AttrLatestData != 0 {
			continue
		}
		var value variant.Variant
		if err := o.OnGetAttribute(info, &value); err != nil {
			return err
		}
		if !value.Equals(info.Default) {
			bits.Set(i)
		}
	}
	return o.writeDelta(w, attrs, bits)
}

// WriteDeltaUpdate writes the attributes marked in bits: the bitset,
// then each marked value in table order. Latest-data bits are dropped
// from the written set so the reader's bitset walk matches.
func (o *Serializable) WriteDeltaUpdate(w *serialize.Writer, bits DirtyBits) error {
	attrs := o.NetworkAttributes()
	if len(attrs) == 0 {
		return nil
	}
	for i, info := range attrs {
		if info.Mode&AttrLatestData != 0 {
			bits.Clear(i)
		}
	}
	return o.writeDelta(w, attrs, bits)
}

func (o *Serializable) writeDelta(w *serialize.Writer, attrs []*AttributeInfo, bits DirtyBits) error {
	numBytes := (len(attrs) + 7) / 8
	if err := w.WriteRaw(bits.data[:numBytes]); err != nil {
		return err
	}
	for i, info := range attrs {
		if !bits.IsSet(i) {
			continue
		}
		var value variant.Variant
		if err := o.OnGetAttribute(info, &value); err != nil {
			return err
		}
		if err := w.WriteVariantData(value); err != nil {
			return err
		}
	}
	return nil
}

// WriteLatestDataUpdate writes every latest-data attribute
// unconditionally in table order, with no bitset. Only the newest value
// of these attributes matters, so they skip delta bookkeeping entirely.
func (o *Serializable) WriteLatestDataUpdate(w *serialize.Writer) error {
	for _, info := range o.NetworkAttributes() {
		if info.Mode&AttrLatestData == 0 {
			continue
		}
		var value variant.Variant
		if err := o.OnGetAttribute(info, &value); err != nil {
			return err
		}
		if err := w.WriteVariantData(value); err != nil {
			return err
		}
	}
	return nil
}

// ReadDeltaUpdate applies a delta written by WriteDeltaUpdate or
// WriteInitialDeltaUpdate, reporting whether anything arrived. Claimed
// indices are re-published as events instead of applied; a failed
// attribute write is logged and the rest of the delta still applies.
func (o *Serializable) ReadDeltaUpdate(r *serialize.Reader) (bool, error) {
	attrs := o.NetworkAttributes()
	if len(attrs) == 0 {
		return false, nil
	}
	var bits DirtyBits
	numBytes := (len(attrs) + 7) / 8
	if err := r.ReadRaw(bits.data[:numBytes]); err != nil {
		return false, fmt.Errorf("read delta bitset: %w", err)
	}
	changed := false
	for i, info := range attrs {
		if !bits.IsSet(i) {
			continue
		}
		value, err := r.ReadVariantData(info.Kind)
		if err != nil {
			return changed, o.loadFailed(info, err)
		}
		changed = true
		o.applyNetworkAttribute(i, info, value)
	}
	return changed, nil
}

// ReadLatestDataUpdate applies a latest-data payload written by
// WriteLatestDataUpdate, reporting whether anything arrived.
func (o *Serializable) ReadLatestDataUpdate(r *serialize.Reader) (bool, error) {
	changed := false
	for i, info := range o.NetworkAttributes() {
		if info.Mode&AttrLatestData == 0 {
			continue
		}
		value, err := r.ReadVariantData(info.Kind)
		if err != nil {
			return changed, o.loadFailed(info, err)
		}
		changed = true
		o.applyNetworkAttribute(i, info, value)
	}
	return changed, nil
}

func (o *Serializable) applyNetworkAttribute(netIndex int, info *AttributeInfo, value variant.Variant) {
	if o.interceptMask&(uint64(1)<<uint(netIndex)) != 0 {
		o.sendInterceptEvent(info, value)
		return
	}
	if err := o.OnSetAttribute(info, value); err != nil {
		o.logAttr().Error("network attribute apply failed",
			log.String("attribute", info.Name),
			log.Error(err))
	}
}

// SetInterceptNetworkUpdate claims or releases one network attribute:
// while claimed, inbound updates for it are re-published as an
// InterceptNetworkUpdate event carrying the raw value instead of being
// applied, so the owner can run its own merge logic.
func (o *Serializable) SetInterceptNetworkUpdate(name string, enable bool) error {
	for i, info := range o.NetworkAttributes() {
		if info.Name != name {
			continue
		}
		mask := uint64(1) << uint(i)
		if enable {
			o.interceptMask |= mask
		} else {
			o.interceptMask &^= mask
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAttributeNotFound, name)
}

// sendInterceptEvent publishes an intercepted inbound value. The index
// parameter is the attribute's position in the full table, resolved by
// descriptor identity; the network table is a filtered view whose
// indices do not line up with the full table.
func (o *Serializable) sendInterceptEvent(info *AttributeInfo, value variant.Variant) {
	index := -1
	for i, a := range o.Attributes() {
		if a == info {
			index = i
			break
		}
	}
	data := o.context.EventDataMap()
	data[ParamSerializable] = variant.New(o.self)
	data[ParamName] = variant.New(info.Name)
	data[ParamIndex] = variant.New(index)
	data[ParamValue] = value
	o.SendEvent(EventInterceptNetworkUpdate, data)
}
