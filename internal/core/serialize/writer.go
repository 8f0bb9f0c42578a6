// Package serialize implements the engine's serialization codecs: a
// positional little-endian binary form, an XML element tree, and a JSON
// form over gjson/sjson documents.
//
// The binary form carries no field names, no lengths beyond string and
// buffer prefixes, and no version tag. Reader and writer must agree on
// the exact field schema; any drift silently misreads from the divergence
// point on. Strings and buffers are uvarint length-prefixed, numerics are
// fixed-width little-endian.
package serialize

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/variant"
)

// Writer encodes engine values into the binary wire form.
type Writer struct {
	w       io.Writer
	scratch [8]byte
	varint  [binary.MaxVarintLen64]byte
}

// NewWriter returns a Writer encoding into w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(p []byte) error {
	_, err := w.w.Write(p)
	return err
}

// WriteRaw writes bytes with no length prefix, for fixed-size payloads
// like delta bitsets.
func (w *Writer) WriteRaw(p []byte) error {
	return w.write(p)
}

func (w *Writer) WriteByte(b byte) error {
	w.scratch[0] = b
	return w.write(w.scratch[:1])
}

func (w *Writer) WriteBool(b bool) error {
	if b {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v))
}

func (w *Writer) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	return w.write(w.scratch[:4])
}

func (w *Writer) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	return w.write(w.scratch[:8])
}

func (w *Writer) WriteFloat32(v float32) error {
	return w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) error {
	return w.WriteUint64(math.Float64bits(v))
}

func (w *Writer) WriteUvarint(v uint64) error {
	n := binary.PutUvarint(w.varint[:], v)
	return w.write(w.varint[:n])
}

func (w *Writer) WriteString(s string) error {
	if err := w.WriteUvarint(uint64(len(s))); err != nil {
		return err
	}
	return w.write([]byte(s))
}

func (w *Writer) WriteBuffer(p []byte) error {
	if err := w.WriteUvarint(uint64(len(p))); err != nil {
		return err
	}
	return w.write(p)
}

func (w *Writer) WriteHash(h hash.StringHash) error {
	return w.WriteUint32(h.Value())
}

func (w *Writer) writeFloats(values ...float32) error {
	for _, v := range values {
		if err := w.WriteFloat32(v); err != nil {
			return err
		}
	}
	return nil
}

// WriteVariant writes the kind tag followed by the payload.
func (w *Writer) WriteVariant(v variant.Variant) error {
	if err := w.WriteByte(byte(v.Kind())); err != nil {
		return err
	}
	return w.WriteVariantData(v)
}

// WriteVariantData writes the payload alone; the reader must know the
// kind. Opaque and weak pointers serialize as a zero placeholder, custom
// payloads are rejected.
func (w *Writer) WriteVariantData(v variant.Variant) error {
	switch v.Kind() {
	case variant.KindNone:
		return nil
	case variant.KindInt:
		return w.WriteInt32(int32(v.Int()))
	case variant.KindInt64:
		return w.WriteInt64(v.Int64())
	case variant.KindBool:
		return w.WriteBool(v.Bool())
	case variant.KindFloat:
		return w.WriteFloat32(v.Float())
	case variant.KindDouble:
		return w.WriteFloat64(v.Double())
	case variant.KindString:
		return w.WriteString(v.Str())
	case variant.KindBuffer:
		return w.WriteBuffer(v.Buffer())
	case variant.KindVector2:
		p := v.Vector2()
		return w.writeFloats(p.X, p.Y)
	case variant.KindVector3:
		p := v.Vector3()
		return w.writeFloats(p.X, p.Y, p.Z)
	case variant.KindVector4:
		p := v.Vector4()
		return w.writeFloats(p.X, p.Y, p.Z, p.W)
	case variant.KindQuaternion:
		q := v.Quaternion()
		return w.writeFloats(q.W, q.X, q.Y, q.Z)
	case variant.KindColor:
		c := v.Color()
		return w.writeFloats(c.R, c.G, c.B, c.A)
	case variant.KindRect:
		r := v.Rect()
		return w.writeFloats(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
	case variant.KindIntRect:
		r := v.IntRect()
		return w.writeInt32s(r.Left, r.Top, r.Right, r.Bottom)
	case variant.KindIntVector2:
		p := v.IntVector2()
		return w.writeInt32s(p.X, p.Y)
	case variant.KindIntVector3:
		p := v.IntVector3()
		return w.writeInt32s(p.X, p.Y, p.Z)
	case variant.KindMatrix3:
		m := v.Matrix3()
		return w.writeFloats(m.M[:]...)
	case variant.KindMatrix3x4:
		m := v.Matrix3x4()
		return w.writeFloats(m.M[:]...)
	case variant.KindMatrix4:
		m := v.Matrix4()
		return w.writeFloats(m.M[:]...)
	case variant.KindResourceRef:
		r := v.ResourceRef()
		if err := w.WriteHash(r.Type); err != nil {
			return err
		}
		return w.WriteString(r.Name)
	case variant.KindResourceRefList:
		r := v.ResourceRefList()
		if err := w.WriteHash(r.Type); err != nil {
			return err
		}
		if err := w.WriteUvarint(uint64(len(r.Names))); err != nil {
			return err
		}
		for _, name := range r.Names {
			if err := w.WriteString(name); err != nil {
				return err
			}
		}
		return nil
	case variant.KindStringVector:
		values := v.StringVector()
		if err := w.WriteUvarint(uint64(len(values))); err != nil {
			return err
		}
		for _, s := range values {
			if err := w.WriteString(s); err != nil {
				return err
			}
		}
		return nil
	case variant.KindVariantVector:
		values := v.VariantVector()
		if err := w.WriteUvarint(uint64(len(values))); err != nil {
			return err
		}
		for _, e := range values {
			if err := w.WriteVariant(e); err != nil {
				return err
			}
		}
		return nil
	case variant.KindVariantMap:
		m := v.VariantMap()
		if err := w.WriteUvarint(uint64(len(m))); err != nil {
			return err
		}
		for k, e := range m {
			if err := w.WriteHash(k); err != nil {
				return err
			}
			if err := w.WriteVariant(e); err != nil {
				return err
			}
		}
		return nil
	case variant.KindVoidPtr, variant.KindPtr:
		// Pointers have no transferable form; a zero placeholder keeps
		// the positional layout intact.
		return w.WriteUint32(0)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, v.Kind())
	}
}

func (w *Writer) writeInt32s(values ...int) error {
	for _, v := range values {
		if err := w.WriteInt32(int32(v)); err != nil {
			return err
		}
	}
	return nil
}
