package serialize

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/variant"
	"github.com/keel-engine/keel/internal/core/vmath"
)

// Reader decodes the binary wire form produced by Writer. Field order and
// kinds must match the writer's; there is nothing in the stream to detect
// drift.
type Reader struct {
	r       io.Reader
	br      io.ByteReader
	scratch [8]byte
}

// NewReader returns a Reader decoding from r.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{r: r}
	if br, ok := r.(io.ByteReader); ok {
		rd.br = br
	} else {
		rd.br = &byteReader{r: r}
	}
	return rd
}

// NewBytesReader returns a Reader over an in-memory buffer.
func NewBytesReader(data []byte) *Reader {
	return NewReader(bytes.NewReader(data))
}

type byteReader struct {
	r   io.Reader
	one [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.one[:]); err != nil {
		return 0, err
	}
	return b.one[0], nil
}

// ReadRaw fills p exactly, for fixed-size payloads like delta bitsets.
func (r *Reader) ReadRaw(p []byte) error {
	_, err := io.ReadFull(r.r, p)
	return err
}

func (r *Reader) ReadByte() (byte, error) {
	return r.br.ReadByte()
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.ReadRaw(r.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.scratch[:4]), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.ReadRaw(r.scratch[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.scratch[:8]), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

func (r *Reader) ReadUvarint() (uint64, error) {
	return binary.ReadUvarint(r.br)
}

func (r *Reader) readLen() (int, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if n > maxBlob {
		return 0, fmt.Errorf("%w: %d", ErrBlobTooLarge, n)
	}
	return int(n), nil
}

func (r *Reader) ReadString() (string, error) {
	n, err := r.readLen()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := r.ReadRaw(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r *Reader) ReadBuffer() ([]byte, error) {
	n, err := r.readLen()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := r.ReadRaw(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) ReadHash() (hash.StringHash, error) {
	v, err := r.ReadUint32()
	return hash.StringHash(v), err
}

func (r *Reader) readFloats(dst []float32) error {
	for i := range dst {
		v, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func (r *Reader) readInts(dst []int) error {
	for i := range dst {
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		dst[i] = int(v)
	}
	return nil
}

// ReadVariant reads a kind tag followed by the payload.
func (r *Reader) ReadVariant() (variant.Variant, error) {
	k, err := r.ReadByte()
	if err != nil {
		return variant.Variant{}, err
	}
	kind := variant.Kind(k)
	if !kind.IsValid() {
		return variant.Variant{}, fmt.Errorf("%w: kind byte %d", ErrMalformed, k)
	}
	return r.ReadVariantData(kind)
}

// ReadVariantData reads a payload of a known kind.
func (r *Reader) ReadVariantData(kind variant.Kind) (variant.Variant, error) {
	switch kind {
	case variant.KindNone:
		return variant.Variant{}, nil
	case variant.KindInt:
		v, err := r.ReadInt32()
		return variant.New(v), err
	case variant.KindInt64:
		v, err := r.ReadInt64()
		return variant.New(v), err
	case variant.KindBool:
		v, err := r.ReadBool()
		return variant.New(v), err
	case variant.KindFloat:
		v, err := r.ReadFloat32()
		return variant.New(v), err
	case variant.KindDouble:
		v, err := r.ReadFloat64()
		return variant.New(v), err
	case variant.KindString:
		v, err := r.ReadString()
		return variant.New(v), err
	case variant.KindBuffer:
		v, err := r.ReadBuffer()
		return variant.New(v), err
	case variant.KindVector2:
		var f [2]float32
		err := r.readFloats(f[:])
		return variant.New(vmath.Vector2{X: f[0], Y: f[1]}), err
	case variant.KindVector3:
		var f [3]float32
		err := r.readFloats(f[:])
		return variant.New(vmath.Vector3{X: f[0], Y: f[1], Z: f[2]}), err
	case variant.KindVector4:
		var f [4]float32
		err := r.readFloats(f[:])
		return variant.New(vmath.Vector4{X: f[0], Y: f[1], Z: f[2], W: f[3]}), err
	case variant.KindQuaternion:
		var f [4]float32
		err := r.readFloats(f[:])
		return variant.New(vmath.Quaternion{W: f[0], X: f[1], Y: f[2], Z: f[3]}), err
	case variant.KindColor:
		var f [4]float32
		err := r.readFloats(f[:])
		return variant.New(vmath.Color{R: f[0], G: f[1], B: f[2], A: f[3]}), err
	case variant.KindRect:
		var f [4]float32
		err := r.readFloats(f[:])
		return variant.New(vmath.Rect{
			Min: vmath.Vector2{X: f[0], Y: f[1]},
			Max: vmath.Vector2{X: f[2], Y: f[3]},
		}), err
	case variant.KindIntRect:
		var n [4]int
		err := r.readInts(n[:])
		return variant.New(vmath.IntRect{Left: n[0], Top: n[1], Right: n[2], Bottom: n[3]}), err
	case variant.KindIntVector2:
		var n [2]int
		err := r.readInts(n[:])
		return variant.New(vmath.IntVector2{X: n[0], Y: n[1]}), err
	case variant.KindIntVector3:
		var n [3]int
		err := r.readInts(n[:])
		return variant.New(vmath.IntVector3{X: n[0], Y: n[1], Z: n[2]}), err
	case variant.KindMatrix3:
		var m vmath.Matrix3
		err := r.readFloats(m.M[:])
		return variant.New(m), err
	case variant.KindMatrix3x4:
		var m vmath.Matrix3x4
		err := r.readFloats(m.M[:])
		return variant.New(m), err
	case variant.KindMatrix4:
		var m vmath.Matrix4
		err := r.readFloats(m.M[:])
		return variant.New(m), err
	case variant.KindResourceRef:
		t, err := r.ReadHash()
		if err != nil {
			return variant.Variant{}, err
		}
		name, err := r.ReadString()
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.New(variant.ResourceRef{Type: t, Name: name}), nil
	case variant.KindResourceRefList:
		t, err := r.ReadHash()
		if err != nil {
			return variant.Variant{}, err
		}
		count, err := r.readLen()
		if err != nil {
			return variant.Variant{}, err
		}
		list := variant.ResourceRefList{Type: t}
		for i := 0; i < count; i++ {
			name, err := r.ReadString()
			if err != nil {
				return variant.Variant{}, err
			}
			list.Names = append(list.Names, name)
		}
		return variant.New(list), nil
	case variant.KindStringVector:
		count, err := r.readLen()
		if err != nil {
			return variant.Variant{}, err
		}
		values := make([]string, 0, count)
		for i := 0; i < count; i++ {
			s, err := r.ReadString()
			if err != nil {
				return variant.Variant{}, err
			}
			values = append(values, s)
		}
		return variant.New(values), nil
	case variant.KindVariantVector:
		count, err := r.readLen()
		if err != nil {
			return variant.Variant{}, err
		}
		values := make([]variant.Variant, 0, count)
		for i := 0; i < count; i++ {
			e, err := r.ReadVariant()
			if err != nil {
				return variant.Variant{}, err
			}
			values = append(values, e)
		}
		return variant.New(values), nil
	case variant.KindVariantMap:
		count, err := r.readLen()
		if err != nil {
			return variant.Variant{}, err
		}
		m := make(variant.Map, count)
		for i := 0; i < count; i++ {
			k, err := r.ReadHash()
			if err != nil {
				return variant.Variant{}, err
			}
			e, err := r.ReadVariant()
			if err != nil {
				return variant.Variant{}, err
			}
			m[k] = e
		}
		return variant.New(m), nil
	case variant.KindVoidPtr:
		_, err := r.ReadUint32()
		return variant.NewVoidPtr(nil), err
	case variant.KindPtr:
		_, err := r.ReadUint32()
		return variant.New(variant.WeakRef{}), err
	default:
		return variant.Variant{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}
