package vmath

import "math"

// Quaternion is a rotation stored as w, x, y, z. The textual form leads
// with w to match the storage order.
type Quaternion struct {
	W, X, Y, Z float32
}

// QuaternionIdentity is the no-rotation quaternion.
var QuaternionIdentity = Quaternion{W: 1}

// QuaternionFromAxisAngle builds a rotation of angle radians around axis.
func QuaternionFromAxisAngle(axis Vector3, angle float32) Quaternion {
	n := axis.Normalized()
	half := float64(angle) * 0.5
	s := float32(math.Sin(half))
	return Quaternion{
		W: float32(math.Cos(half)),
		X: n.X * s,
		Y: n.Y * s,
		Z: n.Z * s,
	}
}

// Mul composes rotations: q then o.
func (q Quaternion) Mul(o Quaternion) Quaternion {
	return Quaternion{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

// Conjugate returns the inverse rotation for unit quaternions.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Normalized returns the unit quaternion, or identity for a zero quaternion.
func (q Quaternion) Normalized() Quaternion {
	l := float32(math.Sqrt(float64(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)))
	if l == 0 {
		return QuaternionIdentity
	}
	inv := 1 / l
	return Quaternion{W: q.W * inv, X: q.X * inv, Y: q.Y * inv, Z: q.Z * inv}
}

// RotateVector applies the rotation to v.
func (q Quaternion) RotateVector(v Vector3) Vector3 {
	qv := Vector3{q.X, q.Y, q.Z}
	uv := qv.Cross(v)
	uuv := qv.Cross(uv)
	return v.Add(uv.Scale(2 * q.W)).Add(uuv.Scale(2))
}

func (q Quaternion) String() string { return joinFloats(q.W, q.X, q.Y, q.Z) }

// ParseQuaternion parses "w x y z".
func ParseQuaternion(s string) (Quaternion, error) {
	f, err := splitFloats(s, 4)
	if err != nil {
		return Quaternion{}, err
	}
	return Quaternion{f[0], f[1], f[2], f[3]}, nil
}
