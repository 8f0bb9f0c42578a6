package vmath

import "math"

// Vector2 is a two-component float vector.
type Vector2 struct {
	X, Y float32
}

// Vector3 is a three-component float vector.
type Vector3 struct {
	X, Y, Z float32
}

// Vector4 is a four-component float vector.
type Vector4 struct {
	X, Y, Z, W float32
}

// IntVector2 is a two-component integer vector.
type IntVector2 struct {
	X, Y int
}

// IntVector3 is a three-component integer vector.
type IntVector3 struct {
	X, Y, Z int
}

func (v Vector2) Add(o Vector2) Vector2 { return Vector2{v.X + o.X, v.Y + o.Y} }
func (v Vector2) Sub(o Vector2) Vector2 { return Vector2{v.X - o.X, v.Y - o.Y} }
func (v Vector2) Scale(s float32) Vector2 {
	return Vector2{v.X * s, v.Y * s}
}
func (v Vector2) Dot(o Vector2) float32 { return v.X*o.X + v.Y*o.Y }
func (v Vector2) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}
func (v Vector2) String() string { return joinFloats(v.X, v.Y) }

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector3) Scale(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}
func (v Vector3) Dot(o Vector3) float32 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}
func (v Vector3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalized returns the unit vector, or the zero vector unchanged.
func (v Vector3) Normalized() Vector3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// LerpTo interpolates toward o by t in [0, 1].
func (v Vector3) LerpTo(o Vector3, t float32) Vector3 {
	return Vector3{Lerp(v.X, o.X, t), Lerp(v.Y, o.Y, t), Lerp(v.Z, o.Z, t)}
}

func (v Vector3) String() string { return joinFloats(v.X, v.Y, v.Z) }

func (v Vector4) Dot(o Vector4) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z + v.W*o.W
}
func (v Vector4) String() string { return joinFloats(v.X, v.Y, v.Z, v.W) }

func (v IntVector2) Add(o IntVector2) IntVector2 { return IntVector2{v.X + o.X, v.Y + o.Y} }
func (v IntVector2) String() string              { return joinInts(v.X, v.Y) }

func (v IntVector3) Add(o IntVector3) IntVector3 {
	return IntVector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}
func (v IntVector3) String() string { return joinInts(v.X, v.Y, v.Z) }

// ParseVector2 parses "x y".
func ParseVector2(s string) (Vector2, error) {
	f, err := splitFloats(s, 2)
	if err != nil {
		return Vector2{}, err
	}
	return Vector2{f[0], f[1]}, nil
}

// ParseVector3 parses "x y z".
func ParseVector3(s string) (Vector3, error) {
	f, err := splitFloats(s, 3)
	if err != nil {
		return Vector3{}, err
	}
	return Vector3{f[0], f[1], f[2]}, nil
}

// ParseVector4 parses "x y z w".
func ParseVector4(s string) (Vector4, error) {
	f, err := splitFloats(s, 4)
	if err != nil {
		return Vector4{}, err
	}
	return Vector4{f[0], f[1], f[2], f[3]}, nil
}

// ParseIntVector2 parses "x y".
func ParseIntVector2(s string) (IntVector2, error) {
	f, err := splitInts(s, 2)
	if err != nil {
		return IntVector2{}, err
	}
	return IntVector2{f[0], f[1]}, nil
}

// ParseIntVector3 parses "x y z".
func ParseIntVector3(s string) (IntVector3, error) {
	f, err := splitInts(s, 3)
	if err != nil {
		return IntVector3{}, err
	}
	return IntVector3{f[0], f[1], f[2]}, nil
}
