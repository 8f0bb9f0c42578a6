package vmath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVector3Ops(t *testing.T) {
	a := Vector3{1, 2, 3}
	b := Vector3{4, 5, 6}
	require.Equal(t, Vector3{5, 7, 9}, a.Add(b))
	require.Equal(t, Vector3{-3, -3, -3}, a.Sub(b))
	require.InDelta(t, 32, a.Dot(b), 1e-6)
	require.Equal(t, Vector3{-3, 6, -3}, a.Cross(b))
}

func TestVector3Normalized(t *testing.T) {
	v := Vector3{3, 0, 4}.Normalized()
	require.InDelta(t, 1, v.Length(), 1e-6)
	require.Equal(t, Vector3{}, Vector3{}.Normalized())
}

func TestStringRoundTrips(t *testing.T) {
	v2, err := ParseVector2(Vector2{1.5, -2.25}.String())
	require.NoError(t, err)
	require.Equal(t, Vector2{1.5, -2.25}, v2)

	v3, err := ParseVector3(Vector3{0.1, 0.2, 0.3}.String())
	require.NoError(t, err)
	require.Equal(t, Vector3{0.1, 0.2, 0.3}, v3)

	v4, err := ParseVector4(Vector4{1, 2, 3, 4}.String())
	require.NoError(t, err)
	require.Equal(t, Vector4{1, 2, 3, 4}, v4)

	q, err := ParseQuaternion(QuaternionIdentity.String())
	require.NoError(t, err)
	require.Equal(t, QuaternionIdentity, q)

	c, err := ParseColor(Color{0.25, 0.5, 0.75, 1}.String())
	require.NoError(t, err)
	require.Equal(t, Color{0.25, 0.5, 0.75, 1}, c)

	r, err := ParseRect(Rect{Min: Vector2{0, 0}, Max: Vector2{10, 20}}.String())
	require.NoError(t, err)
	require.Equal(t, Rect{Min: Vector2{0, 0}, Max: Vector2{10, 20}}, r)

	ir, err := ParseIntRect(IntRect{1, 2, 3, 4}.String())
	require.NoError(t, err)
	require.Equal(t, IntRect{1, 2, 3, 4}, ir)

	iv2, err := ParseIntVector2(IntVector2{-5, 8}.String())
	require.NoError(t, err)
	require.Equal(t, IntVector2{-5, 8}, iv2)

	iv3, err := ParseIntVector3(IntVector3{7, -8, 9}.String())
	require.NoError(t, err)
	require.Equal(t, IntVector3{7, -8, 9}, iv3)

	m3, err := ParseMatrix3(Matrix3Identity.String())
	require.NoError(t, err)
	require.Equal(t, Matrix3Identity, m3)

	m34, err := ParseMatrix3x4(TranslationMatrix3x4(Vector3{1, 2, 3}).String())
	require.NoError(t, err)
	require.Equal(t, TranslationMatrix3x4(Vector3{1, 2, 3}), m34)

	m4, err := ParseMatrix4(Matrix4Identity.String())
	require.NoError(t, err)
	require.Equal(t, Matrix4Identity, m4)
}

func TestParseErrors(t *testing.T) {
	_, err := ParseVector3("1 2")
	require.Error(t, err)

	_, err = ParseVector3("1 2 x")
	require.Error(t, err)

	_, err = ParseIntRect("1 2 3")
	require.Error(t, err)
}

func TestQuaternionRotate(t *testing.T) {
	// Quarter turn around Z maps +X to +Y.
	q := QuaternionFromAxisAngle(Vector3{0, 0, 1}, 3.14159265/2)
	v := q.RotateVector(Vector3{1, 0, 0})
	require.InDelta(t, 0, v.X, 1e-5)
	require.InDelta(t, 1, v.Y, 1e-5)
	require.InDelta(t, 0, v.Z, 1e-5)
}

func TestMatrix3Mul(t *testing.T) {
	m := Matrix3Identity.Mul(Matrix3Identity)
	require.Equal(t, Matrix3Identity, m)

	v := Matrix3Identity.MulVector(Vector3{1, 2, 3})
	require.Equal(t, Vector3{1, 2, 3}, v)
}

func TestRectContains(t *testing.T) {
	r := Rect{Min: Vector2{0, 0}, Max: Vector2{10, 10}}
	require.True(t, r.Contains(Vector2{5, 5}))
	require.True(t, r.Contains(Vector2{0, 10}))
	require.False(t, r.Contains(Vector2{11, 5}))
}
