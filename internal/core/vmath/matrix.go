package vmath

// Matrix3 is a row-major 3x3 matrix.
type Matrix3 struct {
	M [9]float32
}

// Matrix3x4 is a row-major 3x4 transform matrix (rotation/scale plus
// translation in the last column).
type Matrix3x4 struct {
	M [12]float32
}

// Matrix4 is a row-major 4x4 matrix.
type Matrix4 struct {
	M [16]float32
}

var (
	Matrix3Identity = Matrix3{M: [9]float32{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}}
	Matrix3x4Identity = Matrix3x4{M: [12]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	}}
	Matrix4Identity = Matrix4{M: [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
)

// Mul multiplies m by o.
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var r Matrix3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			var sum float32
			for k := 0; k < 3; k++ {
				sum += m.M[row*3+k] * o.M[k*3+col]
			}
			r.M[row*3+col] = sum
		}
	}
	return r
}

// MulVector applies the matrix to v.
func (m Matrix3) MulVector(v Vector3) Vector3 {
	return Vector3{
		m.M[0]*v.X + m.M[1]*v.Y + m.M[2]*v.Z,
		m.M[3]*v.X + m.M[4]*v.Y + m.M[5]*v.Z,
		m.M[6]*v.X + m.M[7]*v.Y + m.M[8]*v.Z,
	}
}

// Translation returns the translation column.
func (m Matrix3x4) Translation() Vector3 {
	return Vector3{m.M[3], m.M[7], m.M[11]}
}

// TranslationMatrix3x4 builds a pure translation transform.
func TranslationMatrix3x4(t Vector3) Matrix3x4 {
	m := Matrix3x4Identity
	m.M[3], m.M[7], m.M[11] = t.X, t.Y, t.Z
	return m
}

func (m Matrix3) String() string {
	return joinFloats(m.M[:]...)
}

func (m Matrix3x4) String() string {
	return joinFloats(m.M[:]...)
}

func (m Matrix4) String() string {
	return joinFloats(m.M[:]...)
}

// ParseMatrix3 parses nine space-separated components.
func ParseMatrix3(s string) (Matrix3, error) {
	f, err := splitFloats(s, 9)
	if err != nil {
		return Matrix3{}, err
	}
	var m Matrix3
	copy(m.M[:], f)
	return m, nil
}

// ParseMatrix3x4 parses twelve space-separated components.
func ParseMatrix3x4(s string) (Matrix3x4, error) {
	f, err := splitFloats(s, 12)
	if err != nil {
		return Matrix3x4{}, err
	}
	var m Matrix3x4
	copy(m.M[:], f)
	return m, nil
}

// ParseMatrix4 parses sixteen space-separated components.
func ParseMatrix4(s string) (Matrix4, error) {
	f, err := splitFloats(s, 16)
	if err != nil {
		return Matrix4{}, err
	}
	var m Matrix4
	copy(m.M[:], f)
	return m, nil
}
