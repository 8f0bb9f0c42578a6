package vmath

// Color is an RGBA color with components in [0, 1]. Not premultiplied.
type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite = Color{1, 1, 1, 1}
	ColorBlack = Color{0, 0, 0, 1}
)

// LerpTo interpolates toward o by t in [0, 1].
func (c Color) LerpTo(o Color, t float32) Color {
	return Color{
		Lerp(c.R, o.R, t),
		Lerp(c.G, o.G, t),
		Lerp(c.B, o.B, t),
		Lerp(c.A, o.A, t),
	}
}

func (c Color) String() string { return joinFloats(c.R, c.G, c.B, c.A) }

// ParseColor parses "r g b a".
func ParseColor(s string) (Color, error) {
	f, err := splitFloats(s, 4)
	if err != nil {
		return Color{}, err
	}
	return Color{f[0], f[1], f[2], f[3]}, nil
}
