package vmath

// Rect is an axis-aligned float rectangle stored as min/max corners.
type Rect struct {
	Min, Max Vector2
}

// IntRect is an axis-aligned integer rectangle stored as edges.
type IntRect struct {
	Left, Top, Right, Bottom int
}

// Contains reports whether the point lies inside the rect, edges inclusive.
func (r Rect) Contains(p Vector2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

func (r Rect) Width() float32  { return r.Max.X - r.Min.X }
func (r Rect) Height() float32 { return r.Max.Y - r.Min.Y }

func (r Rect) String() string {
	return joinFloats(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y)
}

func (r IntRect) Width() int  { return r.Right - r.Left }
func (r IntRect) Height() int { return r.Bottom - r.Top }

func (r IntRect) String() string {
	return joinInts(r.Left, r.Top, r.Right, r.Bottom)
}

// ParseRect parses "minx miny maxx maxy".
func ParseRect(s string) (Rect, error) {
	f, err := splitFloats(s, 4)
	if err != nil {
		return Rect{}, err
	}
	return Rect{Min: Vector2{f[0], f[1]}, Max: Vector2{f[2], f[3]}}, nil
}

// ParseIntRect parses "left top right bottom".
func ParseIntRect(s string) (IntRect, error) {
	f, err := splitInts(s, 4)
	if err != nil {
		return IntRect{}, err
	}
	return IntRect{f[0], f[1], f[2], f[3]}, nil
}
