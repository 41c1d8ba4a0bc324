package math

// Winding is the orientation of a triangle in UV space.
type Winding uint8

const (
	WindingCW Winding = iota
	WindingCCW
)

// Triangle is a UV-space triangle with a cached bounding box and winding.
type Triangle struct {
	P0, P1, P2 Vec2
	// AABBMin and AABBMax bound the three points.
	AABBMin, AABBMax Vec2
	Winding          Winding
}

// NewTriangle builds a triangle and caches its bounds and winding.
func NewTriangle(p0, p1, p2 Vec2) Triangle {
	t := Triangle{P0: p0, P1: p1, P2: p2}
	t.AABBMin = p0.Min(p1).Min(p2)
	t.AABBMax = p0.Max(p1).Max(p2)
	if t.crossZ() < 0 {
		t.Winding = WindingCCW
	} else {
		t.Winding = WindingCW
	}
	return t
}

// P returns vertex i (0, 1 or 2).
func (t Triangle) P(i int) Vec2 {
	switch i {
	case 0:
		return t.P0
	case 1:
		return t.P1
	default:
		return t.P2
	}
}

// crossZ is (p2-p0) x (p1-p0) evaluated in float64, exact for float32 inputs.
func (t Triangle) crossZ() float64 {
	ax, ay := float64(t.P2.X)-float64(t.P0.X), float64(t.P2.Y)-float64(t.P0.Y)
	bx, by := float64(t.P1.X)-float64(t.P0.X), float64(t.P1.Y)-float64(t.P0.Y)
	return ax*by - ay*bx
}

// Area returns the unsigned area.
func (t Triangle) Area() float64 {
	a := t.crossZ() * 0.5
	if a < 0 {
		return -a
	}
	return a
}

// IsDegenerate reports whether the three points are collinear.
func (t Triangle) IsDegenerate() bool {
	return t.crossZ() == 0
}

// IsFinite reports whether every vertex is a finite number.
func (t Triangle) IsFinite() bool {
	return t.P0.IsFinite() && t.P1.IsFinite() && t.P2.IsFinite()
}

// PointInTriangle reports whether p lies inside or on the boundary, for either winding.
func (t Triangle) PointInTriangle(p Vec2) bool {
	d1 := sign(p, t.P0, t.P1)
	d2 := sign(p, t.P1, t.P2)
	d3 := sign(p, t.P2, t.P0)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

// Interpolate maps barycentric (u, v) relative to P1 and P2 onto the triangle.
func (t Triangle) Interpolate(bc Vec2) Vec2 {
	w := 1 - bc.X - bc.Y
	return t.P0.Scale(w).Add(t.P1.Scale(bc.X)).Add(t.P2.Scale(bc.Y))
}

func sign(p1, p2, p3 Vec2) float32 {
	return (p1.X-p3.X)*(p2.Y-p3.Y) - (p2.X-p3.X)*(p1.Y-p3.Y)
}
