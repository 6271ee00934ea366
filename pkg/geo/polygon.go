package geo

import "math"

// Polygon is a flux surface traced by its grid points in poloidal order. The
// last vertex connects back to the first.
type Polygon struct {
	Vertices []Point2D
}

// NewPolygon creates a polygon from a list of vertices.
func NewPolygon(pts ...Point2D) Polygon {
	return Polygon{Vertices: pts}
}

// Degenerate reports whether fewer than 3 vertices remain once consecutive
// repeats are collapsed, as on the magnetic axis row.
func (p Polygon) Degenerate() bool {
	distinct := 0
	for i, v := range p.Vertices {
		if i == 0 || v != p.Vertices[i-1] {
			distinct++
		}
		if distinct >= 3 {
			return false
		}
	}
	return true
}

// Edge returns the i-th edge as (start, end). Wraps around.
func (p Polygon) Edge(i int) (Point2D, Point2D) {
	n := len(p.Vertices)
	return p.Vertices[i%n], p.Vertices[(i+1)%n]
}

// SignedArea returns the signed area using the shoelace formula.
// Positive for counterclockwise winding, negative for clockwise.
func (p Polygon) SignedArea() float64 {
	n := len(p.Vertices)
	if n < 3 {
		return 0
	}
	area := 0.0
	for i := 0; i < n; i++ {
		a, b := p.Edge(i)
		area += a.Cross(b)
	}
	return area / 2
}

// Area returns the unsigned area of the polygon.
func (p Polygon) Area() float64 {
	return math.Abs(p.SignedArea())
}

// IsCounterClockwise returns true if vertices are in CCW order.
func (p Polygon) IsCounterClockwise() bool {
	return p.SignedArea() > 0
}

// Perimeter returns the total length of the straight edges.
func (p Polygon) Perimeter() float64 {
	n := len(p.Vertices)
	if n < 2 {
		return 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		a, b := p.Edge(i)
		total += a.Distance(b)
	}
	return total
}

// Contains reports whether q lies strictly inside the polygon, by the
// even-odd rule. Points on an edge may go either way.
func (p Polygon) Contains(q Point2D) bool {
	inside := false
	for i := range p.Vertices {
		a, b := p.Edge(i)
		if (a.Y > q.Y) == (b.Y > q.Y) {
			continue
		}
		x := a.X + (q.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
		if q.X < x {
			inside = !inside
		}
	}
	return inside
}
