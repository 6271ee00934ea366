package geo

import "math"

// Point2D represents a point in the poloidal (x, y) cross-section plane.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Origin is the zero point.
var Origin = Point2D{0, 0}

// Pt is a shorthand constructor for Point2D.
func Pt(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Sub returns p - q.
func (p Point2D) Sub(q Point2D) Point2D {
	return Point2D{p.X - q.X, p.Y - q.Y}
}

// Length returns the Euclidean length of the vector.
func (p Point2D) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

// Cross returns the z-component of the 3D cross product of p and q.
func (p Point2D) Cross(q Point2D) float64 {
	return p.X*q.Y - p.Y*q.X
}

// Distance returns the Euclidean distance from p to q.
func (p Point2D) Distance(q Point2D) float64 {
	return p.Sub(q).Length()
}

// Angle returns the angle of the vector from the positive x axis in radians.
func (p Point2D) Angle() float64 {
	return math.Atan2(p.Y, p.X)
}
