package geo

import "math"

// TriangleArea returns the unsigned area of triangle abc,
// |ax(by-cy) + bx(cy-ay) + cx(ay-by)| / 2.
func TriangleArea(a, b, c Point2D) float64 {
	return math.Abs(a.X*(b.Y-c.Y)+b.X*(c.Y-a.Y)+c.X*(a.Y-b.Y)) / 2
}

// TriangleCentroid returns the arithmetic mean of the three vertices.
func TriangleCentroid(a, b, c Point2D) Point2D {
	return Point2D{
		X: (a.X + b.X + c.X) / 3,
		Y: (a.Y + b.Y + c.Y) / 3,
	}
}

// WeightedBarycenter returns the point wa·a + wb·b + wc·c normalized by the
// weight sum. ok is false when the weights sum to zero or are not finite.
func WeightedBarycenter(a, b, c Point2D, wa, wb, wc float64) (p Point2D, ok bool) {
	sum := wa + wb + wc
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return Point2D{}, false
	}
	return Point2D{
		X: (wa*a.X + wb*b.X + wc*c.X) / sum,
		Y: (wa*a.Y + wb*b.Y + wc*c.Y) / sum,
	}, true
}
