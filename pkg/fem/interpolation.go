package fem

import "github.com/Karel-van-de-Plassche/PF2q/pkg/geo"

// degenerateArea is the triangle area at or below which barycentric weights
// are replaced by equal thirds.
const degenerateArea = 1e-15

// CornerValues holds a scalar field sampled at the four corners of a cell.
type CornerValues struct {
	A, B, C, D float64
}

// Interpolation turns corner values into one value per triangle of a cell.
type Interpolation interface {
	Interpolate(c *Cell, v CornerValues) (lower, upper float64)
}

// CentroidAverage takes the arithmetic mean of a triangle's vertex values,
// which is the linear interpolant evaluated at the centroid.
type CentroidAverage struct{}

// BarycentricWeighted weighs vertex values by sub-triangle area ratios around
// a value-weighted barycenter: T of {A,B,D} for the lower triangle and U of
// {C,B,D} for the upper one.
//
// When the parent triangle has (numerically) zero area, or the vertex values
// sum to zero so the barycenter is undefined, the weights fall back to 1/3.
// The fallback keeps degenerate axis cells finite; it is a heuristic, not a
// derived property of the scheme.
type BarycentricWeighted struct{}

// Interpolation strategies.
var (
	Centroid    Interpolation = CentroidAverage{}
	Barycentric Interpolation = BarycentricWeighted{}
)

// Interpolate implements Interpolation.
func (CentroidAverage) Interpolate(_ *Cell, v CornerValues) (lower, upper float64) {
	lower = (v.A + v.B + v.D) / 3
	upper = (v.B + v.C + v.D) / 3
	return lower, upper
}

// Interpolate implements Interpolation.
func (BarycentricWeighted) Interpolate(c *Cell, v CornerValues) (lower, upper float64) {
	lower = barycentricValue(c.A, c.B, c.D, v.A, v.B, v.D, c.Lower.Area)
	upper = barycentricValue(c.C, c.B, c.D, v.C, v.B, v.D, c.Upper.Area)
	return lower, upper
}

// barycentricValue interpolates on triangle (p, q, r) with values (vp, vq, vr).
// Each value is weighted by the area of the sub-triangle opposite to it,
// formed with the value-weighted barycenter, relative to the parent area.
func barycentricValue(p, q, r geo.Point2D, vp, vq, vr, parent float64) float64 {
	t, ok := geo.WeightedBarycenter(p, q, r, vp, vq, vr)
	if !ok || parent <= degenerateArea {
		return (vp + vq + vr) / 3
	}
	wr := geo.TriangleArea(p, q, t) / parent
	wq := geo.TriangleArea(r, p, t) / parent
	wp := geo.TriangleArea(q, r, t) / parent
	return wr*vr + wq*vq + wp*vp
}
