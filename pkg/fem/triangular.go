package fem

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/geo"
)

// Triangle is one finite element of the decomposition.
type Triangle struct {
	Vertices [3]geo.Point2D
	Area     float64
	Centroid geo.Point2D
}

func newTriangle(a, b, c geo.Point2D) Triangle {
	return Triangle{
		Vertices: [3]geo.Point2D{a, b, c},
		Area:     geo.TriangleArea(a, b, c),
		Centroid: geo.TriangleCentroid(a, b, c),
	}
}

// Cell is the quadrilateral spanned by radial rows i, i+1 and poloidal
// columns j, j+1 (wrapping). Corners run A=(i,j), B=(i,j+1), C=(i+1,j+1),
// D=(i+1,j); the cell is split along B-D into Lower={A,B,D} and
// Upper={B,C,D}.
type Cell struct {
	Radial, Poloidal int
	A, B, C, D       geo.Point2D
	Lower, Upper     Triangle
}

// Contribution is the per-cell detail of an integral: the measure (area or
// volume) and interpolated value of the lower and upper triangle.
type Contribution struct {
	Radial, Poloidal int
	Measure          [2]float64
	Value            [2]float64
}

// Weighted returns Σ measure·value over both triangles.
func (c Contribution) Weighted() float64 {
	return c.Measure[0]*c.Value[0] + c.Measure[1]*c.Value[1]
}

// Integral is the result of a surface or volume integral.
type Integral struct {
	Value   float64
	Measure float64
	Cells   []Contribution
}

// TriangularMap decomposes every grid cell into two triangles and provides
// the surface, ring and volume integral operators.
type TriangularMap struct {
	*Map

	cellsOnce sync.Once
	cells     []Cell
}

// Cells returns the (N-1)·M cells ordered by radial then poloidal index.
func (t *TriangularMap) Cells() []Cell {
	t.cellsOnce.Do(func() {
		t.cells = make([]Cell, 0, (t.nr-1)*t.np)
		for i := 0; i < t.nr-1; i++ {
			for j := 0; j < t.np; j++ {
				c := Cell{
					Radial:   i,
					Poloidal: j,
					A:        t.Point(i, j),
					B:        t.Point(i, j+1),
					C:        t.Point(i+1, j+1),
					D:        t.Point(i+1, j),
				}
				c.Lower = newTriangle(c.A, c.B, c.D)
				c.Upper = newTriangle(c.B, c.C, c.D)
				t.cells = append(t.cells, c)
			}
		}
	})
	return t.cells
}

func (t *TriangularMap) corners(field mat.Matrix, c *Cell) CornerValues {
	i, j := c.Radial, c.Poloidal
	jn := t.wrap(j + 1)
	return CornerValues{
		A: field.At(i, j),
		B: field.At(i, jn),
		C: field.At(i+1, jn),
		D: field.At(i+1, j),
	}
}

// integrate is the single operator behind the surface, ring and volume
// integrals. weight maps a triangle to its measure.
func (t *TriangularMap) integrate(field mat.Matrix, interp Interpolation, weight func(Triangle) float64) Integral {
	t.checkShape(field)
	if interp == nil {
		interp = Centroid
	}
	cells := t.Cells()
	out := Integral{Cells: make([]Contribution, len(cells))}
	for k := range cells {
		c := &cells[k]
		lower, upper := interp.Interpolate(c, t.corners(field, c))
		contrib := Contribution{
			Radial:   c.Radial,
			Poloidal: c.Poloidal,
			Measure:  [2]float64{weight(c.Lower), weight(c.Upper)},
			Value:    [2]float64{lower, upper},
		}
		out.Cells[k] = contrib
		out.Measure += contrib.Measure[0] + contrib.Measure[1]
		out.Value += contrib.Weighted()
	}
	return out
}

func triangleArea(tr Triangle) float64 {
	return tr.Area
}

// SurfaceIntegral returns ∬ field dA over the whole map: the total value, the
// total area and the per-cell detail. A nil interp means Centroid.
func (t *TriangularMap) SurfaceIntegral(field mat.Matrix, interp Interpolation) Integral {
	return t.integrate(field, interp, triangleArea)
}

// RingIntegral returns the cumulative surface integral from the axis outward.
// Element i holds the contribution of every cell with radial index below i,
// i.e. the integral over the area enclosed by flux surface i; element 0 is
// always zero. The result has one element per radial grid point.
func (t *TriangularMap) RingIntegral(field mat.Matrix, interp Interpolation) []float64 {
	s := t.SurfaceIntegral(field, interp)
	rings := make([]float64, t.nr-1)
	for _, c := range s.Cells {
		rings[c.Radial] += c.Weighted()
	}
	// Accumulate in index order, axis first.
	enclosed := make([]float64, t.nr)
	for i, r := range rings {
		enclosed[i+1] = enclosed[i] + r
	}
	return enclosed
}

// VolumeIntegral returns ∭ field dV over the torus obtained by revolving the
// map around the vertical axis at distance R0 from the map's x origin. Every
// triangle's area is weighted by 2π(R0 + x_centroid). Measure holds the
// total volume.
func (t *TriangularMap) VolumeIntegral(field mat.Matrix, r0 float64, interp Interpolation) Integral {
	return t.integrate(field, interp, func(tr Triangle) float64 {
		return tr.Area * 2 * math.Pi * (r0 + tr.Centroid.X)
	})
}
