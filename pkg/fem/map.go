// Package fem provides the geometric integration engine over a structured
// curvilinear grid: polar coordinates around an origin, poloidal arc-length
// differentials, and contour, surface, ring and volume integrals on a
// triangulated decomposition of the grid cells.
//
// Grids and fields are stored as *mat.Dense with rows indexing the radial
// (flux surface) axis and columns the periodic poloidal axis. Row 0 is the
// magnetic axis, the last row the boundary; column M-1 neighbours column 0.
package fem

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/geo"
)

// Minimum grid extents along each axis.
const (
	MinRadial   = 2
	MinPoloidal = 3
)

const closedTolerance = 1e-12

// ErrGridShape is returned when a point grid is too small or its x and y
// components disagree in shape.
var ErrGridShape = errors.New("invalid grid shape")

// Map is a point grid together with the origin used for polar conversion.
// Derived geometry is computed on first use and cached for the lifetime of
// the Map.
type Map struct {
	x, y   *mat.Dense
	origin geo.Point2D
	nr, np int

	polarOnce sync.Once
	polar     []geo.Polar

	dlOnce sync.Once
	dl     *mat.Dense

	triOnce sync.Once
	tri     *TriangularMap
}

// NewMap creates a Map from the Cartesian grid components x and y. Both are
// copied.
func NewMap(x, y mat.Matrix, origin geo.Point2D) (*Map, error) {
	nr, np := x.Dims()
	yr, yp := y.Dims()
	if nr != yr || np != yp {
		return nil, fmt.Errorf("%w: x is %dx%d, y is %dx%d", ErrGridShape, nr, np, yr, yp)
	}
	if nr < MinRadial || np < MinPoloidal {
		return nil, fmt.Errorf("%w: need at least %dx%d points, got %dx%d",
			ErrGridShape, MinRadial, MinPoloidal, nr, np)
	}
	return &Map{
		x:      mat.DenseCopyOf(x),
		y:      mat.DenseCopyOf(y),
		origin: origin,
		nr:     nr,
		np:     np,
	}, nil
}

// Dims returns the number of radial and poloidal grid points.
func (m *Map) Dims() (radial, poloidal int) {
	return m.nr, m.np
}

// Origin returns the polar origin.
func (m *Map) Origin() geo.Point2D {
	return m.origin
}

// Point returns the grid point at radial index i and poloidal index j.
// The poloidal index wraps.
func (m *Map) Point(i, j int) geo.Point2D {
	j = m.wrap(j)
	return geo.Point2D{X: m.x.At(i, j), Y: m.y.At(i, j)}
}

// X returns a copy of the x component of the grid.
func (m *Map) X() *mat.Dense {
	return mat.DenseCopyOf(m.x)
}

// Y returns a copy of the y component of the grid.
func (m *Map) Y() *mat.Dense {
	return mat.DenseCopyOf(m.y)
}

// Surface returns flux surface i as a closed polygon.
func (m *Map) Surface(i int) geo.Polygon {
	pts := make([]geo.Point2D, m.np)
	for j := range pts {
		pts[j] = m.Point(i, j)
	}
	return geo.NewPolygon(pts...)
}

func (m *Map) wrap(j int) int {
	j %= m.np
	if j < 0 {
		j += m.np
	}
	return j
}

func (m *Map) polarGrid() []geo.Polar {
	m.polarOnce.Do(func() {
		m.polar = make([]geo.Polar, m.nr*m.np)
		for i := 0; i < m.nr; i++ {
			for j := 0; j < m.np; j++ {
				m.polar[i*m.np+j] = geo.ToPolar(m.Point(i, j), m.origin)
			}
		}
	})
	return m.polar
}

// Polar returns the polar coordinates of grid point (i, j) around the origin.
// The angle lies in [0, 2π).
func (m *Map) Polar(i, j int) geo.Polar {
	return m.polarGrid()[i*m.np+m.wrap(j)]
}

// PolarGrid returns the radius and angle of every grid point.
func (m *Map) PolarGrid() (r, theta *mat.Dense) {
	r = mat.NewDense(m.nr, m.np, nil)
	theta = mat.NewDense(m.nr, m.np, nil)
	for i := 0; i < m.nr; i++ {
		for j := 0; j < m.np; j++ {
			p := m.Polar(i, j)
			r.Set(i, j, p.R)
			theta.Set(i, j, p.Theta)
		}
	}
	return r, theta
}

func (m *Map) dlGrid() *mat.Dense {
	m.dlOnce.Do(func() {
		m.dl = mat.NewDense(m.nr, m.np, nil)
		mid := make([]geo.Point2D, m.np)
		for i := 0; i < m.nr; i++ {
			// mid[j] sits between poloidal samples j and j+1.
			for j := 0; j < m.np; j++ {
				mid[j] = geo.PolarMidpoint(m.Polar(i, j), m.Polar(i, j+1)).Cartesian(m.origin)
			}
			for j := 0; j < m.np; j++ {
				prev := mid[m.wrap(j-1)]
				m.dl.Set(i, j, mid[j].Distance(prev))
			}
		}
	})
	return m.dl
}

// DL returns the poloidal arc-length differential of every grid point: the
// distance between the polar midpoints on either side of the point along its
// flux surface. The first column wraps around to the last midpoint.
func (m *Map) DL() *mat.Dense {
	return mat.DenseCopyOf(m.dlGrid())
}

// Circumference returns the summed dl of every flux surface.
func (m *Map) Circumference() []float64 {
	dl := m.dlGrid()
	out := make([]float64, m.nr)
	for i := range out {
		out[i] = floats.Sum(dl.RawRowView(i))
	}
	return out
}

// ContourIntegral integrates field along every flux surface, Σ_j field·dl.
// It returns the per-surface integrals and the dl used. Surfaces of zero
// length yield whatever the sum gives; callers guard their own divisions.
func (m *Map) ContourIntegral(field mat.Matrix) ([]float64, *mat.Dense) {
	m.checkShape(field)
	dl := m.dlGrid()
	out := make([]float64, m.nr)
	for i := 0; i < m.nr; i++ {
		sum := 0.0
		for j := 0; j < m.np; j++ {
			sum += field.At(i, j) * dl.At(i, j)
		}
		out[i] = sum
	}
	return out, mat.DenseCopyOf(dl)
}

// Triangulate returns the triangular decomposition of the map. The result is
// created once and shares this map's cached geometry.
func (m *Map) Triangulate() *TriangularMap {
	m.triOnce.Do(func() {
		m.tri = &TriangularMap{Map: m}
	})
	return m.tri
}

// Closed reports whether the last poloidal column of a grid repeats the first,
// as written by solvers that close every flux surface. Such grids must drop
// the repeated column before a Map is built from them.
func Closed(x, y mat.Matrix) bool {
	nr, np := x.Dims()
	yr, yp := y.Dims()
	if nr != yr || np != yp || np < 2 {
		return false
	}
	for i := 0; i < nr; i++ {
		if math.Abs(x.At(i, 0)-x.At(i, np-1)) > closedTolerance ||
			math.Abs(y.At(i, 0)-y.At(i, np-1)) > closedTolerance {
			return false
		}
	}
	return true
}

// Open returns a copy of x and y without the repeated closing column when the
// grid is Closed, and plain copies otherwise.
func Open(x, y mat.Matrix) (ox, oy *mat.Dense) {
	if !Closed(x, y) {
		return mat.DenseCopyOf(x), mat.DenseCopyOf(y)
	}
	return DropLastColumn(x), DropLastColumn(y)
}

// DropLastColumn returns a copy of m without its last column.
func DropLastColumn(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c-1, nil)
	out.Copy(m)
	return out
}

func (m *Map) checkShape(field mat.Matrix) {
	r, c := field.Dims()
	if r != m.nr || c != m.np {
		panic(mat.ErrShape)
	}
}
