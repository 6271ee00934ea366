package validation

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/dataset"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/fem"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/geo"
)

// ValidateDataset checks a solver solution before any derived quantity is
// computed: presence of every required field, array shapes, finiteness and
// the constants the geometry divides by.
func ValidateDataset(ds *dataset.Dataset) *Report {
	r := NewReport()

	validateStatus(ds, r)
	validatePresence(ds, r)
	validateShapes(ds, r)
	validateFinite(ds, r)
	validateConstants(ds, r)
	if r.Valid {
		validateProfiles(ds, r)
	}
	if extra := ds.Extra(); len(extra) > 0 {
		r.AddInfo(Result{
			Level:       LevelSchema,
			Message:     fmt.Sprintf("%d solver fields are not used", len(extra)),
			Field:       strings.Join(extra, ", "),
			ActualValue: len(extra),
		})
	}

	return r
}

func validateStatus(ds *dataset.Dataset, r *Report) {
	if !ds.Converged() {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "solver did not converge",
			Field:       "status",
			ActualValue: ds.Status,
			Expected:    dataset.StatusConverged,
			Suggestions: []string{"Rerun the solver or adjust its input profiles"},
		})
	}
}

func validatePresence(ds *dataset.Dataset, r *Report) {
	for _, m := range ds.Missing() {
		r.AddError(Result{
			Level:   LevelSchema,
			Message: m.Error(),
			Field:   m.Name,
		})
	}
}

func validateShapes(ds *dataset.Dataset, r *Report) {
	if ds.X == nil {
		return
	}
	nr, np := ds.X.Dims()
	effective := np
	if ds.Y != nil && fem.Closed(ds.X, ds.Y) {
		effective--
	}
	if nr < fem.MinRadial || effective < fem.MinPoloidal {
		r.AddError(Result{
			Level:       LevelGeometry,
			Message:     fmt.Sprintf("grid of %dx%d distinct points is too small", nr, effective),
			Field:       "x",
			ActualValue: fmt.Sprintf("%dx%d", nr, effective),
			Expected:    fmt.Sprintf(">= %dx%d", fem.MinRadial, fem.MinPoloidal),
		})
	}

	for _, name := range dataset.QuantityNames() {
		q := ds.Quantity(name)
		if q == nil || name == "x" {
			continue
		}
		qr, qp := q.Dims()
		if qr != nr || qp != np {
			r.AddError(Result{
				Level:        LevelGeometry,
				Message:      fmt.Sprintf("%s has shape %dx%d, grid is %dx%d", name, qr, qp, nr, np),
				Field:        name,
				ActualValue:  fmt.Sprintf("%dx%d", qr, qp),
				Expected:     fmt.Sprintf("%dx%d", nr, np),
				ConflictWith: "x",
			})
		}
	}
}

func validateFinite(ds *dataset.Dataset, r *Report) {
	for _, name := range dataset.RequiredQuantities() {
		q := ds.Quantity(name)
		if q == nil {
			continue
		}
		if bad := countNonFinite(q); bad > 0 {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     fmt.Sprintf("%s has %d non-finite values", name, bad),
				Field:       name,
				ActualValue: bad,
				Expected:    "0",
			})
		}
	}
	for _, name := range dataset.ConstantNames() {
		if v := ds.Constant(name); math.IsInf(v, 0) {
			r.AddError(Result{
				Level:       LevelSchema,
				Message:     fmt.Sprintf("constant %s is infinite", name),
				Field:       name,
				ActualValue: v,
			})
		}
	}
}

func validateConstants(ds *dataset.Dataset, r *Report) {
	c := ds.Constants
	if c.Epsilon <= 0 {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "epsilon must be > 0",
			Field:       "epsilon",
			ActualValue: c.Epsilon,
			Expected:    "> 0",
		})
	}
	if c.Alpha == 0 {
		r.AddError(Result{
			Level:    LevelSchema,
			Message:  "alpha must be non-zero",
			Field:    "alpha",
			Expected: "!= 0",
		})
	}
	if c.BAxisOverB0 == 0 {
		r.AddError(Result{
			Level:    LevelSchema,
			Message:  "b_axis_over_b0 must be non-zero",
			Field:    "b_axis_over_b0",
			Expected: "!= 0",
		})
	}
	if c.Epsilon >= 1 {
		r.AddWarning(Result{
			Level:       LevelGeometry,
			Message:     fmt.Sprintf("epsilon %.3f puts the plasma across the major axis", c.Epsilon),
			Field:       "epsilon",
			ActualValue: c.Epsilon,
			Expected:    "< 1",
		})
	}
}

// validateProfiles checks the radial profiles at poloidal index 0. It only
// runs on an otherwise valid dataset.
func validateProfiles(ds *dataset.Dataset, r *Report) {
	psi := mat.Col(nil, 0, ds.Psi)
	if !strictlyMonotonic(psi) {
		r.AddWarning(Result{
			Level:       LevelPhysics,
			Message:     "psi is not strictly monotonic along the radial axis",
			Field:       "psi",
			Suggestions: []string{"Profiles sampled on psi will be folded"},
		})
	}

	p := mat.Col(nil, 0, ds.Pressure)
	for i, v := range p {
		if v < 0 {
			r.AddWarning(Result{
				Level:       LevelPhysics,
				Message:     fmt.Sprintf("pressure is negative on surface %d", i),
				Field:       "pressure",
				ActualValue: v,
				Expected:    ">= 0",
			})
			break
		}
	}

	validateSurfaces(ds, r)

	if fem.Closed(ds.X, ds.Y) {
		r.AddInfo(Result{
			Level:   LevelGeometry,
			Message: "last poloidal column repeats the first and will be dropped",
			Field:   "x",
		})
	}
}

// surfaceTolerance is the relative mismatch between a surface's dl sum and
// its polygon perimeter above which the surface is reported.
const surfaceTolerance = 0.1

// validateSurfaces checks the flux surfaces as polygons in normalized
// coordinates: the axis lies inside the boundary, surfaces grow outward with
// one winding, and the polar dl matches the straight-edge perimeter.
func validateSurfaces(ds *dataset.Dataset, r *Report) {
	x, y := fem.Open(ds.X, ds.Y)
	axis := geo.Pt(ds.Constants.XAxis, ds.Constants.YAxis)
	grid, err := fem.NewMap(x, y, axis)
	if err != nil {
		return
	}
	nr, _ := grid.Dims()

	boundary := grid.Surface(nr - 1)
	if !boundary.Contains(axis) {
		r.AddWarning(Result{
			Level:       LevelGeometry,
			Message:     "magnetic axis lies outside the boundary surface",
			Field:       "x_axis",
			ActualValue: fmt.Sprintf("(%g, %g)", axis.X, axis.Y),
			Suggestions: []string{"Check x_axis and y_axis against the grid coordinates"},
		})
	}
	ccw := boundary.IsCounterClockwise()
	circumference := grid.Circumference()

	prevArea, prevIndex := 0.0, -1
	nested, wound, measured := true, true, true
	for i := 0; i < nr; i++ {
		s := grid.Surface(i)
		if s.Degenerate() {
			continue
		}
		if a := s.Area(); nested && prevIndex >= 0 && a <= prevArea {
			nested = false
			r.AddWarning(Result{
				Level:        LevelGeometry,
				Message:      fmt.Sprintf("flux surface %d encloses less area than surface %d", i, prevIndex),
				Field:        "x",
				ActualValue:  a,
				ConflictWith: fmt.Sprintf("surface %d area %g", prevIndex, prevArea),
				Suggestions:  []string{"Flux surfaces should be nested; ring integrals assume it"},
			})
		} else {
			prevArea, prevIndex = a, i
		}
		if wound && s.IsCounterClockwise() != ccw {
			wound = false
			r.AddWarning(Result{
				Level:   LevelGeometry,
				Message: fmt.Sprintf("flux surface %d winds opposite to the boundary", i),
				Field:   "x",
			})
		}
		if per := s.Perimeter(); measured && math.Abs(circumference[i]-per) > surfaceTolerance*per {
			measured = false
			r.AddWarning(Result{
				Level:       LevelGeometry,
				Message:     fmt.Sprintf("arc length of surface %d deviates from its perimeter", i),
				Field:       "x",
				ActualValue: circumference[i],
				Expected:    fmt.Sprintf("%g within %.0f%%", per, 100*surfaceTolerance),
				Suggestions: []string{"The surface is not star-shaped around the magnetic axis; contour integrals will be inaccurate"},
			})
		}
	}
}

func countNonFinite(m *mat.Dense) int {
	nr, nc := m.Dims()
	bad := 0
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				bad++
			}
		}
	}
	return bad
}

func strictlyMonotonic(v []float64) bool {
	if len(v) < 2 {
		return true
	}
	up := v[1] > v[0]
	for i := 1; i < len(v); i++ {
		if up && v[i] <= v[i-1] || !up && v[i] >= v[i-1] {
			return false
		}
	}
	return true
}
