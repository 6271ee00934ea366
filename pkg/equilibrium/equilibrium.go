// Package equilibrium derives physical quantities from a converged solver
// solution and re-estimates the safety factor from candidate input profiles.
//
// A Result wraps one validated dataset. Its geometry and fields are derived
// on first use and cached; a Result is safe for concurrent use once built.
package equilibrium

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/dataset"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/fem"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/geo"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/validation"
)

// Mu0 is the vacuum permeability in H/m.
const Mu0 = 4 * math.Pi * 1e-7

var (
	// ErrNotConverged is returned for a solution whose solver run failed.
	ErrNotConverged = errors.New("solver did not converge")
	// ErrInvalidDataset wraps the first validation error of a dataset.
	ErrInvalidDataset = errors.New("invalid dataset")
	// ErrInvalidNormalization is returned for a minor radius that is not
	// positive and finite, or a toroidal field that is zero or not finite. A
	// negative toroidal field is a reversed field and is accepted.
	ErrInvalidNormalization = errors.New("invalid normalization")
)

// Normalization holds the physical scales that turn the solver's
// dimensionless output into SI quantities.
type Normalization struct {
	MinorRadius   float64 `yaml:"minor_radius" json:"minor_radius"`     // a₀ in m
	ToroidalField float64 `yaml:"toroidal_field" json:"toroidal_field"` // B_φ0 in T
}

// Option configures a Result.
type Option func(*Result)

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Result) {
		if l != nil {
			r.log = l
		}
	}
}

// WithInterpolation sets the triangle interpolation used by every surface,
// ring and volume integral. The default is fem.Centroid.
func WithInterpolation(i fem.Interpolation) Option {
	return func(r *Result) {
		if i != nil {
			r.interp = i
		}
	}
}

// Result is the physical layer on top of a solver solution.
type Result struct {
	ds     *dataset.Dataset
	norm   Normalization
	log    *zap.Logger
	interp fem.Interpolation

	r0     float64
	grid   *fem.Map
	report *validation.Report

	geomOnce sync.Once
	major    *mat.Dense

	fieldOnce sync.Once
	bphi, bp  *mat.Dense

	rhoOnce sync.Once
	rho     []float64

	pressOnce sync.Once
	pcoef     float64
	pressure  *mat.Dense
}

// New validates ds and builds a Result from it. A missing quantity or
// constant yields an error matching dataset.ErrMissingField; a failed solver
// run yields ErrNotConverged. A closing poloidal column is dropped.
func New(ds *dataset.Dataset, norm Normalization, opts ...Option) (*Result, error) {
	if !(norm.MinorRadius > 0) || math.IsInf(norm.MinorRadius, 0) ||
		norm.ToroidalField == 0 || math.IsNaN(norm.ToroidalField) || math.IsInf(norm.ToroidalField, 0) {
		return nil, fmt.Errorf("%w: minor radius %g, toroidal field %g",
			ErrInvalidNormalization, norm.MinorRadius, norm.ToroidalField)
	}

	_, rawPoloidal := ds.Dims()
	report := validation.ValidateDataset(ds)
	if missing := ds.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("building equilibrium: %w", missing[0])
	}
	if !ds.Converged() {
		return nil, fmt.Errorf("building equilibrium: %w (status %q)", ErrNotConverged, ds.Status)
	}
	if err := report.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}

	r := &Result{
		ds:     open(ds),
		norm:   norm,
		log:    zap.NewNop(),
		interp: fem.Centroid,
		report: report,
	}
	for _, opt := range opts {
		opt(r)
	}

	a0 := norm.MinorRadius
	c := r.ds.Constants
	r.r0 = a0 / c.Epsilon

	x := mat.DenseCopyOf(r.ds.X)
	x.Scale(a0, x)
	y := mat.DenseCopyOf(r.ds.Y)
	y.Scale(a0, y)
	grid, err := fem.NewMap(x, y, geo.Pt(a0*c.XAxis, a0*c.YAxis))
	if err != nil {
		return nil, fmt.Errorf("building grid: %w", err)
	}
	r.grid = grid

	nr, np := grid.Dims()
	r.log.Debug("equilibrium loaded",
		zap.Int("radial", nr),
		zap.Int("poloidal", np),
		zap.Float64("r0", r.r0),
		zap.Bool("closed_grid", np != rawPoloidal))
	return r, nil
}

// open returns a copy of ds. A closing poloidal column is dropped from every
// quantity so the poloidal axis is strictly periodic.
func open(ds *dataset.Dataset) *dataset.Dataset {
	closed := fem.Closed(ds.X, ds.Y)
	out := &dataset.Dataset{Status: ds.Status, Constants: ds.Constants}
	for _, name := range dataset.QuantityNames() {
		q := ds.Quantity(name)
		switch {
		case q == nil:
			continue
		case closed:
			q = fem.DropLastColumn(q)
		default:
			q = mat.DenseCopyOf(q)
		}
		_ = out.SetQuantity(name, q)
	}
	return out
}

// Report returns the validation report of the underlying dataset. It holds
// warnings and info only; datasets with errors never make a Result.
func (r *Result) Report() *validation.Report {
	return r.report
}

// Constants returns the solver constants.
func (r *Result) Constants() dataset.Constants {
	return r.ds.Constants
}

// Normalization returns the physical scales the Result was built with.
func (r *Result) Normalization() Normalization {
	return r.norm
}

// Dims returns the number of radial and poloidal grid points.
func (r *Result) Dims() (radial, poloidal int) {
	return r.grid.Dims()
}

// R0 returns the major radius a₀/ε in m.
func (r *Result) R0() float64 {
	return r.r0
}

// Map returns the physical grid around the magnetic axis.
func (r *Result) Map() *fem.Map {
	return r.grid
}

// Triangulation returns the triangular decomposition of the physical grid.
func (r *Result) Triangulation() *fem.TriangularMap {
	return r.grid.Triangulate()
}

// Interpolation returns the triangle interpolation in use.
func (r *Result) Interpolation() fem.Interpolation {
	return r.interp
}

func (r *Result) majorRadius() *mat.Dense {
	r.geomOnce.Do(func() {
		r.major = r.grid.X()
		r0 := r.r0
		r.major.Apply(func(_, _ int, v float64) float64 { return r0 + v }, r.major)
	})
	return r.major
}

// MajorRadius returns R = R₀ + x at every grid point, in m.
func (r *Result) MajorRadius() *mat.Dense {
	return mat.DenseCopyOf(r.majorRadius())
}

func (r *Result) fields() (bphi, bp *mat.Dense) {
	r.fieldOnce.Do(func() {
		b0 := r.norm.ToroidalField
		r.bphi = mat.DenseCopyOf(r.ds.BPhi)
		r.bphi.Scale(b0, r.bphi)

		r.bp = mat.DenseCopyOf(r.ds.BR)
		bz := r.ds.BZ
		r.bp.Apply(func(i, j int, br float64) float64 {
			return b0 * math.Hypot(br, bz.At(i, j))
		}, r.bp)
	})
	return r.bphi, r.bp
}

// BToroidal returns B_φ = B_φ0·B̃_φ in T.
func (r *Result) BToroidal() *mat.Dense {
	bphi, _ := r.fields()
	return mat.DenseCopyOf(bphi)
}

// BPoloidal returns B_p = B_φ0·sqrt(B̃_R² + B̃_Z²) in T.
func (r *Result) BPoloidal() *mat.Dense {
	_, bp := r.fields()
	return mat.DenseCopyOf(bp)
}

func (r *Result) rhoProfile() []float64 {
	r.rhoOnce.Do(func() {
		bphi, _ := r.fields()
		phi := r.Triangulation().RingIntegral(bphi, r.interp)
		edge := phi[len(phi)-1]
		r.rho = make([]float64, len(phi))
		if edge == 0 {
			r.log.Debug("toroidal flux vanishes at the edge, rho undefined")
			for i := range r.rho {
				r.rho[i] = math.NaN()
			}
			return
		}
		for i, v := range phi {
			r.rho[i] = math.Sqrt(math.Abs(v / edge))
		}
		r.rho[0] = 0
	})
	return r.rho
}

// Rho returns the normalized toroidal-flux coordinate sqrt(|Φ/Φ_edge|) per
// flux surface, with Φ the toroidal flux enclosed by each surface. It is NaN
// throughout when the edge flux is zero.
func (r *Result) Rho() []float64 {
	return append([]float64(nil), r.rhoProfile()...)
}

// FluxCoordinate returns the solver's normalized poloidal flux ψ per surface.
func (r *Result) FluxCoordinate() []float64 {
	return mat.Col(nil, 0, r.ds.Psi)
}

// SafetyFactor returns the solver's q profile per surface.
func (r *Result) SafetyFactor() []float64 {
	return mat.Col(nil, 0, r.ds.Q)
}

// rawPressure broadcasts the solver pressure at poloidal index 0 over the
// poloidal axis.
func (r *Result) rawPressure() *mat.Dense {
	nr, np := r.grid.Dims()
	p := mat.NewDense(nr, np, nil)
	for i := 0; i < nr; i++ {
		v := r.ds.Pressure.At(i, 0)
		for j := 0; j < np; j++ {
			p.Set(i, j, v)
		}
	}
	return p
}

// betaFrom returns 2μ₀∫p dV / ∫B² dV over the plasma volume.
func (r *Result) betaFrom(p, b *mat.Dense) float64 {
	tri := r.Triangulation()
	var b2 mat.Dense
	b2.MulElem(b, b)
	pv := tri.VolumeIntegral(p, r.r0, r.interp).Value
	bv := tri.VolumeIntegral(&b2, r.r0, r.interp).Value
	return 2 * Mu0 * pv / bv
}

func (r *Result) pressureProfile() (float64, *mat.Dense) {
	r.pressOnce.Do(func() {
		bphi, bp := r.fields()
		raw := r.rawPressure()
		betaEst := r.betaFrom(raw, bphi)
		betapEst := r.betaFrom(raw, bp)
		c := r.ds.Constants

		ratios := []float64{c.Beta / betaEst, c.BetaPoloidal / betapEst}
		r.pcoef = stat.Mean(ratios, nil)
		for _, v := range ratios {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				r.log.Debug("degenerate beta ratio, pressure undefined",
					zap.Float64("beta_est", betaEst),
					zap.Float64("beta_poloidal_est", betapEst))
				r.pcoef = math.NaN()
				break
			}
		}

		r.pressure = raw
		r.pressure.Scale(r.pcoef, r.pressure)
	})
	return r.pcoef, r.pressure
}

// PressureCoefficient returns the factor that turns the solver's
// dimensionless pressure into Pa. It is the mean of β/β_est and β_p/β_p,est,
// where the estimates integrate the dimensionless pressure over the plasma
// volume. It is NaN when either ratio is not finite.
func (r *Result) PressureCoefficient() float64 {
	c, _ := r.pressureProfile()
	return c
}

// Pressure returns the physical pressure in Pa at every grid point.
func (r *Result) Pressure() *mat.Dense {
	_, p := r.pressureProfile()
	return mat.DenseCopyOf(p)
}

// PressureProfile returns the physical pressure per flux surface.
func (r *Result) PressureProfile() []float64 {
	_, p := r.pressureProfile()
	return mat.Col(nil, 0, p)
}

// Beta returns the toroidal beta 2μ₀⟨p⟩/⟨B_φ²⟩ from the physical pressure.
func (r *Result) Beta() float64 {
	bphi, _ := r.fields()
	_, p := r.pressureProfile()
	return r.betaFrom(p, bphi)
}

// BetaPoloidal returns the poloidal beta 2μ₀⟨p⟩/⟨B_p²⟩ from the physical
// pressure.
func (r *Result) BetaPoloidal() float64 {
	_, bp := r.fields()
	_, p := r.pressureProfile()
	return r.betaFrom(p, bp)
}

// SafetyFactorFromFields integrates q = |∮ B_φ/(R·B_p) dl| / 2π from the
// solver's own fields. It should reproduce SafetyFactor closely; the axis,
// where B_p vanishes, is NaN.
func (r *Result) SafetyFactorFromFields() []float64 {
	bphi, bp := r.fields()
	return safetyFactor(r.grid, r.majorRadius(), bphi, bp, true)
}

// safetyFactor returns ∮ B_φ/(R·B_p) dl / 2π per surface. Points with zero B_p
// contribute NaN.
func safetyFactor(grid *fem.Map, major, bphi, bp *mat.Dense, absolute bool) []float64 {
	integrand := mat.DenseCopyOf(bphi)
	integrand.Apply(func(i, j int, v float64) float64 {
		if bp.At(i, j) == 0 {
			return math.NaN()
		}
		return v / (major.At(i, j) * bp.At(i, j))
	}, integrand)
	q, _ := grid.ContourIntegral(integrand)
	for i := range q {
		q[i] /= 2 * math.Pi
		if absolute {
			q[i] = math.Abs(q[i])
		}
	}
	return q
}
