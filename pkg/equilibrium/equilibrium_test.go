package equilibrium

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/dataset"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/fem"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/profile"
)

// A large-aspect-ratio circular equilibrium with ψ = r², linear F² and
// linear p. Toroidal corrections are O(ε) = 1%.
const (
	nRadial   = 21
	nPoloidal = 64
	epsilon   = 0.01
	r0        = 1 / epsilon
	psi1      = 1.0   // a₀²B_φ0/(B_MA/B₀·α) with all four set to 1
	pAxis     = 100.0 // target physical pressure on axis, Pa
	f0Squared = 1e4   // F on axis is R₀·1 T
)

var norm = Normalization{MinorRadius: 1, ToroidalField: 1}

// jTarget is the uniform current density that makes ψ = r² at R = R₀.
var jTarget = 4 * psi1 / (Mu0 * r0)

func f1Squared() float64 {
	return f0Squared - 2*Mu0*r0*psi1*(jTarget-r0*pAxis/psi1)
}

func fOf(psi float64) float64 {
	return math.Sqrt(f0Squared + (f1Squared()-f0Squared)*psi)
}

func grid(f func(r, th float64) float64) *mat.Dense {
	d := mat.NewDense(nRadial, nPoloidal, nil)
	for i := 0; i < nRadial; i++ {
		r := float64(i) / (nRadial - 1)
		for j := 0; j < nPoloidal; j++ {
			d.Set(i, j, f(r, 2*math.Pi*float64(j)/nPoloidal))
		}
	}
	return d
}

// rawSynthetic returns the dataset with placeholder betas.
func rawSynthetic() *dataset.Dataset {
	ds := dataset.Empty()
	ds.Status = dataset.StatusConverged
	ds.Constants.Epsilon = epsilon
	ds.Constants.Alpha = 1
	ds.Constants.XAxis = 0
	ds.Constants.YAxis = 0
	ds.Constants.BAxisOverB0 = 1
	ds.Constants.Beta = 1
	ds.Constants.BetaPoloidal = 1

	major := func(r, th float64) float64 { return r0 + r*math.Cos(th) }
	bp := func(r, th float64) float64 { return 2 * psi1 * r / major(r, th) }

	ds.X = grid(func(r, th float64) float64 { return r * math.Cos(th) })
	ds.Y = grid(func(r, th float64) float64 { return r * math.Sin(th) })
	ds.Psi = grid(func(r, _ float64) float64 { return r * r })
	ds.Pressure = grid(func(r, _ float64) float64 { return 1 - r*r })
	ds.BPhi = grid(func(r, th float64) float64 { return fOf(r*r) / major(r, th) })
	ds.BR = grid(func(r, th float64) float64 { return -bp(r, th) * math.Sin(th) })
	ds.BZ = grid(func(r, th float64) float64 { return bp(r, th) * math.Cos(th) })
	ds.Q = grid(func(r, _ float64) float64 { return fOf(r*r) / (2 * psi1 * r0) })
	return ds
}

// synthetic returns the dataset with betas chosen so that the pressure
// coefficient is pAxis.
func synthetic(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := rawSynthetic()
	res, err := New(ds, norm)
	require.NoError(t, err)

	tri := res.Triangulation()
	volume := func(f *mat.Dense) float64 {
		return tri.VolumeIntegral(f, res.R0(), nil).Value
	}
	square := func(m *mat.Dense) *mat.Dense {
		var out mat.Dense
		out.MulElem(m, m)
		return &out
	}
	p := volume(ds.Pressure)
	ds.Constants.Beta = pAxis * 2 * Mu0 * p / volume(square(res.BToroidal()))
	ds.Constants.BetaPoloidal = pAxis * 2 * Mu0 * p / volume(square(res.BPoloidal()))
	return ds
}

func newContext(t *testing.T, ds *dataset.Dataset, opts ...Option) *Context {
	t.Helper()
	res, err := New(ds, norm, opts...)
	require.NoError(t, err)
	ctx, err := NewContext(res)
	require.NoError(t, err)
	return ctx
}

func generating() Candidate {
	return Candidate{
		Name:  "generating",
		F2:    profile.New(1, -1),
		P:     profile.New(1, -1),
		SignI: 1,
	}
}

func assertProfileClose(t *testing.T, want, got []float64, rel float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := 1; i < len(want); i++ {
		assert.InDelta(t, want[i], got[i], math.Abs(want[i])*rel, "surface %d", i)
	}
}

func TestNewErrors(t *testing.T) {
	ds := rawSynthetic()
	ds.Q = nil
	_, err := New(ds, norm)
	require.ErrorIs(t, err, dataset.ErrMissingField)
	var mfe *dataset.MissingFieldError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "q", mfe.Name)

	ds = rawSynthetic()
	ds.Constants.BetaPoloidal = math.NaN()
	_, err = New(ds, norm)
	assert.ErrorIs(t, err, dataset.ErrMissingField)

	ds = rawSynthetic()
	ds.Status = "diverged"
	_, err = New(ds, norm)
	assert.ErrorIs(t, err, ErrNotConverged)

	ds = rawSynthetic()
	ds.Constants.Epsilon = 0
	_, err = New(ds, norm)
	assert.ErrorIs(t, err, ErrInvalidDataset)

	for _, n := range []Normalization{
		{MinorRadius: 0, ToroidalField: 1},
		{MinorRadius: math.Inf(1), ToroidalField: 1},
		{MinorRadius: 1, ToroidalField: 0},
		{MinorRadius: 1, ToroidalField: math.Inf(-1)},
	} {
		_, err = New(rawSynthetic(), n)
		assert.ErrorIs(t, err, ErrInvalidNormalization, "%+v", n)
	}

	// A reversed toroidal field is a valid normalization.
	res, err := New(rawSynthetic(), Normalization{MinorRadius: norm.MinorRadius, ToroidalField: -norm.ToroidalField})
	require.NoError(t, err)
	assert.Less(t, res.BToroidal().At(0, 0), 0.0)
}

func TestGeometry(t *testing.T) {
	res, err := New(rawSynthetic(), Normalization{MinorRadius: 2, ToroidalField: 1})
	require.NoError(t, err)

	assert.InDelta(t, 200, res.R0(), 1e-9)
	nr, np := res.Dims()
	assert.Equal(t, nRadial, nr)
	assert.Equal(t, nPoloidal, np)
	// The physical grid is scaled by a₀.
	assert.InDelta(t, 2, res.Map().Point(nr-1, 0).X, 1e-12)
	assert.InDelta(t, 202, res.MajorRadius().At(nr-1, 0), 1e-9)
	assert.Same(t, res.Triangulation(), res.Map().Triangulate())
}

func TestFields(t *testing.T) {
	ds := rawSynthetic()
	res, err := New(ds, Normalization{MinorRadius: 1, ToroidalField: 2.5})
	require.NoError(t, err)

	assert.InDelta(t, 2.5*ds.BPhi.At(3, 5), res.BToroidal().At(3, 5), 1e-12)
	want := 2.5 * math.Hypot(ds.BR.At(7, 9), ds.BZ.At(7, 9))
	assert.InDelta(t, want, res.BPoloidal().At(7, 9), 1e-12)

	// Accessors hand out copies.
	res.BToroidal().Set(0, 0, -1)
	assert.NotEqual(t, -1.0, res.BToroidal().At(0, 0))
}

func TestRho(t *testing.T) {
	res, err := New(rawSynthetic(), norm)
	require.NoError(t, err)

	rho := res.Rho()
	require.Len(t, rho, nRadial)
	assert.Equal(t, 0.0, rho[0])
	assert.InDelta(t, 1, rho[nRadial-1], 1e-12)
	for i := 1; i < nRadial; i++ {
		r := float64(i) / (nRadial - 1)
		assert.InDelta(t, r, rho[i], 2e-3, "surface %d", i)
	}
}

func TestRhoUndefinedWithoutFlux(t *testing.T) {
	ds := rawSynthetic()
	ds.BPhi.Zero()
	res, err := New(ds, norm)
	require.NoError(t, err)
	for _, v := range res.Rho() {
		assert.True(t, math.IsNaN(v))
	}
}

func TestPressureCoefficient(t *testing.T) {
	ds := synthetic(t)
	res, err := New(ds, norm)
	require.NoError(t, err)

	assert.InDelta(t, pAxis, res.PressureCoefficient(), pAxis*1e-9)
	p := res.PressureProfile()
	assert.InDelta(t, pAxis, p[0], pAxis*1e-9)
	assert.InDelta(t, 0, p[nRadial-1], 1e-9)
	assert.InDelta(t, pAxis*(1-0.25), res.Pressure().At(nRadial/2, 17), 1e-6)

	assert.InDelta(t, ds.Constants.Beta, res.Beta(), ds.Constants.Beta*1e-9)
	assert.InDelta(t, ds.Constants.BetaPoloidal, res.BetaPoloidal(), ds.Constants.BetaPoloidal*1e-9)
}

func TestSafetyFactorFromFields(t *testing.T) {
	res, err := New(rawSynthetic(), norm)
	require.NoError(t, err)

	q := res.SafetyFactorFromFields()
	assert.True(t, math.IsNaN(q[0]), "q on axis should be NaN")
	assertProfileClose(t, res.SafetyFactor(), q, 0.01)
}

func TestNewContext(t *testing.T) {
	ctx := newContext(t, synthetic(t))
	ref := ctx.Reference()

	assert.InDelta(t, pAxis, ref.P0, pAxis*1e-9)
	assert.InDelta(t, 0, ref.P1, 1e-9)
	assert.InDelta(t, math.Sqrt(f0Squared), ref.F0, 1e-9)
	assert.InDelta(t, math.Sqrt(f1Squared()), ref.F1, 1e-9)
	assert.InDelta(t, psi1, ref.Psi1, 1e-12)

	corr := ctx.Correction()
	// The axis has no poloidal field, so no correction.
	assert.Equal(t, 1.0, corr.At(0, 3))
	// Elsewhere B_p ∝ 1/R, larger on the inboard side.
	assert.Greater(t, corr.At(10, nPoloidal/2), corr.At(10, 0))
	assert.InDelta(t, 1, corr.At(10, nPoloidal/4), 1e-3)
}

func TestContextReferenceIsACopy(t *testing.T) {
	ctx := newContext(t, synthetic(t))
	before, err := ctx.Estimate(generating())
	require.NoError(t, err)

	ref := ctx.Reference()
	ref.P0 *= 10
	ref.F1 = ref.F0

	after, err := ctx.Estimate(generating())
	require.NoError(t, err)
	assert.Equal(t, before.Q[10], after.Q[10])
	assert.Equal(t, before.Pressure, after.Pressure)
	assert.InDelta(t, pAxis, ctx.Reference().P0, pAxis*1e-9)
}

func TestNewContextRejectsUndefinedPressure(t *testing.T) {
	ds := rawSynthetic()
	ds.Pressure.Zero()
	res, err := New(ds, norm)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.PressureCoefficient()))

	_, err = NewContext(res)
	assert.ErrorIs(t, err, dataset.ErrMissingField)
}

func TestEstimateReproducesReferenceQ(t *testing.T) {
	ctx := newContext(t, synthetic(t))
	est, err := ctx.Estimate(generating())
	require.NoError(t, err)

	assert.True(t, math.IsNaN(est.Q[0]), "q on axis should be NaN")
	assertProfileClose(t, ctx.Result().SafetyFactor(), est.Q, 0.02)

	// The rescaled profiles hit the reference values exactly.
	ref := ctx.Reference()
	assert.Equal(t, ref.F0*ref.F0, est.F2[0])
	assert.InDelta(t, f0Squared, est.F2[0], 1e-9)
	assert.Equal(t, ref.P0, est.Pressure[0])
	assert.InDelta(t, 0, est.Pressure[nRadial-1], 1e-9)

	// Enclosed current follows Ampère's law for the uniform target density.
	assert.Equal(t, 0.0, est.EnclosedCurrent[0])
	want := jTarget * math.Pi
	assert.InDelta(t, want, est.EnclosedCurrent[nRadial-1], want*0.02)
	assert.InDelta(t, jTarget, est.CurrentDensity.At(5, nPoloidal/4), jTarget*1e-3)

	// Axis B_p is forced to zero.
	for j := 0; j < nPoloidal; j++ {
		assert.Equal(t, 0.0, est.BPoloidal.At(0, j))
	}
	assert.InDelta(t, ctx.Result().BPoloidal().At(10, 7), est.BPoloidal.At(10, 7),
		ctx.Result().BPoloidal().At(10, 7)*0.02)
}

func TestEstimateSignAndAlpha(t *testing.T) {
	ctx := newContext(t, synthetic(t))
	base, err := ctx.Estimate(generating())
	require.NoError(t, err)

	c := generating()
	c.SignI = -1
	flipped, err := ctx.Estimate(c)
	require.NoError(t, err)
	for i := 1; i < nRadial; i++ {
		assert.InDelta(t, -base.Q[i], flipped.Q[i], 1e-12)
	}
	assert.Less(t, flipped.BToroidal.At(4, 4), 0.0)

	c = generating()
	c.Alpha = 2
	doubled, err := ctx.Estimate(c)
	require.NoError(t, err)
	for i := 1; i < nRadial; i++ {
		assert.InDelta(t, 2*base.Q[i], doubled.Q[i], 1e-12)
	}
}

func TestEstimateRejectsBadCandidates(t *testing.T) {
	ctx := newContext(t, synthetic(t))

	for _, sign := range []int{0, 2, -3} {
		c := generating()
		c.SignI = sign
		_, err := ctx.Estimate(c)
		assert.ErrorIs(t, err, ErrInvalidSign, "sign %d", sign)
	}

	c := generating()
	c.F2 = profile.New(1)
	_, err := ctx.Estimate(c)
	assert.ErrorIs(t, err, ErrDegenerateProfile)

	c = generating()
	c.P = profile.Polynomial{}
	_, err = ctx.Estimate(c)
	assert.ErrorIs(t, err, ErrDegenerateProfile)
}

func TestEstimateNegativeF2IsNaN(t *testing.T) {
	ctx := newContext(t, synthetic(t))
	c := generating()
	// Rescaled F² dips below zero between axis and edge.
	c.F2 = profile.New(1, -10001, 10000)
	est, err := ctx.Estimate(c)
	require.NoError(t, err)

	sawNaN := false
	for i, f2 := range est.F2 {
		if f2 < 0 {
			sawNaN = true
			assert.True(t, math.IsNaN(est.BToroidal.At(i, 0)))
			assert.True(t, math.IsNaN(est.Q[i]))
		}
	}
	assert.True(t, sawNaN, "expected F² to go negative")
}

func TestClosedGridMatchesOpen(t *testing.T) {
	ds := synthetic(t)
	closed := dataset.Empty()
	closed.Status = ds.Status
	closed.Constants = ds.Constants
	for _, name := range dataset.RequiredQuantities() {
		q := ds.Quantity(name)
		n, m := q.Dims()
		c := mat.NewDense(n, m+1, nil)
		for i := 0; i < n; i++ {
			for j := 0; j <= m; j++ {
				c.Set(i, j, q.At(i, j%m))
			}
		}
		require.NoError(t, closed.SetQuantity(name, c))
	}
	require.True(t, fem.Closed(closed.X, closed.Y))

	open, err := newContext(t, ds).Estimate(generating())
	require.NoError(t, err)
	ctx := newContext(t, closed)
	_, np := ctx.Result().Dims()
	assert.Equal(t, nPoloidal, np)
	got, err := ctx.Estimate(generating())
	require.NoError(t, err)
	assertProfileClose(t, open.Q, got.Q, 1e-12)
}

func TestEstimateConcurrent(t *testing.T) {
	ctx := newContext(t, synthetic(t))
	want, err := ctx.Estimate(generating())
	require.NoError(t, err)

	results := make([]*Estimate, 8)
	var g errgroup.Group
	for k := range results {
		g.Go(func() error {
			est, err := ctx.Estimate(generating())
			results[k] = est
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, est := range results {
		assert.Equal(t, want.Q[1:], est.Q[1:])
	}
}

func TestBarycentricInterpolationAgrees(t *testing.T) {
	ds := synthetic(t)
	centroid := newContext(t, ds)
	bary := newContext(t, ds, WithInterpolation(fem.Barycentric))
	assert.Equal(t, fem.Barycentric, bary.Result().Interpolation())

	a, err := centroid.Estimate(generating())
	require.NoError(t, err)
	b, err := bary.Estimate(generating())
	require.NoError(t, err)
	assertProfileClose(t, a.Q, b.Q, 0.01)
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := newContext(t, synthetic(t), WithLogger(zap.New(core)))
	_, err := ctx.Estimate(generating())
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("equilibrium loaded").Len())
	assert.Equal(t, 1, logs.FilterMessage("estimation context").Len())
	entries := logs.FilterMessage("estimated candidate").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "generating", entries[0].ContextMap()["candidate"])
}
