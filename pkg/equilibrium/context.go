package equilibrium

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/dataset"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/profile"
)

var (
	// ErrInvalidSign is returned for a candidate whose current direction is
	// not +1 or -1.
	ErrInvalidSign = errors.New("current sign must be +1 or -1")
	// ErrDegenerateProfile is returned when a candidate profile takes the
	// same value on the axis and at the edge, so it cannot be rescaled.
	ErrDegenerateProfile = errors.New("profile cannot be rescaled")
)

// Candidate is a pair of input profiles to estimate q from.
type Candidate struct {
	Name string
	F2   profile.Polynomial // F̃² on the normalized flux
	P    profile.Polynomial // p̃ on the normalized flux
	// Alpha is the flux normalization the profiles were written for; zero
	// means the solution's own alpha.
	Alpha float64
	// SignI is the direction of the plasma current, +1 or -1.
	SignI int
}

// Validate checks the candidate's boundary values.
func (c Candidate) Validate() error {
	if c.SignI != 1 && c.SignI != -1 {
		return fmt.Errorf("candidate %q: %w, got %d", c.Name, ErrInvalidSign, c.SignI)
	}
	if len(c.F2.Coeffs) == 0 || len(c.P.Coeffs) == 0 {
		return fmt.Errorf("candidate %q: %w: empty polynomial", c.Name, ErrDegenerateProfile)
	}
	if math.IsNaN(c.Alpha) || math.IsInf(c.Alpha, 0) {
		return fmt.Errorf("candidate %q: alpha is not finite", c.Name)
	}
	return nil
}

// Reference holds the values of a solution that estimates are rescaled to.
type Reference struct {
	// P0 and P1 are the physical pressure on the axis and at the edge.
	P0, P1 float64
	// F0 and F1 are R·B_φ on the axis and at the edge.
	F0, F1 float64
	// Psi1 is the edge poloidal flux a₀²B_φ0/(B_MA/B₀·α).
	Psi1 float64
}

// Context holds the reference values of one Result that every estimate is
// calibrated against. It is immutable; rebuild it when the solution changes.
type Context struct {
	res *Result
	ref Reference

	psi           []float64
	circumference []float64
	correction    *mat.Dense
}

// NewContext derives the estimation context from res. It fails with an error
// matching dataset.ErrMissingField when a reference value is not finite.
func NewContext(res *Result) (*Context, error) {
	nr, np := res.Dims()
	p := res.PressureProfile()
	major := res.majorRadius()
	bphi, bp := res.fields()
	c := res.Constants()
	norm := res.Normalization()

	ref := Reference{
		P0:   p[0],
		P1:   p[nr-1],
		F0:   major.At(0, 0) * bphi.At(0, 0),
		F1:   major.At(nr-1, 0) * bphi.At(nr-1, 0),
		Psi1: norm.MinorRadius * norm.MinorRadius * norm.ToroidalField / (c.BAxisOverB0 * c.Alpha),
	}
	ctx := &Context{
		res: res,
		ref: ref,
		psi: res.FluxCoordinate(),
	}

	refs := []struct {
		value float64
		field string
	}{
		{ref.P0, "pressure"}, {ref.P1, "pressure"},
		{ref.F0, "b_phi"}, {ref.F1, "b_phi"},
		{ref.Psi1, "alpha"},
	}
	for _, ref := range refs {
		if math.IsNaN(ref.value) || math.IsInf(ref.value, 0) {
			return nil, fmt.Errorf("reference value from %s is not finite: %w",
				ref.field, &dataset.MissingFieldError{Kind: dataset.KindQuantity, Name: ref.field})
		}
	}

	// Shape of B_p on each surface relative to its surface average.
	sum, _ := res.Map().ContourIntegral(bp)
	ctx.circumference = res.Map().Circumference()
	ctx.correction = mat.NewDense(nr, np, nil)
	for i := 0; i < nr; i++ {
		avg := 0.0
		if l := ctx.circumference[i]; l != 0 {
			avg = sum[i] / l
		}
		for j := 0; j < np; j++ {
			if avg == 0 {
				ctx.correction.Set(i, j, 1)
				continue
			}
			ctx.correction.Set(i, j, bp.At(i, j)/avg)
		}
	}

	res.log.Debug("estimation context",
		zap.Float64("p0", ref.P0),
		zap.Float64("p1", ref.P1),
		zap.Float64("f0", ref.F0),
		zap.Float64("f1", ref.F1),
		zap.Float64("psi1", ref.Psi1))
	return ctx, nil
}

// Result returns the solution the context was built from.
func (ctx *Context) Result() *Result {
	return ctx.res
}

// Reference returns a copy of the values estimates are rescaled to.
func (ctx *Context) Reference() Reference {
	return ctx.ref
}

// Correction returns B_p divided by its average over each flux surface.
// Surfaces with zero average carry 1.
func (ctx *Context) Correction() *mat.Dense {
	return mat.DenseCopyOf(ctx.correction)
}

// Estimate is the reconstruction of one candidate.
type Estimate struct {
	Candidate string
	// Rho is the flux coordinate of the solution, for plotting against.
	Rho []float64
	// Q is the estimated safety factor per flux surface, NaN on the axis.
	Q []float64
	// EnclosedCurrent is the toroidal current inside each surface in A.
	EnclosedCurrent []float64
	// CurrentDensity is the toroidal current density in A/m².
	CurrentDensity *mat.Dense
	BPoloidal      *mat.Dense
	BToroidal      *mat.Dense
	// F2 and Pressure are the rescaled candidate profiles per surface.
	F2, Pressure []float64
	// ScalingF2 and ScalingP map the candidate's normalized profiles to
	// physical F² and p.
	ScalingF2, ScalingP profile.Scaling
}

// Estimate reconstructs the fields and the q profile implied by c. It is safe
// to call concurrently.
func (ctx *Context) Estimate(c Candidate) (*Estimate, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	res := ctx.res
	nr, np := res.Dims()
	major := res.majorRadius()

	// Rescale the normalized profiles to the reference axis and edge values.
	ref := ctx.ref
	f2, sF := profile.Rescale(c.F2.EvalAll(ctx.psi), ref.F0*ref.F0, ref.F1*ref.F1)
	pr, sP := profile.Rescale(c.P.EvalAll(ctx.psi), ref.P0, ref.P1)
	for _, s := range []struct {
		name  string
		scale float64
	}{{"F2", sF.Scale}, {"P", sP.Scale}} {
		if math.IsNaN(s.scale) || math.IsInf(s.scale, 0) {
			return nil, fmt.Errorf("candidate %q: %w: %s has equal axis and edge values",
				c.Name, ErrDegenerateProfile, s.name)
		}
	}

	// dx/dΨ = dx/dx̃ · dx̃/dψ · dψ/dΨ with dψ/dΨ = 1/Ψ₁.
	dF2 := c.F2.Deriv().EvalAll(ctx.psi)
	floats.Scale(sF.Scale/ref.Psi1, dF2)
	dP := c.P.Deriv().EvalAll(ctx.psi)
	floats.Scale(sP.Scale/ref.Psi1, dP)

	j := mat.NewDense(nr, np, nil)
	j.Apply(func(i, k int, _ float64) float64 {
		r := major.At(i, k)
		return -0.5*dF2[i]/(Mu0*r) - dP[i]*r
	}, j)

	current := res.Triangulation().RingIntegral(j, res.interp)

	// B_p from Ampère's law with a flux-surface constant, reshaped by the
	// reference B_p.
	bp := mat.NewDense(nr, np, nil)
	zeroLength := 0
	for i := 1; i < nr; i++ {
		l := ctx.circumference[i]
		if l == 0 {
			zeroLength++
			continue
		}
		avg := Mu0 * current[i] / l
		for k := 0; k < np; k++ {
			bp.Set(i, k, ctx.correction.At(i, k)*avg)
		}
	}
	if zeroLength > 0 {
		res.log.Debug("zero-length flux surfaces, B_p set to 0",
			zap.String("candidate", c.Name), zap.Int("surfaces", zeroLength))
	}

	sign := float64(c.SignI)
	bt := mat.NewDense(nr, np, nil)
	bt.Apply(func(i, k int, _ float64) float64 {
		return sign * math.Sqrt(f2[i]) / major.At(i, k)
	}, bt)

	q := safetyFactor(res.Map(), major, bt, bp, false)
	alpha := c.Alpha
	if alpha == 0 {
		alpha = res.Constants().Alpha
	}
	floats.Scale(alpha/res.Constants().Alpha, q)

	res.log.Debug("estimated candidate",
		zap.String("candidate", c.Name),
		zap.Float64("f2_scale", sF.Scale),
		zap.Float64("p_scale", sP.Scale),
		zap.Float64("edge_current", current[nr-1]))

	return &Estimate{
		Candidate:       c.Name,
		Rho:             res.Rho(),
		Q:               q,
		EnclosedCurrent: current,
		CurrentDensity:  j,
		BPoloidal:       bp,
		BToroidal:       bt,
		F2:              f2,
		Pressure:        pr,
		ScalingF2:       sF,
		ScalingP:        sP,
	}, nil
}
