// Package profile holds the polynomial input profiles (F² and pressure) that
// are fed to the equilibrium solver and the affine rescaling applied to their
// samples.
package profile

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// Polynomial is a profile on the normalized flux coordinate [0, 1].
// Coefficients are stored lowest order first: Coeffs[k] multiplies x^k.
type Polynomial struct {
	Coeffs []float64
}

// New returns a polynomial with a copy of coeffs.
func New(coeffs ...float64) Polynomial {
	return Polynomial{Coeffs: append([]float64(nil), coeffs...)}
}

// Degree returns the polynomial degree, -1 for the empty polynomial.
func (p Polynomial) Degree() int {
	return len(p.Coeffs) - 1
}

// Eval evaluates the polynomial at x.
func (p Polynomial) Eval(x float64) float64 {
	v := 0.0
	for k := len(p.Coeffs) - 1; k >= 0; k-- {
		v = v*x + p.Coeffs[k]
	}
	return v
}

// EvalAll evaluates the polynomial at every x.
func (p Polynomial) EvalAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = p.Eval(x)
	}
	return out
}

// Deriv returns the derivative with respect to the normalized coordinate.
func (p Polynomial) Deriv() Polynomial {
	if len(p.Coeffs) <= 1 {
		return Polynomial{Coeffs: []float64{0}}
	}
	d := make([]float64, len(p.Coeffs)-1)
	for k := 1; k < len(p.Coeffs); k++ {
		d[k-1] = float64(k) * p.Coeffs[k]
	}
	return Polynomial{Coeffs: d}
}

// Rescaled returns scale·p + shift.
func (p Polynomial) Rescaled(s Scaling) Polynomial {
	out := New(p.Coeffs...)
	if len(out.Coeffs) == 0 {
		out.Coeffs = []float64{0}
	}
	floats.Scale(s.Scale, out.Coeffs)
	out.Coeffs[0] += s.Shift
	return out
}

// String formats the polynomial as "c0 + c1·x + c2·x^2 ...".
func (p Polynomial) String() string {
	if len(p.Coeffs) == 0 {
		return "0"
	}
	var b strings.Builder
	for k, c := range p.Coeffs {
		if k > 0 {
			b.WriteString(" + ")
		}
		switch k {
		case 0:
			fmt.Fprintf(&b, "%g", c)
		case 1:
			fmt.Fprintf(&b, "%g·x", c)
		default:
			fmt.Fprintf(&b, "%g·x^%d", c, k)
		}
	}
	return b.String()
}

// UnmarshalYAML reads a polynomial from a plain sequence of coefficients.
func (p *Polynomial) UnmarshalYAML(value *yaml.Node) error {
	var coeffs []float64
	if err := value.Decode(&coeffs); err != nil {
		return fmt.Errorf("decoding polynomial coefficients: %w", err)
	}
	p.Coeffs = coeffs
	return nil
}

// MarshalYAML writes the coefficients as a plain sequence.
func (p Polynomial) MarshalYAML() (any, error) {
	return p.Coeffs, nil
}

// Scaling is the affine map v → Scale·v + Shift.
type Scaling struct {
	Scale float64 `json:"scale" yaml:"scale"`
	Shift float64 `json:"shift" yaml:"shift"`
}

// Identity leaves values unchanged.
var Identity = Scaling{Scale: 1}

// Apply returns Scale·v + Shift.
func (s Scaling) Apply(v float64) float64 {
	return s.Scale*v + s.Shift
}

// Rescale maps values affinely so that the first element becomes new0 and the
// last becomes new1. It returns the rescaled copy and the map used.
//
// When the first and last values coincide the scale is not finite; the
// result then carries Inf/NaN and is left for the caller to reject. Applying
// Rescale to its own output with the same targets returns the same values.
func Rescale(values []float64, new0, new1 float64) ([]float64, Scaling) {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out, Identity
	}
	v0, v1 := values[0], values[len(values)-1]
	s := Scaling{Scale: (new0 - new1) / (v0 - v1)}
	s.Shift = new0 - s.Scale*v0

	copy(out, values)
	floats.Scale(s.Scale, out)
	floats.AddConst(s.Shift, out)
	if !math.IsInf(s.Scale, 0) && !math.IsNaN(s.Scale) {
		out[0] = new0
		out[len(out)-1] = new1
	}
	return out, s
}
