// Package compare scores an estimated profile against a reference profile
// sampled on a different flux coordinate.
package compare

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrTooShort is returned when a profile has fewer than two usable samples.
	ErrTooShort = errors.New("profile needs at least two samples")
	// ErrNotMonotonic is returned when the reference coordinate is not
	// strictly increasing.
	ErrNotMonotonic = errors.New("coordinate is not strictly increasing")
	// ErrLength is returned when a coordinate and its values differ in length.
	ErrLength = errors.New("length mismatch")
)

// Sample locations of the signed errors.
const (
	PreQ1Rho    = 0.08
	Q1Value     = 1.0
	PostQ1Value = 1.1
)

// ErrorAt is the signed relative error at one sample of the estimate. Value is
// negative when the reference exceeds the estimate.
type ErrorAt struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// Report is the badness of an estimate.
type Report struct {
	// Total is the mean relative error over all samples where it is defined.
	Total float64 `json:"total"`
	// PreQ1 is taken where the estimate's coordinate is closest to 0.08.
	PreQ1 ErrorAt `json:"pre_q1"`
	// Q1 and PostQ1 are taken where the reference is closest to 1 and 1.1.
	Q1     ErrorAt `json:"q1"`
	PostQ1 ErrorAt `json:"post_q1"`
	// End is the second-to-last sample.
	End ErrorAt `json:"end"`
	// Max is the worst sample, unsigned; Index 0 and Value +Inf when no
	// sample is defined.
	Max ErrorAt `json:"max"`

	Reference     []float64 `json:"reference"`
	RelativeError []float64 `json:"relative_error"`
}

// RelativeError returns |1 - est/ref| element-wise.
func RelativeError(ref, est []float64) []float64 {
	out := make([]float64, len(ref))
	for i := range ref {
		out[i] = math.Abs(1 - est[i]/ref[i])
	}
	return out
}

// Resample evaluates the piecewise-linear curve through (xs, ys) at every
// point of at, extrapolating linearly beyond both ends. Pairs with a NaN
// coordinate or value are skipped; the remaining coordinates must be strictly
// increasing.
func Resample(xs, ys, at []float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d coordinates, %d values", ErrLength, len(xs), len(ys))
	}
	var x, y []float64
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		x = append(x, xs[i])
		y = append(y, ys[i])
	}
	if len(x) < 2 {
		return nil, ErrTooShort
	}
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			return nil, fmt.Errorf("%w: x[%d]=%g after %g", ErrNotMonotonic, i, x[i], x[i-1])
		}
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(x, y); err != nil {
		return nil, fmt.Errorf("fitting reference: %w", err)
	}

	n := len(x)
	out := make([]float64, len(at))
	for i, v := range at {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case v < x[0]:
			out[i] = extrapolate(x[0], y[0], x[1], y[1], v)
		case v > x[n-1]:
			out[i] = extrapolate(x[n-2], y[n-2], x[n-1], y[n-1], v)
		default:
			out[i] = pl.Predict(v)
		}
	}
	return out, nil
}

func extrapolate(x0, y0, x1, y1, v float64) float64 {
	return y0 + (v-x0)*(y1-y0)/(x1-x0)
}

// Badness compares est, sampled at rhoEst, with ref, sampled at rhoRef. The
// reference is resampled onto rhoEst first.
func Badness(rhoRef, ref, rhoEst, est []float64) (*Report, error) {
	if len(rhoEst) != len(est) {
		return nil, fmt.Errorf("%w: %d coordinates, %d estimates", ErrLength, len(rhoEst), len(est))
	}
	if len(est) < 2 {
		return nil, ErrTooShort
	}
	resampled, err := Resample(rhoRef, ref, rhoEst)
	if err != nil {
		return nil, fmt.Errorf("resampling reference: %w", err)
	}

	rel := RelativeError(resampled, est)
	r := &Report{
		Total:         nanMean(rel),
		Reference:     resampled,
		RelativeError: rel,
	}

	errAt := func(i int) ErrorAt {
		v := rel[i]
		if resampled[i] > est[i] {
			v = -v
		}
		return ErrorAt{Index: i, Value: v}
	}
	r.Q1 = errAt(nearest(resampled, Q1Value))
	r.PreQ1 = errAt(nearest(rhoEst, PreQ1Rho))
	r.PostQ1 = errAt(nearest(resampled, PostQ1Value))
	r.End = errAt(len(est) - 2)

	r.Max = ErrorAt{Index: 0, Value: math.Inf(1)}
	if finite := withoutNaN(rel); len(finite) > 0 {
		worst := floats.Max(finite)
		for i, v := range rel {
			if v == worst {
				r.Max = ErrorAt{Index: i, Value: v}
				break
			}
		}
	}
	return r, nil
}

// nearest returns the index of the value closest to target, skipping NaN.
// It returns 0 when every value is NaN.
func nearest(values []float64, target float64) int {
	best, dist := 0, math.Inf(1)
	for i, v := range values {
		if d := math.Abs(v - target); d < dist {
			best, dist = i, d
		}
	}
	return best
}

func withoutNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// nanMean is the mean of the non-NaN values, NaN when there are none.
func nanMean(values []float64) float64 {
	finite := withoutNaN(values)
	if len(finite) == 0 {
		return math.NaN()
	}
	return stat.Mean(finite, nil)
}
