package validation

import (
	"fmt"
	"math"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/casefile"
)

// ValidateCase checks a case file before its dataset is loaded.
func ValidateCase(c *casefile.Case) *Report {
	r := NewReport()

	if c.Dataset == "" {
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "case names no dataset",
			Field:       "dataset",
			Suggestions: []string{"Set dataset to the path of the solver output document"},
		})
	}

	validateNormalization(c, r)

	switch c.Interpolation {
	case casefile.InterpolationCentroid, casefile.InterpolationBarycentric:
	default:
		r.AddError(Result{
			Level:       LevelSchema,
			Message:     "unknown interpolation",
			Field:       "interpolation",
			ActualValue: c.Interpolation,
			Expected:    casefile.InterpolationCentroid + " or " + casefile.InterpolationBarycentric,
		})
	}

	validateCandidates(c, r)
	return r
}

func validateNormalization(c *casefile.Case, r *Report) {
	n := c.Normalization
	if !(n.MinorRadius > 0) || math.IsInf(n.MinorRadius, 0) {
		r.AddError(Result{
			Level:       LevelPhysics,
			Message:     "must be a positive finite number",
			Field:       "normalization.minor_radius",
			ActualValue: n.MinorRadius,
			Expected:    "> 0",
		})
	}
	// The sign of the toroidal field is its direction.
	if n.ToroidalField == 0 || math.IsNaN(n.ToroidalField) || math.IsInf(n.ToroidalField, 0) {
		r.AddError(Result{
			Level:       LevelPhysics,
			Message:     "must be a non-zero finite number",
			Field:       "normalization.toroidal_field",
			ActualValue: n.ToroidalField,
			Expected:    "!= 0",
		})
	}
}

func validateCandidates(c *casefile.Case, r *Report) {
	if len(c.Candidates) == 0 {
		r.AddWarning(Result{
			Level:       LevelSchema,
			Message:     "no candidate profiles; only reference profiles will be reported",
			Field:       "candidates",
			Suggestions: []string{"Add at least one candidate with f2, p and sign_i"},
		})
		return
	}

	seen := make(map[string]int, len(c.Candidates))
	for i, cand := range c.Candidates {
		field := fmt.Sprintf("candidates[%d]", i)

		if cand.Name == "" {
			r.AddError(Result{
				Level:   LevelSchema,
				Message: "candidate has no name",
				Field:   field + ".name",
			})
		} else if prev, ok := seen[cand.Name]; ok {
			r.AddError(Result{
				Level:        LevelSchema,
				Message:      fmt.Sprintf("duplicate candidate name %q", cand.Name),
				Field:        field + ".name",
				ConflictWith: fmt.Sprintf("candidates[%d].name", prev),
			})
		} else {
			seen[cand.Name] = i
		}

		if cand.SignI != 1 && cand.SignI != -1 {
			r.AddError(Result{
				Level:       LevelPhysics,
				Message:     "current direction must be +1 or -1",
				Field:       field + ".sign_i",
				ActualValue: cand.SignI,
				Expected:    "1 or -1",
			})
		}
		if len(cand.F2.Coeffs) == 0 {
			r.AddError(Result{Level: LevelSchema, Message: "empty F² polynomial", Field: field + ".f2"})
		}
		if len(cand.P.Coeffs) == 0 {
			r.AddError(Result{Level: LevelSchema, Message: "empty pressure polynomial", Field: field + ".p"})
		}
		if math.IsNaN(cand.Alpha) || math.IsInf(cand.Alpha, 0) {
			r.AddError(Result{
				Level:       LevelPhysics,
				Message:     "alpha is not finite",
				Field:       field + ".alpha",
				ActualValue: cand.Alpha,
			})
		}

		if len(cand.P.Coeffs) > 0 && cand.P.Eval(0) == cand.P.Eval(1) {
			r.AddError(Result{
				Level:       LevelPhysics,
				Message:     "pressure takes the same value on the axis and at the edge",
				Field:       field + ".p",
				Suggestions: []string{"Use a profile that varies between psi=0 and psi=1"},
			})
		}
		if len(cand.F2.Coeffs) > 0 && cand.F2.Eval(0) == cand.F2.Eval(1) {
			r.AddError(Result{
				Level:       LevelPhysics,
				Message:     "F² takes the same value on the axis and at the edge",
				Field:       field + ".f2",
				Suggestions: []string{"Use a profile that varies between psi=0 and psi=1"},
			})
		}
	}
}
