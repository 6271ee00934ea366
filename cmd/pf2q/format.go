package main

import (
	"fmt"
	"math"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/casefile"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/compare"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/equilibrium"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/export"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/validation"
)

func printValidationReport(r *validation.Report) {
	if len(r.Errors) > 0 {
		fmt.Printf("ERRORS (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Printf("  [%s] %s\n", e.Level, e.Message)
			if e.Field != "" {
				fmt.Printf("    -> %s = %v\n", e.Field, e.ActualValue)
			}
			if e.Expected != "" {
				fmt.Printf("    expected: %s\n", e.Expected)
			}
			if e.ConflictWith != "" {
				fmt.Printf("    conflicts with: %s\n", e.ConflictWith)
			}
			for _, s := range e.Suggestions {
				fmt.Printf("    * %s\n", s)
			}
		}
		fmt.Println()
	}

	if len(r.Warnings) > 0 {
		fmt.Printf("WARNINGS (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Printf("  [%s] %s\n", w.Level, w.Message)
			if w.Field != "" {
				fmt.Printf("    -> %s = %v\n", w.Field, w.ActualValue)
			}
			if w.Expected != "" {
				fmt.Printf("    expected: %s\n", w.Expected)
			}
			for _, s := range w.Suggestions {
				fmt.Printf("    * %s\n", s)
			}
		}
		fmt.Println()
	}

	if len(r.Info) > 0 {
		fmt.Printf("INFO (%d):\n", len(r.Info))
		for _, i := range r.Info {
			fmt.Printf("  [%s] %s\n", i.Level, i.Message)
		}
		fmt.Println()
	}

	if r.Valid {
		fmt.Printf("Result: VALID (%s)\n", r.Summary)
	} else {
		fmt.Printf("Result: INVALID (%s)\n", r.Summary)
	}
}

// solutionSummary holds the global quantities of a solution.
type solutionSummary struct {
	Case                string   `json:"case"`
	Interpolation       string   `json:"interpolation"`
	Radial              int      `json:"radial"`
	Poloidal            int      `json:"poloidal"`
	MajorRadius         float64  `json:"major_radius"`
	MinorRadius         float64  `json:"minor_radius"`
	ToroidalField       float64  `json:"toroidal_field"`
	PressureCoefficient *float64 `json:"pressure_coefficient"`
	Beta                *float64 `json:"beta"`
	BetaPoloidal        *float64 `json:"beta_poloidal"`
}

func newSolutionSummary(c *casefile.Case, res *equilibrium.Result) solutionSummary {
	nr, np := res.Dims()
	norm := res.Normalization()
	return solutionSummary{
		Case:                c.Name,
		Interpolation:       c.Interpolation,
		Radial:              nr,
		Poloidal:            np,
		MajorRadius:         res.R0(),
		MinorRadius:         norm.MinorRadius,
		ToroidalField:       norm.ToroidalField,
		PressureCoefficient: jsonFloat(res.PressureCoefficient()),
		Beta:                jsonFloat(res.Beta()),
		BetaPoloidal:        jsonFloat(res.BetaPoloidal()),
	}
}

func printSolutionSummary(s solutionSummary) {
	fmt.Printf("Case %q (%s interpolation)\n", s.Case, s.Interpolation)
	fmt.Println("==============================")
	fmt.Printf("  Grid:                 %d radial x %d poloidal\n", s.Radial, s.Poloidal)
	fmt.Printf("  Major radius:         %.4g m\n", s.MajorRadius)
	fmt.Printf("  Minor radius:         %.4g m\n", s.MinorRadius)
	fmt.Printf("  Toroidal field:       %.4g T\n", s.ToroidalField)
	fmt.Printf("  Pressure coefficient: %s\n", formatOptional(s.PressureCoefficient))
	fmt.Printf("  Beta:                 %s\n", formatOptional(s.Beta))
	fmt.Printf("  Beta poloidal:        %s\n", formatOptional(s.BetaPoloidal))
}

func printProfiles(ref export.Reference) {
	fmt.Printf("%6s %10s %10s %10s %10s %12s\n", "i", "rho", "psi", "q", "q_fields", "pressure")
	fmt.Printf("%6s %10s %10s %10s %10s %12s\n", "------", "----------", "----------", "----------", "----------", "------------")
	for i := range ref.Rho {
		fmt.Printf("%6d %10s %10s %10s %10s %12s\n", i,
			formatValue(ref.Rho[i]),
			formatValue(ref.Psi[i]),
			formatValue(ref.Q[i]),
			formatValue(ref.QFields[i]),
			formatValue(ref.Pressure[i]))
	}
}

func printBadnessTable(scored []export.Scored) {
	if len(scored) == 0 {
		fmt.Println("No candidates to estimate.")
		return
	}

	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s\n",
		"Candidate", "Total", "rho=0.08", "q=1", "q=1.1", "Edge", "Max", "q edge")
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s\n",
		"--------------------", "----------", "----------", "----------", "----------", "----------", "----------", "----------")

	for _, s := range scored {
		q := s.Estimate.Q
		edge := math.NaN()
		if len(q) > 0 {
			edge = q[len(q)-1]
		}
		fmt.Printf("%-20s", s.Estimate.Candidate)
		if b := s.Badness; b != nil {
			for _, v := range []float64{b.Total, b.PreQ1.Value, b.Q1.Value, b.PostQ1.Value, b.End.Value, b.Max.Value} {
				fmt.Printf(" %10s", formatValue(v))
			}
		} else {
			for i := 0; i < 6; i++ {
				fmt.Printf(" %10s", "-")
			}
		}
		fmt.Printf(" %10s\n", formatValue(edge))
	}
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4g", v)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "undefined"
	}
	return formatValue(*v)
}

// jsonFloat maps non-finite values to null, which encoding/json cannot
// otherwise represent.
func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func jsonFloats(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = jsonFloat(v)
	}
	return out
}

func profilesJSON(ref export.Reference) map[string]any {
	return map[string]any{
		"rho":      jsonFloats(ref.Rho),
		"psi":      jsonFloats(ref.Psi),
		"q":        jsonFloats(ref.Q),
		"q_fields": jsonFloats(ref.QFields),
		"pressure": jsonFloats(ref.Pressure),
	}
}

func badnessJSON(b *compare.Report) map[string]any {
	if b == nil {
		return nil
	}
	errAt := func(p compare.ErrorAt) map[string]any {
		return map[string]any{"index": p.Index, "value": jsonFloat(p.Value)}
	}
	return map[string]any{
		"total":          jsonFloat(b.Total),
		"pre_q1":         errAt(b.PreQ1),
		"q1":             errAt(b.Q1),
		"post_q1":        errAt(b.PostQ1),
		"end":            errAt(b.End),
		"max":            errAt(b.Max),
		"relative_error": jsonFloats(b.RelativeError),
	}
}
