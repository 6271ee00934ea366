package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/casefile"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/compare"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/dataset"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/equilibrium"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/export"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/fem"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/validation"
)

const defaultWorkbook = "pf2q.xlsx"

// loadAndValidate loads the case and its dataset and runs validation on both.
// The dataset is nil when the case is too broken to locate it.
func loadAndValidate(casePath string) (*casefile.Case, *dataset.Dataset, *validation.Report, error) {
	c, err := casefile.Open(casePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading case: %w", err)
	}
	report := validation.ValidateCase(c)
	if c.Dataset == "" {
		return c, nil, report, nil
	}

	ds, err := dataset.Load(c.DatasetPath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading dataset: %w", err)
	}
	report.Merge(validation.ValidateDataset(ds))
	logger.Debug("case loaded",
		zap.String("case", c.Name),
		zap.String("dataset", c.DatasetPath()),
		zap.Int("candidates", len(c.Candidates)))
	return c, ds, report, nil
}

// openResult loads a case and builds the equilibrium from its dataset. It
// prints the validation report and fails when the case is invalid.
func openResult(casePath string) (*casefile.Case, *equilibrium.Result, error) {
	c, ds, report, err := loadAndValidate(casePath)
	if err != nil {
		return nil, nil, err
	}
	if !report.Valid {
		printValidationReport(report)
		return nil, nil, fmt.Errorf("case has validation errors")
	}

	res, err := equilibrium.New(ds, equilibrium.Normalization{
		MinorRadius:   c.Normalization.MinorRadius,
		ToroidalField: c.Normalization.ToroidalField,
	}, equilibrium.WithLogger(logger), equilibrium.WithInterpolation(interpolation(c.Interpolation)))
	if err != nil {
		return nil, nil, fmt.Errorf("building equilibrium: %w", err)
	}
	return c, res, nil
}

func interpolation(name string) fem.Interpolation {
	if name == casefile.InterpolationBarycentric {
		return fem.Barycentric
	}
	return fem.Centroid
}

func candidates(c *casefile.Case) []equilibrium.Candidate {
	out := make([]equilibrium.Candidate, len(c.Candidates))
	for i, d := range c.Candidates {
		out[i] = equilibrium.Candidate{
			Name:  d.Name,
			F2:    d.F2,
			P:     d.P,
			Alpha: d.Alpha,
			SignI: d.SignI,
		}
	}
	return out
}

// estimateAll estimates every candidate over one shared context, at most
// workers at a time, and scores each against the reference q. Results keep
// the candidate order.
func estimateAll(ctx context.Context, res *equilibrium.Result, ref export.Reference, cands []equilibrium.Candidate, workers int) ([]export.Scored, error) {
	ectx, err := equilibrium.NewContext(res)
	if err != nil {
		return nil, fmt.Errorf("building estimation context: %w", err)
	}

	scored := make([]export.Scored, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, cand := range cands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			est, err := ectx.Estimate(cand)
			if err != nil {
				return fmt.Errorf("estimating %q: %w", cand.Name, err)
			}
			b, err := compare.Badness(ref.Rho, ref.Q, est.Rho, est.Q)
			if err != nil {
				logger.Warn("comparison failed", zap.String("candidate", cand.Name), zap.Error(err))
			}
			scored[i] = export.Scored{Estimate: est, Badness: b}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

func runValidate(casePath string) error {
	_, _, report, err := loadAndValidate(casePath)
	if err != nil {
		return err
	}

	printValidationReport(report)

	if !report.Valid {
		os.Exit(1)
	}
	return nil
}

func runInspect(casePath string, asJSON bool) error {
	c, res, err := openResult(casePath)
	if err != nil {
		return err
	}
	ref := export.ReferenceOf(res)
	summary := newSolutionSummary(c, res)

	if asJSON {
		return writeJSON(map[string]any{
			"solution": summary,
			"profiles": profilesJSON(ref),
		})
	}
	printSolutionSummary(summary)
	fmt.Println()
	printProfiles(ref)
	return nil
}

func runEstimate(ctx context.Context, casePath string, workers int, asJSON bool) error {
	c, res, err := openResult(casePath)
	if err != nil {
		return err
	}
	ref := export.ReferenceOf(res)
	scored, err := estimateAll(ctx, res, ref, candidates(c), workers)
	if err != nil {
		return err
	}

	if asJSON {
		out := make([]map[string]any, len(scored))
		for i, s := range scored {
			out[i] = map[string]any{
				"candidate": s.Estimate.Candidate,
				"q":         jsonFloats(s.Estimate.Q),
				"badness":   badnessJSON(s.Badness),
			}
		}
		return writeJSON(map[string]any{
			"solution":   newSolutionSummary(c, res),
			"reference":  profilesJSON(ref),
			"candidates": out,
		})
	}
	printBadnessTable(scored)
	return nil
}

func runExport(ctx context.Context, casePath, output string, workers int) error {
	c, res, err := openResult(casePath)
	if err != nil {
		return err
	}
	ref := export.ReferenceOf(res)
	scored, err := estimateAll(ctx, res, ref, candidates(c), workers)
	if err != nil {
		return err
	}

	if output == "" {
		output = c.OutputPath(defaultWorkbook)
	}
	if err := export.Write(output, ref, scored); err != nil {
		return fmt.Errorf("exporting %s: %w", output, err)
	}
	logger.Info("workbook written", zap.String("path", output), zap.Int("candidates", len(scored)))
	fmt.Printf("Wrote %s (%d candidates)\n", output, len(scored))
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
