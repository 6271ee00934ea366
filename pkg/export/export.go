// Package export writes reference and estimated profiles to an Excel
// workbook, one row per flux surface.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Karel-van-de-Plassche/PF2q/pkg/compare"
	"github.com/Karel-van-de-Plassche/PF2q/pkg/equilibrium"
)

// ProfilesSheet holds the reference profiles of the solution.
const ProfilesSheet = "profiles"

// SummarySheet holds one row of badness figures per candidate.
const SummarySheet = "summary"

const maxSheetName = 31

// Reference is the solution's own per-surface profiles.
type Reference struct {
	Rho      []float64
	Psi      []float64
	Q        []float64
	QFields  []float64
	Pressure []float64
}

// ReferenceOf collects the reference profiles of res.
func ReferenceOf(res *equilibrium.Result) Reference {
	return Reference{
		Rho:      res.Rho(),
		Psi:      res.FluxCoordinate(),
		Q:        res.SafetyFactor(),
		QFields:  res.SafetyFactorFromFields(),
		Pressure: res.PressureProfile(),
	}
}

// Scored is an estimate together with its comparison against the reference.
// Badness may be nil when the comparison failed.
type Scored struct {
	Estimate *equilibrium.Estimate
	Badness  *compare.Report
}

// Workbook builds the workbook in memory. The caller owns the returned file
// and must Close it.
func Workbook(ref Reference, scored []Scored) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), ProfilesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming profiles sheet: %w", err)
	}

	cols := [][]float64{ref.Rho, ref.Psi, ref.Q, ref.QFields, ref.Pressure}
	header := []string{"rho", "psi", "q", "q_fields", "pressure"}
	if err := writeColumns(f, ProfilesSheet, header, cols); err != nil {
		f.Close()
		return nil, err
	}

	if len(scored) > 0 {
		if err := writeSummary(f, scored); err != nil {
			f.Close()
			return nil, err
		}
	}

	used := map[string]bool{ProfilesSheet: true, SummarySheet: true}
	for i, s := range scored {
		name := SheetName(s.Estimate.Candidate, i, used)
		used[strings.ToLower(name)] = true
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("adding sheet for %q: %w", s.Estimate.Candidate, err)
		}
		e := s.Estimate
		header := []string{"rho", "q", "enclosed_current", "f2", "pressure"}
		cols := [][]float64{e.Rho, e.Q, e.EnclosedCurrent, e.F2, e.Pressure}
		if s.Badness != nil {
			header = append(header, "q_reference", "relative_error")
			cols = append(cols, s.Badness.Reference, s.Badness.RelativeError)
		}
		if err := writeColumns(f, name, header, cols); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and saves it to path.
func Write(path string, ref Reference, scored []Scored) error {
	f, err := Workbook(ref, scored)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, scored []Scored) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("adding summary sheet: %w", err)
	}
	header := []any{"candidate", "total", "pre_q1", "q1", "post_q1", "end", "max", "max_index"}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return fmt.Errorf("writing summary header: %w", err)
	}
	for i, s := range scored {
		row := []any{s.Estimate.Candidate}
		if b := s.Badness; b != nil {
			row = append(row,
				cellValue(b.Total),
				cellValue(b.PreQ1.Value),
				cellValue(b.Q1.Value),
				cellValue(b.PostQ1.Value),
				cellValue(b.End.Value),
				cellValue(b.Max.Value),
				b.Max.Index)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i, err)
		}
	}
	return nil
}

// writeColumns writes a header row followed by the columns side by side.
// Shorter columns leave their trailing cells empty.
func writeColumns(f *excelize.File, sheet string, header []string, cols [][]float64) error {
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}

	rows := 0
	for _, c := range cols {
		rows = max(rows, len(c))
	}
	for r := 0; r < rows; r++ {
		row := make([]any, len(cols))
		for c, col := range cols {
			if r < len(col) {
				row[c] = cellValue(col[r])
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, r, err)
		}
	}
	return nil
}

// cellValue maps non-finite values to an empty cell; the file format has no
// representation for them.
func cellValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// SheetName derives a valid sheet name from a candidate name. Sheet names
// are case-insensitive, so used is keyed by lower-case name. The index is
// appended when the name is empty or already taken.
func SheetName(candidate string, index int, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(candidate))
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" || used[strings.ToLower(name)] {
		suffix := fmt.Sprintf("~%d", index+1)
		r := []rune(name)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		name = string(r) + suffix
	}
	return name
}
