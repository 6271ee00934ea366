// Package dataset binds the pre-parsed output of the equilibrium solver to a
// typed record. Every named quantity and constant is listed once, in the
// field tables below; loading, validation and the CLI all read them from
// there.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// StatusConverged marks a solver run that finished normally. An empty status
// is treated the same way.
const StatusConverged = "converged"

// ErrMissingField is matched by every MissingFieldError.
var ErrMissingField = errors.New("missing field")

// ErrRagged is returned when a quantity is not a rectangular array.
var ErrRagged = errors.New("ragged array")

// Kind tells a quantity from a constant in error messages.
type Kind string

const (
	KindQuantity Kind = "quantity"
	KindConstant Kind = "constant"
)

// MissingFieldError names a required quantity or constant that is absent.
type MissingFieldError struct {
	Kind Kind
	Name string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing %s %q", e.Kind, e.Name)
}

// Unwrap lets errors.Is match ErrMissingField.
func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

// Constants are the dimensionless scalars written by the solver. Absent
// constants are NaN.
type Constants struct {
	Epsilon         float64 // inverse aspect ratio a/R0
	Alpha           float64 // flux normalization
	XAxis, YAxis    float64 // magnetic axis in normalized coordinates
	BAxisOverB0     float64 // B on axis over vacuum B0
	Beta            float64
	BetaPoloidal    float64
	Gamma           float64
	RhoAxisOverRho0 float64
}

// Dataset is one solver solution. Quantities are N×M arrays indexed by
// (radial, poloidal); absent quantities are nil.
type Dataset struct {
	Status    string
	Constants Constants

	X, Y     *mat.Dense // normalized grid coordinates
	Pressure *mat.Dense
	BR, BZ   *mat.Dense // normalized poloidal field components
	BPhi     *mat.Dense // normalized toroidal field
	Psi      *mat.Dense // normalized flux coordinate
	Q        *mat.Dense // safety factor
	Grav     *mat.Dense

	// ExtraQuantities and ExtraConstants hold solver output this package
	// does not use. They are kept so a document survives a load/save round
	// trip.
	ExtraQuantities map[string]*mat.Dense
	ExtraConstants  map[string]float64
}

type quantityField struct {
	name     string
	required bool
	field    func(*Dataset) **mat.Dense
}

type constantField struct {
	name     string
	required bool
	field    func(*Constants) *float64
}

var quantityFields = []quantityField{
	{"x", true, func(d *Dataset) **mat.Dense { return &d.X }},
	{"y", true, func(d *Dataset) **mat.Dense { return &d.Y }},
	{"pressure", true, func(d *Dataset) **mat.Dense { return &d.Pressure }},
	{"b_r", true, func(d *Dataset) **mat.Dense { return &d.BR }},
	{"b_z", true, func(d *Dataset) **mat.Dense { return &d.BZ }},
	{"b_phi", true, func(d *Dataset) **mat.Dense { return &d.BPhi }},
	{"psi", true, func(d *Dataset) **mat.Dense { return &d.Psi }},
	{"q", true, func(d *Dataset) **mat.Dense { return &d.Q }},
	{"grav", false, func(d *Dataset) **mat.Dense { return &d.Grav }},
}

var constantFields = []constantField{
	{"epsilon", true, func(c *Constants) *float64 { return &c.Epsilon }},
	{"alpha", true, func(c *Constants) *float64 { return &c.Alpha }},
	{"x_axis", true, func(c *Constants) *float64 { return &c.XAxis }},
	{"y_axis", true, func(c *Constants) *float64 { return &c.YAxis }},
	{"b_axis_over_b0", true, func(c *Constants) *float64 { return &c.BAxisOverB0 }},
	{"beta", true, func(c *Constants) *float64 { return &c.Beta }},
	{"beta_poloidal", true, func(c *Constants) *float64 { return &c.BetaPoloidal }},
	{"gamma", false, func(c *Constants) *float64 { return &c.Gamma }},
	{"rho_axis_over_rho0", false, func(c *Constants) *float64 { return &c.RhoAxisOverRho0 }},
}

// RequiredQuantities returns the names of the quantities a solution must carry.
func RequiredQuantities() []string {
	var names []string
	for _, f := range quantityFields {
		if f.required {
			names = append(names, f.name)
		}
	}
	return names
}

// RequiredConstants returns the names of the constants a solution must carry.
func RequiredConstants() []string {
	var names []string
	for _, f := range constantFields {
		if f.required {
			names = append(names, f.name)
		}
	}
	return names
}

// QuantityNames returns every known quantity name, required ones first.
func QuantityNames() []string {
	names := make([]string, len(quantityFields))
	for i, f := range quantityFields {
		names[i] = f.name
	}
	return names
}

// ConstantNames returns every known constant name, required ones first.
func ConstantNames() []string {
	names := make([]string, len(constantFields))
	for i, f := range constantFields {
		names[i] = f.name
	}
	return names
}

// Empty returns a dataset with every constant absent.
func Empty() *Dataset {
	d := &Dataset{}
	for _, f := range constantFields {
		*f.field(&d.Constants) = math.NaN()
	}
	return d
}

// Quantity returns the named quantity, or nil when it is absent or unknown.
func (d *Dataset) Quantity(name string) *mat.Dense {
	for _, f := range quantityFields {
		if f.name == name {
			return *f.field(d)
		}
	}
	return nil
}

// SetQuantity stores the named quantity.
func (d *Dataset) SetQuantity(name string, m *mat.Dense) error {
	for _, f := range quantityFields {
		if f.name == name {
			*f.field(d) = m
			return nil
		}
	}
	return fmt.Errorf("unknown quantity %q", name)
}

// Constant returns the named constant, NaN when absent or unknown.
func (d *Dataset) Constant(name string) float64 {
	for _, f := range constantFields {
		if f.name == name {
			return *f.field(&d.Constants)
		}
	}
	return math.NaN()
}

// SetConstant stores the named constant.
func (d *Dataset) SetConstant(name string, v float64) error {
	for _, f := range constantFields {
		if f.name == name {
			*f.field(&d.Constants) = v
			return nil
		}
	}
	return fmt.Errorf("unknown constant %q", name)
}

// Missing returns an error for every required field that is absent, in
// table order: quantities first, then constants.
func (d *Dataset) Missing() []*MissingFieldError {
	var missing []*MissingFieldError
	for _, f := range quantityFields {
		if f.required && *f.field(d) == nil {
			missing = append(missing, &MissingFieldError{Kind: KindQuantity, Name: f.name})
		}
	}
	for _, f := range constantFields {
		if f.required && math.IsNaN(*f.field(&d.Constants)) {
			missing = append(missing, &MissingFieldError{Kind: KindConstant, Name: f.name})
		}
	}
	return missing
}

// Extra returns the sorted names of every quantity and constant that is not
// in the field tables.
func (d *Dataset) Extra() []string {
	names := append(sortedKeys(d.ExtraQuantities), sortedKeys(d.ExtraConstants)...)
	sort.Strings(names)
	return names
}

// Converged reports whether the solver finished normally.
func (d *Dataset) Converged() bool {
	return d.Status == "" || d.Status == StatusConverged
}

// Dims returns the shape shared by the grid quantities, taken from x.
func (d *Dataset) Dims() (radial, poloidal int) {
	if d.X == nil {
		return 0, 0
	}
	return d.X.Dims()
}
