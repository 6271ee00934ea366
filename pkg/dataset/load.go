package dataset

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a pre-parsed solver solution.
//
//	status: converged
//	constants:
//	  epsilon: 0.3
//	quantities:
//	  x: [[...], [...]]   # one row per flux surface
type Document struct {
	Status     string                 `yaml:"status,omitempty"`
	Constants  map[string]float64     `yaml:"constants"`
	Quantities map[string][][]float64 `yaml:"quantities"`
}

// Load reads a dataset from a YAML document.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset file: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing dataset YAML: %w", err)
	}

	ds, err := FromDocument(&doc)
	if err != nil {
		return nil, fmt.Errorf("binding dataset %s: %w", path, err)
	}
	return ds, nil
}

// FromDocument binds a document by name. Names outside the field tables go
// to ExtraQuantities and ExtraConstants; missing names are left absent for
// validation to report.
func FromDocument(doc *Document) (*Dataset, error) {
	ds := Empty()
	ds.Status = doc.Status

	for _, name := range sortedKeys(doc.Constants) {
		v := doc.Constants[name]
		if !knownConstant(name) {
			if ds.ExtraConstants == nil {
				ds.ExtraConstants = make(map[string]float64)
			}
			ds.ExtraConstants[name] = v
			continue
		}
		if err := ds.SetConstant(name, v); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(doc.Quantities) {
		m, err := toDense(doc.Quantities[name])
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %w", name, err)
		}
		if !knownQuantity(name) {
			if ds.ExtraQuantities == nil {
				ds.ExtraQuantities = make(map[string]*mat.Dense)
			}
			ds.ExtraQuantities[name] = m
			continue
		}
		if err := ds.SetQuantity(name, m); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func knownQuantity(name string) bool {
	for _, f := range quantityFields {
		if f.name == name {
			return true
		}
	}
	return false
}

func knownConstant(name string) bool {
	for _, f := range constantFields {
		if f.name == name {
			return true
		}
	}
	return false
}

// Document converts the dataset back to its YAML form. Absent fields are
// omitted.
func (d *Dataset) Document() *Document {
	doc := &Document{
		Status:     d.Status,
		Constants:  map[string]float64{},
		Quantities: map[string][][]float64{},
	}
	for _, name := range ConstantNames() {
		if v := d.Constant(name); !math.IsNaN(v) {
			doc.Constants[name] = v
		}
	}
	for _, name := range QuantityNames() {
		if m := d.Quantity(name); m != nil {
			doc.Quantities[name] = fromDense(m)
		}
	}
	for name, v := range d.ExtraConstants {
		doc.Constants[name] = v
	}
	for name, m := range d.ExtraQuantities {
		doc.Quantities[name] = fromDense(m)
	}
	return doc
}

// Save writes the dataset as a YAML document.
func (d *Dataset) Save(path string) error {
	data, err := yaml.Marshal(d.Document())
	if err != nil {
		return fmt.Errorf("encoding dataset YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing dataset file: %w", err)
	}
	return nil
}

func toDense(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrRagged)
	}
	nc := len(rows[0])
	data := make([]float64, 0, len(rows)*nc)
	for i, row := range rows {
		if len(row) != nc {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRagged, i, len(row), nc)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), nc, data), nil
}

func fromDense(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m)
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
