package casefile

import "github.com/Karel-van-de-Plassche/PF2q/pkg/profile"

// Interpolation names accepted in a case file.
const (
	InterpolationCentroid    = "centroid"
	InterpolationBarycentric = "barycentric"
)

// Case is the top-level description of one post-processing run.
type Case struct {
	Name          string           `yaml:"name" json:"name"`
	Dataset       string           `yaml:"dataset" json:"dataset"`
	Normalization NormalizationDef `yaml:"normalization" json:"normalization"`
	Interpolation string           `yaml:"interpolation" json:"interpolation"`
	Candidates    []CandidateDef   `yaml:"candidates" json:"candidates"`
	Output        string           `yaml:"output,omitempty" json:"output,omitempty"`

	// Dir is the directory the case was loaded from. Relative paths are
	// resolved against it.
	Dir string `yaml:"-" json:"-"`
}

// NormalizationDef holds the machine scales of the solution.
type NormalizationDef struct {
	MinorRadius   float64 `yaml:"minor_radius" json:"minor_radius"`
	ToroidalField float64 `yaml:"toroidal_field" json:"toroidal_field"`
}

// CandidateDef is one pair of input profiles to estimate q from.
type CandidateDef struct {
	Name  string             `yaml:"name" json:"name"`
	F2    profile.Polynomial `yaml:"f2" json:"f2"`
	P     profile.Polynomial `yaml:"p" json:"p"`
	Alpha float64            `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	SignI int                `yaml:"sign_i" json:"sign_i"`
}
