// Package casefile reads the YAML description of a post-processing run.
package casefile

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the case file LoadProject looks for.
const FileName = "case.yaml"

// Load reads a case from a YAML file.
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading case file: %w", err)
	}

	var c Case
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing case YAML: %w", err)
	}

	c.Dir = filepath.Dir(path)
	if c.Interpolation == "" {
		c.Interpolation = InterpolationCentroid
	}
	return &c, nil
}

// LoadProject loads a case from a project directory.
// It looks for case.yaml in the given directory.
func LoadProject(projectDir string) (*Case, error) {
	return Load(filepath.Join(projectDir, FileName))
}

// Open loads a case from path, which may be a case file or a project
// directory.
func Open(path string) (*Case, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening case: %w", err)
	}
	if info.IsDir() {
		return LoadProject(path)
	}
	return Load(path)
}

// Resolve returns p relative to the case directory unless it is absolute.
func (c *Case) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// DatasetPath returns the resolved path of the solver dataset.
func (c *Case) DatasetPath() string {
	return c.Resolve(c.Dataset)
}

// OutputPath returns the resolved path of the export workbook, or def when
// the case names none.
func (c *Case) OutputPath(def string) string {
	if c.Output == "" {
		return def
	}
	return c.Resolve(c.Output)
}
