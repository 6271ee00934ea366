package profile

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

func TestEval(t *testing.T) {
	p := New(1, -2, 3) // 1 - 2x + 3x²
	cases := map[float64]float64{0: 1, 1: 2, 0.5: 0.75, -1: 6}
	for x, want := range cases {
		if got := p.Eval(x); !approxEqual(got, want, 1e-12) {
			t.Errorf("Eval(%v) = %v, want %v", x, got, want)
		}
	}
	if got := (Polynomial{}).Eval(0.3); got != 0 {
		t.Errorf("empty polynomial Eval = %v, want 0", got)
	}
}

func TestEvalAll(t *testing.T) {
	got := New(0, 1).EvalAll([]float64{0, 0.25, 1})
	want := []float64{0, 0.25, 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EvalAll mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriv(t *testing.T) {
	got := New(5, 1, -2, 4).Deriv()
	want := New(1, -4, 12)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Deriv mismatch (-want +got):\n%s", diff)
	}
	if d := New(7).Deriv(); d.Degree() != 0 || d.Coeffs[0] != 0 {
		t.Errorf("derivative of a constant = %v, want 0", d)
	}
}

func TestRescaleEndpointsExact(t *testing.T) {
	values := []float64{0.37, 0.2, -0.11, -0.93}
	out, s := Rescale(values, 12.5, 3.25)
	if out[0] != 12.5 || out[len(out)-1] != 3.25 {
		t.Fatalf("endpoints = (%v, %v), want (12.5, 3.25)", out[0], out[len(out)-1])
	}
	for i, v := range values {
		if !approxEqual(out[i], s.Apply(v), 1e-12) {
			t.Errorf("out[%d] = %v, want %v", i, out[i], s.Apply(v))
		}
	}
	// Input is not modified.
	if values[0] != 0.37 {
		t.Error("Rescale modified its input")
	}
}

func TestRescaleIdempotent(t *testing.T) {
	values := []float64{1, 0.8, 0.45, 0.1, 0}
	once, _ := Rescale(values, 4, -2)
	twice, s := Rescale(once, 4, -2)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second rescale changed values (-once +twice):\n%s", diff)
	}
	if s != Identity {
		t.Errorf("second rescale scaling = %+v, want identity", s)
	}
}

func TestRescaleDegenerate(t *testing.T) {
	out, s := Rescale([]float64{2, 2, 2}, 0, 1)
	if !math.IsInf(s.Scale, 0) {
		t.Errorf("expected infinite scale, got %v", s.Scale)
	}
	if !math.IsNaN(out[0]) && !math.IsInf(out[0], 0) {
		t.Errorf("expected non-finite output, got %v", out[0])
	}
	if got, _ := Rescale(nil, 0, 1); len(got) != 0 {
		t.Errorf("expected empty output, got %v", got)
	}
}

func TestRescaledPolynomialMatchesSamples(t *testing.T) {
	p := New(1, -1, 0.5)
	xs := []float64{0, 0.3, 0.6, 1}
	samples, s := Rescale(p.EvalAll(xs), 10, 2)
	got := p.Rescaled(s).EvalAll(xs)
	if diff := cmp.Diff(samples, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("rescaled polynomial mismatch (-samples +poly):\n%s", diff)
	}
}

func TestPolynomialYAML(t *testing.T) {
	var doc struct {
		F2 Polynomial `yaml:"f2"`
	}
	if err := yaml.Unmarshal([]byte("f2: [1, -0.5, 0.25]\n"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(New(1, -0.5, 0.25), doc.F2); diff != "" {
		t.Errorf("decoded polynomial mismatch (-want +got):\n%s", diff)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back struct {
		F2 []float64 `yaml:"f2"`
	}
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-reading marshalled YAML: %v", err)
	}
	if diff := cmp.Diff(doc.F2.Coeffs, back.F2); diff != "" {
		t.Errorf("polynomial not written as a plain sequence (-want +got):\n%s", diff)
	}
	if err := yaml.Unmarshal([]byte("f2: {a: 1}\n"), &doc); err == nil {
		t.Error("expected error for a mapping")
	}
}

func TestString(t *testing.T) {
	if got := New(1, -2, 3).String(); got != "1 + -2·x + 3·x^2" {
		t.Errorf("String() = %q", got)
	}
}
