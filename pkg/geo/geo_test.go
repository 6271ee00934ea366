package geo

import (
	"math"
	"testing"
)

const tolerance = 0.01

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

// --- Point2D tests ---

func TestPointDistance(t *testing.T) {
	a := Pt(0, 0)
	b := Pt(3, 4)
	if !approxEqual(a.Distance(b), 5.0, tolerance) {
		t.Errorf("expected distance 5.0, got %f", a.Distance(b))
	}
}

func TestPointAngle(t *testing.T) {
	p := Pt(1, 0)
	if !approxEqual(p.Angle(), 0, tolerance) {
		t.Errorf("expected angle 0, got %f", p.Angle())
	}
	p2 := Pt(0, 1)
	if !approxEqual(p2.Angle(), math.Pi/2, tolerance) {
		t.Errorf("expected angle pi/2, got %f", p2.Angle())
	}
}

// --- Polar tests ---

func TestNormalizeAngleRange(t *testing.T) {
	inputs := []float64{
		-7 * math.Pi, -2 * math.Pi, -math.Pi, -1, -AngleTolerance / 2, 0,
		AngleTolerance / 2, 1, math.Pi, 2*math.Pi - 1e-9, 2 * math.Pi, 9.5,
		-2*math.Pi + AngleTolerance/3,
	}
	for _, in := range inputs {
		got := NormalizeAngle(in)
		if got < 0 || got >= TwoPi {
			t.Errorf("NormalizeAngle(%v) = %v, outside [0, 2π)", in, got)
		}
		if again := NormalizeAngle(got); again != got {
			t.Errorf("NormalizeAngle not idempotent for %v: %v then %v", in, got, again)
		}
	}
}

func TestNormalizeAngleSnapsNearZero(t *testing.T) {
	for _, in := range []float64{1e-12, -1e-12, AngleTolerance / 2, -AngleTolerance / 2} {
		if got := NormalizeAngle(in); got != 0 {
			t.Errorf("NormalizeAngle(%v) = %v, want exactly 0", in, got)
		}
	}
}

func TestNormalizeAngleShiftsNegative(t *testing.T) {
	got := NormalizeAngle(-math.Pi / 2)
	if !approxEqual(got, 3*math.Pi/2, 1e-12) {
		t.Errorf("expected 3π/2, got %f", got)
	}
}

func TestToPolarRoundTrip(t *testing.T) {
	origin := Pt(1, -2)
	p := Pt(-2, 2)
	pol := ToPolar(p, origin)
	if !approxEqual(pol.R, 5, 1e-12) {
		t.Errorf("expected radius 5, got %f", pol.R)
	}
	back := pol.Cartesian(origin)
	if !approxEqual(back.X, p.X, 1e-12) || !approxEqual(back.Y, p.Y, 1e-12) {
		t.Errorf("round trip gave (%f,%f), want (%f,%f)", back.X, back.Y, p.X, p.Y)
	}
}

func TestPolarMidpointAcrossSeam(t *testing.T) {
	a := Polar{R: 1, Theta: TwoPi - 0.2}
	b := Polar{R: 3, Theta: 0}
	mid := PolarMidpoint(a, b)
	if !approxEqual(mid.R, 2, 1e-12) {
		t.Errorf("expected radius 2, got %f", mid.R)
	}
	if !approxEqual(NormalizeAngle(mid.Theta), TwoPi-0.1, 1e-12) {
		t.Errorf("expected angle 2π-0.1, got %f", mid.Theta)
	}
}

// --- Triangle tests ---

func TestTriangleArea(t *testing.T) {
	area := TriangleArea(Pt(0, 0), Pt(10, 0), Pt(0, 10))
	if !approxEqual(area, 50, tolerance) {
		t.Errorf("expected area 50, got %f", area)
	}
	// Winding does not matter.
	if !approxEqual(TriangleArea(Pt(0, 0), Pt(0, 10), Pt(10, 0)), 50, tolerance) {
		t.Error("expected unsigned area for clockwise triangle")
	}
}

func TestTriangleCentroid(t *testing.T) {
	c := TriangleCentroid(Pt(0, 0), Pt(3, 0), Pt(0, 3))
	if !approxEqual(c.X, 1, 1e-12) || !approxEqual(c.Y, 1, 1e-12) {
		t.Errorf("expected (1,1), got (%f,%f)", c.X, c.Y)
	}
}

func TestWeightedBarycenter(t *testing.T) {
	p, ok := WeightedBarycenter(Pt(0, 0), Pt(4, 0), Pt(0, 4), 2, 1, 1)
	if !ok {
		t.Fatal("expected barycenter to exist")
	}
	if !approxEqual(p.X, 1, 1e-12) || !approxEqual(p.Y, 1, 1e-12) {
		t.Errorf("expected (1,1), got (%f,%f)", p.X, p.Y)
	}
	if _, ok := WeightedBarycenter(Pt(0, 0), Pt(4, 0), Pt(0, 4), 1, -1, 0); ok {
		t.Error("expected zero weight sum to be rejected")
	}
}

// --- Polygon tests ---

func TestPolygonAreaSquare(t *testing.T) {
	sq := NewPolygon(Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(0, 10))
	area := sq.Area()
	if !approxEqual(area, 100, tolerance) {
		t.Errorf("expected area 100, got %f", area)
	}
}

func TestPolygonOrientation(t *testing.T) {
	ccw := NewPolygon(Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(0, 10))
	if !ccw.IsCounterClockwise() {
		t.Error("expected counterclockwise winding")
	}
	cw := NewPolygon(Pt(0, 10), Pt(10, 10), Pt(10, 0), Pt(0, 0))
	if cw.IsCounterClockwise() {
		t.Error("expected clockwise winding")
	}
	if !approxEqual(cw.SignedArea(), -100, tolerance) {
		t.Errorf("expected signed area -100, got %f", cw.SignedArea())
	}
}

func TestPolygonPerimeter(t *testing.T) {
	sq := NewPolygon(Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(0, 10))
	if !approxEqual(sq.Perimeter(), 40, tolerance) {
		t.Errorf("expected perimeter 40, got %f", sq.Perimeter())
	}
}

func TestPolygonContains(t *testing.T) {
	// Concave "L" shape.
	l := NewPolygon(Pt(0, 0), Pt(10, 0), Pt(10, 4), Pt(4, 4), Pt(4, 10), Pt(0, 10))
	tests := []struct {
		p    Point2D
		want bool
	}{
		{Pt(2, 2), true},
		{Pt(8, 2), true},
		{Pt(2, 8), true},
		{Pt(8, 8), false},
		{Pt(-1, 5), false},
		{Pt(5, 11), false},
	}
	for _, tt := range tests {
		if got := l.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestPolygonDegenerate(t *testing.T) {
	axis := NewPolygon(Pt(1, 1), Pt(1, 1), Pt(1, 1), Pt(1, 1))
	if !axis.Degenerate() {
		t.Error("expected a collapsed surface to be degenerate")
	}
	if NewPolygon(Pt(0, 0), Pt(1, 0), Pt(0, 1)).Degenerate() {
		t.Error("expected a triangle to be non-degenerate")
	}
	if !NewPolygon(Pt(0, 0), Pt(1, 0)).Degenerate() {
		t.Error("expected two points to be degenerate")
	}
}
