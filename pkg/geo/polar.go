package geo

import "math"

// AngleTolerance is the distance from zero below which an angle is snapped to
// exactly zero by NormalizeAngle.
const AngleTolerance = 1e-3

// TwoPi is a full turn in radians.
const TwoPi = 2 * math.Pi

// Polar is a point in polar coordinates relative to some origin.
type Polar struct {
	R     float64 `json:"r"`
	Theta float64 `json:"theta"`
}

// ToPolar converts p to polar coordinates around origin. The angle is
// normalized into [0, 2π).
func ToPolar(p, origin Point2D) Polar {
	d := p.Sub(origin)
	return Polar{
		R:     d.Length(),
		Theta: NormalizeAngle(d.Angle()),
	}
}

// Cartesian converts the polar point back to the plane around origin.
func (p Polar) Cartesian(origin Point2D) Point2D {
	return Point2D{
		X: origin.X + p.R*math.Cos(p.Theta),
		Y: origin.Y + p.R*math.Sin(p.Theta),
	}
}

// NormalizeAngle maps theta into [0, 2π). Values within AngleTolerance of
// zero become exactly zero, negative values are shifted by 2π.
func NormalizeAngle(theta float64) float64 {
	if math.IsNaN(theta) || math.IsInf(theta, 0) {
		return math.NaN()
	}
	theta = math.Mod(theta, TwoPi)
	if math.Abs(theta) < AngleTolerance {
		return 0
	}
	if theta < 0 {
		theta += TwoPi
	}
	// A shift from just above -2π can land inside the snap band.
	if theta < AngleTolerance || theta >= TwoPi {
		return 0
	}
	return theta
}

// WrapDelta maps an angular difference into (-π, π].
func WrapDelta(d float64) float64 {
	d = math.Mod(d, TwoPi)
	if d > math.Pi {
		d -= TwoPi
	} else if d <= -math.Pi {
		d += TwoPi
	}
	return d
}

// PolarMidpoint returns the point halfway between a and b in polar form:
// the mean radius at the mean angle. The angle is taken along the shorter
// arc, so a pair straddling the 0/2π seam (e.g. 2π-δ and 0) is averaged as if
// the second angle were 2π.
func PolarMidpoint(a, b Polar) Polar {
	return Polar{
		R:     (a.R + b.R) / 2,
		Theta: a.Theta + WrapDelta(b.Theta-a.Theta)/2,
	}
}
