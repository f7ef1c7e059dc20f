package halorbits

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	eccentricityε = 5e-5                         // 0.00005
	angleε        = (5e-3 / 360) * (2 * math.Pi) // 0.005 degrees
	keplerε       = 1e-14
	keplerMaxIter = 50
)

// Orbit defines a two-body orbit via its orbital elements at an epoch.
type Orbit struct {
	a, e, i, Ω, ω, ν float64
	μ                float64
	Epoch            Epoch
}

// NewOrbitFromOE creates an orbit from the orbital elements.
// WARNING: Angles must be in degrees not radian.
func NewOrbitFromOE(a, e, i, Ω, ω, ν, μ float64, epoch Epoch) (*Orbit, error) {
	if a <= 0 {
		return nil, errors.New("semi major axis must be positive")
	}
	if e < 0 || e >= 1 {
		return nil, errors.New("only elliptical orbits are supported")
	}
	if μ <= 0 {
		return nil, errors.New("gravitational parameter must be positive")
	}
	return &Orbit{a, e, Deg2rad(i), Deg2rad(Ω), Deg2rad(ω), Deg2rad(ν), μ, epoch}, nil
}

// SemiParameter returns the semi parameter.
func (o Orbit) SemiParameter() float64 {
	return o.a * (1 - o.e*o.e)
}

// Apoapsis returns the apoapsis.
func (o Orbit) Apoapsis() float64 {
	return o.a * (1 + o.e)
}

// Periapsis returns the periapsis.
func (o Orbit) Periapsis() float64 {
	return o.a * (1 - o.e)
}

// MeanMotion returns the mean motion in radians per second.
func (o Orbit) MeanMotion() float64 {
	return math.Sqrt(o.μ / (o.a * o.a * o.a))
}

// Period returns the period of this orbit.
func (o Orbit) Period() time.Duration {
	return secondsToDuration(o.PeriodSeconds())
}

// PeriodSeconds returns the period of this orbit in seconds.
func (o Orbit) PeriodSeconds() float64 {
	return 2 * math.Pi / o.MeanMotion()
}

// SinCosE returns the eccentric anomaly trig functions (sin and cos) for the provided true anomaly.
func (o Orbit) SinCosE(ν float64) (sinE, cosE float64) {
	sinν, cosν := math.Sincos(ν)
	denom := 1 + o.e*cosν
	sinE = math.Sqrt(1-o.e*o.e) * sinν / denom
	cosE = (o.e + cosν) / denom
	return
}

// TrueAnomaly returns the true anomaly at the provided epoch, solving Kepler's equation with Newton's method.
func (o Orbit) TrueAnomaly(et Epoch) float64 {
	sinE0, cosE0 := o.SinCosE(o.ν)
	E0 := math.Atan2(sinE0, cosE0)
	M := E0 - o.e*sinE0 + o.MeanMotion()*float64(et-o.Epoch)
	M = math.Mod(M, 2*math.Pi)
	E := M
	if o.e > 0.8 {
		E = math.Pi
	}
	for i := 0; i < keplerMaxIter; i++ {
		δ := (E - o.e*math.Sin(E) - M) / (1 - o.e*math.Cos(E))
		E -= δ
		if math.Abs(δ) < keplerε {
			break
		}
	}
	sinE, cosE := math.Sincos(E)
	return math.Atan2(math.Sqrt(1-o.e*o.e)*sinE, cosE-o.e)
}

// RVAt returns the position and velocity at the provided epoch.
func (o Orbit) RVAt(et Epoch) State {
	p := o.SemiParameter()
	ν := o.TrueAnomaly(et)
	// Support special orbits.
	ω := o.ω
	Ω := o.Ω
	if o.e < eccentricityε {
		ω = 0
		if o.i < angleε {
			// Circular equatorial
			Ω = 0
			ν += o.ω + o.Ω
		} else {
			// Circular inclined
			ν += o.ω
		}
	} else if o.i < angleε {
		Ω = 0
		ω += o.Ω
	}
	dcm := PQW2Inertial(o.i, ω, Ω)
	sinν, cosν := math.Sincos(ν)
	R := r3.Vec{X: p * cosν / (1 + o.e*cosν), Y: p * sinν / (1 + o.e*cosν)}
	sqrtμp := math.Sqrt(o.μ / p)
	V := r3.Vec{X: -sqrtμp * sinν, Y: sqrtμp * (o.e + cosν)}
	return State{R: MxV33(dcm, R), V: MxV33(dcm, V)}
}

// String implements the stringer interface (hence the value receiver)
func (o Orbit) String() string {
	if scalar.EqualWithinAbs(o.e, 0, eccentricityε) {
		return fmt.Sprintf("a=%.1f e=%.4f i=%.3f Ω=%.3f u=%.3f", o.a, o.e, Rad2deg(o.i), Rad2deg(o.Ω), Rad2deg(math.Mod(o.ν+o.ω, 2*math.Pi)))
	}
	return fmt.Sprintf("a=%.1f e=%.4f i=%.3f Ω=%.3f ω=%.3f ν=%.3f", o.a, o.e, Rad2deg(o.i), Rad2deg(o.Ω), Rad2deg(o.ω), Rad2deg(o.ν))
}
