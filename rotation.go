package halorbits

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// ObliquityJ2000 is the IAU 1976 obliquity of the ecliptic at J2000 in radians (84381.448 arcseconds).
	ObliquityJ2000 = 84381.448 / 3600 * deg2rad
)

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// PQW2Inertial returns the DCM from the perifocal frame to the inertial frame of the central body.
// All angles are in radians.
func PQW2Inertial(i, ω, Ω float64) *mat.Dense {
	var iω, Ωiω mat.Dense
	iω.Mul(R1(-i), R3(-ω))
	Ωiω.Mul(R3(-Ω), &iω)
	return &Ωiω
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m mat.Matrix, v r3.Vec) r3.Vec {
	var rVec mat.VecDense
	rVec.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vec{X: rVec.AtVec(0), Y: rVec.AtVec(1), Z: rVec.AtVec(2)}
}

// Equatorial2Ecliptic converts a J2000 equatorial vector to the J2000 ecliptic frame.
func Equatorial2Ecliptic(v r3.Vec) r3.Vec {
	return MxV33(R1(ObliquityJ2000), v)
}

// Ecliptic2Equatorial converts a J2000 ecliptic vector to the J2000 equatorial frame.
func Ecliptic2Equatorial(v r3.Vec) r3.Vec {
	return MxV33(R1(-ObliquityJ2000), v)
}
