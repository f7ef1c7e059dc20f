package halorbits

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// HillDistance returns the approximate distance from the smaller body to its L1 and L2 points, given the
// separation R between both bodies and their gravitational parameters (or masses).
// This is the two-body Hill sphere approximation: it ignores eccentricity and perturbations.
func HillDistance(R, gmSmall, gmLarge float64) float64 {
	return R * math.Cbrt(gmSmall/(3*(gmLarge+gmSmall)))
}

// HillDistanceRatio is HillDistance expressed with the mass ratio μ = m_small/(m_large+m_small).
func HillDistanceRatio(R, μ float64) float64 {
	return R * math.Cbrt(μ/3)
}

// CollinearPoints returns the L1 and L2 points in a frame centered on the smaller body with X pointing away from
// the larger one.
func CollinearPoints(d float64) (L1, L2 r3.Vec) {
	return r3.Vec{X: -d}, r3.Vec{X: d}
}

// CollinearPointsAt returns the L1 and L2 points of the smaller body located at small, the larger one being at
// large. L1 lies between both bodies.
func CollinearPointsAt(small, large r3.Vec, d float64) (L1, L2 r3.Vec) {
	away := r3.Unit(r3.Sub(small, large))
	l1, l2 := CollinearPoints(d)
	return r3.Add(small, r3.Scale(l1.X, away)), r3.Add(small, r3.Scale(l2.X, away))
}

// Rodrigues returns the rotation matrix of angle θ (radians) about the provided axis.
func Rodrigues(axis r3.Vec, θ float64) *mat.Dense {
	k := r3.Unit(axis)
	s, c := math.Sincos(θ)
	K := mat.NewDense(3, 3, []float64{
		0, -k.Z, k.Y,
		k.Z, 0, -k.X,
		-k.Y, k.X, 0,
	})
	var K2, R mat.Dense
	K2.Mul(K, K)
	R.Scale(s, K)
	K2.Scale(1-c, &K2)
	R.Add(&R, &K2)
	R.Add(&R, mat.NewDiagDense(3, []float64{1, 1, 1}))
	return &R
}

// TriangularPoints returns the L4 (leading, +60°) and L5 (trailing, -60°) points of the secondary body located
// at p with respect to the primary, rotating about the orbit normal axis.
func TriangularPoints(p, axis r3.Vec) (L4, L5 r3.Vec) {
	return MxV33(Rodrigues(axis, math.Pi/3), p), MxV33(Rodrigues(axis, -math.Pi/3), p)
}
