package halorbits

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	deg2rad = math.Pi / 180
	// vectorε is the relative tolerance under which a vector is considered null.
	vectorε = 1e-12
)

// vec converts a 3x1 slice into an r3.Vec. Note that there is no dimension check!
func vec(v []float64) r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// isNull returns whether the provided vector is null relative to the provided scale.
func isNull(v r3.Vec, scale float64) bool {
	if scale == 0 {
		scale = 1
	}
	return scalar.EqualWithinAbs(r3.Norm(v)/scale, 0, vectorε)
}

// mean returns the arithmetic mean of the provided points.
func mean(pts []r3.Vec) r3.Vec {
	var m r3.Vec
	if len(pts) == 0 {
		return m
	}
	for _, p := range pts {
		m = r3.Add(m, p)
	}
	return r3.Scale(1/float64(len(pts)), m)
}

// dot performs the inner product via mat/BLAS.
func dot(a, b r3.Vec) float64 {
	return mat.Dot(mat.NewVecDense(3, []float64{a.X, a.Y, a.Z}), mat.NewVecDense(3, []float64{b.X, b.Y, b.Z}))
}

// Deg2rad converts degrees to radians, and enforced only positive numbers.
func Deg2rad(a float64) float64 {
	if a < 0 {
		a += 360
	}
	return math.Mod(a*deg2rad, 2*math.Pi)
}

// Rad2deg converts radians to degrees, and enforced only positive numbers.
func Rad2deg(a float64) float64 {
	if a < 0 {
		a += 2 * math.Pi
	}
	return math.Mod(a/deg2rad, 360)
}

// AngleTo returns the angle in degrees between the vector and one of the unit axes.
func AngleTo(v, axis r3.Vec) float64 {
	cosθ := dot(v, axis) / (r3.Norm(v) * r3.Norm(axis))
	return math.Acos(math.Max(-1, math.Min(1, cosθ))) / deg2rad
}
