package halorbits

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateFrame is returned when a rotating frame cannot be built because the reference position is null
// or parallel to its velocity.
var ErrDegenerateFrame = errors.New("degenerate rotating frame")

// RotatingFrame returns the DCM from the inertial frame to the rotating frame attached to the reference position
// and velocity: X̂ along r, Ẑ along r×v, and Ŷ = Ẑ×X̂. The rows of the DCM are the unit axes.
func RotatingFrame(r, v r3.Vec) (*mat.Dense, error) {
	rNorm := r3.Norm(r)
	if isNull(r, 1) {
		return nil, fmt.Errorf("%w: null position", ErrDegenerateFrame)
	}
	h := r3.Cross(r, v)
	if isNull(h, rNorm*r3.Norm(v)) {
		return nil, fmt.Errorf("%w: position and velocity are parallel", ErrDegenerateFrame)
	}
	x := r3.Unit(r)
	z := r3.Unit(h)
	y := r3.Cross(z, x)
	return mat.NewDense(3, 3, []float64{
		x.X, x.Y, x.Z,
		y.X, y.Y, y.Z,
		z.X, z.Y, z.Z,
	}), nil
}

// FrameTransform converts the state of a sample from the queried frame into the plotted frame.
type FrameTransform interface {
	Apply(eph Ephemeris, et Epoch, st State) (State, error)
}

// Identity is the transform of kernel defined frames: states are plotted as queried.
type Identity struct{}

// Apply implements the FrameTransform interface.
func (Identity) Apply(_ Ephemeris, _ Epoch, st State) (State, error) {
	return st, nil
}

// rotatingBasis is the rotating frame at one epoch.
type rotatingBasis struct {
	dcm *mat.Dense
	ref State // Reference state in the rotating frame.
	ω   float64
}

// RotatingTransform rotates states into the frame built at every epoch from the state of Reference with respect
// to Center in Frame. The states to transform must be expressed in Frame with respect to Center.
// When Origin is set, the result is translated so that the reference body sits at the origin.
type RotatingTransform struct {
	Reference Body
	Center    Body
	Frame     string
	Origin    bool

	mu    sync.Mutex
	cache map[Epoch]rotatingBasis
}

// NewRotatingTransform returns a rotating transform.
func NewRotatingTransform(reference, center Body, frame string, origin bool) *RotatingTransform {
	return &RotatingTransform{Reference: reference, Center: center, Frame: frame, Origin: origin}
}

// Basis returns the DCM of the rotating frame at the provided epoch.
func (t *RotatingTransform) Basis(eph Ephemeris, et Epoch) (*mat.Dense, error) {
	b, err := t.basis(eph, et)
	if err != nil {
		return nil, err
	}
	return b.dcm, nil
}

func (t *RotatingTransform) basis(eph Ephemeris, et Epoch) (rotatingBasis, error) {
	t.mu.Lock()
	b, found := t.cache[et]
	t.mu.Unlock()
	if found {
		return b, nil
	}
	ref, err := eph.State(t.Reference, et, t.Frame, t.Center)
	if err != nil {
		return rotatingBasis{}, err
	}
	dcm, err := RotatingFrame(ref.R, ref.V)
	if err != nil {
		return rotatingBasis{}, fmt.Errorf("%s at ET %f: %w", t.Reference, et, err)
	}
	r := r3.Norm(ref.R)
	b = rotatingBasis{dcm: dcm, ω: r3.Norm(r3.Cross(ref.R, ref.V)) / (r * r)}
	b.ref = b.rotate(ref)
	t.mu.Lock()
	if t.cache == nil {
		t.cache = make(map[Epoch]rotatingBasis)
	}
	t.cache[et] = b
	t.mu.Unlock()
	return b, nil
}

// rotate applies the DCM to the position, and the transport theorem to the velocity.
func (b rotatingBasis) rotate(st State) State {
	R := MxV33(b.dcm, st.R)
	V := r3.Sub(MxV33(b.dcm, st.V), r3.Cross(r3.Vec{Z: b.ω}, R))
	return State{R: R, V: V}
}

// Apply implements the FrameTransform interface.
func (t *RotatingTransform) Apply(eph Ephemeris, et Epoch, st State) (State, error) {
	b, err := t.basis(eph, et)
	if err != nil {
		return State{}, err
	}
	rot := b.rotate(st)
	if t.Origin {
		rot.R = r3.Sub(rot.R, b.ref.R)
		rot.V = r3.Sub(rot.V, b.ref.V)
	}
	return rot, nil
}
