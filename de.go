package halorbits

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mshafiee/jpleph"
	"gonum.org/v1/gonum/spatial/r3"
)

// deIndex maps NAIF IDs to the body indices of the JPL DE binary files.
var deIndex = map[int]int{
	1: 1, 199: 1,
	2: 2, 299: 2,
	399: 3,
	4: 4, 499: 4,
	5: 5, 599: 5,
	6: 6, 699: 6,
	7: 7, 799: 7,
	8: 8, 899: 8,
	9: 9, 999: 9,
	301: 10,
	10:  11,
	0:   12,
	3:   13,
}

// DE reads a JPL DE binary ephemeris (e.g. de440.bin) and the leapseconds text kernel.
type DE struct {
	kernelPool
	mu   sync.Mutex
	eph  *jpleph.Ephemeris
	path string
	au   float64
}

// NewDE returns a DE backend with no ephemeris loaded.
func NewDE() *DE {
	return &DE{kernelPool: newKernelPool(), au: AU}
}

// Furnsh implements the Ephemeris interface.
func (d *DE) Furnsh(path string) error {
	if handled, err := d.furnshText(path); handled {
		return err
	}
	eph, err := jpleph.NewEphemeris(path, true)
	if err != nil {
		return fmt.Errorf("%w: %s is not a DE binary file: %s", ErrUnsupportedKernel, path, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.eph != nil {
		d.eph.Close()
	}
	d.eph = eph
	d.path = path
	if au := eph.GetEphemerisDouble(jpleph.AUinKM); au > 0 {
		d.au = au
	}
	return nil
}

// Coverage implements the Ephemeris interface. The DE files cover all of their bodies over the same span.
func (d *DE) Coverage(kernel string, body Body) (Window, error) {
	if _, err := deBody(body); err != nil {
		return Window{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.eph == nil || kernel != d.path {
		return Window{}, fmt.Errorf("%w: %s not loaded", ErrNoCoverage, kernel)
	}
	start := d.eph.GetEphemerisDouble(jpleph.EphemerisStartJD)
	end := d.eph.GetEphemerisDouble(jpleph.EphemerisEndJD)
	return Window{Epoch((start - J2000) * SecondsPerDay), Epoch((end - J2000) * SecondsPerDay)}, nil
}

// State implements the Ephemeris interface.
func (d *DE) State(target Body, et Epoch, frame string, center Body) (State, error) {
	t, err := deBody(target)
	if err != nil {
		return State{}, err
	}
	c, err := deBody(center)
	if err != nil {
		return State{}, err
	}
	d.mu.Lock()
	if d.eph == nil {
		d.mu.Unlock()
		return State{}, fmt.Errorf("%w: no DE file loaded", ErrNoCoverage)
	}
	pos, vel, err := d.eph.CalculatePV(et.JDE(), jpleph.Planet(t), jpleph.CenterBody(c), true)
	au := d.au
	d.mu.Unlock()
	if err != nil {
		if errors.Is(err, jpleph.ErrOutsideRange) {
			return State{}, fmt.Errorf("%w: %s at ET %f", ErrNoCoverage, target, et)
		}
		return State{}, err
	}
	st := State{
		R: r3.Scale(au, r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z}),
		V: r3.Scale(au/SecondsPerDay, r3.Vec{X: vel.DX, Y: vel.DY, Z: vel.DZ}),
	}
	return inertialFrame(st, frame, "J2000")
}

// Close implements the Ephemeris interface.
func (d *DE) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.eph == nil {
		return nil
	}
	err := d.eph.Close()
	d.eph = nil
	return err
}

func deBody(b Body) (int, error) {
	id, err := NAIFID(b)
	if err != nil {
		return 0, err
	}
	idx, found := deIndex[id]
	if !found {
		return 0, fmt.Errorf("%w: %s is not in DE files", ErrUnknownBody, b)
	}
	return idx, nil
}

// inertialFrame rotates a state from its native inertial frame into the requested one.
func inertialFrame(st State, frame, native string) (State, error) {
	frame = strings.ToUpper(frame)
	if frame == "ICRF" {
		frame = "J2000"
	}
	switch {
	case frame == native:
		return st, nil
	case native == "J2000" && frame == "ECLIPJ2000":
		return State{R: Equatorial2Ecliptic(st.R), V: Equatorial2Ecliptic(st.V)}, nil
	case native == "ECLIPJ2000" && frame == "J2000":
		return State{R: Ecliptic2Equatorial(st.R), V: Ecliptic2Equatorial(st.V)}, nil
	}
	return State{}, fmt.Errorf("%w: %s", ErrUnknownFrame, frame)
}
