package halorbits

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/meeus/v3/pluto"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"
)

// vsopStep is the half step of the central difference used for velocities, in seconds.
const vsopStep = 3600.0

// vsopIndex maps NAIF IDs to the VSOP87 planet numbers. Barycenters are approximated by the planets.
var vsopIndex = map[int]int{
	1: planetposition.Mercury, 199: planetposition.Mercury,
	2: planetposition.Venus, 299: planetposition.Venus,
	399: planetposition.Earth,
	4: planetposition.Mars, 499: planetposition.Mars,
	5: planetposition.Jupiter, 599: planetposition.Jupiter,
	6: planetposition.Saturn, 699: planetposition.Saturn,
	7: planetposition.Uranus, 799: planetposition.Uranus,
	8: planetposition.Neptune, 899: planetposition.Neptune,
}

const (
	naifSun   = 10
	naifPluto = 999
)

// VSOP87 computes heliocentric planet positions with the VSOP87B theory (and Meeus' Pluto).
// It has no coverage bounds: Coverage always fails and scenarios must provide explicit start and end dates.
type VSOP87 struct {
	kernelPool
	mu      sync.Mutex
	planets map[int]*planetposition.V87Planet
}

// NewVSOP87 returns a VSOP87 backend. The planets are loaded by furnishing the VSOP87 data directory.
func NewVSOP87() *VSOP87 {
	return &VSOP87{kernelPool: newKernelPool(), planets: make(map[int]*planetposition.V87Planet)}
}

// Furnsh implements the Ephemeris interface. Directories are read as VSOP87B data directories.
func (v *VSOP87) Furnsh(path string) error {
	if handled, err := v.furnshText(path); handled {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrKernelNotFound, path)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a VSOP87 directory", ErrUnsupportedKernel, path)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for ibody := planetposition.Mercury; ibody <= planetposition.Neptune; ibody++ {
		planet, err := planetposition.LoadPlanetPath(ibody, path)
		if err != nil {
			return fmt.Errorf("could not load planet number %d: %w", ibody+1, err)
		}
		v.planets[ibody] = planet
	}
	return nil
}

// Coverage implements the Ephemeris interface.
func (v *VSOP87) Coverage(kernel string, body Body) (Window, error) {
	return Window{}, fmt.Errorf("%w: VSOP87 is unbounded, set explicit start and end dates", ErrNoCoverage)
}

// State implements the Ephemeris interface.
func (v *VSOP87) State(target Body, et Epoch, frame string, center Body) (State, error) {
	t, err := v.helio(target, et)
	if err != nil {
		return State{}, err
	}
	c, err := v.helio(center, et)
	if err != nil {
		return State{}, err
	}
	return inertialFrame(State{R: r3.Sub(t.R, c.R), V: r3.Sub(t.V, c.V)}, frame, "ECLIPJ2000")
}

// helio returns the heliocentric ecliptic state of the body.
func (v *VSOP87) helio(b Body, et Epoch) (State, error) {
	id, err := NAIFID(b)
	if err != nil {
		return State{}, err
	}
	if id == naifSun {
		return State{}, nil
	}
	var position func(jde float64) (unit.Angle, unit.Angle, float64)
	if id == naifPluto || id == 9 {
		position = pluto.Heliocentric
	} else {
		ibody, found := vsopIndex[id]
		if !found {
			return State{}, fmt.Errorf("%w: %s is not in VSOP87", ErrUnknownBody, b)
		}
		v.mu.Lock()
		planet, loaded := v.planets[ibody]
		v.mu.Unlock()
		if !loaded {
			return State{}, fmt.Errorf("%w: VSOP87 data not loaded", ErrNoCoverage)
		}
		position = planet.Position2000
	}
	R := lbrToCartesian(position(et.JDE()))
	before := lbrToCartesian(position((et - vsopStep).JDE()))
	after := lbrToCartesian(position((et + vsopStep).JDE()))
	return State{R: R, V: r3.Scale(1/(2*vsopStep), r3.Sub(after, before))}, nil
}

// lbrToCartesian converts spherical ecliptic coordinates (R in AU) to kilometers.
func lbrToCartesian(l, b unit.Angle, r float64) r3.Vec {
	r *= AU
	sB, cB := math.Sincos(b.Rad())
	sL, cL := math.Sincos(l.Rad())
	return r3.Vec{X: r * cB * cL, Y: r * cB * sL, Z: r * sB}
}

// Close implements the Ephemeris interface.
func (v *VSOP87) Close() error {
	return nil
}
