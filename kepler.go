package halorbits

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// keplerBody is a body on a two-body orbit about its parent.
type keplerBody struct {
	orbit  *Orbit
	parent int
}

// Kepler is an analytic ephemeris of bodies on unperturbed two-body orbits, each about a parent body.
// Bodies without an orbit are fixed at the root of the hierarchy.
type Kepler struct {
	kernelPool
	bodies map[int]keplerBody
	window Window
}

// NewKepler returns an analytic ephemeris whose coverage is the provided window.
func NewKepler(window Window) *Kepler {
	return &Kepler{kernelPool: newKernelPool(), bodies: make(map[int]keplerBody), window: window}
}

// AddBody adds a body on the provided orbit about the parent.
func (k *Kepler) AddBody(body, parent Body, orbit *Orbit) error {
	id, err := NAIFID(body)
	if err != nil {
		return err
	}
	pid, err := NAIFID(parent)
	if err != nil {
		return err
	}
	if id == pid {
		return fmt.Errorf("%s cannot orbit itself", body)
	}
	for p := pid; ; {
		kb, found := k.bodies[p]
		if !found {
			break
		}
		if kb.parent == id {
			return fmt.Errorf("%s orbiting %s creates a cycle", body, parent)
		}
		p = kb.parent
	}
	k.bodies[id] = keplerBody{orbit: orbit, parent: pid}
	return nil
}

// Furnsh implements the Ephemeris interface. Only text kernels are meaningful to an analytic ephemeris.
func (k *Kepler) Furnsh(path string) error {
	if handled, err := k.furnshText(path); handled {
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedKernel, path)
}

// Coverage implements the Ephemeris interface. The kernel is ignored.
func (k *Kepler) Coverage(kernel string, body Body) (Window, error) {
	id, err := NAIFID(body)
	if err != nil {
		return Window{}, err
	}
	if _, found := k.bodies[id]; !found {
		return Window{}, fmt.Errorf("%w: %s", ErrNoCoverage, body)
	}
	if k.window.Duration() <= 0 {
		return Window{}, fmt.Errorf("%w: empty window", ErrNoCoverage)
	}
	return k.window, nil
}

// State implements the Ephemeris interface.
func (k *Kepler) State(target Body, et Epoch, frame string, center Body) (State, error) {
	t, err := k.rootState(target, et)
	if err != nil {
		return State{}, err
	}
	c, err := k.rootState(center, et)
	if err != nil {
		return State{}, err
	}
	if strings.ToUpper(frame) != "J2000" && strings.ToUpper(frame) != "ICRF" {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownFrame, frame)
	}
	return State{R: r3.Sub(t.R, c.R), V: r3.Sub(t.V, c.V)}, nil
}

// rootState returns the state of the body with respect to the root of its hierarchy.
func (k *Kepler) rootState(b Body, et Epoch) (State, error) {
	id, err := NAIFID(b)
	if err != nil {
		return State{}, err
	}
	if !k.known(id) {
		return State{}, fmt.Errorf("%w: %s is not in the Kepler hierarchy", ErrUnknownBody, b)
	}
	var st State
	for {
		kb, found := k.bodies[id]
		if !found {
			return st, nil
		}
		rel := kb.orbit.RVAt(et)
		st.R = r3.Add(st.R, rel.R)
		st.V = r3.Add(st.V, rel.V)
		id = kb.parent
	}
}

// known returns whether the body has an orbit or is the parent of a body with an orbit.
func (k *Kepler) known(id int) bool {
	if _, found := k.bodies[id]; found {
		return true
	}
	for _, kb := range k.bodies {
		if kb.parent == id {
			return true
		}
	}
	return false
}

// Close implements the Ephemeris interface.
func (k *Kepler) Close() error {
	return nil
}

// newKeplerFromConf builds the analytic ephemeris from the scenario.
func newKeplerFromConf(conf KeplerConf) (*Kepler, error) {
	ts := DefaultTimeScale()
	var window Window
	for i, utc := range []string{conf.Start, conf.End} {
		if utc == "" {
			continue
		}
		t, err := ParseUTC(utc)
		if err != nil {
			return nil, fmt.Errorf("kepler window: %w", err)
		}
		if i == 0 {
			window.Start = ts.ToET(t)
		} else {
			window.End = ts.ToET(t)
		}
	}
	k := NewKepler(window)
	for _, oc := range conf.Orbits {
		μ := oc.GM
		if μ == 0 {
			parent, err := CelestialObjectFromString(oc.Center)
			if err != nil {
				return nil, fmt.Errorf("orbit of %s: %w", oc.ID, err)
			}
			μ = parent.GM()
		}
		epoch := window.Start
		if oc.Epoch != "" {
			t, err := ParseUTC(oc.Epoch)
			if err != nil {
				return nil, fmt.Errorf("orbit of %s: %w", oc.ID, err)
			}
			epoch = ts.ToET(t)
		}
		orbit, err := NewOrbitFromOE(oc.SMA, oc.Ecc, oc.Inc, oc.RAAN, oc.ArgPeri, oc.TAnomaly, μ, epoch)
		if err != nil {
			return nil, fmt.Errorf("orbit of %s: %w", oc.ID, err)
		}
		if err := k.AddBody(Body(oc.ID), Body(oc.Center), orbit); err != nil {
			return nil, err
		}
	}
	return k, nil
}
