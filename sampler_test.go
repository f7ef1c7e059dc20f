package halorbits

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/go-kit/log"
	"gonum.org/v1/gonum/spatial/r3"
)

// lineEphemeris moves every body along +X at 1 km/s from an offset set by its name.
type lineEphemeris struct {
	queries int64
	failAt  Epoch // Queries of the body FAIL from this epoch on fail
}

func (e *lineEphemeris) Furnsh(path string) error { return nil }

func (e *lineEphemeris) Coverage(kernel string, body Body) (Window, error) {
	return Window{Start: 0, End: 100}, nil
}

func (e *lineEphemeris) State(target Body, et Epoch, frame string, center Body) (State, error) {
	atomic.AddInt64(&e.queries, 1)
	if target == "FAIL" && et >= e.failAt {
		return State{}, fmt.Errorf("%w: FAIL at %f", ErrNoCoverage, et)
	}
	offset := float64(len(target)) * 1000
	return State{R: r3.Vec{X: float64(et), Y: offset, Z: -offset}, V: r3.Vec{X: 1}}, nil
}

func (e *lineEphemeris) ET2UTC(et Epoch) (string, error) { return fmt.Sprintf("ET %.0f", et), nil }

func (e *lineEphemeris) UTC2ET(utc string) (Epoch, error) {
	var et float64
	_, err := fmt.Sscanf(utc, "ET %f", &et)
	return Epoch(et), err
}

func (e *lineEphemeris) Close() error { return nil }

func TestSamplerOrder(t *testing.T) {
	eph := &lineEphemeris{}
	epochs := Linspace(0, 999, 1000)
	for _, workers := range []int{0, 1, 4, 2000} {
		s := Sampler{Eph: eph, Frame: "J2000", Center: "SUN", Workers: workers, Velocity: true, Labels: true, Logger: log.NewNopLogger()}
		trace, err := s.Sample("SC", epochs)
		if err != nil {
			t.Fatal(err)
		}
		if len(trace.Samples) != len(epochs) {
			t.Fatalf("%d workers: %d samples", workers, len(trace.Samples))
		}
		for i, smp := range trace.Samples {
			if smp.Epoch != epochs[i] || smp.Position.X != float64(epochs[i]) {
				t.Fatalf("%d workers: sample %d out of order", workers, i)
			}
			if smp.Velocity == nil || smp.Speed != 1 {
				t.Fatalf("%d workers: sample %d without velocity", workers, i)
			}
			if smp.UTC != fmt.Sprintf("ET %.0f", float64(epochs[i])) {
				t.Fatalf("%d workers: sample %d labeled `%s`", workers, i, smp.UTC)
			}
		}
	}
}

func TestSamplerBare(t *testing.T) {
	s := Sampler{Eph: &lineEphemeris{}, Frame: "J2000", Center: "SUN"}
	trace, err := s.Sample("SC", []Epoch{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if trace.Samples[0].Velocity != nil || trace.Samples[0].UTC != "" {
		t.Fatal("velocity or label filled without request")
	}
	x, y, z := trace.XYZ()
	if x[1] != 2 || y[1] != 2000 || z[1] != -2000 {
		t.Fatalf("xyz = %v %v %v", x, y, z)
	}
	if m := trace.Mean(); m != (r3.Vec{X: 1.5, Y: 2000, Z: -2000}) {
		t.Fatalf("mean = %+v", m)
	}
}

func TestSamplerError(t *testing.T) {
	eph := &lineEphemeris{failAt: 500}
	s := Sampler{Eph: eph, Frame: "J2000", Center: "SUN", Workers: 8}
	_, err := s.Sample("FAIL", Linspace(0, 9999, 10000))
	if !errors.Is(err, ErrNoCoverage) {
		t.Fatalf("expected ErrNoCoverage, got %v", err)
	}
	if eph.queries >= 10000 {
		t.Fatal("sampling did not stop at the first error")
	}
}

func TestSamplerTransform(t *testing.T) {
	k := newTestKepler(t)
	s := Sampler{Eph: k, Frame: "J2000", Center: "EARTH", Transform: NewRotatingTransform("MOON", "EARTH", "J2000", true), Workers: 3}
	trace, err := s.Sample("EARTH", Linspace(0, 10*SecondsPerDay, 50))
	if err != nil {
		t.Fatal(err)
	}
	for _, smp := range trace.Samples {
		if !vectorsEqual(smp.Position, r3.Vec{X: -384400}, 1e-6) {
			t.Fatalf("Earth at %+v in the Moon-centric rotating frame", smp.Position)
		}
	}
}

func TestFilter(t *testing.T) {
	trace := Trace{Name: "V1"}
	for i := 0; i < 10; i++ {
		trace.Samples = append(trace.Samples, Sample{Position: r3.Vec{Y: float64(i) * 1e9}})
	}
	kept, dropped := Filter{Axis: "y", Max: 6e9}.Apply(trace)
	if dropped != 3 || len(kept.Samples) != 7 || kept.Name != "V1" {
		t.Fatalf("kept %d, dropped %d", len(kept.Samples), dropped)
	}
	for _, s := range kept.Samples {
		if s.Position.Y > 6e9 {
			t.Fatalf("%+v kept", s.Position)
		}
	}
	if len(trace.Samples) != 10 {
		t.Fatal("the filter modified its input")
	}
	if err := (Filter{Axis: "w"}).Validate(); err == nil {
		t.Fatal("unknown axis accepted")
	}
	for _, axis := range []string{"x", "y", "z"} {
		if err := (Filter{Axis: axis}).Validate(); err != nil {
			t.Fatal(err)
		}
	}
}
