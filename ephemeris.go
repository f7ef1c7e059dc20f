package halorbits

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrKernelNotFound is returned when a kernel file does not exist.
	ErrKernelNotFound = errors.New("kernel not found")
	// ErrUnsupportedKernel is returned when a backend cannot use the provided kernel.
	ErrUnsupportedKernel = errors.New("unsupported kernel")
	// ErrNoCoverage is returned when no coverage window exists for a body.
	ErrNoCoverage = errors.New("no coverage")
	// ErrUnknownBody is returned when a body is not known to the backend.
	ErrUnknownBody = errors.New("unknown body")
	// ErrUnknownFrame is returned when a frame is not known to the backend.
	ErrUnknownFrame = errors.New("unknown frame")
)

// Epoch is an ephemeris time: TDB seconds past J2000.
type Epoch float64

// Body is an opaque identifier of an object known by the ephemeris backend, e.g. "MOON" or "-60000".
type Body string

// State is the position (km) and velocity (km/s) of a target relative to a center.
type State struct {
	R, V r3.Vec
}

// Window is a time coverage interval.
type Window struct {
	Start, End Epoch
}

// Duration returns the length of the window in seconds.
func (w Window) Duration() float64 {
	return float64(w.End - w.Start)
}

// Mid returns the midpoint of the window.
func (w Window) Mid() Epoch {
	return 0.5 * (w.Start + w.End)
}

// Ephemeris is the ephemeris context of a run. It is created once at startup, loaded with kernels,
// and only queried thereafter.
type Ephemeris interface {
	// Furnsh loads a kernel.
	Furnsh(path string) error
	// Coverage returns the first coverage window of the body in the provided kernel.
	Coverage(kernel string, body Body) (Window, error)
	// State returns the state of the target relative to the center, expressed in the named frame.
	State(target Body, et Epoch, frame string, center Body) (State, error)
	// ET2UTC formats the epoch as a UTC calendar string, e.g. "2025 JAN 01 00:00:00".
	ET2UTC(et Epoch) (string, error)
	// UTC2ET parses a UTC string into an epoch.
	UTC2ET(utc string) (Epoch, error)
	// Close releases the backend.
	Close() error
}

// LoadKernels loads each kernel in order. Later kernels may override definitions of earlier ones.
// The first failure aborts the loading: no partial load is attempted.
func LoadKernels(eph Ephemeris, paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %s", ErrKernelNotFound, path)
		}
		if err := eph.Furnsh(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// OpenEphemeris returns the backend described by the configuration.
func OpenEphemeris(conf EphemerisConf, logger log.Logger) (Ephemeris, error) {
	switch conf.Backend {
	case "", "spice":
		s, err := NewSPICE(conf.Python, conf.Helper, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "de":
		return NewDE(), nil
	case "vsop87":
		return NewVSOP87(), nil
	case "kepler":
		k, err := newKeplerFromConf(conf.Kepler)
		if err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown ephemeris backend `%s`", conf.Backend)
	}
}
