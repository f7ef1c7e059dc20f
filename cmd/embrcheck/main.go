package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/nbryant42/halorbits"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Prints the Earth-Moon barycentric rotating basis at one epoch, and the Moon expressed in it, which must lie on +X.

var (
	kernels string
	backend string
	python  string
	helper  string
	utc     string
)

func init() {
	flag.StringVar(&kernels, "kernels", "naif0012.tls,pck00010.tpc,de432s.bsp", "comma separated kernels to load")
	flag.StringVar(&backend, "backend", "spice", "ephemeris backend (spice or de)")
	flag.StringVar(&python, "python", "python3", "python interpreter of the SPICE helper")
	flag.StringVar(&helper, "helper", "cmd/refframes/oracle.py", "SPICE helper script")
	flag.StringVar(&utc, "utc", "2025-01-01T00:00:00", "epoch of the basis")
}

func main() {
	flag.Parse()
	logger := level.NewFilter(log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr)), level.AllowInfo())
	fatal := func(err error) {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
	eph, err := halorbits.OpenEphemeris(halorbits.EphemerisConf{Backend: backend, Python: python, Helper: helper}, logger)
	if err != nil {
		fatal(err)
	}
	defer eph.Close()
	if err := halorbits.LoadKernels(eph, strings.Split(kernels, ",")); err != nil {
		fatal(err)
	}
	et, err := eph.UTC2ET(utc)
	if err != nil {
		fatal(err)
	}

	embr := halorbits.NewRotatingTransform("MOON", "EMB", "J2000", false)
	dcm, err := embr.Basis(eph, et)
	if err != nil {
		fatal(err)
	}
	moon, err := eph.State("MOON", et, "J2000", "EMB")
	if err != nil {
		fatal(err)
	}
	rot, err := embr.Apply(eph, et, moon)
	if err != nil {
		fatal(err)
	}
	fmt.Println("EMBR basis vectors in J2000 (rows of the rotation matrix):")
	fmt.Printf("%v\n", mat.Formatted(dcm, mat.Squeeze()))
	fmt.Printf("\nMoon in EMBR (km): [%f %f %f]\n", rot.R.X, rot.R.Y, rot.R.Z)
	fmt.Println("Distance (km):", r3.Norm(rot.R))
	fmt.Println("Angle to X (deg):", halorbits.AngleTo(rot.R, r3.Vec{X: 1}))
	fmt.Println("Angle to Y (deg):", halorbits.AngleTo(rot.R, r3.Vec{Y: 1}))
	fmt.Println("Angle to Z (deg):", halorbits.AngleTo(rot.R, r3.Vec{Z: 1}))
}
