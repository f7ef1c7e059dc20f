package halorbits

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadScenarios(t *testing.T) {
	paths, err := filepath.Glob("scenarios/*.toml")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no scenarios")
	}
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			t.Fatalf("%s: %s", path, err)
		}
		if sc.General.Name == "" || sc.General.HTML == "" || sc.General.OutputDir == "" {
			t.Fatalf("%s: incomplete general section %+v", path, sc.General)
		}
		if sc.General.Width != 1280 || sc.General.Height != 600 {
			t.Fatalf("%s: default size not applied", path)
		}
	}
}

func TestLoadScenarioValues(t *testing.T) {
	sc, err := LoadScenario("scenarios/vger.toml")
	if err != nil {
		t.Fatal(err)
	}
	if sc.Sampling.Kind != SampleCadence || sc.Sampling.Cadence != 24*time.Hour {
		t.Fatalf("sampling = %+v", sc.Sampling)
	}
	if len(sc.Bodies) != 11 || sc.Bodies[0].Filter == nil || sc.Bodies[0].Filter.Max != 6e9 {
		t.Fatalf("bodies = %+v", sc.Bodies)
	}
	if !sc.Layout.XReversed || !sc.Layout.YReversed || sc.Layout.ZTitle != "z (km)" {
		t.Fatalf("layout = %+v", sc.Layout)
	}
	if sc.Frame.Name != "VGER" || sc.Frame.Rotating != nil {
		t.Fatalf("frame = %+v", sc.Frame)
	}

	sc, err = LoadScenario("scenarios/kepler_demo.toml")
	if err != nil {
		t.Fatal(err)
	}
	if sc.Ephemeris.Backend != "kepler" || len(sc.Ephemeris.Kepler.Orbits) != 2 || sc.Ephemeris.Kepler.Orbits[1].ArgPeri != 90 {
		t.Fatalf("ephemeris = %+v", sc.Ephemeris)
	}
	if sc.Frame.Rotating == nil || sc.Frame.Rotating.Reference != "MOON" || !sc.Frame.Rotating.Origin {
		t.Fatalf("rotating frame = %+v", sc.Frame.Rotating)
	}
	if sc.General.Workers != 4 || !sc.General.CSV || !sc.General.Cosmo {
		t.Fatalf("general = %+v", sc.General)
	}

	sc, err = LoadScenario("scenarios/jwst.toml")
	if err != nil {
		t.Fatal(err)
	}
	var cycle *DerivedConf
	for i := range sc.Derived {
		if sc.Derived[i].Kind == DerivedCycle {
			cycle = &sc.Derived[i]
		}
	}
	if cycle == nil || cycle.Span != 744*time.Hour || cycle.Count != 400 {
		t.Fatalf("cycle = %+v", cycle)
	}
}

func TestLoadScenarioEnv(t *testing.T) {
	t.Setenv("HALORBITS_EPHEMERIS_PYTHON", "/opt/spice/bin/python3")
	t.Setenv("HALORBITS_GENERAL_OUTPUT_DIR", "/tmp/plots")
	sc, err := LoadScenario("scenarios/nrho.toml")
	if err != nil {
		t.Fatal(err)
	}
	if sc.Ephemeris.Python != "/opt/spice/bin/python3" {
		t.Fatalf("python = %s", sc.Ephemeris.Python)
	}
	if sc.General.OutputDir != "/tmp/plots" {
		t.Fatalf("output_dir = %s", sc.General.OutputDir)
	}
}

func TestLoadScenarioDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.toml")
	conf := `
[kernels]
files = ["naif0012.tls", "de432s.bsp"]
start = "2025-01-01"
end = "2025-02-01"

[sampling]
policy = "count"
count = 10

[[bodies]]
id = "MOON"
`
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if sc.General.Name != "minimal" || sc.General.HTML != "minimal.html" || sc.General.OutputDir != "docs" {
		t.Fatalf("general = %+v", sc.General)
	}
	if sc.Ephemeris.Backend != "spice" || sc.Ephemeris.Helper != "cmd/refframes/oracle.py" {
		t.Fatalf("ephemeris = %+v", sc.Ephemeris)
	}
	if sc.Frame.Name != "J2000" || sc.Frame.Center != "SUN" || sc.Sampling.Rounding != "ceil" {
		t.Fatalf("frame = %+v, sampling = %+v", sc.Frame, sc.Sampling)
	}
	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("missing scenario loaded")
	}
}

func validScenario() Scenario {
	return Scenario{
		Ephemeris: EphemerisConf{Backend: "spice"},
		Kernels:   KernelConf{Files: []string{"de432s.bsp"}, CoverageBody: "-170"},
		Sampling:  SamplingPolicy{Kind: SampleCount, Count: 10},
		Bodies:    []BodyConf{{ID: "-170"}},
	}
}

func TestScenarioValidate(t *testing.T) {
	if err := validScenario().Validate(); err != nil {
		t.Fatal(err)
	}
	for name, breakIt := range map[string]func(*Scenario){
		"kernels":    func(sc *Scenario) { sc.Kernels.Files = nil },
		"bodies":     func(sc *Scenario) { sc.Bodies = nil },
		"window":     func(sc *Scenario) { sc.Kernels.CoverageBody = ""; sc.Kernels.Start = "2025-01-01" },
		"coverage":   func(sc *Scenario) { sc.Kernels = KernelConf{Files: []string{"a.bsp"}, Coverage: "a.bsp", Start: "a", End: "b"} },
		"sampling":   func(sc *Scenario) { sc.Sampling.Count = 1 },
		"rotating":   func(sc *Scenario) { sc.Frame.Rotating = &RotatingConf{} },
		"body id":    func(sc *Scenario) { sc.Bodies = append(sc.Bodies, BodyConf{}) },
		"filter":     func(sc *Scenario) { sc.Bodies[0].Filter = &Filter{Axis: "r"} },
		"sphere":     func(sc *Scenario) { sc.Spheres = []SphereConf{{Body: "MOON", At: "apoapsis"}} },
		"marker":     func(sc *Scenario) { sc.Markers = []MarkerConf{{Position: []float64{1, 2}}} },
		"line":       func(sc *Scenario) { sc.Lines = []LineConf{{Points: [][]float64{{0, 0, 0}, {1}}}} },
		"derived":    func(sc *Scenario) { sc.Derived = []DerivedConf{{Kind: "L3"}} },
		"cr3bp":      func(sc *Scenario) { sc.Derived = []DerivedConf{{Kind: DerivedCR3BP, Large: "EARTH", Small: "MOON"}} },
		"cycle":      func(sc *Scenario) { sc.Derived = []DerivedConf{{Kind: DerivedCycle, Body: "MOON", Count: 400}} },
		"point":      func(sc *Scenario) { sc.Derived = []DerivedConf{{Kind: DerivedHillStatic, Large: "SUN", Small: "EARTH", Points: []string{"L3"}}} },
		"axis":       func(sc *Scenario) { sc.Derived = []DerivedConf{{Kind: DerivedTriangular, Body: "JUPITER", Axis: []float64{0, 1}}} },
		"mean":       func(sc *Scenario) { sc.Derived = []DerivedConf{{Kind: DerivedMean}} },
		"hill track": func(sc *Scenario) { sc.Derived = []DerivedConf{{Kind: DerivedHillTrack, Large: "SUN"}} },
	} {
		sc := validScenario()
		sc.Bodies = append([]BodyConf(nil), sc.Bodies...)
		breakIt(&sc)
		if err := sc.Validate(); err == nil {
			t.Fatalf("%s: invalid scenario accepted", name)
		}
	}
	kepler := validScenario()
	kepler.Ephemeris.Backend = "kepler"
	kepler.Kernels.Files = nil
	if err := kepler.Validate(); err != nil {
		t.Fatalf("kepler scenario without kernels: %s", err)
	}
}

func TestPathBase(t *testing.T) {
	for path, exp := range map[string]string{"scenarios/nrho.toml": "nrho.toml", `c:\plots\jwst.toml`: "jwst.toml", "lucy.toml": "lucy.toml"} {
		if got := pathBase(path); got != exp {
			t.Fatalf("%s: %s", path, got)
		}
	}
}
