package halorbits

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func keplerScenario() Scenario {
	return Scenario{
		General:   GeneralConf{Name: "moon", Title: "Moon until {end}", Workers: 3, Width: 800, Height: 600},
		Ephemeris: EphemerisConf{Backend: "kepler"},
		Kernels:   KernelConf{CoverageBody: "-1000"},
		Sampling:  SamplingPolicy{Kind: SampleCount, Count: 50},
		Frame:     FrameConf{Name: "J2000", Center: "EARTH", Rotating: &RotatingConf{Reference: "MOON"}},
		Bodies: []BodyConf{
			{ID: "MOON", Label: "Moon", Color: "gray", Hover: true},
			{ID: "-1000", Label: "Spacecraft", Color: "green", Filter: &Filter{Axis: "z", Max: 1e9}},
		},
		Spheres:    []SphereConf{{Body: "EARTH", Color: "blue", At: "origin"}, {Body: "MOON", Color: "gray", At: "mid"}},
		Markers:    []MarkerConf{{Label: "Earth", Color: "blue", Position: []float64{0, 0, 0}, Text: "Earth"}},
		Lines:      []LineConf{{Label: "north", Points: [][]float64{{0, 0, 0}, {0, 0, 1e5}}, Text: []string{"", "N"}}},
		Intercepts: []InterceptConf{{Body: "MOON", UTC: "2000-01-05T12:00:00", Label: "Moon on Jan 5"}},
		Derived: []DerivedConf{
			{Kind: DerivedHillStatic, Large: "EARTH", Small: "MOON", Points: []string{"L1", "L2"}, Colors: []string{"green", "red"}},
			{Kind: DerivedCR3BP, Large: "EARTH", Small: "MOON", MassRatio: 0.012150585609624, Points: []string{"L2"}, Label: "EML2"},
			{Kind: DerivedHillTrack, Large: "EARTH", Small: "MOON", Points: []string{"L2"}},
			{Kind: DerivedTriangular, Body: "MOON"},
			{Kind: DerivedMean, Body: "-1000", Label: "Spacecraft"},
			{Kind: DerivedCycle, Body: "MOON", Span: 24 * time.Hour, Count: 10},
		},
		Layout: LayoutConf{XTitle: "x", YTitle: "y", ZTitle: "z", XReversed: true, Camera: []float64{3, 3, 3}},
	}
}

func scatterNamed(t *testing.T, fig *Figure, name string) *Scatter3D {
	t.Helper()
	for _, d := range fig.Data {
		if s, ok := d.(*Scatter3D); ok && s.Name == name {
			return s
		}
	}
	t.Fatalf("no trace named `%s`", name)
	return nil
}

func TestBuildRotating(t *testing.T) {
	plot, err := Build(context.Background(), keplerScenario(), newTestKepler(t), log.NewNopLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if plot.Window != (Window{0, 30 * SecondsPerDay}) || len(plot.Epochs) != 50 {
		t.Fatalf("window %+v with %d epochs", plot.Window, len(plot.Epochs))
	}
	fig := plot.Figure
	if strings.Contains(fig.Layout.Title.Text, "{end}") || !strings.Contains(fig.Layout.Title.Text, "2000") {
		t.Fatalf("title `%s`", fig.Layout.Title.Text)
	}
	if len(plot.Traces) != 2 || plot.Traces[0].Name != "Moon" {
		t.Fatalf("%d traces", len(plot.Traces))
	}
	for _, s := range plot.Traces[0].Samples {
		if !vectorsEqual(s.Position, r3.Vec{X: 384400}, 1e-6) {
			t.Fatalf("Moon at %+v in the rotating frame", s.Position)
		}
		if s.UTC == "" || s.Velocity == nil {
			t.Fatal("hover data missing")
		}
	}
	if moon := scatterNamed(t, fig, "Moon"); len(moon.CustomData) != 50 {
		t.Fatal("hover data not attached")
	}
	L1 := scatterNamed(t, fig, "L1 (approx)")
	L2 := scatterNamed(t, fig, "L2 (approx)")
	if L1.Marker.Color != "green" || L2.Marker.Color != "red" {
		t.Fatal("Lagrange colors not applied")
	}
	if !scalar.EqualWithinAbs(L1.X[0], 384400-61274, 1) || !scalar.EqualWithinAbs(L2.X[0], 384400+61274, 1) {
		t.Fatalf("L1 at %f, L2 at %f", L1.X[0], L2.X[0])
	}
	if eml2 := scatterNamed(t, fig, "EML2"); !scalar.EqualWithinAbs(eml2.X[0], 384400+61274, 1) {
		t.Fatalf("EML2 at %f", eml2.X[0])
	}
	if track := scatterNamed(t, fig, "L2 (estimated range)"); len(track.X) != 50 || track.Line.Width != 1 {
		t.Fatal("Hill track not sampled at every epoch")
	}
	scatterNamed(t, fig, "L2 (mean)")
	l4 := scatterNamed(t, fig, "L4")
	if !scalar.EqualWithinAbs(r3.Norm(r3.Vec{X: l4.X[0], Y: l4.Y[0], Z: l4.Z[0]}), 384400, 1e-3) {
		t.Fatal("L4 not at the distance of the Moon")
	}
	if l5 := scatterNamed(t, fig, "L5 (estimated)"); l5.Line.Dash != "dash" {
		t.Fatal("L5 not dashed")
	}
	if m := scatterNamed(t, fig, "Spacecraft, mean"); m.Text[0] != "Spacecraft" {
		t.Fatal("mean marker not labeled")
	}
	if c := scatterNamed(t, fig, "MOON orbit (1 cycle)"); len(c.X) != 10 || c.Line.Color != "gray" {
		t.Fatal("cycle not sampled")
	}
	if ic := scatterNamed(t, fig, "Moon on Jan 5"); ic.Marker.Color != "gray" || !scalar.EqualWithinAbs(ic.X[0], 384400, 1e-6) {
		t.Fatalf("intercept %+v", ic)
	}
	if north := scatterNamed(t, fig, "north"); north.Mode != "lines+text" {
		t.Fatal("line text not shown")
	}
	if fig.Layout.Scene.XAxis.AutoRange != "reversed" || fig.Layout.Scene.Camera.Eye.Z != 3 || fig.Layout.Width != 800 {
		t.Fatalf("layout %+v", fig.Layout)
	}
}

func TestBuildErrors(t *testing.T) {
	sc := keplerScenario()
	sc.Kernels.CoverageBody = "MARS"
	if _, err := Build(context.Background(), sc, newTestKepler(t), nil, nil); !errors.Is(err, ErrNoCoverage) {
		t.Fatalf("expected ErrNoCoverage, got %v", err)
	}
	sc = keplerScenario()
	sc.Kernels.Files = []string{filepath.Join(t.TempDir(), "naif0012.tls")}
	if _, err := Build(context.Background(), sc, newTestKepler(t), nil, nil); !errors.Is(err, ErrKernelNotFound) {
		t.Fatalf("expected ErrKernelNotFound, got %v", err)
	}
	sc = keplerScenario()
	sc.Kernels.End = "1999-12-01T00:00:00"
	if _, err := Build(context.Background(), sc, newTestKepler(t), nil, nil); err == nil {
		t.Fatal("window ending before its start accepted")
	}
	sc = keplerScenario()
	sc.Bodies = append(sc.Bodies, BodyConf{ID: "VESTA"})
	if _, err := Build(context.Background(), sc, newTestKepler(t), nil, nil); !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("expected ErrUnknownBody, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, keplerScenario(), newTestKepler(t), nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type recordingViewer struct{ fig *Figure }

func (r *recordingViewer) Show(ctx context.Context, fig *Figure) error {
	r.fig = fig
	return nil
}

func TestRunInteractive(t *testing.T) {
	v := &recordingViewer{}
	sc := keplerScenario()
	sc.General.OutputDir = filepath.Join(t.TempDir(), "docs")
	fig, err := Run(context.Background(), sc, newTestKepler(t), RunOptions{Viewer: v})
	if err != nil {
		t.Fatal(err)
	}
	if v.fig != fig {
		t.Fatal("figure not shown")
	}
	if _, err := os.Stat(sc.General.OutputDir); !os.IsNotExist(err) {
		t.Fatal("interactive run exported files")
	}
}

func TestRunStaticKeplerDemo(t *testing.T) {
	sc, err := LoadScenario("scenarios/kepler_demo.toml")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	sc.General.OutputDir = filepath.Join(dir, "docs")
	sc.General.PNG = "kepler_demo.png"
	sc.Metrics.Textfile = filepath.Join(dir, "kepler_demo.prom")
	eph, err := OpenEphemeris(sc.Ephemeris, log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer eph.Close()
	raster := &failingRasterizer{}
	fig, err := Run(context.Background(), sc, eph, RunOptions{Static: true, Rasterizer: raster, Metrics: NewMetrics()})
	if err != nil {
		t.Fatal(err)
	}
	if raster.calls != 1 {
		t.Fatal("PNG not attempted")
	}
	for _, name := range []string{"kepler_demo.html", "samples-Spacecraft_(Moon-centric_rotating).csv", "catalog-kepler_demo.json"} {
		info, err := os.Stat(filepath.Join(sc.General.OutputDir, name))
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", name)
		}
	}
	prom, err := os.ReadFile(sc.Metrics.Textfile)
	if err != nil {
		t.Fatal(err)
	}
	// Plotted and unrotated states.
	if !strings.Contains(string(prom), `halorbits_samples_total{body="-1000"} 2000`) {
		t.Fatalf("unexpected metrics:\n%s", prom)
	}
	catalog, err := os.ReadFile(filepath.Join(sc.General.OutputDir, "catalog-kepler_demo.json"))
	if err != nil {
		t.Fatal(err)
	}
	var c CgCatalog
	if err := json.Unmarshal(catalog, &c); err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 1 || c.Items[0].Center != "EARTH" || c.Items[0].TrajectoryFrame != "ICRF" {
		t.Fatalf("catalog %s", &c)
	}
	data, err := os.ReadFile(filepath.Join(sc.General.OutputDir, c.Items[0].Trajectory.Source))
	if err != nil {
		t.Fatal(err)
	}
	states, err := ParseInterpolatedStates(string(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 1000 {
		t.Fatalf("%d states", len(states))
	}
	for _, i := range []int{0, 500, 999} {
		et := Epoch((states[i].JD - J2000) * SecondsPerDay)
		want, err := eph.State("-1000", et, "J2000", "EARTH")
		if err != nil {
			t.Fatal(err)
		}
		st := states[i]
		if !scalar.EqualWithinRel(r3.Norm(r3.Vec{X: st.Position[0], Y: st.Position[1], Z: st.Position[2]}), r3.Norm(want.R), 1e-4) {
			t.Fatalf("state %d is not about the Earth in ICRF: %s", i, st.ToText())
		}
		if !scalar.EqualWithinRel(r3.Norm(r3.Vec{X: st.Velocity[0], Y: st.Velocity[1], Z: st.Velocity[2]}), r3.Norm(want.V), 1e-3) {
			t.Fatalf("velocity of state %d: %s", i, st.ToText())
		}
	}
	// The Moon is at the origin and L2 beyond it, away from the Earth.
	L2 := scatterNamed(t, fig, "L2 (approx)")
	if L2.X[0] <= 0 || !scalar.EqualWithinRel(r3.Norm(r3.Vec{X: L2.X[0], Y: L2.Y[0], Z: L2.Z[0]}), 61274, 1e-3) {
		t.Fatalf("L2 at %f %f %f", L2.X[0], L2.Y[0], L2.Z[0])
	}
}
