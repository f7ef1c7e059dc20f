package halorbits

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// RunOptions are the collaborators of a run.
type RunOptions struct {
	Static     bool // Export to files instead of opening the interactive viewer
	Logger     log.Logger
	Rasterizer Rasterizer
	Viewer     Viewer
	Metrics    *Metrics
}

// Plot is a built scenario.
type Plot struct {
	Figure *Figure
	Window Window
	Epochs []Epoch
	Traces []Trace // Plotted body traces, after filtering
	States []Trace // Unrotated body states with velocity, only sampled for the Cosmographia export
}

// Run builds the scenario, then either exports it or shows it.
func Run(ctx context.Context, sc Scenario, eph Ephemeris, opts RunOptions) (*Figure, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	eph = Instrument(eph, opts.Metrics)
	plot, err := Build(ctx, sc, eph, logger, opts.Metrics)
	if err != nil {
		return nil, err
	}
	if opts.Static {
		exp := Exporter{
			ExportConfig: ExportConfig{
				Dir:    sc.General.OutputDir,
				HTML:   sc.General.HTML,
				PNG:    sc.General.PNG,
				CSV:    sc.General.CSV,
				Cosmo:  sc.General.Cosmo,
				Width:  sc.General.Width,
				Height: sc.General.Height,
				Name:   sc.General.Name,
				Center: sc.Frame.Center,
				Frame:  sc.Frame.Name,
			},
			States:     plot.States,
			Rasterizer: opts.Rasterizer,
			Logger:     logger,
			Metrics:    opts.Metrics,
		}
		if err := exp.Export(ctx, plot.Figure, plot.Traces); err != nil {
			return nil, err
		}
	} else {
		viewer := opts.Viewer
		if viewer == nil {
			viewer = BrowserViewer{Logger: logger}
		}
		if err := viewer.Show(ctx, plot.Figure); err != nil {
			return nil, err
		}
	}
	if opts.Metrics != nil && sc.Metrics.Textfile != "" {
		if err := opts.Metrics.WriteTextfile(sc.Metrics.Textfile); err != nil {
			level.Warn(logger).Log("subsys", "metrics", "msg", "could not write textfile", "err", err)
		}
	}
	return plot.Figure, nil
}

// builder holds the state of one scenario build.
type builder struct {
	ctx     context.Context
	sc      Scenario
	eph     Ephemeris
	logger  log.Logger
	metrics *Metrics
	sampler Sampler
	fig     *Figure
	window  Window
	epochs  []Epoch
	mid     Epoch
	traces  map[string]Trace  // Unfiltered traces over the run epochs, by body key
	colors  map[string]string // Trace colors, by body key
	plotted []Trace
	states  []Trace
}

// Build loads the kernels, resolves the window, samples every body and assembles the figure.
func Build(ctx context.Context, sc Scenario, eph Ephemeris, logger log.Logger, metrics *Metrics) (*Plot, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	b := &builder{
		ctx:     ctx,
		sc:      sc,
		eph:     eph,
		logger:  log.With(logger, "subsys", "pipeline"),
		metrics: metrics,
		traces:  make(map[string]Trace),
		colors:  make(map[string]string),
	}
	steps := []func() error{b.load, b.resolveWindow, b.buildEpochs, b.sampleBodies, b.sampleStates, b.addSpheres,
		b.addMarkers, b.addLines, b.addDerived, b.addIntercepts}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(); err != nil {
			return nil, err
		}
	}
	b.layout()
	return &Plot{Figure: b.fig, Window: b.window, Epochs: b.epochs, Traces: b.plotted, States: b.states}, nil
}

func (b *builder) load() error {
	if err := LoadKernels(b.eph, b.sc.Kernels.Files); err != nil {
		return err
	}
	level.Info(b.logger).Log("msg", "kernels loaded", "count", len(b.sc.Kernels.Files))
	var transform FrameTransform
	if rot := b.sc.Frame.Rotating; rot != nil {
		transform = NewRotatingTransform(Body(rot.Reference), Body(b.sc.Frame.Center), b.sc.Frame.Name, rot.Origin)
	}
	b.sampler = Sampler{
		Eph:       b.eph,
		Frame:     b.sc.Frame.Name,
		Center:    Body(b.sc.Frame.Center),
		Transform: transform,
		Workers:   b.sc.General.Workers,
		Logger:    b.logger,
		Metrics:   b.metrics,
	}
	return nil
}

func (b *builder) resolveWindow() error {
	k := b.sc.Kernels
	if k.CoverageBody != "" {
		w, err := b.eph.Coverage(k.Coverage, Body(k.CoverageBody))
		if err != nil {
			return fmt.Errorf("coverage of %s: %w", k.CoverageBody, err)
		}
		b.window = w
	}
	for _, override := range []struct {
		utc string
		et  *Epoch
	}{{k.Start, &b.window.Start}, {k.End, &b.window.End}} {
		if override.utc == "" {
			continue
		}
		et, err := b.eph.UTC2ET(override.utc)
		if err != nil {
			return err
		}
		*override.et = et
	}
	if b.window.End < b.window.Start {
		return fmt.Errorf("window ends before it starts")
	}
	start, err := b.eph.ET2UTC(b.window.Start)
	if err != nil {
		return err
	}
	end, err := b.eph.ET2UTC(b.window.End)
	if err != nil {
		return err
	}
	level.Info(b.logger).Log("msg", "window", "Coverage start (UTC)", start, "Coverage end (UTC)", end,
		"days", b.window.Duration()/SecondsPerDay)
	title := strings.ReplaceAll(b.sc.General.Title, "{end}", end)
	b.fig = NewFigure(title, b.sc.Layout.XTitle, b.sc.Layout.YTitle, b.sc.Layout.ZTitle)
	return nil
}

func (b *builder) buildEpochs() error {
	epochs, err := b.sc.Sampling.Epochs(b.window)
	if err != nil {
		return err
	}
	if len(epochs) == 0 {
		return errors.New("the sampling policy produced no epochs")
	}
	b.epochs = epochs
	b.mid = 0.5 * (epochs[0] + epochs[len(epochs)-1])
	level.Info(b.logger).Log("msg", "sampling", "policy", b.sc.Sampling.Kind, "Total samples", len(epochs))
	return nil
}

// bodyKey identifies a body independently of its spelling.
func bodyKey(b Body) string {
	if id, err := NAIFID(b); err == nil {
		return strconv.Itoa(id)
	}
	return strings.ToUpper(strings.TrimSpace(string(b)))
}

// trace returns the unfiltered trace of the body over the run epochs, sampling it on first use.
func (b *builder) trace(body Body, hover bool) (Trace, error) {
	key := bodyKey(body)
	if t, found := b.traces[key]; found && (!hover || (len(t.Samples) > 0 && t.Samples[0].Velocity != nil)) {
		return t, nil
	}
	s := b.sampler
	s.Velocity, s.Labels = hover, hover
	t, err := s.Sample(body, b.epochs)
	if err != nil {
		return Trace{}, err
	}
	b.traces[key] = t
	return t, nil
}

func (b *builder) sampleBodies() error {
	for _, bc := range b.sc.Bodies {
		if err := b.ctx.Err(); err != nil {
			return err
		}
		t, err := b.trace(Body(bc.ID), bc.Hover)
		if err != nil {
			return err
		}
		t.Name = label(bc.Label, bc.ID)
		if bc.Filter != nil {
			var dropped int
			t, dropped = bc.Filter.Apply(t)
			if b.metrics != nil {
				b.metrics.Filtered.WithLabelValues(bc.ID).Add(float64(dropped))
			}
			level.Debug(b.logger).Log("msg", "filtered", "body", bc.ID, "dropped", dropped)
		}
		s := b.fig.AddLines(t.Name, t.Positions(), Line{Color: bc.Color, Width: bc.Width, Dash: bc.Dash})
		if bc.Hover {
			s.SetHover(t.Samples, b.sc.Layout.SpeedLabel, b.sc.Layout.CoordFormat)
		}
		if bc.Color != "" {
			b.colors[bodyKey(Body(bc.ID))] = bc.Color
		}
		b.plotted = append(b.plotted, t)
	}
	return nil
}

// sampleStates samples the bodies in the query frame about its center, without the rotating transform,
// so that the Cosmographia catalog describes the written coordinates.
func (b *builder) sampleStates() error {
	if !b.sc.General.Cosmo {
		return nil
	}
	s := b.sampler
	s.Transform, s.Velocity, s.Labels = nil, true, false
	for _, bc := range b.sc.Bodies {
		if err := b.ctx.Err(); err != nil {
			return err
		}
		t, err := s.Sample(Body(bc.ID), b.epochs)
		if err != nil {
			return err
		}
		t.Name = label(bc.Label, bc.ID)
		b.states = append(b.states, t)
	}
	return nil
}

// at returns the plotted position of the body at the provided epoch.
func (b *builder) at(body Body, et Epoch) (r3.Vec, error) {
	s, err := b.sampler.sampleOne(body, et)
	if err != nil {
		return r3.Vec{}, fmt.Errorf("%s: %w", body, err)
	}
	return s.Position, nil
}

func (b *builder) addSpheres() error {
	for _, sc := range b.sc.Spheres {
		radius := sc.Radius
		if radius <= 0 {
			obj, err := CelestialObjectFromString(sc.Body)
			if err != nil {
				return fmt.Errorf("sphere radius: %w", err)
			}
			radius = obj.Radius
		}
		var center r3.Vec
		if sc.At == "mid" {
			var err error
			if center, err = b.at(Body(sc.Body), b.mid); err != nil {
				return err
			}
		}
		b.fig.AddSphere(label(sc.Label, sc.Body), center, radius, sc.Color)
	}
	return nil
}

func (b *builder) addMarkers() error {
	for _, m := range b.sc.Markers {
		text := []string{}
		if m.Text != "" {
			text = append(text, m.Text)
		}
		b.fig.AddMarkers(m.Label, []r3.Vec{vec(m.Position)}, Marker{Color: m.Color, Size: size(m.Size)}, text...)
	}
	return nil
}

func (b *builder) addLines() error {
	for _, l := range b.sc.Lines {
		pts := make([]r3.Vec, len(l.Points))
		for i, p := range l.Points {
			pts[i] = vec(p)
		}
		s := b.fig.AddLines(l.Label, pts, Line{Color: l.Color, Width: l.Width})
		if len(l.Text) > 0 {
			s.Mode = "lines+text"
			s.Text = l.Text
		}
	}
	return nil
}

func (b *builder) addIntercepts() error {
	for _, ic := range b.sc.Intercepts {
		et, err := b.eph.UTC2ET(ic.UTC)
		if err != nil {
			return fmt.Errorf("intercept %s: %w", ic.Label, err)
		}
		pos, err := b.at(Body(ic.Body), et)
		if err != nil {
			return fmt.Errorf("intercept %s: %w", ic.Label, err)
		}
		color := ic.Color
		if color == "" {
			if color = b.colors[bodyKey(Body(ic.Body))]; color == "" {
				color = "black"
			}
		}
		name := label(ic.Label, ic.Body+" "+ic.UTC)
		b.fig.AddMarkers(name, []r3.Vec{pos}, Marker{Color: color, Size: 6, Symbol: "circle"}, name)
	}
	return nil
}

func (b *builder) addDerived() error {
	for _, d := range b.sc.Derived {
		var err error
		switch d.Kind {
		case DerivedHillStatic, DerivedCR3BP:
			err = b.hillStatic(d)
		case DerivedHillTrack:
			err = b.hillTrack(d)
		case DerivedTriangular:
			err = b.triangular(d)
		case DerivedMean:
			err = b.meanMarker(d)
		case DerivedCycle:
			err = b.cycle(d)
		default:
			err = fmt.Errorf("unknown derived kind `%s`", d.Kind)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", d.Kind, err)
		}
	}
	return nil
}

// hillDistance returns the distance from the small body to its L1/L2 points at the provided epoch.
func (b *builder) hillDistance(d DerivedConf, et Epoch) (float64, error) {
	st, err := b.eph.State(Body(d.Large), et, b.sc.Frame.Name, Body(d.Small))
	if err != nil {
		return 0, err
	}
	R := r3.Norm(st.R)
	if d.MassRatio > 0 {
		return HillDistanceRatio(R, d.MassRatio), nil
	}
	gmLarge, gmSmall := d.GMLarge, d.GMSmall
	if gmLarge <= 0 {
		obj, err := CelestialObjectFromString(d.Large)
		if err != nil {
			return 0, err
		}
		gmLarge = obj.GM()
	}
	if gmSmall <= 0 {
		obj, err := CelestialObjectFromString(d.Small)
		if err != nil {
			return 0, err
		}
		gmSmall = obj.GM()
	}
	return HillDistance(R, gmSmall, gmLarge), nil
}

// collinear returns the plotted L1 and L2 points at the provided epoch.
func (b *builder) collinear(d DerivedConf, et Epoch) (L1, L2 r3.Vec, err error) {
	dist, err := b.hillDistance(d, et)
	if err != nil {
		return
	}
	small, err := b.at(Body(d.Small), et)
	if err != nil {
		return
	}
	large, err := b.at(Body(d.Large), et)
	if err != nil {
		return
	}
	L1, L2 = CollinearPointsAt(small, large, dist)
	return
}

func (b *builder) hillStatic(d DerivedConf) error {
	L1, L2, err := b.collinear(d, b.mid)
	if err != nil {
		return err
	}
	for i, p := range points(d, "L2") {
		pos := L2
		if p == "L1" {
			pos = L1
		}
		name := p + " (approx)"
		if d.Label != "" && len(d.Points) <= 1 {
			name = d.Label
		}
		b.fig.AddMarkers(name, []r3.Vec{pos}, Marker{Color: pick(d, i, "red"), Size: 6}, name)
		level.Debug(b.logger).Log("msg", "Lagrange point", "point", p, "x", pos.X, "y", pos.Y, "z", pos.Z)
	}
	return nil
}

func (b *builder) hillTrack(d DerivedConf) error {
	l1s, l2s := make([]r3.Vec, len(b.epochs)), make([]r3.Vec, len(b.epochs))
	dists := make([]float64, len(b.epochs))
	for i, et := range b.epochs {
		if err := b.ctx.Err(); err != nil {
			return err
		}
		L1, L2, err := b.collinear(d, et)
		if err != nil {
			return err
		}
		l1s[i], l2s[i] = L1, L2
		dists[i] = r3.Norm(r3.Sub(L2, L1)) / 2
	}
	level.Info(b.logger).Log("msg", "Hill distance", "min", floats.Min(dists), "max", floats.Max(dists))
	for i, p := range points(d, "L2") {
		pts := l2s
		if p == "L1" {
			pts = l1s
		}
		name := p + " (estimated range)"
		if d.Label != "" && len(d.Points) <= 1 {
			name = d.Label
		}
		c := pick(d, i, "red")
		b.fig.AddLines(name, pts, Line{Color: c, Width: width(d.Width, 1), Dash: d.Dash})
		b.fig.AddMarkers(p+" (mean)", []r3.Vec{mean(pts)}, Marker{Color: c, Size: 6}, p+" (mean)")
	}
	return nil
}

func (b *builder) triangular(d DerivedConf) error {
	t, err := b.trace(Body(d.Body), false)
	if err != nil {
		return err
	}
	axis := r3.Vec{Z: 1}
	if d.Axis != nil {
		axis = vec(d.Axis)
	}
	l4s, l5s := make([]r3.Vec, len(t.Samples)), make([]r3.Vec, len(t.Samples))
	for i, s := range t.Samples {
		l4s[i], l5s[i] = TriangularPoints(s.Position, axis)
	}
	defaults := []string{"green", "blue"}
	for i, p := range points(d, "L4", "L5") {
		pts := l4s
		if p == "L5" {
			pts = l5s
		}
		c := pick(d, i, defaults[i%2])
		b.fig.AddMarkers(p, []r3.Vec{mean(pts)}, Marker{Color: c, Size: 6}, p)
		dash := d.Dash
		if dash == "" {
			dash = "dash"
		}
		b.fig.AddLines(p+" (estimated)", pts, Line{Color: c, Width: width(d.Width, 2), Dash: dash})
	}
	return nil
}

func (b *builder) meanMarker(d DerivedConf) error {
	t, err := b.trace(Body(d.Body), false)
	if err != nil {
		return err
	}
	text := label(d.Label, d.Body)
	b.fig.AddMarkers(text+", mean", []r3.Vec{t.Mean()}, Marker{Color: pick(d, 0, "black"), Size: 6}, text)
	return nil
}

func (b *builder) cycle(d DerivedConf) error {
	half := Epoch(d.Span.Seconds() / 2)
	s := b.sampler
	t, err := s.Sample(Body(d.Body), Linspace(b.mid-half, b.mid+half, d.Count))
	if err != nil {
		return err
	}
	b.fig.AddLines(label(d.Label, d.Body+" orbit (1 cycle)"), t.Positions(),
		Line{Color: pick(d, 0, "gray"), Width: width(d.Width, 2), Dash: d.Dash})
	return nil
}

func (b *builder) layout() {
	l := b.sc.Layout
	scene := &b.fig.Layout.Scene
	scene.XAxis.Range, scene.YAxis.Range, scene.ZAxis.Range = l.XRange, l.YRange, l.ZRange
	if l.XReversed {
		scene.XAxis.AutoRange = "reversed"
	}
	if l.YReversed {
		scene.YAxis.AutoRange = "reversed"
	}
	if len(l.Camera) == 3 {
		scene.Camera = &Camera{Eye: Eye{X: l.Camera[0], Y: l.Camera[1], Z: l.Camera[2]}}
	}
	b.fig.Layout.Width, b.fig.Layout.Height = b.sc.General.Width, b.sc.General.Height
}

func label(l, fallback string) string {
	if l == "" {
		return fallback
	}
	return l
}

func points(d DerivedConf, defaults ...string) []string {
	if len(d.Points) == 0 {
		return defaults
	}
	return d.Points
}

func pick(d DerivedConf, i int, fallback string) string {
	if i < len(d.Colors) && d.Colors[i] != "" {
		return d.Colors[i]
	}
	return fallback
}

func width(w, fallback float64) float64 {
	if w <= 0 {
		return fallback
	}
	return w
}

func size(s float64) float64 {
	return width(s, 6)
}
