package halorbits

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// CgCatalog definition.
type CgCatalog struct {
	Version string     `json:"version"`
	Name    string     `json:"name"`
	Items   []*CgItems `json:"items"`
	Require []string   `json:"require,omitempty"`
}

func (c *CgCatalog) String() string {
	return c.Name + "(" + c.Version + ")"
}

// CgItems definition.
type CgItems struct {
	Class           string            `json:"class"`
	Name            string            `json:"name"`
	StartTime       string            `json:"startTime"`
	EndTime         string            `json:"endTime"`
	Center          string            `json:"center"`
	TrajectoryFrame string            `json:"trajectoryFrame"`
	Trajectory      *CgTrajectory     `json:"trajectory,omitempty"`
	Label           *CgLabel          `json:"label,omitempty"`
	TrajectoryPlot  *CgTrajectoryPlot `json:"trajectoryPlot,omitempty"`
}

// CgTrajectory definition.
type CgTrajectory struct {
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
}

// Validate validates a CgTrajectory.
func (t *CgTrajectory) Validate() error {
	if t.Type != "InterpolatedStates" || !strings.HasSuffix(t.Source, "xyzv") {
		return errors.New("only InterpolatedStates are currently supported in Cosmographia trajectory types")
	}
	return nil
}

func (t *CgTrajectory) String() string {
	return t.Source + " as " + t.Type
}

// CgLabel definition.
type CgLabel struct {
	Color    []float64 `json:"color,omitempty"`
	FadeSize int       `json:"fadeSize,omitempty"`
	ShowText bool      `json:"showText,omitempty"`
}

// CgTrajectoryPlot definition.
type CgTrajectoryPlot struct {
	Color       []float64 `json:"color,omitempty"`
	LineWidth   int       `json:"lineWidth,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Lead        string    `json:"lead,omitempty"`
	Fade        int       `json:"fade,omitempty"`
	SampleCount int       `json:"sampleCount,omitempty"`
}

// CgInterpolatedState definition.
type CgInterpolatedState struct {
	JD       float64
	Position [3]float64
	Velocity [3]float64
}

// FromText initializes from text.
// The `record` parameter must be an array of seven items.
func (i *CgInterpolatedState) FromText(record []string) error {
	if len(record) != 7 {
		return fmt.Errorf("expected 7 fields, got %d", len(record))
	}
	vals := make([]float64, 7)
	for j, field := range record {
		val, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return err
		}
		vals[j] = val
	}
	i.JD = vals[0]
	copy(i.Position[:], vals[1:4])
	copy(i.Velocity[:], vals[4:])
	return nil
}

// ToText returns the record as a space separated line.
func (i *CgInterpolatedState) ToText() string {
	return fmt.Sprintf("%f %f %f %f %f %f %f", i.JD, i.Position[0], i.Position[1], i.Position[2], i.Velocity[0], i.Velocity[1], i.Velocity[2])
}

// ParseInterpolatedStates takes a string and converts that into a CgInterpolatedState.
func ParseInterpolatedStates(s string) ([]*CgInterpolatedState, error) {
	var states = []*CgInterpolatedState{}
	r := csv.NewReader(strings.NewReader(s))
	r.Comma = ' '
	r.Comment = '#'
	for {
		record, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		state := CgInterpolatedState{}
		if err := state.FromText(record); err != nil {
			return nil, err
		}
		states = append(states, &state)
	}
	return states, nil
}

// cgFrame returns the Cosmographia name of the frame.
func cgFrame(frame string) string {
	switch strings.ToUpper(frame) {
	case "J2000", "ICRF":
		return "ICRF"
	case "ECLIPJ2000":
		return "EclipticJ2000"
	}
	return frame
}

// Rasterizer renders a figure to a raster image.
type Rasterizer interface {
	Rasterize(ctx context.Context, fig *Figure, path string, width, height int) error
}

// KaleidoRasterizer renders PNG images with plotly and kaleido in a python interpreter.
type KaleidoRasterizer struct {
	Python string
}

const kaleidoScript = `import sys, plotly.io as pio
fig = pio.from_json(sys.stdin.read())
fig.write_image(sys.argv[1], width=int(sys.argv[2]), height=int(sys.argv[3]))
`

// Rasterize implements the Rasterizer interface.
func (k KaleidoRasterizer) Rasterize(ctx context.Context, fig *Figure, path string, width, height int) error {
	python := k.Python
	if python == "" {
		python = "python3"
	}
	figJSON, err := json.Marshal(fig)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, python, "-c", kaleidoScript, path, strconv.Itoa(width), strconv.Itoa(height))
	cmd.Stdin = bytes.NewReader(figJSON)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="https://cdn.plot.ly/plotly-2.35.2.min.js" charset="utf-8"></script>
</head>
<body>
<div id="figure" style="width:100%;height:95vh;"></div>
<script>
var fig = {{.Figure}};
Plotly.newPlot("figure", fig.data, fig.layout, {responsive: true});
</script>
</body>
</html>
`))

// WriteHTML writes the figure as a self-contained HTML page. Plotly itself is loaded from its CDN.
func WriteHTML(w io.Writer, fig *Figure) error {
	return pageTemplate.Execute(w, struct {
		Title  string
		Figure *Figure
	}{fig.Layout.Title.Text, fig})
}

// ExportConfig configures the exporting of a run.
type ExportConfig struct {
	Dir    string
	HTML   string // File name of the HTML page
	PNG    string // File name of the raster preview, skipped if empty
	CSV    bool   // Write one CSV file per trace
	Cosmo  bool   // Write a Cosmographia catalog
	Width  int
	Height int
	Name   string
	Center string
	Frame  string
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return c.HTML == "" && c.PNG == "" && !c.CSV && !c.Cosmo
}

// Exporter writes the figure and the traces of a run.
type Exporter struct {
	ExportConfig
	// States are the unrotated states with velocity, in Frame about Center, written for Cosmographia.
	States     []Trace
	Rasterizer Rasterizer
	Logger     log.Logger
	Metrics    *Metrics
}

// Export creates the output directory and writes the HTML page, then the optional CSV and Cosmographia files,
// then the PNG preview. A failure of the rasterizer is only logged as a warning.
func (e Exporter) Export(ctx context.Context, fig *Figure, traces []Trace) error {
	logger := e.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "subsys", "export")
	if e.IsUseless() {
		level.Warn(logger).Log("msg", "nothing to export")
		return nil
	}
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return err
	}
	if e.HTML != "" {
		path := filepath.Join(e.Dir, e.HTML)
		if err := writeFile(path, func(w io.Writer) error { return WriteHTML(w, fig) }); err != nil {
			e.count("html", err)
			return err
		}
		e.count("html", nil)
		level.Info(logger).Log("msg", "saved", "file", path)
	}
	if e.CSV {
		names := fileNames(traces)
		for i, t := range traces {
			path := filepath.Join(e.Dir, fmt.Sprintf("samples-%s.csv", names[i]))
			if err := writeFile(path, func(w io.Writer) error { return WriteCSV(w, t) }); err != nil {
				e.count("csv", err)
				return err
			}
			e.count("csv", nil)
			level.Info(logger).Log("msg", "saved", "file", path)
		}
	}
	if e.Cosmo {
		if err := e.writeCosmographia(e.States, logger); err != nil {
			e.count("cosmo", err)
			return err
		}
		e.count("cosmo", nil)
	}
	if e.PNG != "" {
		path := filepath.Join(e.Dir, e.PNG)
		if e.Rasterizer == nil {
			level.Warn(logger).Log("msg", "PNG export skipped", "err", "no rasterizer")
		} else if err := e.Rasterizer.Rasterize(ctx, fig, path, e.width(), e.height()); err != nil {
			e.count("png", err)
			level.Warn(logger).Log("msg", "PNG export skipped", "err", err)
		} else {
			e.count("png", nil)
			level.Info(logger).Log("msg", "saved", "file", path)
		}
	}
	return nil
}

func (e Exporter) width() int {
	if e.Width <= 0 {
		return 1280
	}
	return e.Width
}

func (e Exporter) height() int {
	if e.Height <= 0 {
		return 600
	}
	return e.Height
}

func (e Exporter) count(format string, err error) {
	if e.Metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.Metrics.Exports.WithLabelValues(format, status).Inc()
}

// writeCosmographia writes one interpolated states file per trace and the catalog referencing them.
func (e Exporter) writeCosmographia(traces []Trace, logger log.Logger) error {
	ts := DefaultTimeScale()
	color := []float64{0.6, 1, 1}
	items := []*CgItems{}
	names := fileNames(traces)
	for i, t := range traces {
		if len(t.Samples) == 0 {
			continue
		}
		if t.Samples[0].Velocity == nil {
			return fmt.Errorf("states of %s have no velocity", t.Name)
		}
		source := fmt.Sprintf("traj-%s.xyzv", names[i])
		path := filepath.Join(e.Dir, source)
		if err := writeFile(path, func(w io.Writer) error { return writeInterpolatedStates(w, t, ts) }); err != nil {
			return err
		}
		level.Info(logger).Log("msg", "saved", "file", path)
		first, last := t.Samples[0].Epoch, t.Samples[len(t.Samples)-1].Epoch
		traj := CgTrajectory{Type: "InterpolatedStates", Source: source}
		itemColor := append([]float64(nil), color...)
		label := CgLabel{Color: itemColor, FadeSize: 1000000, ShowText: true}
		plot := CgTrajectoryPlot{Color: itemColor, LineWidth: 1, Duration: fmt.Sprintf("%d d", int(float64(last-first)/SecondsPerDay+1)), Lead: "0 d", SampleCount: 10}
		items = append(items, &CgItems{
			Class:           "spacecraft",
			Name:            t.Name,
			StartTime:       ts.FromET(first).Format(time.RFC3339),
			EndTime:         ts.FromET(last).Format(time.RFC3339),
			Center:          e.Center,
			TrajectoryFrame: cgFrame(e.Frame),
			Trajectory:      &traj,
			Label:           &label,
			TrajectoryPlot:  &plot,
		})
		// Change the color for the next trace.
		for i := 0; i < 3; i++ {
			color[i] -= 0.2
			if color[i] < 0 {
				color[i]++
			}
		}
	}
	c := CgCatalog{Version: "1.0", Name: e.Name, Items: items}
	path := filepath.Join(e.Dir, fmt.Sprintf("catalog-%s.json", fileSafe(e.Name)))
	if err := writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}); err != nil {
		return err
	}
	level.Info(logger).Log("msg", "saved", "file", path)
	return nil
}

func writeInterpolatedStates(w io.Writer, t Trace, ts *TimeScale) error {
	if _, err := fmt.Fprintf(w, `# Creation date (UTC): %s
# Records are <jd> <x> <y> <z> <vel x> <vel y> <vel z>
#   Time is a TDB Julian date
#   Position in km
#   Velocity in km/sec
#   Start time (UTC): %s`, time.Now().UTC(), FormatUTC(ts.FromET(t.Samples[0].Epoch))); err != nil {
		return err
	}
	for _, s := range t.Samples {
		st := CgInterpolatedState{JD: s.Epoch.JDE(), Position: [3]float64{s.Position.X, s.Position.Y, s.Position.Z}}
		if s.Velocity != nil {
			st.Velocity = [3]float64{s.Velocity.X, s.Velocity.Y, s.Velocity.Z}
		}
		if _, err := io.WriteString(w, "\n"+st.ToText()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteCSV writes the samples of the trace as CSV.
func WriteCSV(w io.Writer, t Trace) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"utc", "et", "x", "y", "z", "vx", "vy", "vz", "speed"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, s := range t.Samples {
		record := []string{s.UTC, f(float64(s.Epoch)), f(s.Position.X), f(s.Position.Y), f(s.Position.Z), "", "", "", ""}
		if s.Velocity != nil {
			record[5], record[6], record[7], record[8] = f(s.Velocity.X), f(s.Velocity.Y), f(s.Velocity.Z), f(s.Speed)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// fileSafe replaces the characters which are not welcome in file names.
// fileNames returns a distinct file safe name per trace. Repeated names get a numeric suffix.
func fileNames(traces []Trace) []string {
	names := make([]string, len(traces))
	seen := make(map[string]bool, len(traces))
	for i, t := range traces {
		name := fileSafe(t.Name)
		for n := 2; seen[name]; n++ {
			name = fmt.Sprintf("%s-%d", fileSafe(t.Name), n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

func fileSafe(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
