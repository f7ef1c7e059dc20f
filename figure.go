package halorbits

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Figure is a 3-D Plotly figure. It marshals to the JSON expected by Plotly.newPlot.
type Figure struct {
	Data   []interface{} `json:"data"`
	Layout Layout        `json:"layout"`
}

// Line is a poly-line trace style.
type Line struct {
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
	Dash  string  `json:"dash,omitempty"`
}

// Marker is a point trace style.
type Marker struct {
	Color  string  `json:"color,omitempty"`
	Size   float64 `json:"size,omitempty"`
	Symbol string  `json:"symbol,omitempty"`
}

// Scatter3D is a scatter3d trace, used for lines and markers.
type Scatter3D struct {
	Type          string          `json:"type"`
	Name          string          `json:"name,omitempty"`
	Mode          string          `json:"mode"`
	X             []float64       `json:"x"`
	Y             []float64       `json:"y"`
	Z             []float64       `json:"z"`
	Text          []string        `json:"text,omitempty"`
	TextPosition  string          `json:"textposition,omitempty"`
	Line          *Line           `json:"line,omitempty"`
	Marker        *Marker         `json:"marker,omitempty"`
	CustomData    [][]interface{} `json:"customdata,omitempty"`
	HoverTemplate string          `json:"hovertemplate,omitempty"`
}

// Surface is a surface trace, used for spheres.
type Surface struct {
	Type       string      `json:"type"`
	Name       string      `json:"name,omitempty"`
	X          [][]float64 `json:"x"`
	Y          [][]float64 `json:"y"`
	Z          [][]float64 `json:"z"`
	ColorScale [][]string  `json:"colorscale"`
	ShowScale  bool        `json:"showscale"`
	Opacity    float64     `json:"opacity"`
	ShowLegend bool        `json:"showlegend"`
}

// Title is a Plotly title.
type Title struct {
	Text string `json:"text"`
}

// Axis is a scene axis.
type Axis struct {
	Title     Title     `json:"title"`
	Range     []float64 `json:"range,omitempty"`
	AutoRange string    `json:"autorange,omitempty"`
}

// Eye is the camera position.
type Eye struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Camera of the scene.
type Camera struct {
	Eye Eye `json:"eye"`
}

// Scene is the 3-D scene layout.
type Scene struct {
	XAxis      Axis    `json:"xaxis"`
	YAxis      Axis    `json:"yaxis"`
	ZAxis      Axis    `json:"zaxis"`
	AspectMode string  `json:"aspectmode"`
	Camera     *Camera `json:"camera,omitempty"`
}

// Layout is the figure layout.
type Layout struct {
	Title  Title `json:"title"`
	Scene  Scene `json:"scene"`
	Width  int   `json:"width,omitempty"`
	Height int   `json:"height,omitempty"`
}

// NewFigure returns an empty figure with the axis titles and the data aspect ratio.
func NewFigure(title, xTitle, yTitle, zTitle string) *Figure {
	return &Figure{
		Data: []interface{}{},
		Layout: Layout{
			Title: Title{title},
			Scene: Scene{XAxis: Axis{Title: Title{xTitle}}, YAxis: Axis{Title: Title{yTitle}}, ZAxis: Axis{Title: Title{zTitle}}, AspectMode: "data"},
		},
	}
}

// AddLines adds the trace as a poly-line.
func (f *Figure) AddLines(name string, pts []r3.Vec, style Line) *Scatter3D {
	x, y, z := split(pts)
	s := &Scatter3D{Type: "scatter3d", Name: name, Mode: "lines", X: x, Y: y, Z: z, Line: &style}
	f.Data = append(f.Data, s)
	return s
}

// AddMarkers adds points, with optional text labels displayed next to them.
func (f *Figure) AddMarkers(name string, pts []r3.Vec, style Marker, text ...string) *Scatter3D {
	x, y, z := split(pts)
	s := &Scatter3D{Type: "scatter3d", Name: name, Mode: "markers", X: x, Y: y, Z: z, Marker: &style}
	if len(text) > 0 {
		s.Mode = "markers+text"
		s.Text = text
		s.TextPosition = "top center"
	}
	f.Data = append(f.Data, s)
	return s
}

// AddSphere adds a sphere surface of the provided radius.
func (f *Figure) AddSphere(name string, center r3.Vec, radius float64, color string) *Surface {
	const nu, nv = 40, 20
	s := &Surface{Type: "surface", Name: name, ColorScale: [][]string{{"0", color}, {"1", color}}, Opacity: 0.8}
	s.X, s.Y, s.Z = make([][]float64, nu), make([][]float64, nu), make([][]float64, nu)
	for i := 0; i < nu; i++ {
		u := 2 * math.Pi * float64(i) / float64(nu-1)
		su, cu := math.Sincos(u)
		s.X[i], s.Y[i], s.Z[i] = make([]float64, nv), make([]float64, nv), make([]float64, nv)
		for j := 0; j < nv; j++ {
			v := math.Pi * float64(j) / float64(nv-1)
			sv, cv := math.Sincos(v)
			s.X[i][j] = center.X + radius*cu*sv
			s.Y[i][j] = center.Y + radius*su*sv
			s.Z[i][j] = center.Z + radius*cv
		}
	}
	f.Data = append(f.Data, s)
	return s
}

// SetHover attaches per-sample UTC and speed to the trace, shown by the hover template.
func (s *Scatter3D) SetHover(samples []Sample, speedLabel, coordFormat string) {
	if speedLabel == "" {
		speedLabel = "Speed (km/s)"
	}
	if coordFormat == "" {
		coordFormat = ".7s"
	}
	s.CustomData = make([][]interface{}, len(samples))
	for i, smp := range samples {
		s.CustomData[i] = []interface{}{smp.UTC, smp.Speed}
	}
	s.HoverTemplate = "UTC: %{customdata[0]}<br>" +
		speedLabel + ": %{customdata[1]:.3f}<br>" +
		"x: %{x:" + coordFormat + "} km<br>" +
		"y: %{y:" + coordFormat + "} km<br>" +
		"z: %{z:" + coordFormat + "} km<extra></extra>"
}

func split(pts []r3.Vec) (x, y, z []float64) {
	x = make([]float64, len(pts))
	y = make([]float64, len(pts))
	z = make([]float64, len(pts))
	for i, p := range pts {
		x[i], y[i], z[i] = p.X, p.Y, p.Z
	}
	return
}
