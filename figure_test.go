package halorbits

import (
	"encoding/json"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestFigureTraces(t *testing.T) {
	fig := NewFigure("Lucy", "x (km)", "y (km)", "z (km)")
	trace := testTrace("Lucy", 4)
	s := fig.AddLines("Lucy spacecraft", trace.Positions(), Line{Color: "black", Width: 2})
	s.SetHover(trace.Samples, "", "")
	m := fig.AddMarkers("L4", []r3.Vec{{X: 1}}, Marker{Color: "green", Size: 6}, "L4")
	fig.AddSphere("Sun", r3.Vec{X: 10}, 5, "yellow")
	if len(fig.Data) != 3 {
		t.Fatalf("%d traces", len(fig.Data))
	}
	if s.Mode != "lines" || len(s.X) != 4 || s.Y[3] != 6 || len(s.CustomData) != 4 {
		t.Fatalf("line trace %+v", s)
	}
	if !strings.Contains(s.HoverTemplate, "Speed (km/s)") || !strings.Contains(s.HoverTemplate, "%{x:.7s}") {
		t.Fatalf("hover template `%s`", s.HoverTemplate)
	}
	if m.Mode != "markers+text" || m.Text[0] != "L4" {
		t.Fatalf("marker trace %+v", m)
	}
	sphere := fig.Data[2].(*Surface)
	for i := range sphere.X {
		for j := range sphere.X[i] {
			p := r3.Vec{X: sphere.X[i][j], Y: sphere.Y[i][j], Z: sphere.Z[i][j]}
			if !scalar.EqualWithinAbs(r3.Norm(r3.Sub(p, r3.Vec{X: 10})), 5, 1e-9) {
				t.Fatalf("sphere point %+v off the surface", p)
			}
		}
	}
	data, err := json.Marshal(fig)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}
	if len(generic["data"].([]interface{})) != 3 {
		t.Fatal("traces lost in JSON")
	}
	layout := generic["layout"].(map[string]interface{})
	if layout["title"].(map[string]interface{})["text"] != "Lucy" {
		t.Fatalf("layout = %v", layout)
	}
}
