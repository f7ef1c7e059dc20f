package halorbits

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Derived point kinds.
const (
	DerivedHillStatic = "hill_static"
	DerivedCR3BP      = "cr3bp"
	DerivedHillTrack  = "hill_track"
	DerivedTriangular = "triangular"
	DerivedMean       = "mean_marker"
	DerivedCycle      = "cycle"
)

// Scenario is the configuration of one plot.
type Scenario struct {
	General    GeneralConf     `mapstructure:"general"`
	Ephemeris  EphemerisConf   `mapstructure:"ephemeris"`
	Kernels    KernelConf      `mapstructure:"kernels"`
	Sampling   SamplingPolicy  `mapstructure:"sampling"`
	Frame      FrameConf       `mapstructure:"frame"`
	Bodies     []BodyConf      `mapstructure:"bodies"`
	Spheres    []SphereConf    `mapstructure:"spheres"`
	Markers    []MarkerConf    `mapstructure:"markers"`
	Lines      []LineConf      `mapstructure:"lines"`
	Intercepts []InterceptConf `mapstructure:"intercepts"`
	Derived    []DerivedConf   `mapstructure:"derived"`
	Layout     LayoutConf      `mapstructure:"layout"`
	Metrics    MetricsConf     `mapstructure:"metrics"`
}

// GeneralConf names the scenario and its outputs.
type GeneralConf struct {
	Name      string `mapstructure:"name"`
	Title     string `mapstructure:"title"` // {end} is replaced by the UTC end of the window
	OutputDir string `mapstructure:"output_dir"`
	HTML      string `mapstructure:"html"`
	PNG       string `mapstructure:"png"`
	CSV       bool   `mapstructure:"csv"`
	Cosmo     bool   `mapstructure:"cosmographia"`
	Workers   int    `mapstructure:"workers"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
}

// EphemerisConf selects the ephemeris backend.
type EphemerisConf struct {
	Backend string     `mapstructure:"backend"` // spice, de, vsop87 or kepler
	Python  string     `mapstructure:"python"`
	Helper  string     `mapstructure:"helper"`
	Kepler  KeplerConf `mapstructure:"kepler"`
}

// KeplerConf defines the bodies of the analytic backend.
type KeplerConf struct {
	Start  string      `mapstructure:"start"`
	End    string      `mapstructure:"end"`
	Orbits []OrbitConf `mapstructure:"orbits"`
}

// OrbitConf is one analytic orbit. Angles are in degrees. A zero GM uses the GM of the center.
type OrbitConf struct {
	ID       string  `mapstructure:"id"`
	Center   string  `mapstructure:"center"`
	Epoch    string  `mapstructure:"epoch"`
	GM       float64 `mapstructure:"gm"`
	SMA      float64 `mapstructure:"sma"`
	Ecc      float64 `mapstructure:"ecc"`
	Inc      float64 `mapstructure:"inc"`
	RAAN     float64 `mapstructure:"raan"`
	ArgPeri  float64 `mapstructure:"arg_peri"`
	TAnomaly float64 `mapstructure:"true_anomaly"`
}

// KernelConf lists the kernels and where the time window comes from.
type KernelConf struct {
	Files        []string `mapstructure:"files"`
	Coverage     string   `mapstructure:"coverage"`
	CoverageBody string   `mapstructure:"coverage_body"`
	Start        string   `mapstructure:"start"`
	End          string   `mapstructure:"end"`
}

// FrameConf is the frame and center of all queries.
type FrameConf struct {
	Name     string        `mapstructure:"name"`
	Center   string        `mapstructure:"center"`
	Rotating *RotatingConf `mapstructure:"rotating"`
}

// RotatingConf builds a rotating frame at every epoch from the reference body.
type RotatingConf struct {
	Reference string `mapstructure:"reference"`
	Origin    bool   `mapstructure:"origin"`
}

// BodyConf is one sampled body.
type BodyConf struct {
	ID     string  `mapstructure:"id"`
	Label  string  `mapstructure:"label"`
	Color  string  `mapstructure:"color"`
	Width  float64 `mapstructure:"width"`
	Dash   string  `mapstructure:"dash"`
	Hover  bool    `mapstructure:"hover"`
	Filter *Filter `mapstructure:"filter"`
}

// SphereConf draws a body as a sphere, either at the origin or at its position at the mid epoch.
type SphereConf struct {
	Body   string  `mapstructure:"body"`
	Label  string  `mapstructure:"label"`
	Color  string  `mapstructure:"color"`
	Radius float64 `mapstructure:"radius"` // Defaults to the mean radius of the body
	At     string  `mapstructure:"at"`     // origin or mid
}

// MarkerConf is a fixed point.
type MarkerConf struct {
	Label    string    `mapstructure:"label"`
	Color    string    `mapstructure:"color"`
	Position []float64 `mapstructure:"position"`
	Size     float64   `mapstructure:"size"`
	Text     string    `mapstructure:"text"`
}

// LineConf is a fixed poly-line, with optional text at each point.
type LineConf struct {
	Label  string      `mapstructure:"label"`
	Color  string      `mapstructure:"color"`
	Width  float64     `mapstructure:"width"`
	Points [][]float64 `mapstructure:"points"`
	Text   []string    `mapstructure:"text"`
}

// InterceptConf marks the position of a body at an encounter date.
type InterceptConf struct {
	Body  string `mapstructure:"body"`
	UTC   string `mapstructure:"utc"`
	Label string `mapstructure:"label"`
	Color string `mapstructure:"color"` // Defaults to the color of the body trace, or black
}

// DerivedConf describes a derived reference point or trace.
type DerivedConf struct {
	Kind      string        `mapstructure:"kind"`
	Body      string        `mapstructure:"body"`
	Large     string        `mapstructure:"large"`
	Small     string        `mapstructure:"small"`
	GMLarge   float64       `mapstructure:"gm_large"`
	GMSmall   float64       `mapstructure:"gm_small"`
	MassRatio float64       `mapstructure:"mass_ratio"`
	Points    []string      `mapstructure:"points"`
	Label     string        `mapstructure:"label"`
	Colors    []string      `mapstructure:"colors"`
	Axis      []float64     `mapstructure:"axis"`
	Span      time.Duration `mapstructure:"span"`
	Count     int           `mapstructure:"count"`
	Width     float64       `mapstructure:"width"`
	Dash      string        `mapstructure:"dash"`
}

// LayoutConf is the scene layout.
type LayoutConf struct {
	XTitle      string    `mapstructure:"x_title"`
	YTitle      string    `mapstructure:"y_title"`
	ZTitle      string    `mapstructure:"z_title"`
	XRange      []float64 `mapstructure:"x_range"`
	YRange      []float64 `mapstructure:"y_range"`
	ZRange      []float64 `mapstructure:"z_range"`
	XReversed   bool      `mapstructure:"x_reversed"`
	YReversed   bool      `mapstructure:"y_reversed"`
	Camera      []float64 `mapstructure:"camera"`
	CoordFormat string    `mapstructure:"coord_format"`
	SpeedLabel  string    `mapstructure:"speed_label"`
}

// MetricsConf configures the metrics textfile.
type MetricsConf struct {
	Textfile string `mapstructure:"textfile"`
}

// LoadScenario reads the scenario TOML file. Every key may be overridden by an environment variable prefixed by
// HALORBITS_, e.g. HALORBITS_EPHEMERIS_PYTHON.
func LoadScenario(path string) (Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("HALORBITS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	if sc.General.Name == "" {
		sc.General.Name = strings.TrimSuffix(pathBase(path), ".toml")
	}
	if sc.General.HTML == "" {
		sc.General.HTML = sc.General.Name + ".html"
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.output_dir", "docs")
	v.SetDefault("general.workers", 1)
	v.SetDefault("general.width", 1280)
	v.SetDefault("general.height", 600)
	v.SetDefault("ephemeris.backend", "spice")
	v.SetDefault("ephemeris.python", "python3")
	v.SetDefault("ephemeris.helper", "cmd/refframes/oracle.py")
	v.SetDefault("frame.name", "J2000")
	v.SetDefault("frame.center", "SUN")
	v.SetDefault("sampling.rounding", "ceil")
	v.SetDefault("layout.x_title", "x (km)")
	v.SetDefault("layout.y_title", "y (km)")
	v.SetDefault("layout.z_title", "z (km)")
	v.SetDefault("metrics.textfile", "")
}

func pathBase(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Validate returns the first configuration error.
func (sc Scenario) Validate() error {
	if len(sc.Kernels.Files) == 0 && sc.Ephemeris.Backend != "kepler" {
		return errors.New("no kernels")
	}
	if len(sc.Bodies) == 0 {
		return errors.New("no bodies")
	}
	if sc.Kernels.CoverageBody == "" && (sc.Kernels.Start == "" || sc.Kernels.End == "") {
		return errors.New("either a coverage body or both start and end dates are required")
	}
	if sc.Kernels.Coverage != "" && sc.Kernels.CoverageBody == "" {
		return errors.New("coverage kernel without coverage body")
	}
	if err := sc.Sampling.Validate(); err != nil {
		return err
	}
	if sc.Frame.Rotating != nil && sc.Frame.Rotating.Reference == "" {
		return errors.New("rotating frame without reference body")
	}
	for _, b := range sc.Bodies {
		if b.ID == "" {
			return errors.New("body without id")
		}
		if b.Filter != nil {
			if err := b.Filter.Validate(); err != nil {
				return fmt.Errorf("body %s: %w", b.ID, err)
			}
		}
	}
	for _, s := range sc.Spheres {
		if s.At != "" && s.At != "origin" && s.At != "mid" {
			return fmt.Errorf("sphere %s: unknown position `%s`", s.Body, s.At)
		}
	}
	for _, m := range sc.Markers {
		if len(m.Position) != 3 {
			return fmt.Errorf("marker %s: position must have three coordinates", m.Label)
		}
	}
	for _, l := range sc.Lines {
		for _, p := range l.Points {
			if len(p) != 3 {
				return fmt.Errorf("line %s: points must have three coordinates", l.Label)
			}
		}
	}
	for _, d := range sc.Derived {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate returns an error if the derived point is not computable.
func (d DerivedConf) Validate() error {
	switch d.Kind {
	case DerivedHillStatic, DerivedHillTrack:
		if d.Large == "" || d.Small == "" {
			return fmt.Errorf("%s requires the large and small bodies", d.Kind)
		}
	case DerivedCR3BP:
		if d.Large == "" || d.Small == "" || d.MassRatio <= 0 {
			return fmt.Errorf("%s requires the large and small bodies and a mass ratio", d.Kind)
		}
	case DerivedTriangular, DerivedMean:
		if d.Body == "" {
			return fmt.Errorf("%s requires a body", d.Kind)
		}
	case DerivedCycle:
		if d.Body == "" || d.Span <= 0 || d.Count < 2 {
			return fmt.Errorf("%s requires a body, a span and at least two samples", d.Kind)
		}
	default:
		return fmt.Errorf("unknown derived kind `%s`", d.Kind)
	}
	for _, p := range d.Points {
		switch p {
		case "L1", "L2", "L4", "L5":
		default:
			return fmt.Errorf("unknown Lagrange point `%s`", p)
		}
	}
	if d.Axis != nil && len(d.Axis) != 3 {
		return errors.New("the rotation axis must have three coordinates")
	}
	return nil
}
