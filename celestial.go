package halorbits

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// AU is one astronomical unit in kilometers.
	AU = 1.49597870700e8
)

// CelestialObject defines a celestial object known by its NAIF name and ID.
type CelestialObject struct {
	Name   string
	NAIF   int
	Radius float64 // Mean radius in km
	μ      float64
}

// GM returns μ (which is unexported because it's a lowercase letter)
func (c CelestialObject) GM() float64 {
	return c.μ
}

// Body returns the ephemeris identifier of this object.
func (c CelestialObject) Body() Body {
	return Body(c.Name)
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return c.Name + " body"
}

// CelestialObjectFromString returns the object from its NAIF name or ID.
func CelestialObjectFromString(name string) (CelestialObject, error) {
	id, err := NAIFID(Body(name))
	if err != nil {
		return CelestialObject{}, err
	}
	for _, obj := range catalog {
		if obj.NAIF == id {
			return obj, nil
		}
	}
	return CelestialObject{}, fmt.Errorf("%w: no physical data for '%s'", ErrUnknownBody, name)
}

// NAIFID returns the integer NAIF ID of the body, which is either spelled as an integer or as a known name.
// Underscores and spaces are interchangeable, and the case does not matter.
func NAIFID(b Body) (int, error) {
	name := strings.TrimSpace(string(b))
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	name = strings.ToUpper(strings.ReplaceAll(name, "_", " "))
	if id, found := naifNames[name]; found {
		return id, nil
	}
	return 0, fmt.Errorf("%w: '%s'", ErrUnknownBody, b)
}

var naifNames = map[string]int{
	"SOLAR SYSTEM BARYCENTER":  0,
	"SSB":                      0,
	"MERCURY BARYCENTER":       1,
	"VENUS BARYCENTER":         2,
	"EARTH BARYCENTER":         3,
	"EARTH MOON BARYCENTER":    3,
	"EARTH-MOON BARYCENTER":    3,
	"EMB":                      3,
	"MARS BARYCENTER":          4,
	"JUPITER BARYCENTER":       5,
	"SATURN BARYCENTER":        6,
	"URANUS BARYCENTER":        7,
	"NEPTUNE BARYCENTER":       8,
	"PLUTO BARYCENTER":         9,
	"SUN":                      10,
	"MERCURY":                  199,
	"VENUS":                    299,
	"EARTH":                    399,
	"MOON":                     301,
	"MARS":                     499,
	"JUPITER":                  599,
	"IO":                       501,
	"EUROPA":                   502,
	"GANYMEDE":                 503,
	"CALLISTO":                 504,
	"SATURN":                   699,
	"URANUS":                   799,
	"NEPTUNE":                  899,
	"PLUTO":                    999,
}

/* Definitions */

// Sun is our closest star.
var Sun = CelestialObject{"SUN", 10, 695700, 1.32712440018e11}

// Mercury is hot.
var Mercury = CelestialObject{"MERCURY", 199, 2439.7, 2.2031780000e4}

// Venus is poisonous.
var Venus = CelestialObject{"VENUS", 299, 6051.8, 3.24858592e5}

// Earth is home.
var Earth = CelestialObject{"EARTH", 399, 6371, 3.986004418e5}

// Moon is where the Gateway goes.
var Moon = CelestialObject{"MOON", 301, 1737, 4.9028000661e3}

// Mars is the vacation place.
var Mars = CelestialObject{"MARS", 499, 3389.5, 4.282837e4}

// Jupiter is big.
var Jupiter = CelestialObject{"JUPITER", 599, 69911, 1.26686534e8}

// Ganymede is the largest moon of the solar system.
var Ganymede = CelestialObject{"GANYMEDE", 503, 2634, 9.8878e3}

// Europa hides an ocean.
var Europa = CelestialObject{"EUROPA", 502, 1560.8, 3.2027e3}

// Callisto is heavily cratered.
var Callisto = CelestialObject{"CALLISTO", 504, 2410.3, 7.1793e3}

// Saturn floats and that's really cool.
var Saturn = CelestialObject{"SATURN", 699, 58232, 3.7931187e7}

// Uranus is no joke.
var Uranus = CelestialObject{"URANUS", 799, 25362, 5.793939e6}

// Neptune is windy.
var Neptune = CelestialObject{"NEPTUNE", 899, 24622, 6.836529e6}

// Pluto is not a planet and had that down ranking coming.
var Pluto = CelestialObject{"PLUTO", 999, 1188.3, 8.696e2}

var catalog = []CelestialObject{Sun, Mercury, Venus, Earth, Moon, Mars, Jupiter, Ganymede, Europa, Callisto, Saturn, Uranus, Neptune, Pluto}
