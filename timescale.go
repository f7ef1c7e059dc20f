package halorbits

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

const (
	// J2000 is the Julian date of the J2000 epoch.
	J2000 = 2451545.0
	// SecondsPerDay is the number of SI seconds in a Julian day.
	SecondsPerDay = 86400.0
	// utcFormat is the SPICE "C" calendar format with zero decimals.
	utcFormat = "2006 Jan 02 15:04:05"
)

var (
	j2000UTC = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	// utcLayouts are the accepted input layouts. Month names are matched case insensitively.
	utcLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02",
		"2006 Jan 2 15:04:05.999999999",
		"2006 Jan 2 15:04",
		"2006 Jan 2",
		"2006-Jan-2 15:04:05.999999999",
		"2006-Jan-2",
	}
)

// leapSecond is one entry of the TAI-UTC table, effective from the Julian date onward.
type leapSecond struct {
	jd float64
	Δ  float64
}

// TimeScale converts between UTC and ephemeris time (TDB seconds past J2000) using the leapseconds kernel model.
type TimeScale struct {
	ΔTA    float64 // TT-TAI
	K, EB  float64
	M0, M1 float64
	leaps  []leapSecond
}

// DefaultTimeScale returns the time scale of naif0012.tls.
func DefaultTimeScale() *TimeScale {
	ts := TimeScale{ΔTA: 32.184, K: 1.657e-3, EB: 1.671e-2, M0: 6.239996, M1: 1.99096871e-7}
	dates := []struct {
		y, m int
	}{
		{1972, 1}, {1972, 7}, {1973, 1}, {1974, 1}, {1975, 1}, {1976, 1}, {1977, 1}, {1978, 1}, {1979, 1}, {1980, 1},
		{1981, 7}, {1982, 7}, {1983, 7}, {1985, 7}, {1988, 1}, {1990, 1}, {1991, 1}, {1992, 7}, {1993, 7}, {1994, 7},
		{1996, 1}, {1997, 7}, {1999, 1}, {2006, 1}, {2009, 1}, {2012, 7}, {2015, 7}, {2017, 1},
	}
	for i, d := range dates {
		ts.leaps = append(ts.leaps, leapSecond{julian.CalendarGregorianToJD(d.y, d.m, 1), float64(10 + i)})
	}
	return &ts
}

// timeScaleFromKernel reads the DELTET variables of a leapseconds kernel.
func timeScaleFromKernel(tk TextKernel) (*TimeScale, error) {
	ts := DefaultTimeScale()
	var found bool
	if ts.ΔTA, found = tk.Float("DELTET/DELTA_T_A"); !found {
		return nil, errors.New("missing DELTET/DELTA_T_A")
	}
	if ts.K, found = tk.Float("DELTET/K"); !found {
		return nil, errors.New("missing DELTET/K")
	}
	if ts.EB, found = tk.Float("DELTET/EB"); !found {
		return nil, errors.New("missing DELTET/EB")
	}
	m := tk["DELTET/M"]
	if len(m) != 2 {
		return nil, errors.New("DELTET/M must have two values")
	}
	var err error
	if ts.M0, err = parseFortranFloat(m[0]); err != nil {
		return nil, err
	}
	if ts.M1, err = parseFortranFloat(m[1]); err != nil {
		return nil, err
	}
	table := tk["DELTET/DELTA_AT"]
	if len(table) == 0 || len(table)%2 != 0 {
		return nil, errors.New("DELTET/DELTA_AT must be pairs of offsets and dates")
	}
	ts.leaps = ts.leaps[:0]
	for i := 0; i < len(table); i += 2 {
		Δ, err := parseFortranFloat(table[i])
		if err != nil {
			return nil, fmt.Errorf("DELTET/DELTA_AT: %w", err)
		}
		dt, err := parseKernelDate(table[i+1])
		if err != nil {
			return nil, fmt.Errorf("DELTET/DELTA_AT: %w", err)
		}
		ts.leaps = append(ts.leaps, leapSecond{julian.TimeToJD(dt), Δ})
	}
	sort.Slice(ts.leaps, func(i, j int) bool { return ts.leaps[i].jd < ts.leaps[j].jd })
	return ts, nil
}

// ParseLeapSeconds reads a leapseconds text kernel.
func ParseLeapSeconds(path string) (*TimeScale, error) {
	tk, err := readTextKernel(path)
	if err != nil {
		return nil, err
	}
	return timeScaleFromKernel(tk)
}

// DeltaAT returns TAI-UTC in seconds at the provided UTC time. Dates before the first entry use the first entry.
func (ts *TimeScale) DeltaAT(t time.Time) float64 {
	jd := julian.TimeToJD(t)
	i := sort.Search(len(ts.leaps), func(i int) bool { return ts.leaps[i].jd > jd })
	if i == 0 {
		return ts.leaps[0].Δ
	}
	return ts.leaps[i-1].Δ
}

// periodic returns the TDB-TT periodic term at the provided TT seconds past J2000.
func (ts *TimeScale) periodic(tt float64) float64 {
	M := ts.M0 + ts.M1*tt
	E := M + ts.EB*math.Sin(M)
	return ts.K * math.Sin(E)
}

// ToET converts a UTC time to ephemeris time.
func (ts *TimeScale) ToET(t time.Time) Epoch {
	utc := t.Sub(j2000UTC).Seconds()
	tt := utc + ts.DeltaAT(t) + ts.ΔTA
	return Epoch(tt + ts.periodic(tt))
}

// FromET converts an ephemeris time to UTC.
func (ts *TimeScale) FromET(et Epoch) time.Time {
	tt := float64(et)
	for i := 0; i < 2; i++ {
		tt = float64(et) - ts.periodic(tt)
	}
	tai := tt - ts.ΔTA
	// ΔAT depends on UTC itself: start from TAI and refine once.
	utc := j2000UTC.Add(secondsToDuration(tai))
	for i := 0; i < 2; i++ {
		utc = j2000UTC.Add(secondsToDuration(tai - ts.DeltaAT(utc)))
	}
	return utc
}

// FormatUTC formats a time the way SPICE's et2utc does with the "C" format and zero decimals.
func FormatUTC(t time.Time) string {
	return strings.ToUpper(t.UTC().Round(time.Second).Format(utcFormat))
}

// ParseUTC parses ISO-8601 or SPICE calendar strings such as "2031 AUG 01 00:00:00" as UTC.
func ParseUTC(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "UTC"))
	for _, layout := range utcLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized UTC string `%s`", s)
}

// parseKernelDate parses @-dates of text kernels, e.g. @1972-JAN-1.
func parseKernelDate(s string) (time.Time, error) {
	if !strings.HasPrefix(s, "@") {
		return time.Time{}, fmt.Errorf("`%s` is not a kernel date", s)
	}
	return ParseUTC(s[1:])
}

// parseFortranFloat parses numbers which may use a D exponent, e.g. 1.657D-3.
func parseFortranFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.Map(func(r rune) rune {
		if r == 'D' || r == 'd' {
			return 'E'
		}
		return r
	}, s), 64)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// JDE returns the TDB Julian date of the epoch.
func (e Epoch) JDE() float64 {
	return J2000 + float64(e)/SecondsPerDay
}
