package halorbits

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sampling policy kinds.
const (
	SampleCount   = "count"
	SamplePerDay  = "per_day"
	SampleCadence = "cadence"
	SampleSpan    = "span"
)

// Linspace returns n evenly spaced epochs from start to end, both included. A single sample is the start.
func Linspace(start, end Epoch, n int) []Epoch {
	if n <= 0 {
		return nil
	}
	epochs := make([]Epoch, n)
	if n == 1 {
		epochs[0] = start
		return epochs
	}
	step := float64(end-start) / float64(n-1)
	for i := range epochs {
		epochs[i] = start + Epoch(float64(i)*step)
	}
	// Avoid a last sample a hair past the coverage.
	epochs[n-1] = end
	return epochs
}

// Cadence returns epochs every step seconds from start. The number of samples is the floor of the elapsed
// duration divided by the step, so that no sample overshoots the end.
func Cadence(start, end Epoch, step float64) []Epoch {
	if step <= 0 || end <= start {
		return nil
	}
	n := int(math.Floor(float64(end-start) / step))
	epochs := make([]Epoch, n)
	for i := range epochs {
		epochs[i] = start + Epoch(float64(i)*step)
	}
	return epochs
}

// SamplingPolicy describes how epochs are spread over a window.
type SamplingPolicy struct {
	Kind     string        `mapstructure:"policy"`
	Count    int           `mapstructure:"count"`
	PerDay   float64       `mapstructure:"per_day"`
	Rounding string        `mapstructure:"rounding"`
	Cadence  time.Duration `mapstructure:"cadence"`
	Span     time.Duration `mapstructure:"span"`
}

// Validate returns an error if the policy cannot produce epochs.
func (p SamplingPolicy) Validate() error {
	switch p.Kind {
	case SampleCount, SampleSpan:
		if p.Count < 2 {
			return fmt.Errorf("%s sampling requires at least two samples, got %d", p.Kind, p.Count)
		}
		if p.Kind == SampleSpan && p.Span <= 0 {
			return errors.New("span sampling requires a positive span")
		}
	case SamplePerDay:
		if p.PerDay <= 0 {
			return errors.New("per_day sampling requires a positive density")
		}
		if p.Rounding != "" && p.Rounding != "floor" && p.Rounding != "ceil" {
			return fmt.Errorf("unknown rounding `%s`", p.Rounding)
		}
	case SampleCadence:
		if p.Cadence <= 0 {
			return errors.New("cadence sampling requires a positive cadence")
		}
	default:
		return fmt.Errorf("unknown sampling policy `%s`", p.Kind)
	}
	return nil
}

// Epochs returns the epochs of the window according to the policy.
func (p SamplingPolicy) Epochs(w Window) ([]Epoch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if w.End < w.Start {
		return nil, fmt.Errorf("window ends before it starts (%f < %f)", w.End, w.Start)
	}
	switch p.Kind {
	case SampleCount:
		return Linspace(w.Start, w.End, p.Count), nil
	case SampleSpan:
		return Linspace(w.Start, w.Start+Epoch(p.Span.Seconds()), p.Count), nil
	case SamplePerDay:
		n := w.Duration() / SecondsPerDay * p.PerDay
		if p.Rounding == "floor" {
			n = math.Floor(n)
		} else {
			n = math.Ceil(n)
		}
		return Linspace(w.Start, w.End, max(int(n), 1)), nil
	default:
		return Cadence(w.Start, w.End, p.Cadence.Seconds()), nil
	}
}
