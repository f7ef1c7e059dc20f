package halorbits

import (
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is the state of one body at one epoch, as plotted. Velocity and UTC are only set when requested.
type Sample struct {
	Epoch    Epoch
	Position r3.Vec
	Velocity *r3.Vec
	Speed    float64
	UTC      string
}

// Trace is the ordered sequence of samples of one body.
type Trace struct {
	Name    string
	Samples []Sample
}

// XYZ returns the coordinates as three slices.
func (t Trace) XYZ() (x, y, z []float64) {
	x = make([]float64, len(t.Samples))
	y = make([]float64, len(t.Samples))
	z = make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		x[i], y[i], z[i] = s.Position.X, s.Position.Y, s.Position.Z
	}
	return
}

// Positions returns the positions of the samples.
func (t Trace) Positions() []r3.Vec {
	pts := make([]r3.Vec, len(t.Samples))
	for i, s := range t.Samples {
		pts[i] = s.Position
	}
	return pts
}

// Mean returns the mean position of the trace.
func (t Trace) Mean() r3.Vec {
	return mean(t.Positions())
}

// Sampler queries the states of bodies at a sequence of epochs.
type Sampler struct {
	Eph       Ephemeris
	Frame     string
	Center    Body
	Transform FrameTransform // Identity if nil
	Workers   int            // Sequential if lower than 2
	Velocity  bool           // Fill velocity and speed
	Labels    bool           // Fill the UTC label
	Logger    log.Logger
	Metrics   *Metrics
}

type sampleJob struct {
	idx int
	et  Epoch
}

// Sample returns one sample per epoch, in epoch order. The first error aborts the sampling.
func (s Sampler) Sample(body Body, epochs []Epoch) (Trace, error) {
	trace := Trace{Name: string(body), Samples: make([]Sample, len(epochs))}
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(epochs) {
		workers = len(epochs)
	}
	jobs := make(chan sampleJob)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
		done     = make(chan struct{})
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				sample, err := s.sampleOne(body, job.et)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						close(done)
					})
					continue
				}
				trace.Samples[job.idx] = sample
			}
		}()
	}
feed:
	for i, et := range epochs {
		select {
		case jobs <- sampleJob{i, et}:
		case <-done:
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		return Trace{}, fmt.Errorf("sampling %s: %w", body, firstErr)
	}
	if s.Metrics != nil {
		s.Metrics.Samples.WithLabelValues(string(body)).Add(float64(len(epochs)))
	}
	if s.Logger != nil {
		level.Debug(s.Logger).Log("subsys", "sampler", "body", body, "samples", len(epochs), "workers", workers)
	}
	return trace, nil
}

func (s Sampler) sampleOne(body Body, et Epoch) (Sample, error) {
	st, err := s.Eph.State(body, et, s.Frame, s.Center)
	if err != nil {
		return Sample{}, err
	}
	transform := s.Transform
	if transform == nil {
		transform = Identity{}
	}
	if st, err = transform.Apply(s.Eph, et, st); err != nil {
		return Sample{}, err
	}
	sample := Sample{Epoch: et, Position: st.R}
	if s.Velocity {
		v := st.V
		sample.Velocity = &v
		sample.Speed = r3.Norm(v)
	}
	if s.Labels {
		if sample.UTC, err = s.Eph.ET2UTC(et); err != nil {
			return Sample{}, err
		}
	}
	return sample, nil
}

// Filter drops the samples whose coordinate along Axis exceeds Max. It is a display concern only.
type Filter struct {
	Axis string  `mapstructure:"axis"`
	Max  float64 `mapstructure:"max"`
}

// Validate returns an error if the axis is unknown.
func (f Filter) Validate() error {
	switch f.Axis {
	case "x", "y", "z":
		return nil
	}
	return fmt.Errorf("unknown filter axis `%s`", f.Axis)
}

// Apply returns a new trace without the filtered samples, and the number of dropped samples.
func (f Filter) Apply(t Trace) (Trace, int) {
	kept := Trace{Name: t.Name, Samples: make([]Sample, 0, len(t.Samples))}
	for _, s := range t.Samples {
		var c float64
		switch f.Axis {
		case "x":
			c = s.Position.X
		case "y":
			c = s.Position.Y
		default:
			c = s.Position.Z
		}
		if c > f.Max {
			continue
		}
		kept.Samples = append(kept.Samples, s)
	}
	return kept, len(t.Samples) - len(kept.Samples)
}
