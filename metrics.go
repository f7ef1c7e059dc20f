package halorbits

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the counters of one run. They are written to a node exporter textfile at the end of the run.
type Metrics struct {
	Registry *prometheus.Registry
	Queries  *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	Samples  *prometheus.CounterVec
	Filtered *prometheus.CounterVec
	Exports  *prometheus.CounterVec
}

// NewMetrics returns the metrics registered on their own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "halorbits",
				Name:      "ephemeris_queries_total",
				Help:      "Total number of ephemeris queries",
			},
			[]string{"op", "status"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "halorbits",
				Name:      "ephemeris_query_duration_seconds",
				Help:      "Time spent in ephemeris queries",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
			},
			[]string{"op"},
		),
		Samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "halorbits",
				Name:      "samples_total",
				Help:      "Total number of sampled states",
			},
			[]string{"body"},
		),
		Filtered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "halorbits",
				Name:      "filtered_samples_total",
				Help:      "Total number of samples dropped by display filters",
			},
			[]string{"body"},
		),
		Exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "halorbits",
				Name:      "exports_total",
				Help:      "Total number of exported files",
			},
			[]string{"format", "status"},
		),
	}
	m.Registry.MustRegister(m.Queries, m.Latency, m.Samples, m.Filtered, m.Exports)
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Queries.WithLabelValues(op, status).Inc()
	m.Latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the metrics in the text exposition format, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return errors.New("no metrics textfile")
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}

// instrumented counts and times the queries of an ephemeris.
type instrumented struct {
	Ephemeris
	m *Metrics
}

// Instrument returns the ephemeris with its queries recorded in the metrics. A nil Metrics returns eph as is.
func Instrument(eph Ephemeris, m *Metrics) Ephemeris {
	if m == nil {
		return eph
	}
	return instrumented{Ephemeris: eph, m: m}
}

func (i instrumented) Furnsh(path string) error {
	start := time.Now()
	err := i.Ephemeris.Furnsh(path)
	i.m.observe("furnsh", start, err)
	return err
}

func (i instrumented) Coverage(kernel string, body Body) (Window, error) {
	start := time.Now()
	w, err := i.Ephemeris.Coverage(kernel, body)
	i.m.observe("coverage", start, err)
	return w, err
}

func (i instrumented) State(target Body, et Epoch, frame string, center Body) (State, error) {
	start := time.Now()
	st, err := i.Ephemeris.State(target, et, frame, center)
	i.m.observe("state", start, err)
	return st, err
}

func (i instrumented) ET2UTC(et Epoch) (string, error) {
	start := time.Now()
	s, err := i.Ephemeris.ET2UTC(et)
	i.m.observe("et2utc", start, err)
	return s, err
}

func (i instrumented) UTC2ET(utc string) (Epoch, error) {
	start := time.Now()
	et, err := i.Ephemeris.UTC2ET(utc)
	i.m.observe("utc2et", start, err)
	return et, err
}
