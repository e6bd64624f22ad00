package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const namespace = "logwatch"

// Collector holds the application metrics on a private registry. The
// helper methods are safe to call on a nil *Collector.
type Collector struct {
	// Source metrics
	LinesRead      *prometheus.CounterVec
	SourceReopens  *prometheus.CounterVec
	SourcesActive  prometheus.Gauge
	SourcesDropped *prometheus.CounterVec

	// Pipeline metrics
	LinesAdmitted   prometheus.Counter
	LinesRejected   *prometheus.CounterVec
	ProcessDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: registry,
	}

	c.initSourceMetrics()
	c.initPipelineMetrics()

	return c
}

func (c *Collector) initSourceMetrics() {
	c.LinesRead = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "lines_read_total",
			Help:      "Total number of complete lines read per source",
		},
		[]string{"source"},
	)

	c.SourceReopens = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "reopens_total",
			Help:      "Total number of times a source was rewound or reopened",
		},
		[]string{"source", "reason"},
	)

	c.SourcesActive = promauto.With(c.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "active",
			Help:      "Number of sources currently being followed",
		},
	)

	c.SourcesDropped = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "dropped_total",
			Help:      "Total number of sources dropped after a permanent error",
		},
		[]string{"source"},
	)
}

func (c *Collector) initPipelineMetrics() {
	c.LinesAdmitted = promauto.With(c.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "lines_admitted_total",
			Help:      "Total number of lines that passed the filters",
		},
	)

	c.LinesRejected = promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "lines_rejected_total",
			Help:      "Total number of lines suppressed, by filter",
		},
		[]string{"reason"},
	)

	c.ProcessDuration = promauto.With(c.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "process_duration_seconds",
			Help:      "Time taken to filter and highlight a line",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs to ~260ms
		},
	)
}

// LineRead counts a line delivered by a source
func (c *Collector) LineRead(source string) {
	if c == nil {
		return
	}
	c.LinesRead.WithLabelValues(source).Inc()
}

// SourceReopened counts a rewind (truncation) or reopen (replacement)
func (c *Collector) SourceReopened(source, reason string) {
	if c == nil {
		return
	}
	c.SourceReopens.WithLabelValues(source, reason).Inc()
}

// SourceStarted marks a source as actively followed
func (c *Collector) SourceStarted() {
	if c == nil {
		return
	}
	c.SourcesActive.Inc()
}

// SourceStopped marks a source as no longer followed; dropped is set when
// the source ended on a permanent error
func (c *Collector) SourceStopped(source string, dropped bool) {
	if c == nil {
		return
	}
	c.SourcesActive.Dec()
	if dropped {
		c.SourcesDropped.WithLabelValues(source).Inc()
	}
}

// LineAdmitted counts a displayed line
func (c *Collector) LineAdmitted() {
	if c == nil {
		return
	}
	c.LinesAdmitted.Inc()
}

// LineRejected counts a suppressed line by the filter that rejected it
func (c *Collector) LineRejected(reason string) {
	if c == nil {
		return
	}
	c.LinesRejected.WithLabelValues(reason).Inc()
}

// ObserveProcess records the time spent processing one line
func (c *Collector) ObserveProcess(seconds float64) {
	if c == nil {
		return
	}
	c.ProcessDuration.Observe(seconds)
}

// Registry returns the Prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
