// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus collectors for conversions and the
// artifact sweeper.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/md2docx/pkg/types"
)

const namespace = "md2docx"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry    *prometheus.Registry
	conversions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	swept       *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Markdown conversions by outcome and failure kind.",
			},
			[]string{"status", "kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Wall-clock time of a conversion request.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),
		swept: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_swept_total",
				Help:      "Expired artifacts processed by the sweeper.",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		m.conversions,
		m.duration,
		m.swept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveConversion implements convert.Recorder.
func (m *Metrics) ObserveConversion(status types.ConversionStatus, kind string, d time.Duration) {
	m.conversions.WithLabelValues(string(status), kind).Inc()
	m.duration.WithLabelValues(string(status)).Observe(d.Seconds())
}

// ObserveSweep implements artifact.SweepRecorder.
func (m *Metrics) ObserveSweep(removed, failed int) {
	m.swept.WithLabelValues("removed").Add(float64(removed))
	m.swept.WithLabelValues("failed").Add(float64(failed))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
