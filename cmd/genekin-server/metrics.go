package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics are the server's Prometheus collectors on a private registry.
type metrics struct {
	registry   *prometheus.Registry
	steps      *prometheus.CounterVec
	simTime    *prometheus.GaugeVec
	runs       prometheus.Gauge
	stalls     prometheus.Counter
	requestDur *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genekin",
			Name:      "reactions_fired_total",
			Help:      "Reactions fired, by run.",
		}, []string{"run"}),
		simTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "genekin",
			Name:      "simulated_seconds",
			Help:      "Simulated time of the last fired reaction, by run.",
		}, []string{"run"}),
		runs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "genekin",
			Name:      "runs",
			Help:      "Runs currently held by the server.",
		}),
		stalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "genekin",
			Name:      "stalled_runs_total",
			Help:      "Runs observed with zero total propensity.",
		}),
		requestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "genekin",
			Name:      "request_duration_seconds",
			Help:      "Run operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	m.registry.MustRegister(m.steps, m.simTime, m.runs, m.stalls, m.requestDur)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// observe records the latency of one run operation.
func (m *metrics) observe(op string, start time.Time) {
	m.requestDur.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metrics) forget(run string) {
	m.steps.DeleteLabelValues(run)
	m.simTime.DeleteLabelValues(run)
}
