// Package metrics exposes reconciliation pass metrics in the node_exporter
// textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
)

const (
	// namespace is the Prometheus metric namespace prefix for all metrics.
	namespace = "update_fstab_uuid"
)

// Metrics holds the metrics of one process.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal            *prometheus.CounterVec
	runDuration          prometheus.Histogram
	lastRunTimestamp     prometheus.Gauge
	lastSuccessTimestamp prometheus.Gauge
	lastExitCode         prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered on a
// private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of reconciliation passes by action and status",
			},
			[]string{"action", "status"},
		),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of reconciliation passes in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last reconciliation pass",
		}),

		lastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful reconciliation pass",
		}),

		lastExitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_exit_code",
			Help:      "Exit status of the last reconciliation pass",
		}),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.lastRunTimestamp,
		m.lastSuccessTimestamp,
		m.lastExitCode,
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records a finished pass. action is the reconcile action, or
// "none" when the pass failed before deciding one.
func (m *Metrics) RecordRun(action string, err error, duration time.Duration, finishedAt time.Time) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.runsTotal.WithLabelValues(action, status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunTimestamp.Set(float64(finishedAt.Unix()))
	m.lastExitCode.Set(float64(errors.ExitCode(err)))
	if err == nil {
		m.lastSuccessTimestamp.Set(float64(finishedAt.Unix()))
	}
}

// WriteTextfile writes all metrics to path for the node_exporter textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.IO(err, "write metrics", path)
	}
	return nil
}
