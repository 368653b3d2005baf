// Package metrics holds the Prometheus instrumentation for one pipeline run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "riskpipeline"

// Recorder owns a private registry so each run exports only its own figures.
type Recorder struct {
	registry *prometheus.Registry

	RecordsRead     prometheus.Counter
	RecordsValid    prometheus.Counter
	RecordsRejected *prometheus.CounterVec
	HighRiskEvents  *prometheus.CounterVec
	RowsPersisted   prometheus.Counter
	RunDuration     prometheus.Gauge
	LastSuccess     prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Raw records read from the input file.",
		}),
		RecordsValid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_valid_total",
			Help:      "Records that passed schema validation.",
		}),
		// RecordsRejected counts field failures, so one record may add to several labels.
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Schema validation failures by field.",
		}, []string{"field"}),
		HighRiskEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "high_risk_events_total",
			Help:      "Events flagged high risk by rule.",
		}, []string{"rule"}),
		RowsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_persisted_total",
			Help:      "Rows written to the store.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last pipeline run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	r.registry.MustRegister(
		r.RecordsRead,
		r.RecordsValid,
		r.RecordsRejected,
		r.HighRiskEvents,
		r.RowsPersisted,
		r.RunDuration,
		r.LastSuccess,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRun sets the duration gauge and, on success, the last success time.
func (r *Recorder) ObserveRun(started time.Time, ok bool) {
	r.RunDuration.Set(time.Since(started).Seconds())
	if ok {
		r.LastSuccess.SetToCurrentTime()
	}
}

// WriteTextfile writes the registry in the text exposition format for the
// node_exporter textfile collector. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
