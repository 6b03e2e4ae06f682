// Package metrics counts oracle calls and per-stage entity totals for a run and writes them in
// the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry so that one process can run several pipelines without
// sharing counters.
type Recorder struct {
	reg *prometheus.Registry

	OracleCalls    *prometheus.CounterVec
	OracleDuration *prometheus.HistogramVec
	Entities       *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		OracleCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgchart_oracle_calls_total",
				Help: "Oracle calls by company and outcome",
			},
			[]string{"company", "outcome"},
		),
		OracleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orgchart_oracle_call_duration_seconds",
				Help:    "Duration of oracle calls in seconds",
				Buckets: []float64{1, 5, 10, 20, 40, 80, 160},
			},
			[]string{"company"},
		),
		Entities: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgchart_entities_total",
				Help: "Entities counted at each pipeline stage",
			},
			[]string{"company", "stage"},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgchart_runs_total",
				Help: "Company runs by status",
			},
			[]string{"company", "status"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

func (r *Recorder) ObserveOracleCall(company, outcome string, elapsed time.Duration) {
	r.OracleCalls.WithLabelValues(company, outcome).Inc()
	r.OracleDuration.WithLabelValues(company).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveStage(company, stage string, count int) {
	r.Entities.WithLabelValues(company, stage).Add(float64(count))
}

func (r *Recorder) ObserveRun(company, status string) {
	r.RunsTotal.WithLabelValues(company, status).Inc()
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
