package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/adrank-triage/internal/model"
)

const (
	runStatusComplete = "complete"
	runStatusFailed   = "failed"
)

// Metrics holds the Prometheus collectors for triage passes. A nil *Metrics
// records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	findings *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the triage collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrank",
			Subsystem: "triage",
			Name:      "runs_total",
			Help:      "Triage passes by outcome",
		}, []string{"status"}),
		findings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrank",
			Subsystem: "triage",
			Name:      "findings_total",
			Help:      "Findings emitted by category and severity",
		}, []string{"category", "severity"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adrank",
			Subsystem: "triage",
			Name:      "duration_seconds",
			Help:      "Time spent in triage, report synthesis and persistence",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveRejected counts a pass whose input never reached triage.
func (m *Metrics) ObserveRejected() {
	m.observeRun(runStatusFailed, 0)
}

func (m *Metrics) observeRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	if d > 0 {
		m.duration.Observe(d.Seconds())
	}
}

func (m *Metrics) observeFindings(findings []model.Finding) {
	if m == nil {
		return
	}
	for _, f := range findings {
		m.findings.WithLabelValues(string(f.Category), string(f.Severity)).Inc()
	}
}
