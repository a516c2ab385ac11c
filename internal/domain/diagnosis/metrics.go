package diagnosis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
)

// Metrics is optional; a nil *Metrics records nothing.
type Metrics struct {
	submissions *prometheus.CounterVec
	reports     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ubs_submissions_total",
			Help: "UBS submission attempts by outcome.",
		}, []string{"outcome"}),
		reports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ubs_reports_rendered_total",
			Help: "Situational reports rendered by format.",
		}, []string{"format"}),
	}
}

func (m *Metrics) observeSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeReport(format string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(format).Inc()
}
