package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "finreg/pkg/domain"
)

// Metrics provides observability for the alert module.
type Metrics struct {
	AlertsCreated      *prometheus.CounterVec
	AlertsAcknowledged prometheus.Counter
	AlertsResolved     prometheus.Counter
	SweepRuns          *prometheus.CounterVec
}

// New creates a new Metrics instance with all alert module metrics
// registered.
func New() *Metrics {
	return &Metrics{
		AlertsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "finreg_alerts_created_total",
			Help: "Total number of alerts created by type and priority",
		}, []string{"type", "priority"}),
		AlertsAcknowledged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_alerts_acknowledged_total",
			Help: "Total number of alerts acknowledged",
		}),
		AlertsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_alerts_resolved_total",
			Help: "Total number of alerts resolved",
		}),
		SweepRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "finreg_alert_sweep_runs_total",
			Help: "Total number of alert rule sweep executions by rule",
		}, []string{"rule"}),
	}
}

// Created counts a created alert.
// Safe to call on a nil receiver so services can run without metrics.
func (m *Metrics) Created(alertType id.AlertType, priority id.AlertPriority) {
	if m == nil {
		return
	}
	m.AlertsCreated.WithLabelValues(alertType.String(), priority.String()).Inc()
}

// Acknowledged counts an acknowledged alert.
func (m *Metrics) Acknowledged() {
	if m == nil {
		return
	}
	m.AlertsAcknowledged.Inc()
}

// Resolved counts a resolved alert.
func (m *Metrics) Resolved() {
	if m == nil {
		return
	}
	m.AlertsResolved.Inc()
}

// SweepRan counts one execution of a rule sweep.
func (m *Metrics) SweepRan(rule string) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(rule).Inc()
}
