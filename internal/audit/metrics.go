package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit trail.
type Metrics struct {
	EntriesAppended *prometheus.CounterVec
	AppendFailures  prometheus.Counter
}

// NewMetrics creates a Metrics instance with all audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		EntriesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "finreg_audit_entries_total",
			Help: "Total number of audit entries appended, by action",
		}, []string{"action"}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_audit_append_failures_total",
			Help: "Total number of failed audit appends",
		}),
	}
}

// Appended records a successful append for the given action.
func (m *Metrics) Appended(action Action) {
	if m == nil {
		return
	}
	m.EntriesAppended.WithLabelValues(string(action)).Inc()
}

// AppendFailed records a failed append.
func (m *Metrics) AppendFailed() {
	if m == nil {
		return
	}
	m.AppendFailures.Inc()
}
