package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "finreg/pkg/domain"
)

// Metrics provides observability for the violation module.
type Metrics struct {
	ViolationsRecorded *prometheus.CounterVec
	ViolationsResolved prometheus.Counter
	PaymentsRecorded   prometheus.Counter
}

// New creates a new Metrics instance with all violation module metrics
// registered.
func New() *Metrics {
	return &Metrics{
		ViolationsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "finreg_violations_recorded_total",
			Help: "Total number of violations recorded by severity",
		}, []string{"severity"}),
		ViolationsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_violations_resolved_total",
			Help: "Total number of violations resolved",
		}),
		PaymentsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_violation_payments_total",
			Help: "Total number of fine payments recorded",
		}),
	}
}

// Recorded counts a recorded violation at the given severity.
// Safe to call on a nil receiver so services can run without metrics.
func (m *Metrics) Recorded(severity id.Severity) {
	if m == nil {
		return
	}
	m.ViolationsRecorded.WithLabelValues(severity.String()).Inc()
}

// Resolved counts a resolved violation.
func (m *Metrics) Resolved() {
	if m == nil {
		return
	}
	m.ViolationsResolved.Inc()
}

// PaymentRecorded counts a fine payment.
func (m *Metrics) PaymentRecorded() {
	if m == nil {
		return
	}
	m.PaymentsRecorded.Inc()
}
