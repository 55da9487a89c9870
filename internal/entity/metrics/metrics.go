package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "finreg/pkg/domain"
)

// Metrics provides observability for the entity module.
// Tracks registrations and the lifecycle operations that move entities
// between compliance states.
type Metrics struct {
	EntitiesRegistered prometheus.Counter
	StatusUpdates      *prometheus.CounterVec
	RiskUpdates        *prometheus.CounterVec
	ReviewsConducted   prometheus.Counter
	LicensesRenewed    prometheus.Counter
}

// New creates a new Metrics instance with all entity module metrics registered.
func New() *Metrics {
	return &Metrics{
		EntitiesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_entities_registered_total",
			Help: "Total number of entities registered",
		}),
		StatusUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "finreg_entity_status_updates_total",
			Help: "Total number of compliance status updates by target status",
		}, []string{"status"}),
		RiskUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "finreg_entity_risk_updates_total",
			Help: "Total number of risk level updates by target level",
		}, []string{"level"}),
		ReviewsConducted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_entity_reviews_conducted_total",
			Help: "Total number of compliance reviews conducted",
		}),
		LicensesRenewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_entity_licenses_renewed_total",
			Help: "Total number of license renewals recorded",
		}),
	}
}

// Registered records a successful entity registration.
// Safe to call on a nil receiver so services can run without metrics.
func (m *Metrics) Registered() {
	if m == nil {
		return
	}
	m.EntitiesRegistered.Inc()
}

// StatusUpdated records a compliance status change to the given status.
func (m *Metrics) StatusUpdated(status id.ComplianceStatus) {
	if m == nil {
		return
	}
	m.StatusUpdates.WithLabelValues(status.String()).Inc()
}

// RiskUpdated records a risk level change to the given level.
func (m *Metrics) RiskUpdated(level id.RiskLevel) {
	if m == nil {
		return
	}
	m.RiskUpdates.WithLabelValues(level.String()).Inc()
}

// ReviewConducted records a completed compliance review.
func (m *Metrics) ReviewConducted() {
	if m == nil {
		return
	}
	m.ReviewsConducted.Inc()
}

// LicenseRenewed records a license renewal.
func (m *Metrics) LicenseRenewed() {
	if m == nil {
		return
	}
	m.LicensesRenewed.Inc()
}
