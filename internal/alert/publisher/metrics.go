package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks notification delivery outcomes.
type Metrics struct {
	NotificationsPublished prometheus.Counter
	PublishFailures        prometheus.Counter
	NotificationsDropped   prometheus.Counter
}

// NewMetrics creates and registers the publisher metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		NotificationsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_alert_notifications_published_total",
			Help: "Total number of alert notifications published to the broker",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_alert_notification_publish_failures_total",
			Help: "Total number of alert notifications that failed to publish",
		}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_alert_notifications_dropped_total",
			Help: "Total number of alert notifications dropped due to a full backlog",
		}),
	}
}

// Published counts a delivered notification.
// Safe to call on a nil receiver so the publisher runs without metrics.
func (m *Metrics) Published() {
	if m == nil {
		return
	}
	m.NotificationsPublished.Inc()
}

// Failed counts a notification that could not be delivered.
func (m *Metrics) Failed() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

// Dropped counts a notification discarded before delivery.
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.NotificationsDropped.Inc()
}
