// Package publisher delivers created alerts to Kafka for downstream
// consumers (case management, paging). Delivery is fail-open: the alert
// store is the system of record, and a broker outage never fails the
// operation that raised the alert. Consumers dedup on alert id for
// at-least-once semantics.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"finreg/internal/alert/models"
)

const defaultBuffer = 256

// producer is the slice of the kgo client the publisher drives.
type producer interface {
	ProduceSync(ctx context.Context, records ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Publisher buffers created alerts and emits them to a Kafka topic,
// keyed by entity id so one entity's alerts stay ordered.
type Publisher struct {
	producer producer
	inbox    chan models.AlertNotification
	buffer   int
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBuffer sets the inbox capacity. Alerts enqueued beyond it are
// dropped rather than blocking the caller.
func WithBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = n
	}
}

// New connects a publisher to the given brokers and topic.
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("finreg"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newWithProducer(client, opts...), nil
}

func newWithProducer(p producer, opts ...Option) *Publisher {
	pub := &Publisher{
		producer: p,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(pub)
	}
	if pub.buffer <= 0 {
		pub.buffer = defaultBuffer
	}
	pub.inbox = make(chan models.AlertNotification, pub.buffer)
	return pub
}

// Enqueue hands an alert to the delivery loop without blocking. When the
// backlog is full the alert is dropped and counted; the store remains
// authoritative.
func (p *Publisher) Enqueue(alert models.AlertNotification) {
	select {
	case p.inbox <- alert:
	default:
		p.metrics.Dropped()
		p.logger.Warn("alert notification dropped: backlog full",
			slog.String("alert_id", alert.ID.String()))
	}
}

// Run delivers enqueued alerts until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case alert := <-p.inbox:
			p.send(ctx, alert)
		}
	}
}

// Close releases the Kafka client.
func (p *Publisher) Close() {
	p.producer.Close()
}

// event is the wire shape of an alert notification.
type event struct {
	AlertID     string    `json:"alert_id"`
	EntityID    string    `json:"entity_id"`
	ViolationID string    `json:"violation_id,omitempty"`
	Type        string    `json:"type"`
	Priority    string    `json:"priority"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Publisher) send(ctx context.Context, alert models.AlertNotification) {
	evt := event{
		AlertID:   alert.ID.String(),
		EntityID:  alert.EntityID.String(),
		Type:      alert.Type.String(),
		Priority:  alert.Priority.String(),
		Message:   alert.Message,
		CreatedAt: alert.CreatedAt,
	}
	if !alert.ViolationID.IsNil() {
		evt.ViolationID = alert.ViolationID.String()
	}

	value, err := json.Marshal(evt)
	if err != nil {
		p.metrics.Failed()
		p.logger.ErrorContext(ctx, "encode alert notification",
			slog.String("alert_id", evt.AlertID),
			slog.String("error", err.Error()))
		return
	}

	record := &kgo.Record{
		Key:   []byte(evt.EntityID),
		Value: value,
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.metrics.Failed()
		p.logger.ErrorContext(ctx, "publish alert notification",
			slog.String("alert_id", evt.AlertID),
			slog.String("error", err.Error()))
		return
	}
	p.metrics.Published()
}
