// Package report assembles the compliance summary served to ops
// dashboards. The summary is a read-only aggregate over the entity,
// violation, and alert stores, fanned out concurrently and cached in
// Redis for a short TTL. The cache is advisory: any cache failure falls
// back to the stores and the dashboards stay up.
package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	entitymodels "finreg/internal/entity/models"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	"finreg/pkg/requestcontext"
)

const (
	summaryCacheKey = "finreg:report:compliance-summary"
	defaultCacheTTL = 60 * time.Second

	// Window for the "licenses expiring soon" headline number.
	licenseWindowDays = 60
)

// EntitySource provides the entity aggregates. The entity store
// satisfies it.
type EntitySource interface {
	CountActive(ctx context.Context) (int, error)
	CountsByStatus(ctx context.Context) (map[id.ComplianceStatus]int, error)
	CountsByRiskLevel(ctx context.Context) (map[id.RiskLevel]int, error)
	CountsByType(ctx context.Context) (map[id.EntityType]int, error)
	LicenseExpiringWithin(ctx context.Context, now time.Time, days int) ([]*entitymodels.Entity, error)
	ReviewOverdue(ctx context.Context, now time.Time) ([]*entitymodels.Entity, error)
}

// ViolationSource provides the violation aggregates. The violation store
// satisfies it.
type ViolationSource interface {
	CountActive(ctx context.Context) (int, error)
	CountsBySeverity(ctx context.Context) (map[id.Severity]int, error)
	TotalUnpaidFines(ctx context.Context) (decimal.Decimal, error)
}

// AlertSource provides the alert aggregates. The alert store satisfies
// it.
type AlertSource interface {
	CountOpen(ctx context.Context) (int, error)
}

// ComplianceSummary is the dashboard headline: portfolio counts, the
// items needing attention, and the outstanding fine exposure.
type ComplianceSummary struct {
	GeneratedAt          time.Time                   `json:"generated_at"`
	ActiveEntities       int                         `json:"active_entities"`
	EntitiesByStatus     map[id.ComplianceStatus]int `json:"entities_by_status"`
	EntitiesByRisk       map[id.RiskLevel]int        `json:"entities_by_risk"`
	EntitiesByType       map[id.EntityType]int       `json:"entities_by_type"`
	LicensesExpiringSoon int                         `json:"licenses_expiring_soon"`
	OverdueReviews       int                         `json:"overdue_reviews"`
	ActiveViolations     int                         `json:"active_violations"`
	ViolationsBySeverity map[id.Severity]int         `json:"violations_by_severity"`
	UnpaidFineTotal      decimal.Decimal             `json:"unpaid_fine_total"`
	OpenAlerts           int                         `json:"open_alerts"`
}

type Service struct {
	entities   EntitySource
	violations ViolationSource
	alerts     AlertSource
	cache      Cache
	ttl        time.Duration
	logger     *slog.Logger
	metrics    *Metrics
}

type Option func(*Service)

// WithCache enables the read-through summary cache.
func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(entities EntitySource, violations ViolationSource, alerts AlertSource, opts ...Option) *Service {
	s := &Service{
		entities:   entities,
		violations: violations,
		alerts:     alerts,
		ttl:        defaultCacheTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ComplianceSummary returns the current portfolio aggregate, from the
// cache when a fresh copy exists. Each aggregate is fetched in its own
// goroutine; the first store error cancels the rest.
func (s *Service) ComplianceSummary(ctx context.Context) (*ComplianceSummary, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}

	now := requestcontext.Now(ctx)
	summary := &ComplianceSummary{GeneratedAt: now}

	// Each goroutine writes its own field, so no lock is needed.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.entities.CountActive(gctx)
		summary.ActiveEntities = n
		return err
	})
	g.Go(func() error {
		counts, err := s.entities.CountsByStatus(gctx)
		summary.EntitiesByStatus = counts
		return err
	})
	g.Go(func() error {
		counts, err := s.entities.CountsByRiskLevel(gctx)
		summary.EntitiesByRisk = counts
		return err
	})
	g.Go(func() error {
		counts, err := s.entities.CountsByType(gctx)
		summary.EntitiesByType = counts
		return err
	})
	g.Go(func() error {
		expiring, err := s.entities.LicenseExpiringWithin(gctx, now, licenseWindowDays)
		summary.LicensesExpiringSoon = len(expiring)
		return err
	})
	g.Go(func() error {
		overdue, err := s.entities.ReviewOverdue(gctx, now)
		summary.OverdueReviews = len(overdue)
		return err
	})
	g.Go(func() error {
		n, err := s.violations.CountActive(gctx)
		summary.ActiveViolations = n
		return err
	})
	g.Go(func() error {
		counts, err := s.violations.CountsBySeverity(gctx)
		summary.ViolationsBySeverity = counts
		return err
	})
	g.Go(func() error {
		total, err := s.violations.TotalUnpaidFines(gctx)
		summary.UnpaidFineTotal = total
		return err
	})
	g.Go(func() error {
		n, err := s.alerts.CountOpen(gctx)
		summary.OpenAlerts = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "assemble compliance summary")
	}

	s.metrics.Built()
	s.storeInCache(ctx, summary)
	return summary, nil
}

func (s *Service) fromCache(ctx context.Context) *ComplianceSummary {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, summaryCacheKey)
	if err != nil {
		s.logger.WarnContext(ctx, "summary cache read failed", slog.String("error", err.Error()))
		return nil
	}
	if data == nil {
		s.metrics.Miss()
		return nil
	}
	var summary ComplianceSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		s.logger.WarnContext(ctx, "summary cache entry unreadable", slog.String("error", err.Error()))
		return nil
	}
	s.metrics.Hit()
	return &summary
}

func (s *Service) storeInCache(ctx context.Context, summary *ComplianceSummary) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		s.logger.WarnContext(ctx, "summary cache encode failed", slog.String("error", err.Error()))
		return
	}
	if err := s.cache.Set(ctx, summaryCacheKey, data, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "summary cache write failed", slog.String("error", err.Error()))
	}
}
