package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	alertmodels "finreg/internal/alert/models"
	"finreg/internal/alert/service"
	alertmem "finreg/internal/alert/store/memory"
	"finreg/internal/audit"
	auditmem "finreg/internal/audit/store/memory"
	entitymodels "finreg/internal/entity/models"
	entityservice "finreg/internal/entity/service"
	entitymem "finreg/internal/entity/store/memory"
	violationmodels "finreg/internal/violation/models"
	violationservice "finreg/internal/violation/service"
	violationmem "finreg/internal/violation/store/memory"
	id "finreg/pkg/domain"
	dErrors "finreg/pkg/domain-errors"
	txcontext "finreg/pkg/platform/tx"
	"finreg/pkg/requestcontext"
)

// notifierSpy captures alerts handed to the notification pipeline.
type notifierSpy struct {
	mu     sync.Mutex
	events []alertmodels.AlertNotification
}

func (n *notifierSpy) Enqueue(alert alertmodels.AlertNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, alert)
}

func (n *notifierSpy) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func (n *notifierSpy) last() alertmodels.AlertNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

// AlertServiceSuite wires the alert engine against the real entity and
// violation services over in-memory stores, so event alerts and sweeps
// run the same paths production uses.
type AlertServiceSuite struct {
	suite.Suite

	ctx          context.Context
	now          time.Time
	entities     *entitymem.InMemoryStore
	violations   *violationmem.InMemoryStore
	alertStore   *alertmem.InMemoryStore
	audits       *auditmem.InMemoryStore
	notifier     *notifierSpy
	entitySvc    *entityservice.Service
	violationSvc *violationservice.Service
	svc          *service.Service
}

func TestAlertServiceSuite(t *testing.T) {
	suite.Run(t, new(AlertServiceSuite))
}

func (s *AlertServiceSuite) SetupTest() {
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.entities = entitymem.NewInMemoryStore()
	s.violations = violationmem.NewInMemoryStore()
	s.alertStore = alertmem.NewInMemoryStore()
	s.audits = auditmem.NewInMemoryStore()
	s.notifier = &notifierSpy{}

	auditLog := audit.NewLog(s.audits)
	sharedTx := txcontext.NewInMemoryRunner()
	s.svc = service.New(s.alertStore, s.entities, s.violations, auditLog,
		service.WithStoreTx(sharedTx),
		service.WithNotifier(s.notifier))
	s.entitySvc = entityservice.New(s.entities, s.violations, auditLog, s.svc,
		entityservice.WithStoreTx(sharedTx))
	s.violationSvc = violationservice.New(s.violations, s.entitySvc, auditLog, s.svc,
		violationservice.WithStoreTx(sharedTx))
}

// sweepCtx mimics the scheduler: a wall-clock override plus a system
// actor for the audit trail.
func (s *AlertServiceSuite) sweepCtx(at time.Time) context.Context {
	ctx := requestcontext.WithTime(context.Background(), at)
	return requestcontext.WithActor(ctx, "scheduler.nightly")
}

func (s *AlertServiceSuite) registerEntity(name string, mutate func(*entitymodels.Entity)) *entitymodels.Entity {
	expiry := s.now.AddDate(2, 0, 0)
	candidate := &entitymodels.Entity{
		Name:             name,
		Type:             id.EntityTypeBank,
		LicenseNumber:    "NY-BNK-50021",
		ComplianceStatus: id.StatusCompliant,
		RiskLevel:        id.RiskMedium,
		LicenseExpiry:    &expiry,
	}
	if mutate != nil {
		mutate(candidate)
	}
	entity, err := s.entitySvc.Register(s.ctx, candidate, "admin.chen")
	s.Require().NoError(err)
	return entity
}

func (s *AlertServiceSuite) recordViolation(entityID id.EntityID, severity id.Severity) *violationmodels.Violation {
	violation, err := s.violationSvc.Record(s.ctx, &violationmodels.Violation{
		EntityID:    entityID,
		Type:        "CAPITAL_RESERVE_SHORTFALL",
		Description: "Reserves below the statutory floor",
		Severity:    severity,
		FineAmount:  decimal.NewFromInt(75_000),
	}, "examiner.lee")
	s.Require().NoError(err)
	return violation
}

func (s *AlertServiceSuite) alertsOfType(entityID id.EntityID, alertType id.AlertType) []*alertmodels.AlertNotification {
	alerts, err := s.svc.ByEntity(s.ctx, entityID)
	s.Require().NoError(err)
	var out []*alertmodels.AlertNotification
	for _, a := range alerts {
		if a.Type == alertType {
			out = append(out, a)
		}
	}
	return out
}

func (s *AlertServiceSuite) auditCount(action audit.Action) int {
	entries, err := s.audits.ListByAction(s.ctx, action)
	s.Require().NoError(err)
	return len(entries)
}

// setViolationStatus moves a violation into a state reached outside this
// engine, e.g. a legal workflow confirming or appealing it.
func (s *AlertServiceSuite) setViolationStatus(violationID id.ViolationID, status id.ViolationStatus) {
	_, err := s.violations.Execute(s.ctx, violationID,
		func(*violationmodels.Violation) error { return nil },
		func(v *violationmodels.Violation) { v.Status = status },
	)
	s.Require().NoError(err)
}

// ===== Direct raises =====

func (s *AlertServiceSuite) TestRegistrationRaisesAlertThroughEngine() {
	entity := s.registerEntity("Meridian Trust Bank", nil)

	alerts := s.alertsOfType(entity.ID, id.AlertNewRegistration)
	s.Require().Len(alerts, 1)
	s.Equal(id.PriorityMedium, alerts[0].Priority)
	s.Equal("New entity registered: Meridian Trust Bank", alerts[0].Message)
	s.Equal(s.now, alerts[0].CreatedAt)

	s.Equal(1, s.auditCount(audit.ActionAlertCreated))
	s.Equal(1, s.notifier.count())
	s.Equal(alerts[0].ID, s.notifier.last().ID)
}

func (s *AlertServiceSuite) TestRaiseValidatesPayload() {
	err := s.svc.Raise(s.ctx, id.EntityID{}, "", "", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(dErrors.DetailsOf(err), "Entity id is required")
	s.Contains(dErrors.DetailsOf(err), "Alert type is required")
	s.Contains(dErrors.DetailsOf(err), "Alert priority is required")
	s.Contains(dErrors.DetailsOf(err), "Alert message is required")

	err = s.svc.Raise(s.ctx, id.NewEntityID(), "SMOKE_SIGNAL", id.PriorityHigh, "hm")
	s.Require().Error(err)
	s.Contains(dErrors.DetailsOf(err), "Invalid alert type: SMOKE_SIGNAL")

	s.Zero(s.notifier.count())
	s.Zero(s.auditCount(audit.ActionAlertCreated))
}

func (s *AlertServiceSuite) TestRaiseForViolationRequiresViolationID() {
	err := s.svc.RaiseForViolation(s.ctx, id.NewEntityID(), id.ViolationID{},
		id.AlertOverdueViolation, id.PriorityHigh, "orphaned alert")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// ===== Review-due sweep =====

func (s *AlertServiceSuite) TestReviewDueSweepCreatesOncePerOverdueEntity() {
	entity := s.registerEntity("Meridian Trust Bank", nil)
	ctx := s.sweepCtx(s.now.AddDate(0, 13, 0))

	created, err := s.svc.ReviewDue(ctx)
	s.Require().NoError(err)
	s.Equal(1, created)

	alerts := s.alertsOfType(entity.ID, id.AlertReviewDue)
	s.Require().Len(alerts, 1)
	s.Equal(id.PriorityMedium, alerts[0].Priority)
	s.Contains(alerts[0].Message, "due 2026-03-10")

	created, err = s.svc.ReviewDue(ctx)
	s.Require().NoError(err)
	s.Zero(created, "unresolved alert blocks a duplicate")

	_, err = s.svc.Acknowledge(ctx, alerts[0].ID, "supervisor.diaz")
	s.Require().NoError(err)
	created, err = s.svc.ReviewDue(ctx)
	s.Require().NoError(err)
	s.Zero(created, "acknowledgement alone does not clear the condition")

	_, err = s.svc.Resolve(ctx, alerts[0].ID, "Review scheduled for April", "supervisor.diaz")
	s.Require().NoError(err)
	created, err = s.svc.ReviewDue(ctx)
	s.Require().NoError(err)
	s.Equal(1, created, "resolution reopens alerting while the review stays overdue")

	s.Len(s.alertsOfType(entity.ID, id.AlertReviewDue), 2)
	s.Equal(3, s.notifier.count(), "registration plus the two sweeps that created alerts")
	s.Equal(3, s.auditCount(audit.ActionAlertCreated))

	entries, err := s.audits.ListByAction(s.ctx, audit.ActionAlertCreated)
	s.Require().NoError(err)
	s.Equal("scheduler.nightly", entries[0].PerformedBy, "sweep audit carries the scheduler identity")
}

func (s *AlertServiceSuite) TestReviewDueSkipsEntitiesNotYetDue() {
	urgent := s.registerEntity("Meridian Trust Bank", func(e *entitymodels.Entity) {
		e.RiskLevel = id.RiskCritical
	})
	relaxed := s.registerEntity("Pacific Shore Credit Union", nil)

	created, err := s.svc.ReviewDue(s.sweepCtx(s.now.AddDate(0, 4, 0)))
	s.Require().NoError(err)
	s.Equal(1, created, "only the quarterly schedule has lapsed after four months")
	s.Len(s.alertsOfType(urgent.ID, id.AlertReviewDue), 1)
	s.Empty(s.alertsOfType(relaxed.ID, id.AlertReviewDue))
}

// ===== License-expiry sweep =====

func (s *AlertServiceSuite) TestLicenseExpiringAlertsOncePerWindow() {
	entity := s.registerEntity("Meridian Trust Bank", func(e *entitymodels.Entity) {
		expiry := s.now.AddDate(0, 0, 20)
		e.LicenseExpiry = &expiry
	})
	ctx := s.sweepCtx(s.now)

	created, err := s.svc.LicenseExpiring(ctx, 30)
	s.Require().NoError(err)
	s.Equal(1, created)

	alerts := s.alertsOfType(entity.ID, id.AlertLicenseExpiring)
	s.Require().Len(alerts, 1)
	s.Equal(id.PriorityMedium, alerts[0].Priority)
	s.Contains(alerts[0].Message, "expires in 20 days")

	created, err = s.svc.LicenseExpiring(ctx, 30)
	s.Require().NoError(err)
	s.Zero(created)
	s.Len(s.alertsOfType(entity.ID, id.AlertLicenseExpiring), 1)
}

func (s *AlertServiceSuite) TestLicenseExpiringPriorityTiers() {
	tiers := []struct {
		name     string
		days     int
		priority id.AlertPriority
	}{
		{"Harbor National Bank", 5, id.PriorityUrgent},
		{"Lakeside Mutual Insurance", 10, id.PriorityHigh},
		{"Crescent City MSB", 25, id.PriorityMedium},
	}
	byName := make(map[string]id.EntityID, len(tiers))
	for _, tier := range tiers {
		expiry := s.now.AddDate(0, 0, tier.days)
		entity := s.registerEntity(tier.name, func(e *entitymodels.Entity) {
			e.LicenseExpiry = &expiry
		})
		byName[tier.name] = entity.ID
	}

	created, err := s.svc.LicenseExpiring(s.sweepCtx(s.now), 30)
	s.Require().NoError(err)
	s.Equal(3, created)

	for _, tier := range tiers {
		alerts := s.alertsOfType(byName[tier.name], id.AlertLicenseExpiring)
		s.Require().Len(alerts, 1, tier.name)
		s.Equal(tier.priority, alerts[0].Priority, tier.name)
	}
}

func (s *AlertServiceSuite) TestLicenseExpiringReAlertsAfterWindowSlides() {
	entity := s.registerEntity("Meridian Trust Bank", func(e *entitymodels.Entity) {
		expiry := s.now.AddDate(0, 0, 40)
		e.LicenseExpiry = &expiry
	})

	created, err := s.svc.LicenseExpiring(s.sweepCtx(s.now), 60)
	s.Require().NoError(err)
	s.Equal(1, created)

	// Five days before expiry the earlier alert sits outside the narrow
	// window, so the urgent reminder still goes out.
	later := s.now.AddDate(0, 0, 35)
	created, err = s.svc.LicenseExpiring(s.sweepCtx(later), 7)
	s.Require().NoError(err)
	s.Equal(1, created)

	alerts := s.alertsOfType(entity.ID, id.AlertLicenseExpiring)
	s.Require().Len(alerts, 2)
	s.Equal(id.PriorityUrgent, alerts[0].Priority, "newest first")
	s.Equal(later, alerts[0].CreatedAt)
	s.Equal(id.PriorityMedium, alerts[1].Priority)
}

// ===== Overdue-violation sweep =====

func (s *AlertServiceSuite) TestOverdueViolationSweepLinksViolations() {
	entity := s.registerEntity("Meridian Trust Bank", func(e *entitymodels.Entity) {
		e.ComplianceStatus = id.StatusNonCompliant
		e.RiskLevel = id.RiskCritical
	})
	high := s.recordViolation(entity.ID, id.SeverityHigh)
	critical := s.recordViolation(entity.ID, id.SeverityCritical)

	ctx := s.sweepCtx(s.now.AddDate(0, 0, 45))
	created, err := s.svc.OverdueViolations(ctx, 30)
	s.Require().NoError(err)
	s.Equal(2, created)

	overdue := s.alertsOfType(entity.ID, id.AlertOverdueViolation)
	s.Require().Len(overdue, 2)
	byViolation := make(map[id.ViolationID]*alertmodels.AlertNotification, len(overdue))
	for _, a := range overdue {
		byViolation[a.ViolationID] = a
	}
	s.Require().Contains(byViolation, critical.ID)
	s.Require().Contains(byViolation, high.ID)
	s.Equal(id.PriorityUrgent, byViolation[critical.ID].Priority)
	s.Equal(id.PriorityHigh, byViolation[high.ID].Priority)
	s.Contains(byViolation[high.ID].Message, "unresolved for 45 days")

	created, err = s.svc.OverdueViolations(ctx, 30)
	s.Require().NoError(err)
	s.Zero(created, "each violation alerts once while unresolved")
	s.Equal(5, s.auditCount(audit.ActionAlertCreated), "registration, two violations, two sweep alerts")
}

func (s *AlertServiceSuite) TestOverdueViolationSweepFiltersByStatus() {
	entity := s.registerEntity("Meridian Trust Bank", func(e *entitymodels.Entity) {
		e.ComplianceStatus = id.StatusNonCompliant
		e.RiskLevel = id.RiskCritical
	})
	underReview := s.recordViolation(entity.ID, id.SeverityMedium)
	confirmed := s.recordViolation(entity.ID, id.SeverityMedium)
	appealed := s.recordViolation(entity.ID, id.SeverityMedium)
	s.setViolationStatus(confirmed.ID, id.ViolationConfirmed)
	s.setViolationStatus(appealed.ID, id.ViolationAppealed)

	created, err := s.svc.OverdueViolations(s.sweepCtx(s.now.AddDate(0, 0, 20)), 10)
	s.Require().NoError(err)
	s.Equal(2, created, "appealed violations pause the overdue clock")

	overdue := s.alertsOfType(entity.ID, id.AlertOverdueViolation)
	s.Require().Len(overdue, 2)
	got := []id.ViolationID{overdue[0].ViolationID, overdue[1].ViolationID}
	s.ElementsMatch([]id.ViolationID{underReview.ID, confirmed.ID}, got)
}

func (s *AlertServiceSuite) TestSweepWindowsMustBeNonNegative() {
	_, err := s.svc.LicenseExpiring(s.ctx, -1)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.svc.OverdueViolations(s.ctx, -1)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	created, err := s.svc.ReviewDue(s.ctx)
	s.Require().NoError(err)
	s.Zero(created, "nothing registered, nothing due")
}

// ===== Acknowledge and resolve =====

func (s *AlertServiceSuite) TestAcknowledgeWorkflow() {
	entity := s.registerEntity("Meridian Trust Bank", nil)
	alertID := s.alertsOfType(entity.ID, id.AlertNewRegistration)[0].ID

	acked, err := s.svc.Acknowledge(s.ctx, alertID, "supervisor.diaz")
	s.Require().NoError(err)
	s.True(acked.Acknowledged)
	s.Equal("supervisor.diaz", acked.AcknowledgedBy)
	s.Require().NotNil(acked.AcknowledgedAt)
	s.Equal(s.now, *acked.AcknowledgedAt)
	s.False(acked.Resolved)

	count, err := s.svc.CountOpen(s.ctx)
	s.Require().NoError(err)
	s.Zero(count, "acknowledged alerts are no longer open")

	entries, err := s.audits.ListByAction(s.ctx, audit.ActionAlertAcknowledged)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("supervisor.diaz", entries[0].PerformedBy)

	_, err = s.svc.Acknowledge(s.ctx, alertID, "supervisor.diaz")
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyProcessed))

	_, err = s.svc.Acknowledge(s.ctx, alertID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *AlertServiceSuite) TestResolveWorkflow() {
	entity := s.registerEntity("Meridian Trust Bank", nil)
	alertID := s.alertsOfType(entity.ID, id.AlertNewRegistration)[0].ID

	resolved, err := s.svc.Resolve(s.ctx, alertID, "Duplicate of an earlier filing", "supervisor.diaz")
	s.Require().NoError(err)
	s.True(resolved.Resolved)
	s.Require().NotNil(resolved.ResolvedAt)
	s.Equal(s.now, *resolved.ResolvedAt)
	s.Equal("Duplicate of an earlier filing", resolved.Notes)
	s.False(resolved.Acknowledged, "resolution does not require a prior acknowledgement")

	s.Equal(1, s.auditCount(audit.ActionAlertResolved))

	_, err = s.svc.Resolve(s.ctx, alertID, "again", "supervisor.diaz")
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyProcessed))
}

func (s *AlertServiceSuite) TestManageUnknownAlert() {
	missing := id.NewAlertID()

	_, err := s.svc.Get(s.ctx, missing)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Acknowledge(s.ctx, missing, "supervisor.diaz")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Resolve(s.ctx, missing, "notes", "supervisor.diaz")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// ===== Queries =====

func (s *AlertServiceSuite) TestQuerySurface() {
	first := s.registerEntity("Meridian Trust Bank", nil)
	second := s.registerEntity("Pacific Shore Credit Union", func(e *entitymodels.Entity) {
		e.Type = id.EntityTypeCreditUnion
		e.LicenseNumber = "CA-CU-10432"
	})
	s.Require().NoError(s.svc.Raise(s.ctx, first.ID, id.AlertRiskEscalation, id.PriorityUrgent,
		"Examiner flagged unlicensed product line"))
	s.Require().NoError(s.svc.Raise(s.ctx, first.ID, id.AlertStatusChange, id.PriorityHigh,
		"Entity Meridian Trust Bank status changed to UNDER_INVESTIGATION"))

	byEntity, err := s.svc.ByEntity(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Len(byEntity, 3)

	fetched, err := s.svc.Get(s.ctx, byEntity[0].ID)
	s.Require().NoError(err)
	s.Equal(byEntity[0].ID, fetched.ID)

	_, err = s.svc.ByEntity(s.ctx, id.EntityID{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	urgentFirst, err := s.svc.HighPriorityOpen(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(urgentFirst, 2)
	s.Equal(id.PriorityUrgent, urgentFirst[0].Priority)
	s.Equal(id.PriorityHigh, urgentFirst[1].Priority)

	_, err = s.svc.Resolve(s.ctx, urgentFirst[1].ID, "Downgraded after review", "supervisor.diaz")
	s.Require().NoError(err)
	_, err = s.svc.Acknowledge(s.ctx, s.alertsOfType(second.ID, id.AlertNewRegistration)[0].ID, "supervisor.diaz")
	s.Require().NoError(err)

	unresolved, err := s.svc.Unresolved(s.ctx)
	s.Require().NoError(err)
	s.Len(unresolved, 3, "acknowledgement leaves an alert unresolved")

	remaining, err := s.svc.HighPriorityOpen(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(id.PriorityUrgent, remaining[0].Priority)

	open, err := s.svc.CountOpen(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, open, "resolved and acknowledged alerts both drop out")
}
