package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"finreg/internal/alert/models"
	"finreg/internal/alert/store/memory"
	id "finreg/pkg/domain"
	"finreg/pkg/platform/sentinel"
)

type AlertStoreSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *memory.InMemoryStore
}

func TestAlertStoreSuite(t *testing.T) {
	suite.Run(t, new(AlertStoreSuite))
}

func (s *AlertStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.store = memory.NewInMemoryStore()
}

func (s *AlertStoreSuite) alert(entityID id.EntityID, alertType id.AlertType, priority id.AlertPriority, createdAt time.Time) *models.AlertNotification {
	return &models.AlertNotification{
		ID:        id.NewAlertID(),
		EntityID:  entityID,
		Type:      alertType,
		Priority:  priority,
		Message:   "test alert",
		CreatedAt: createdAt,
	}
}

func (s *AlertStoreSuite) mustCreate(alert *models.AlertNotification) *models.AlertNotification {
	s.Require().NoError(s.store.Create(s.ctx, alert))
	return alert
}

// ===== Create and lookup =====

func (s *AlertStoreSuite) TestCreateAndFind() {
	alert := s.mustCreate(s.alert(id.NewEntityID(), id.AlertViolation, id.PriorityUrgent, s.now))

	found, err := s.store.FindByID(s.ctx, alert.ID)
	s.Require().NoError(err)
	s.Equal(alert.Message, found.Message)

	found.Message = "mutated copy"
	again, err := s.store.FindByID(s.ctx, alert.ID)
	s.Require().NoError(err)
	s.Equal("test alert", again.Message, "store hands out clones")
}

func (s *AlertStoreSuite) TestCreateDuplicateConflicts() {
	alert := s.mustCreate(s.alert(id.NewEntityID(), id.AlertViolation, id.PriorityHigh, s.now))
	err := s.store.Create(s.ctx, alert)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *AlertStoreSuite) TestFindUnknown() {
	_, err := s.store.FindByID(s.ctx, id.NewAlertID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *AlertStoreSuite) TestEventAlertsNeverDeduplicate() {
	entityID := id.NewEntityID()
	s.mustCreate(s.alert(entityID, id.AlertStatusChange, id.PriorityHigh, s.now))
	s.mustCreate(s.alert(entityID, id.AlertStatusChange, id.PriorityHigh, s.now))

	alerts, err := s.store.ListByEntity(s.ctx, entityID)
	s.Require().NoError(err)
	s.Len(alerts, 2)
}

// ===== CreateIfAbsent dedup =====

func (s *AlertStoreSuite) TestReviewDueUniquePerEntityWhileUnresolved() {
	entityID := id.NewEntityID()

	created, err := s.store.CreateIfAbsent(s.ctx, s.alert(entityID, id.AlertReviewDue, id.PriorityMedium, s.now), time.Time{})
	s.Require().NoError(err)
	s.True(created)

	created, err = s.store.CreateIfAbsent(s.ctx, s.alert(entityID, id.AlertReviewDue, id.PriorityMedium, s.now), time.Time{})
	s.Require().NoError(err)
	s.False(created, "unresolved alert blocks a second one")

	otherEntity, err := s.store.CreateIfAbsent(s.ctx, s.alert(id.NewEntityID(), id.AlertReviewDue, id.PriorityMedium, s.now), time.Time{})
	s.Require().NoError(err)
	s.True(otherEntity, "scope is per entity")
}

func (s *AlertStoreSuite) TestReviewDueResolutionUnblocks() {
	entityID := id.NewEntityID()
	first := s.alert(entityID, id.AlertReviewDue, id.PriorityMedium, s.now)
	created, err := s.store.CreateIfAbsent(s.ctx, first, time.Time{})
	s.Require().NoError(err)
	s.True(created)

	_, err = s.store.Execute(s.ctx, first.ID,
		func(a *models.AlertNotification) error { return a.CanResolve() },
		func(a *models.AlertNotification) { a.ApplyResolution("review held", s.now) })
	s.Require().NoError(err)

	created, err = s.store.CreateIfAbsent(s.ctx, s.alert(entityID, id.AlertReviewDue, id.PriorityMedium, s.now.Add(time.Hour)), time.Time{})
	s.Require().NoError(err)
	s.True(created, "resolved alerts stop blocking")
}

func (s *AlertStoreSuite) TestAcknowledgementDoesNotUnblock() {
	entityID := id.NewEntityID()
	first := s.alert(entityID, id.AlertReviewDue, id.PriorityMedium, s.now)
	created, err := s.store.CreateIfAbsent(s.ctx, first, time.Time{})
	s.Require().NoError(err)
	s.True(created)

	_, err = s.store.Execute(s.ctx, first.ID,
		func(a *models.AlertNotification) error { return a.CanAcknowledge() },
		func(a *models.AlertNotification) { a.ApplyAcknowledgement("officer.diaz", s.now) })
	s.Require().NoError(err)

	created, err = s.store.CreateIfAbsent(s.ctx, s.alert(entityID, id.AlertReviewDue, id.PriorityMedium, s.now), time.Time{})
	s.Require().NoError(err)
	s.False(created, "only resolution clears the dedup scope")
}

func (s *AlertStoreSuite) TestOverdueViolationUniquePerViolation() {
	entityID := id.NewEntityID()
	violationID := id.NewViolationID()

	first := s.alert(entityID, id.AlertOverdueViolation, id.PriorityHigh, s.now)
	first.ViolationID = violationID
	created, err := s.store.CreateIfAbsent(s.ctx, first, time.Time{})
	s.Require().NoError(err)
	s.True(created)

	dup := s.alert(entityID, id.AlertOverdueViolation, id.PriorityHigh, s.now)
	dup.ViolationID = violationID
	created, err = s.store.CreateIfAbsent(s.ctx, dup, time.Time{})
	s.Require().NoError(err)
	s.False(created)

	sibling := s.alert(entityID, id.AlertOverdueViolation, id.PriorityUrgent, s.now)
	sibling.ViolationID = id.NewViolationID()
	created, err = s.store.CreateIfAbsent(s.ctx, sibling, time.Time{})
	s.Require().NoError(err)
	s.True(created, "a different violation of the same entity gets its own alert")
}

func (s *AlertStoreSuite) TestLicenseExpiringWindowedDedup() {
	entityID := id.NewEntityID()
	window := s.now.AddDate(0, 0, -30)

	old := s.alert(entityID, id.AlertLicenseExpiring, id.PriorityMedium, s.now.AddDate(0, 0, -45))
	created, err := s.store.CreateIfAbsent(s.ctx, old, s.now.AddDate(0, 0, -75))
	s.Require().NoError(err)
	s.True(created)

	created, err = s.store.CreateIfAbsent(s.ctx, s.alert(entityID, id.AlertLicenseExpiring, id.PriorityHigh, s.now), window)
	s.Require().NoError(err)
	s.True(created, "an unresolved alert older than the window does not block")

	created, err = s.store.CreateIfAbsent(s.ctx, s.alert(entityID, id.AlertLicenseExpiring, id.PriorityHigh, s.now), window)
	s.Require().NoError(err)
	s.False(created, "an unresolved alert inside the window blocks")
}

// ===== Queries =====

func (s *AlertStoreSuite) TestCountOpen() {
	entityID := id.NewEntityID()
	s.mustCreate(s.alert(entityID, id.AlertViolation, id.PriorityUrgent, s.now))
	acked := s.mustCreate(s.alert(entityID, id.AlertReviewDue, id.PriorityMedium, s.now))
	resolved := s.mustCreate(s.alert(entityID, id.AlertStatusChange, id.PriorityHigh, s.now))

	_, err := s.store.Execute(s.ctx, acked.ID,
		func(a *models.AlertNotification) error { return a.CanAcknowledge() },
		func(a *models.AlertNotification) { a.ApplyAcknowledgement("officer.diaz", s.now) })
	s.Require().NoError(err)
	_, err = s.store.Execute(s.ctx, resolved.ID,
		func(a *models.AlertNotification) error { return a.CanResolve() },
		func(a *models.AlertNotification) { a.ApplyResolution("done", s.now) })
	s.Require().NoError(err)

	count, err := s.store.CountOpen(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	alerts, err := s.store.ListByEntity(s.ctx, entityID)
	s.Require().NoError(err)
	s.Len(alerts, 3)
}

func (s *AlertStoreSuite) TestHighPriorityOrdering() {
	entityID := id.NewEntityID()
	oldUrgent := s.mustCreate(s.alert(entityID, id.AlertViolation, id.PriorityUrgent, s.now.Add(-2*time.Hour)))
	newUrgent := s.mustCreate(s.alert(entityID, id.AlertOverdueViolation, id.PriorityUrgent, s.now))
	high := s.mustCreate(s.alert(entityID, id.AlertStatusChange, id.PriorityHigh, s.now.Add(-time.Hour)))
	s.mustCreate(s.alert(entityID, id.AlertReviewDue, id.PriorityMedium, s.now))

	resolvedUrgent := s.mustCreate(s.alert(entityID, id.AlertViolation, id.PriorityUrgent, s.now.Add(-3*time.Hour)))
	_, err := s.store.Execute(s.ctx, resolvedUrgent.ID,
		func(a *models.AlertNotification) error { return a.CanResolve() },
		func(a *models.AlertNotification) { a.ApplyResolution("handled", s.now) })
	s.Require().NoError(err)

	alerts, err := s.store.ListUnresolvedHighPriority(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(alerts, 3, "MEDIUM and resolved alerts excluded")
	s.Equal(newUrgent.ID, alerts[0].ID)
	s.Equal(oldUrgent.ID, alerts[1].ID)
	s.Equal(high.ID, alerts[2].ID)
}
