//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"finreg/internal/entity/models"
	"finreg/internal/entity/store/postgres"
	id "finreg/pkg/domain"
	"finreg/pkg/platform/sentinel"
	"finreg/pkg/testutil/containers"
)

type EntityStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	now      time.Time
}

func TestEntityStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(EntityStoreSuite))
}

func (s *EntityStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *EntityStoreSuite) SetupTest() {
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	err := s.postgres.TruncateTables(context.Background(),
		"audit_entries", "alerts", "violations", "entities")
	s.Require().NoError(err)
}

func (s *EntityStoreSuite) newEntity(name string) *models.Entity {
	return &models.Entity{
		ID:               id.NewEntityID(),
		Name:             name,
		Type:             id.EntityTypeBank,
		RegistrationDate: s.now,
		LicenseNumber:    "NY-BNK-1",
		ComplianceStatus: id.StatusCompliant,
		RiskLevel:        id.RiskMedium,
		NextReviewDate:   s.now.AddDate(0, 6, 0),
		TotalAssets:      decimal.NewFromInt(1_000_000),
		EmployeeCount:    120,
		Active:           true,
		CreatedAt:        s.now,
		CreatedBy:        "examiner.lee",
		UpdatedAt:        s.now,
		UpdatedBy:        "examiner.lee",
	}
}

func (s *EntityStoreSuite) create(e *models.Entity) {
	s.Require().NoError(s.store.Create(context.Background(), e))
}

func (s *EntityStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()

	expiry := s.now.AddDate(1, 0, 0)
	lastReview := s.now.AddDate(0, -6, 0)
	e := s.newEntity("Meridian Trust Bank")
	e.NMLSID = "553201"
	e.DBAName = "Meridian"
	e.ContactEmail = "compliance@meridian.example"
	e.City = "Albany"
	e.State = "NY"
	e.LicenseExpiry = &expiry
	e.LastReviewDate = &lastReview
	e.Notes = "Onboarded after charter conversion."
	s.create(e)

	found, err := s.store.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, found.ID)
	s.Equal(e.Name, found.Name)
	s.Equal(e.Type, found.Type)
	s.Equal(e.NMLSID, found.NMLSID)
	s.Equal(e.ComplianceStatus, found.ComplianceStatus)
	s.Equal(e.RiskLevel, found.RiskLevel)
	s.True(found.TotalAssets.Equal(e.TotalAssets), "total assets should survive the round trip")
	s.Equal(e.EmployeeCount, found.EmployeeCount)
	s.True(found.Active)
	s.Require().NotNil(found.LicenseExpiry)
	s.WithinDuration(expiry, *found.LicenseExpiry, time.Second)
	s.Require().NotNil(found.LastReviewDate)
	s.WithinDuration(lastReview, *found.LastReviewDate, time.Second)
	s.WithinDuration(e.NextReviewDate, found.NextReviewDate, time.Second)
	s.Equal(e.Notes, found.Notes)
}

func (s *EntityStoreSuite) TestNullableFieldsStayNull() {
	ctx := context.Background()

	e := s.newEntity("Harbor National Bank")
	s.create(e)

	found, err := s.store.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Nil(found.LicenseExpiry)
	s.Nil(found.LastReviewDate)
}

func (s *EntityStoreSuite) TestCreateDuplicateIDConflicts() {
	ctx := context.Background()

	e := s.newEntity("Meridian Trust Bank")
	s.create(e)

	dup := s.newEntity("Another Name")
	dup.ID = e.ID
	err := s.store.Create(ctx, dup)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *EntityStoreSuite) TestFindMissingEntity() {
	_, err := s.store.FindByID(context.Background(), id.NewEntityID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentExecuteSerializes verifies the row lock: concurrent
// read-modify-write mutations through Execute must not lose updates.
func (s *EntityStoreSuite) TestConcurrentExecuteSerializes() {
	ctx := context.Background()
	const goroutines = 50

	e := s.newEntity("Meridian Trust Bank")
	e.EmployeeCount = 0
	s.create(e)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, e.ID,
				func(*models.Entity) error { return nil },
				func(current *models.Entity) { current.EmployeeCount++ })
			if err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(0), failures.Load(), "no mutation should fail")
	found, err := s.store.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(goroutines, found.EmployeeCount, "every increment must be kept")
}

func (s *EntityStoreSuite) TestExecuteValidationFailureLeavesRowUntouched() {
	ctx := context.Background()

	e := s.newEntity("Meridian Trust Bank")
	s.create(e)

	boom := sentinel.ErrInvalidState
	current, err := s.store.Execute(ctx, e.ID,
		func(*models.Entity) error { return boom },
		func(current *models.Entity) { current.Name = "Mutated" })
	s.ErrorIs(err, boom)
	s.Require().NotNil(current, "validation failures should return the locked state")
	s.Equal("Meridian Trust Bank", current.Name)

	found, err := s.store.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal("Meridian Trust Bank", found.Name)
}

func (s *EntityStoreSuite) TestListsAndCounts() {
	ctx := context.Background()

	bank := s.newEntity("Meridian Trust Bank")
	msb := s.newEntity("Empire Money Services")
	msb.Type = id.EntityTypeMSB
	msb.ComplianceStatus = id.StatusNonCompliant
	msb.RiskLevel = id.RiskHigh
	inactive := s.newEntity("Wound Down Lender")
	inactive.Active = false
	s.create(bank)
	s.create(msb)
	s.create(inactive)

	active, err := s.store.ListActive(ctx)
	s.Require().NoError(err)
	s.Len(active, 2)
	s.Equal("Empire Money Services", active[0].Name, "listings are ordered by name")

	banks, err := s.store.ListByType(ctx, id.EntityTypeBank)
	s.Require().NoError(err)
	s.Len(banks, 1)

	nonCompliant, err := s.store.ListByStatus(ctx, id.StatusNonCompliant)
	s.Require().NoError(err)
	s.Len(nonCompliant, 1)

	matches, err := s.store.SearchByName(ctx, "money")
	s.Require().NoError(err)
	s.Len(matches, 1, "search should be case insensitive")

	count, err := s.store.CountActive(ctx)
	s.Require().NoError(err)
	s.Equal(2, count)

	byStatus, err := s.store.CountsByStatus(ctx)
	s.Require().NoError(err)
	s.Equal(1, byStatus[id.StatusCompliant])
	s.Equal(1, byStatus[id.StatusNonCompliant])

	byRisk, err := s.store.CountsByRiskLevel(ctx)
	s.Require().NoError(err)
	s.Equal(1, byRisk[id.RiskHigh])

	byType, err := s.store.CountsByType(ctx)
	s.Require().NoError(err)
	s.Equal(1, byType[id.EntityTypeMSB])
}

func (s *EntityStoreSuite) TestReviewAndLicenseWindows() {
	ctx := context.Background()

	overdue := s.newEntity("Overdue Reviews Inc")
	overdue.NextReviewDate = s.now.AddDate(0, 0, -3)
	expiring := s.newEntity("Expiring Licensee")
	expirysSoon := s.now.AddDate(0, 0, 10)
	expiring.LicenseExpiry = &expirysSoon
	fresh := s.newEntity("Fresh Licensee")
	nextYear := s.now.AddDate(1, 0, 0)
	fresh.LicenseExpiry = &nextYear
	s.create(overdue)
	s.create(expiring)
	s.create(fresh)

	due, err := s.store.ReviewOverdue(ctx, s.now)
	s.Require().NoError(err)
	s.Len(due, 1)
	s.Equal(overdue.ID, due[0].ID)

	soon, err := s.store.LicenseExpiringWithin(ctx, s.now, 30)
	s.Require().NoError(err)
	s.Len(soon, 1)
	s.Equal(expiring.ID, soon[0].ID)

	upcoming, err := s.store.RequiringReview(ctx, s.now, 365)
	s.Require().NoError(err)
	s.Len(upcoming, 3, "every entity reviews within a year")
}
