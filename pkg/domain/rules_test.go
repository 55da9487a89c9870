package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStatusTransitionTable exercises the full from-state x to-state
// cross-product so a table edit cannot silently open or close a transition.
func TestStatusTransitionTable(t *testing.T) {
	for _, from := range ComplianceStatuses() {
		for _, to := range ComplianceStatuses() {
			allowed, reason := from.CanTransitionTo(to)

			if from == StatusSuspended && to == StatusCompliant {
				assert.False(t, allowed, "SUSPENDED -> COMPLIANT must be forbidden")
				assert.Contains(t, reason, "PENDING_REVIEW")
				continue
			}
			assert.True(t, allowed, "%s -> %s should be permitted", from, to)
			assert.Empty(t, reason)
		}
	}
}

func TestStatusTransitionWarnings(t *testing.T) {
	t.Run("investigation to compliant is flagged", func(t *testing.T) {
		warning := StatusUnderInvestigation.TransitionWarning(StatusCompliant)
		assert.Contains(t, warning, "secondary review")
	})

	t.Run("ordinary transitions carry no warning", func(t *testing.T) {
		for _, from := range ComplianceStatuses() {
			for _, to := range ComplianceStatuses() {
				if from == StatusUnderInvestigation && to == StatusCompliant {
					continue
				}
				assert.Empty(t, from.TransitionWarning(to), "%s -> %s", from, to)
			}
		}
	})
}

func TestStatusAlertRule(t *testing.T) {
	assert.True(t, StatusNonCompliant.RequiresAlert())
	assert.True(t, StatusUnderInvestigation.RequiresAlert())
	assert.True(t, StatusSuspended.RequiresAlert())

	assert.False(t, StatusCompliant.RequiresAlert())
	assert.False(t, StatusPendingReview.RequiresAlert())
	assert.False(t, StatusProbation.RequiresAlert())
}

// TestRiskOrdering verifies the total order LOW < MEDIUM < HIGH < CRITICAL.
func TestRiskOrdering(t *testing.T) {
	levels := RiskLevels()
	for i := 1; i < len(levels); i++ {
		assert.True(t, levels[i].IsHigherThan(levels[i-1]),
			"%s should outrank %s", levels[i], levels[i-1])
		assert.False(t, levels[i-1].IsHigherThan(levels[i]))
	}
	assert.False(t, RiskHigh.IsHigherThan(RiskHigh), "a level never outranks itself")
}

// TestReviewIntervalTable pins the review schedule: CRITICAL every 3 months,
// HIGH every 6, MEDIUM and LOW every 12.
func TestReviewIntervalTable(t *testing.T) {
	assert.Equal(t, 3, RiskCritical.ReviewIntervalMonths())
	assert.Equal(t, 6, RiskHigh.ReviewIntervalMonths())
	assert.Equal(t, 12, RiskMedium.ReviewIntervalMonths())
	assert.Equal(t, 12, RiskLow.ReviewIntervalMonths())

	from := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC), RiskCritical.NextReviewDate(from))
	assert.Equal(t, time.Date(2025, time.September, 10, 9, 0, 0, 0, time.UTC), RiskHigh.NextReviewDate(from))
	assert.Equal(t, time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC), RiskLow.NextReviewDate(from))
}

func TestSeverityOrderingAndWeights(t *testing.T) {
	sevs := Severities()
	for i := 1; i < len(sevs); i++ {
		assert.True(t, sevs[i].IsMoreSevereThan(sevs[i-1]))
	}

	assert.Equal(t, 20, SeverityCritical.ScoreWeight())
	assert.Equal(t, 10, SeverityHigh.ScoreWeight())
	assert.Equal(t, 5, SeverityMedium.ScoreWeight())
	assert.Equal(t, 5, SeverityLow.ScoreWeight())
}

func TestViolationActiveStates(t *testing.T) {
	assert.True(t, ViolationUnderReview.IsActive())
	assert.True(t, ViolationConfirmed.IsActive())
	assert.True(t, ViolationAppealed.IsActive())

	assert.False(t, ViolationResolved.IsActive())
	assert.False(t, ViolationDismissed.IsActive())
}

func TestAlertPriorityMappings(t *testing.T) {
	t.Run("violation severity to priority", func(t *testing.T) {
		assert.Equal(t, PriorityUrgent, ViolationAlertPriority(SeverityCritical))
		assert.Equal(t, PriorityHigh, ViolationAlertPriority(SeverityHigh))
		assert.Equal(t, PriorityMedium, ViolationAlertPriority(SeverityMedium))
		assert.Equal(t, PriorityMedium, ViolationAlertPriority(SeverityLow))
	})

	t.Run("license expiry windows", func(t *testing.T) {
		assert.Equal(t, PriorityUrgent, LicenseExpiryPriority(0))
		assert.Equal(t, PriorityUrgent, LicenseExpiryPriority(7))
		assert.Equal(t, PriorityHigh, LicenseExpiryPriority(8))
		assert.Equal(t, PriorityHigh, LicenseExpiryPriority(14))
		assert.Equal(t, PriorityMedium, LicenseExpiryPriority(15))
		assert.Equal(t, PriorityMedium, LicenseExpiryPriority(30))
	})

	t.Run("priority rank total order", func(t *testing.T) {
		assert.True(t, PriorityUrgent.Rank() > PriorityHigh.Rank())
		assert.True(t, PriorityHigh.Rank() > PriorityMedium.Rank())
		assert.True(t, PriorityMedium.Rank() > PriorityLow.Rank())
	})
}

func TestParseEnums(t *testing.T) {
	t.Run("valid values round-trip", func(t *testing.T) {
		status, err := ParseComplianceStatus("SUSPENDED")
		require.NoError(t, err)
		assert.Equal(t, StatusSuspended, status)

		risk, err := ParseRiskLevel("CRITICAL")
		require.NoError(t, err)
		assert.Equal(t, RiskCritical, risk)

		sev, err := ParseSeverity("HIGH")
		require.NoError(t, err)
		assert.Equal(t, SeverityHigh, sev)

		entityType, err := ParseEntityType("CREDIT_UNION")
		require.NoError(t, err)
		assert.Equal(t, EntityTypeCreditUnion, entityType)
	})

	t.Run("unknown values rejected", func(t *testing.T) {
		_, err := ParseComplianceStatus("DORMANT")
		require.Error(t, err)

		_, err = ParseRiskLevel("SEVERE")
		require.Error(t, err)

		_, err = ParseSeverity("minor")
		require.Error(t, err)

		_, err = ParseEntityType("HEDGE_FUND")
		require.Error(t, err)

		_, err = ParseAlertType("PAGER")
		require.Error(t, err)

		_, err = ParseAlertPriority("SEV1")
		require.Error(t, err)
	})

	t.Run("empty values rejected", func(t *testing.T) {
		_, err := ParseComplianceStatus("")
		require.Error(t, err)

		_, err = ParseViolationStatus("")
		require.Error(t, err)
	})
}
