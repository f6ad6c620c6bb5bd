package compliance

import (
	"context"
	"testing"

	"github.com/banking/regional-compliance/internal/compliance/verification"
	"github.com/banking/regional-compliance/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func screenName(t *testing.T, e *Engine, req domain.SanctionsRequest) *domain.SanctionsCheckResult {
	t.Helper()
	res, err := e.CheckSanctions(context.Background(), req)
	require.NoError(t, err)
	return res
}

func TestCheckSanctions_TerroristProgramIsCritical(t *testing.T) {
	for _, name := range allProfiles {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, name)

			res := screenName(t, e, domain.SanctionsRequest{Name: "Taliban financial network", EntityType: domain.EntityOrganization})

			assert.True(t, res.Matched)
			assert.True(t, res.RequiresReview)
			assert.Equal(t, domain.RiskCritical, res.RiskLevel)
			assert.GreaterOrEqual(t, res.HighestScore(), 90.0)
		})
	}
}

func TestCheckSanctions_CleanName(t *testing.T) {
	for _, name := range allProfiles {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, name)

			res := screenName(t, e, domain.SanctionsRequest{Name: "Jane Doe", Nationality: "FR"})

			assert.False(t, res.Matched)
			assert.False(t, res.RequiresReview)
			assert.Equal(t, domain.RiskLow, res.RiskLevel)
			assert.Empty(t, res.Matches)
			assert.Equal(t, name, res.Provider)
			assert.Equal(t, testNow, res.CheckedAt)
		})
	}
}

func TestCheckSanctions_SanctionedNationality(t *testing.T) {
	e := newEngine(t, "canada-compliance")

	res := screenName(t, e, domain.SanctionsRequest{Name: "Kim Lee", Nationality: "kp"})

	require.Len(t, res.Matches, 1)
	assert.Equal(t, 100.0, res.Matches[0].MatchScore)
	assert.Equal(t, "KP", res.Matches[0].EntityName)
	assert.Equal(t, "FINTRAC Country Sanctions", res.Matches[0].ListName)
	assert.Equal(t, domain.RiskCritical, res.RiskLevel)
}

func TestCheckSanctions_SectoralKeyword(t *testing.T) {
	e := newEngine(t, "usa-compliance")

	res := screenName(t, e, domain.SanctionsRequest{Name: "Russia Holdings"})

	require.Len(t, res.Matches, 1)
	assert.Equal(t, 85.0, res.Matches[0].MatchScore)
	assert.Equal(t, "UKRAINE-EO13662", res.Matches[0].Program)
	assert.Equal(t, domain.RiskHigh, res.RiskLevel)
}

func TestCheckSanctions_ExternalSourceMatches(t *testing.T) {
	src := stubSanctions{matches: []domain.SanctionsMatch{{
		ListName:   "Vendor Watchlist",
		MatchScore: 72,
		EntityName: "J. Doe",
		EntityType: domain.EntityIndividual,
		Program:    "FRAUD",
	}}}
	e := newEngine(t, "usa-compliance", WithServices(verification.Services{Sanctions: src}))

	res := screenName(t, e, domain.SanctionsRequest{Name: "Jane Doe"})

	assert.True(t, res.Matched)
	assert.Equal(t, domain.RiskMedium, res.RiskLevel)
	assert.Equal(t, "Vendor Watchlist", res.Matches[0].ListName)
}

func TestCheckSanctions_RequiresName(t *testing.T) {
	e := newEngine(t, "usa-compliance")

	_, err := e.CheckSanctions(context.Background(), domain.SanctionsRequest{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
