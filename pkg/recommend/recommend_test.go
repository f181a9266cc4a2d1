package recommend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/recommend"
)

func TestPriority_DecisionTable(t *testing.T) {
	tests := []struct {
		score   int
		urgency domain.Urgency
		want    domain.Priority
	}{
		{70, domain.UrgencyHigh, domain.PriorityHigh},
		{100, domain.UrgencyHigh, domain.PriorityHigh},
		{69, domain.UrgencyHigh, domain.PriorityMedium},
		{39, domain.UrgencyHigh, domain.PriorityLow},
		{95, domain.UrgencyLow, domain.PriorityLow},
		{40, domain.UrgencyMedium, domain.PriorityMedium},
		{90, domain.UrgencyMedium, domain.PriorityMedium},
		{39, domain.UrgencyMedium, domain.PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, recommend.Priority(tt.score, tt.urgency), "score=%d urgency=%s", tt.score, tt.urgency)
	}
}

func TestSynthesize_FollowsVerticalOrder(t *testing.T) {
	c := catalog.Default()
	p := &domain.LeadProfile{
		Score:     85,
		Urgency:   domain.UrgencyHigh,
		Verticals: []domain.Vertical{"analytics", "performance", "security"},
	}

	recs, err := recommend.Synthesize(c, p)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	var got []domain.Vertical
	for _, r := range recs {
		got = append(got, r.Vertical)
		assert.Equal(t, domain.PriorityHigh, r.Priority)
		assert.NotEmpty(t, r.Title)
		assert.NotEmpty(t, r.Services)
	}
	assert.Equal(t, p.Verticals, got)

	content, _ := c.Vertical("analytics")
	assert.Equal(t, content.EstimatedImpact, recs[0].EstimatedImpact)

	// Recommendations own their service lists.
	recs[0].Services[0] = "mutated"
	content, _ = c.Vertical("analytics")
	assert.NotEqual(t, "mutated", content.Services[0])
}

func TestSynthesize_Empty(t *testing.T) {
	recs, err := recommend.Synthesize(catalog.Default(), &domain.LeadProfile{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSynthesize_UnknownVertical(t *testing.T) {
	_, err := recommend.Synthesize(catalog.Default(), &domain.LeadProfile{Verticals: []domain.Vertical{"astrology"}})
	assert.True(t, domain.IsIntegrity(err))
}

func kinds(steps []domain.NextStep) []domain.StepKind {
	out := make([]domain.StepKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func TestPlan_DecisionTable(t *testing.T) {
	tests := []struct {
		name    string
		tier    domain.Tier
		urgency domain.Urgency
		want    []domain.StepKind
	}{
		{"qualified high", domain.TierQualified, domain.UrgencyHigh,
			[]domain.StepKind{domain.StepImmediateSession, domain.StepTechnicalDiagnosis}},
		{"qualified medium", domain.TierQualified, domain.UrgencyMedium,
			[]domain.StepKind{domain.StepQualificationCall, domain.StepTechnicalDiagnosis}},
		{"hot high", domain.TierHot, domain.UrgencyHigh,
			[]domain.StepKind{domain.StepQualificationCall, domain.StepTechnicalDiagnosis}},
		{"hot low", domain.TierHot, domain.UrgencyLow,
			[]domain.StepKind{domain.StepQualificationCall, domain.StepTechnicalDiagnosis}},
		{"warm high", domain.TierWarm, domain.UrgencyHigh,
			[]domain.StepKind{domain.StepEducationalContent, domain.StepTechnicalDiagnosis}},
		{"cold low", domain.TierCold, domain.UrgencyLow,
			[]domain.StepKind{domain.StepEducationalContent, domain.StepTechnicalDiagnosis}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := recommend.Plan(catalog.Default(), tt.tier, tt.urgency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kinds(steps))
			assert.Equal(t, "/contato?subject=diagnostic", steps[len(steps)-1].CTATarget)
		})
	}
}
