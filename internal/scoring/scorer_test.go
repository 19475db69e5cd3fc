package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/triage-router/internal/types"
)

func billingGroup() types.ServiceGroup {
	return types.ServiceGroup{
		ID:                       "billing",
		Name:                     "Billing",
		Keywords:                 []string{"invoice", "payment", "refund", "charge"},
		MaxCapacity:              10,
		Priorities:               []types.Priority{types.PriorityLow, types.PriorityMedium, types.PriorityHigh},
		EscalationThresholdHours: 8,
	}
}

func healthySnapshot(workload int) types.CapacitySnapshot {
	return types.CapacitySnapshot{
		GroupID:             "billing",
		CurrentWorkload:     workload,
		AvgResolutionHours:  6,
		SpecializationScore: 0.8,
		AvailabilityStatus:  types.AvailabilityAvailable,
	}
}

func TestDefaultWeightsValidate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
}

func TestWeightsValidateRejectsBadSum(t *testing.T) {
	w := DefaultWeights()
	w.KeywordMatch = 0.5
	assert.Error(t, w.Validate())
}

func TestWeightsValidateRejectsNegative(t *testing.T) {
	w := Weights{KeywordMatch: -0.1, ClassifierConfidence: 0.4, CapacityHeadroom: 0.3, Specialization: 0.2, PriorityCapability: 0.2}
	assert.Error(t, w.Validate())
}

func TestScoreTotalBounded(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	req := &types.Request{Text: "invoice payment refund charge", Priority: types.PriorityMedium}
	cls := &types.ClassifierOutput{Category: "billing", Confidence: 1.0}

	gs := scorer.Score(req, cls, billingGroup(), healthySnapshot(0))

	for name, v := range gs.Components {
		assert.GreaterOrEqual(t, v, 0.0, "component %s below 0", name)
		assert.LessOrEqual(t, v, 1.0, "component %s above 1", name)
	}
	assert.GreaterOrEqual(t, gs.Total, 0.0)
	assert.LessOrEqual(t, gs.Total, 1.0)
	assert.LessOrEqual(t, gs.Confidence, 1.0)
}

func TestScoreConfidenceShift(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	req := &types.Request{Text: "invoice", Priority: types.PriorityMedium}

	gs := scorer.Score(req, nil, billingGroup(), healthySnapshot(5))
	assert.InDelta(t, gs.Total+0.1, gs.Confidence, 1e-9)
}

func TestKeywordMatchFraction(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	req := &types.Request{Subject: "Invoice problem", Text: "the PAYMENT failed and I want a refund", Priority: types.PriorityMedium}

	gs := scorer.Score(req, nil, billingGroup(), healthySnapshot(5))

	assert.Equal(t, 3, gs.MatchedKeywords)
	assert.InDelta(t, 0.75, gs.Components[ComponentKeywordMatch], 1e-9)
}

func TestKeywordMatchNoKeywords(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	group := billingGroup()
	group.Keywords = nil
	req := &types.Request{Text: "anything", Priority: types.PriorityMedium}

	gs := scorer.Score(req, nil, group, healthySnapshot(5))
	assert.Zero(t, gs.Components[ComponentKeywordMatch])
}

func TestClassifierConfidenceComponent(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	req := &types.Request{Text: "hello", Priority: types.PriorityMedium}
	snap := healthySnapshot(5)

	cases := []struct {
		name string
		cls  *types.ClassifierOutput
		want float64
	}{
		{"matches group id", &types.ClassifierOutput{Category: "billing", Confidence: 0.9}, 0.9},
		{"matches group name case-insensitively", &types.ClassifierOutput{Category: "BILLING", Confidence: 0.8}, 0.8},
		{"matches a keyword", &types.ClassifierOutput{Category: "refund", Confidence: 0.7}, 0.7},
		{"different category", &types.ClassifierOutput{Category: "technical", Confidence: 0.9}, 0},
		{"nil output", nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gs := scorer.Score(req, tc.cls, billingGroup(), snap)
			assert.InDelta(t, tc.want, gs.Components[ComponentClassifierConfidence], 1e-9)
		})
	}
}

func TestCapacityHeadroomComponent(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	req := &types.Request{Text: "hello", Priority: types.PriorityMedium}

	gs := scorer.Score(req, nil, billingGroup(), healthySnapshot(3))
	assert.InDelta(t, 0.7, gs.Components[ComponentCapacityHeadroom], 1e-9)

	gs = scorer.Score(req, nil, billingGroup(), healthySnapshot(15))
	assert.Zero(t, gs.Components[ComponentCapacityHeadroom], "overloaded group clamps to zero headroom")

	zeroCap := billingGroup()
	zeroCap.MaxCapacity = 0
	gs = scorer.Score(req, nil, zeroCap, healthySnapshot(0))
	assert.Zero(t, gs.Components[ComponentCapacityHeadroom])
}

func TestDegradedSnapshotNeutralSubstitutes(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	req := &types.Request{Text: "hello", Priority: types.PriorityMedium}
	snap := types.CapacitySnapshot{GroupID: "billing", Degraded: true, WorkloadUnknown: true}

	gs := scorer.Score(req, nil, billingGroup(), snap)

	assert.InDelta(t, 0.5, gs.Components[ComponentCapacityHeadroom], 1e-9)
	assert.InDelta(t, 0.7, gs.Components[ComponentSpecialization], 1e-9)
}

func TestPriorityCapabilityComponent(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	snap := healthySnapshot(5)

	req := &types.Request{Text: "hello", Priority: types.PriorityHigh}
	gs := scorer.Score(req, nil, billingGroup(), snap)
	assert.InDelta(t, 1.0, gs.Components[ComponentPriorityCapability], 1e-9)

	req.Priority = types.PriorityCritical // not declared by the group
	gs = scorer.Score(req, nil, billingGroup(), snap)
	assert.InDelta(t, 0.3, gs.Components[ComponentPriorityCapability], 1e-9)
}

func TestTopComponents(t *testing.T) {
	w := DefaultWeights()
	gs := GroupScore{Components: map[string]float64{
		ComponentKeywordMatch:         1.0, // 0.25 weighted
		ComponentClassifierConfidence: 1.0, // 0.30 weighted
		ComponentCapacityHeadroom:     0.1,
		ComponentSpecialization:       0.1,
		ComponentPriorityCapability:   0.1,
	}}

	top := gs.TopComponents(w, 2)
	require.Len(t, top, 2)
	assert.Equal(t, ComponentClassifierConfidence, top[0])
	assert.Equal(t, ComponentKeywordMatch, top[1])
}
