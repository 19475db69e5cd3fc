package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/triage-router/internal/types"
)

func testGroups() []types.ServiceGroup {
	return []types.ServiceGroup{
		{ID: "billing", Keywords: []string{"invoice", "payment", "refund"}},
		{ID: "technical", Keywords: []string{"error", "crash", "bug"}},
	}
}

func TestRuleClassifierCategoryByKeyword(t *testing.T) {
	c := NewRuleClassifier(testGroups(), "general")

	out, err := c.Classify(context.Background(), "My INVOICE is wrong")
	require.NoError(t, err)
	assert.Equal(t, "billing", out.Category)
	assert.InDelta(t, 0.75, out.Confidence, 1e-9)
}

func TestRuleClassifierFirstMatchWins(t *testing.T) {
	c := NewRuleClassifier(testGroups(), "general")

	// Text matches both groups; declaration order decides.
	out, err := c.Classify(context.Background(), "payment page shows an error")
	require.NoError(t, err)
	assert.Equal(t, "billing", out.Category)
}

func TestRuleClassifierDefaultCategory(t *testing.T) {
	c := NewRuleClassifier(testGroups(), "general")

	out, err := c.Classify(context.Background(), "how do I change my avatar")
	require.NoError(t, err)
	assert.Equal(t, "general", out.Category)
	assert.InDelta(t, 0.5, out.Confidence, 1e-9)
}

func TestRuleClassifierSentiment(t *testing.T) {
	c := NewRuleClassifier(nil, "general")
	ctx := context.Background()

	out, _ := c.Classify(ctx, "this is terrible and unacceptable")
	assert.Equal(t, "negative", out.Sentiment)

	out, _ = c.Classify(ctx, "thanks, great service")
	assert.Equal(t, "positive", out.Sentiment)

	out, _ = c.Classify(ctx, "please update my address")
	assert.Equal(t, "neutral", out.Sentiment)
}

func TestRuleClassifierComplexity(t *testing.T) {
	c := NewRuleClassifier(nil, "general")
	ctx := context.Background()

	short, _ := c.Classify(ctx, "help")
	require.NotNil(t, short.ComplexityScore)
	assert.InDelta(t, 0.25, *short.ComplexityScore, 1e-9)

	long, _ := c.Classify(ctx, strings.Repeat("word ", 100))
	require.NotNil(t, long.ComplexityScore)
	assert.InDelta(t, 0.75, *long.ComplexityScore, 1e-9)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	local := NewRuleClassifier(nil, "general")
	r.Register("local", local)

	got, err := r.Get("local")
	require.NoError(t, err)
	assert.Equal(t, "local", got.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, clampUnit(-0.5))
	assert.Equal(t, 1.0, clampUnit(1.5))
	assert.Equal(t, 0.42, clampUnit(0.42))
}
