package classify

import (
	"context"
	"strings"

	"github.com/tributary-ai/triage-router/internal/types"
)

// categoryRule is one (predicate, outcome) pair. Rules are evaluated in
// declaration order; the first match wins.
type categoryRule struct {
	match      func(text string) bool
	category   string
	confidence float64
}

// RuleClassifier is the local, unlimited classifier: an ordered table of
// keyword predicates over normalized text. It backs the "local" provider
// and is the selector's universal fallback, so it must never fail.
type RuleClassifier struct {
	rules           []categoryRule
	defaultCategory string
}

var _ Classifier = (*RuleClassifier)(nil)

// NewRuleClassifier builds the rule table from the configured service
// groups: each group contributes one rule matching any of its keywords, in
// group-declaration order, followed by the built-in general rules.
func NewRuleClassifier(groups []types.ServiceGroup, defaultCategory string) *RuleClassifier {
	var rules []categoryRule
	for _, g := range groups {
		rules = append(rules, categoryRule{
			match:      containsAny(g.Keywords),
			category:   g.ID,
			confidence: 0.75,
		})
	}

	return &RuleClassifier{
		rules:           rules,
		defaultCategory: defaultCategory,
	}
}

// Name identifies the backend.
func (c *RuleClassifier) Name() string {
	return "local"
}

// Classify walks the rule table in order and derives sentiment and
// complexity from simple text heuristics. It never returns an error.
func (c *RuleClassifier) Classify(_ context.Context, text string) (*types.ClassifierOutput, error) {
	normalized := strings.ToLower(text)

	category := c.defaultCategory
	confidence := 0.5
	for _, rule := range c.rules {
		if rule.match(normalized) {
			category = rule.category
			confidence = rule.confidence
			break
		}
	}

	complexity := complexityOf(normalized)
	return &types.ClassifierOutput{
		Category:        category,
		Confidence:      confidence,
		Sentiment:       sentimentOf(normalized),
		ComplexityScore: &complexity,
	}, nil
}

// containsAny builds a predicate over already-normalized text.
func containsAny(keywords []string) func(string) bool {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw != "" {
			lowered = append(lowered, strings.ToLower(kw))
		}
	}
	return func(text string) bool {
		for _, kw := range lowered {
			if strings.Contains(text, kw) {
				return true
			}
		}
		return false
	}
}

var negativeMarkers = []string{"angry", "unacceptable", "terrible", "refund", "broken", "furious", "worst", "cancel"}

var positiveMarkers = []string{"thanks", "thank you", "great", "love", "appreciate", "excellent"}

// sentimentOf is a coarse marker count over normalized text.
func sentimentOf(text string) string {
	negative, positive := 0, 0
	for _, m := range negativeMarkers {
		if strings.Contains(text, m) {
			negative++
		}
	}
	for _, m := range positiveMarkers {
		if strings.Contains(text, m) {
			positive++
		}
	}

	switch {
	case negative > positive:
		return "negative"
	case positive > negative:
		return "positive"
	default:
		return "neutral"
	}
}

// complexityOf estimates complexity from text length: longer reports tend to
// describe harder problems. Output in [0,1].
func complexityOf(text string) float64 {
	words := len(strings.Fields(text))
	switch {
	case words < 20:
		return 0.25
	case words < 80:
		return 0.5
	case words < 200:
		return 0.75
	default:
		return 1.0
	}
}
