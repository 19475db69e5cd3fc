package routing

import (
	"sort"
	"strings"

	"github.com/tributary-ai/triage-router/internal/types"
)

// Condition is a pure predicate over a request and its classifier output.
type Condition func(req *types.Request, cls *types.ClassifierOutput) bool

// Rule is an explicit routing override evaluated before scoring. Rules form
// an ordered table of (predicate, target) pairs; the first active match
// whose confidence floor is met wins.
type Rule struct {
	Name        string
	Priority    int // lower evaluates first
	Condition   Condition
	TargetGroup string

	// MinConfidence gates the rule on the classifier's confidence;
	// zero disables the gate.
	MinConfidence float64

	Active bool
}

// RuleTable is a fixed, documented-order rule list.
type RuleTable struct {
	rules []Rule
}

// NewRuleTable creates a table with rules sorted by Priority ascending.
// Order among equal priorities follows insertion order.
func NewRuleTable(rules []Rule) *RuleTable {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return &RuleTable{rules: ordered}
}

// Evaluate walks the table in order and returns the first matching rule's
// target group.
func (t *RuleTable) Evaluate(req *types.Request, cls *types.ClassifierOutput) (target, ruleName string, matched bool) {
	for _, rule := range t.rules {
		if !rule.Active || rule.Condition == nil {
			continue
		}
		if rule.MinConfidence > 0 && (cls == nil || cls.Confidence < rule.MinConfidence) {
			continue
		}
		if rule.Condition(req, cls) {
			return rule.TargetGroup, rule.Name, true
		}
	}
	return "", "", false
}

// Len returns the number of rules in the table.
func (t *RuleTable) Len() int {
	return len(t.rules)
}

// TextContainsAny builds a condition matching any of the given substrings
// case-insensitively in the request text.
func TextContainsAny(substrings ...string) Condition {
	lowered := make([]string, len(substrings))
	for i, s := range substrings {
		lowered[i] = strings.ToLower(s)
	}
	return func(req *types.Request, _ *types.ClassifierOutput) bool {
		text := strings.ToLower(req.FullText())
		for _, s := range lowered {
			if s != "" && strings.Contains(text, s) {
				return true
			}
		}
		return false
	}
}

// CategoryIs builds a condition matching the classifier's predicted category
// case-insensitively.
func CategoryIs(category string) Condition {
	lowered := strings.ToLower(category)
	return func(_ *types.Request, cls *types.ClassifierOutput) bool {
		return cls != nil && strings.ToLower(cls.Category) == lowered
	}
}

// PriorityIs builds a condition matching the request priority.
func PriorityIs(p types.Priority) Condition {
	return func(req *types.Request, _ *types.ClassifierOutput) bool {
		return req.Priority == p
	}
}
