package routing

import (
	"context"
	"time"
)

// Decision is the immutable audit record of one routing call. It is
// append-only: outcome feedback adjusts future capacity reads, never the
// record itself.
type Decision struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id"`

	// PrimaryGroup is the single group selected to handle the request.
	PrimaryGroup string `json:"primary_group"`

	// SecondaryGroups are up to two viable alternatives, best first,
	// always disjoint from the primary.
	SecondaryGroups []string `json:"secondary_groups,omitempty"`

	Confidence     float64 `json:"confidence"`
	EstimatedHours int     `json:"estimated_hours"`

	// AssignedAgent is the least-loaded active member of the primary
	// group, when the roster is non-empty.
	AssignedAgent string `json:"assigned_agent,omitempty"`

	// Reasoning is a human-readable summary of the top scoring factors.
	Reasoning string `json:"reasoning"`

	// EscalationPath is the ordered, senior-ascending handler sequence;
	// never empty.
	EscalationPath []string `json:"escalation_path"`

	// MatchedRule names the override rule that short-circuited scoring,
	// when one fired.
	MatchedRule string `json:"matched_rule,omitempty"`

	// FallbackMode marks a decision produced by the degraded path after
	// an internal failure.
	FallbackMode bool `json:"fallback_mode,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// DecisionStore persists routing decisions as append-only audit records.
type DecisionStore interface {
	SaveDecision(ctx context.Context, decision *Decision) error
	GetDecision(ctx context.Context, id string) (*Decision, error)
}

// OutcomeRecorder folds actual resolution outcomes back into the rolling
// history the capacity tracker reads.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, groupID string, actualHours float64, satisfaction float64) error
}
