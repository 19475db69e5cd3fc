// Package routing assigns incoming requests to service groups: it ranks
// candidate groups by weighted score, applies a load-balancing override,
// derives an escalation path and a resolution estimate, and persists each
// decision as an immutable audit record.
package routing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/triage-router/internal/capacity"
	"github.com/tributary-ai/triage-router/internal/scoring"
	"github.com/tributary-ai/triage-router/internal/types"
)

// BalancerConfig holds the load-balancing override thresholds. The stock
// values are tunable configuration, not load-bearing business rules.
type BalancerConfig struct {
	// ScoreGap is the maximum score difference between the top two groups
	// for the override to be considered.
	ScoreGap float64 `yaml:"score_gap"`

	// SaturationRatio is the workload/capacity ratio at or above which the
	// top group counts as saturated.
	SaturationRatio float64 `yaml:"saturation_ratio"`

	// RelievedRatio is the workload/capacity ratio below which the
	// runner-up counts as having headroom.
	RelievedRatio float64 `yaml:"relieved_ratio"`
}

// DefaultBalancerConfig returns the stock override thresholds.
func DefaultBalancerConfig() BalancerConfig {
	return BalancerConfig{
		ScoreGap:        0.15,
		SaturationRatio: 0.90,
		RelievedRatio:   0.70,
	}
}

// secondaryScoreFloor is the minimum total score for a group to appear as a
// secondary candidate.
const secondaryScoreFloor = 0.3

// Fallback-decision constants for the degraded path.
const (
	fallbackConfidence = 0.5
	fallbackHours      = 24
)

// priorityMultipliers scale the resolution estimate: severe work is
// worked sooner.
var priorityMultipliers = map[types.Priority]float64{
	types.PriorityCritical: 0.25,
	types.PriorityHigh:     0.5,
	types.PriorityMedium:   1.0,
	types.PriorityLow:      1.5,
}

// Escalation tiers appended above the group manager for critical work.
const (
	tierGeneralManager = "general_manager"
	tierExecutive      = "executive"
)

// Router selects a primary service group per request. Route never returns
// an error: any internal failure produces the fixed fallback decision.
type Router struct {
	groups  []types.ServiceGroup
	byID    map[string]types.ServiceGroup
	tracker *capacity.Tracker
	scorer  *scoring.Scorer
	store   capacity.RecordStore

	decisions DecisionStore
	outcomes  OutcomeRecorder
	rules     *RuleTable

	balancer BalancerConfig

	// defaultGroup receives the fixed fallback decision and any request no
	// group could be scored for.
	defaultGroup string

	clock  func() time.Time
	logger *logrus.Logger
}

// NewRouter creates a router over the configured service groups. The group
// list must be non-empty and contain defaultGroup; config validation
// enforces that before startup completes.
func NewRouter(groups []types.ServiceGroup, defaultGroup string, tracker *capacity.Tracker, scorer *scoring.Scorer, store capacity.RecordStore, decisions DecisionStore, outcomes OutcomeRecorder, logger *logrus.Logger) *Router {
	byID := make(map[string]types.ServiceGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	return &Router{
		groups:       groups,
		byID:         byID,
		tracker:      tracker,
		scorer:       scorer,
		store:        store,
		decisions:    decisions,
		outcomes:     outcomes,
		rules:        NewRuleTable(nil),
		balancer:     DefaultBalancerConfig(),
		defaultGroup: defaultGroup,
		clock:        time.Now,
		logger:       logger,
	}
}

// SetRules installs the override rule table.
func (r *Router) SetRules(rules *RuleTable) {
	r.rules = rules
}

// SetBalancer overrides the load-balancing thresholds.
func (r *Router) SetBalancer(cfg BalancerConfig) {
	r.balancer = cfg
}

// SetClock overrides the time source. Intended for tests.
func (r *Router) SetClock(clock func() time.Time) {
	r.clock = clock
}

// Route assigns the request to a service group and persists the decision.
//
// The happy path scores every group against a fresh capacity snapshot,
// applies rule overrides and the load-balancing override, then derives the
// secondary candidates, resolution estimate, escalation path, optional agent
// assignment and reasoning. Any internal failure falls back to the fixed
// fallback decision instead of surfacing an error; Route always returns a
// usable decision.
func (r *Router) Route(ctx context.Context, req *types.Request, cls *types.ClassifierOutput) *Decision {
	decision, err := r.route(ctx, req, cls)
	if err != nil {
		r.logger.WithError(err).WithField("request_id", req.ID).Error("Routing failed, using fallback decision")
		decision = r.fallbackDecision(req)
	}

	if err := r.decisions.SaveDecision(ctx, decision); err != nil {
		// The decision is still usable; audit loss is logged, not fatal.
		r.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": req.ID,
			"decision":   decision.ID,
		}).Error("Failed to persist routing decision")
	}

	r.logger.WithFields(logrus.Fields{
		"request_id":      req.ID,
		"primary_group":   decision.PrimaryGroup,
		"confidence":      decision.Confidence,
		"estimated_hours": decision.EstimatedHours,
		"fallback_mode":   decision.FallbackMode,
	}).Info("Request routed")

	return decision
}

// route is the fallible inner step behind Route.
func (r *Router) route(ctx context.Context, req *types.Request, cls *types.ClassifierOutput) (*Decision, error) {
	if len(r.groups) == 0 {
		return nil, fmt.Errorf("no service groups configured")
	}

	scores := r.scoreGroups(ctx, req, cls)

	primary, overridden := r.selectPrimary(scores)

	// An override rule beats scoring when its target exists.
	var matchedRule string
	if target, name, ok := r.rules.Evaluate(req, cls); ok {
		if g, exists := r.byID[target]; exists {
			matchedRule = name
			for _, gs := range scores {
				if gs.Group.ID == g.ID {
					primary = gs
					break
				}
			}
		} else {
			r.logger.WithFields(logrus.Fields{
				"rule":   name,
				"target": target,
			}).Warn("Override rule targets unknown group, ignoring")
		}
	}

	group := primary.Group

	decision := &Decision{
		ID:              uuid.New().String(),
		RequestID:       req.ID,
		PrimaryGroup:    group.ID,
		SecondaryGroups: secondaryGroups(scores, group.ID),
		Confidence:      primary.Confidence,
		EstimatedHours:  estimateResolutionHours(group, req.Priority, cls.Complexity()),
		AssignedAgent:   r.assignAgent(ctx, group.ID),
		Reasoning:       r.reasoning(primary, overridden),
		EscalationPath:  escalationPath(group.ID, req.Priority),
		MatchedRule:     matchedRule,
		FallbackMode:    primary.Snapshot.Degraded,
		Timestamp:       r.clock(),
	}

	return decision, nil
}

// scoreGroups scores every configured group with a fresh capacity snapshot,
// sorted by total score descending.
func (r *Router) scoreGroups(ctx context.Context, req *types.Request, cls *types.ClassifierOutput) []scoring.GroupScore {
	scores := make([]scoring.GroupScore, 0, len(r.groups))
	for _, g := range r.groups {
		snap := r.tracker.Snapshot(ctx, g)
		scores = append(scores, r.scorer.Score(req, cls, g, snap))
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Total > scores[j].Total
	})
	return scores
}

// selectPrimary picks the top-ranked group, unless the load-balancing
// override fires: when the top two scores are within ScoreGap AND the top
// group is saturated AND the runner-up has headroom, the runner-up wins.
// All three conditions must hold simultaneously.
func (r *Router) selectPrimary(scores []scoring.GroupScore) (primary scoring.GroupScore, overridden bool) {
	primary = scores[0]
	if len(scores) < 2 {
		return primary, false
	}

	top, runnerUp := scores[0], scores[1]
	gap := top.Total - runnerUp.Total
	if gap >= r.balancer.ScoreGap {
		return primary, false
	}
	if loadRatio(top) < r.balancer.SaturationRatio {
		return primary, false
	}
	if loadRatio(runnerUp) >= r.balancer.RelievedRatio {
		return primary, false
	}

	r.logger.WithFields(logrus.Fields{
		"top_group":      top.Group.ID,
		"runner_up":      runnerUp.Group.ID,
		"score_gap":      gap,
		"top_load":       loadRatio(top),
		"runner_up_load": loadRatio(runnerUp),
	}).Info("Load-balancing override engaged")

	return runnerUp, true
}

// loadRatio is a group's workload/capacity ratio; zero capacity reads as
// fully saturated.
func loadRatio(gs scoring.GroupScore) float64 {
	if gs.Group.MaxCapacity <= 0 {
		return 1.0
	}
	return float64(gs.Snapshot.CurrentWorkload) / float64(gs.Group.MaxCapacity)
}

// secondaryGroups returns the next two groups scoring above the floor,
// descending, excluding the primary. May be empty.
func secondaryGroups(scores []scoring.GroupScore, primaryID string) []string {
	var secondary []string
	for _, gs := range scores {
		if gs.Group.ID == primaryID || gs.Total <= secondaryScoreFloor {
			continue
		}
		secondary = append(secondary, gs.Group.ID)
		if len(secondary) == 2 {
			break
		}
	}
	return secondary
}

// estimateResolutionHours scales the group's escalation threshold by request
// complexity and priority. Severity shortens the estimate; the result is
// floored at one hour.
func estimateResolutionHours(group types.ServiceGroup, priority types.Priority, complexity float64) int {
	multiplier, ok := priorityMultipliers[priority]
	if !ok {
		multiplier = priorityMultipliers[types.PriorityMedium]
	}

	hours := int(math.Round(group.EscalationThresholdHours * (0.5 + complexity) * multiplier))
	if hours < 1 {
		hours = 1
	}
	return hours
}

// escalationPath builds the senior-ascending handler sequence: the group
// itself, its manager for high and critical work, and the general-manager
// and executive tiers additionally for critical work. Never empty.
func escalationPath(groupID string, priority types.Priority) []string {
	path := []string{groupID}

	if priority == types.PriorityHigh || priority == types.PriorityCritical {
		path = append(path, groupID+"_manager")
	}
	if priority == types.PriorityCritical {
		path = append(path, tierGeneralManager, tierExecutive)
	}
	return path
}

// assignAgent picks the active member of the group with the fewest open
// assignments. Empty rosters and store failures are non-fatal and simply
// leave the decision unassigned.
func (r *Router) assignAgent(ctx context.Context, groupID string) string {
	members, err := r.store.ActiveMembers(ctx, groupID)
	if err != nil {
		r.logger.WithError(err).WithField("group", groupID).Warn("Member roster read failed, skipping agent assignment")
		return ""
	}
	if len(members) == 0 {
		return ""
	}

	best := members[0]
	for _, m := range members[1:] {
		if m.OpenAssignments < best.OpenAssignments {
			best = m
		}
	}
	return best.ID
}

// reasoning summarizes the top two weighted score components in plain
// language, with a low-workload remark when the group has clear headroom
// and a note when the load balancer redirected the request.
func (r *Router) reasoning(primary scoring.GroupScore, overridden bool) string {
	weights := r.scorer.Weights()
	var parts []string

	for _, component := range primary.TopComponents(weights, 2) {
		parts = append(parts, describeComponent(primary, component))
	}

	if !primary.Snapshot.WorkloadUnknown && primary.Group.MaxCapacity > 0 && loadRatio(primary) < 0.5 {
		parts = append(parts, "group has low current workload")
	}
	if primary.Snapshot.Degraded {
		parts = append(parts, "capacity data unavailable, scored with neutral defaults")
	}
	if overridden {
		parts = append(parts, "load balancer redirected away from a saturated group")
	}

	return fmt.Sprintf("Routed to %s: %s", primary.Group.ID, strings.Join(parts, "; "))
}

// describeComponent renders one score component for the reasoning string.
func describeComponent(gs scoring.GroupScore, component string) string {
	value := gs.Components[component]
	switch component {
	case scoring.ComponentKeywordMatch:
		return fmt.Sprintf("matched %d of %d specialization keywords (%.2f)", gs.MatchedKeywords, len(gs.Group.Keywords), value)
	case scoring.ComponentClassifierConfidence:
		return fmt.Sprintf("classifier category match with confidence %.2f", value)
	case scoring.ComponentCapacityHeadroom:
		return fmt.Sprintf("capacity headroom %.2f", value)
	case scoring.ComponentSpecialization:
		return fmt.Sprintf("historical specialization score %.2f", value)
	case scoring.ComponentPriorityCapability:
		return fmt.Sprintf("priority capability %.2f", value)
	default:
		return fmt.Sprintf("%s %.2f", component, value)
	}
}

// fallbackDecision is the single named degraded composition: a fixed,
// always-usable decision for the default group.
func (r *Router) fallbackDecision(req *types.Request) *Decision {
	return &Decision{
		ID:             uuid.New().String(),
		RequestID:      req.ID,
		PrimaryGroup:   r.defaultGroup,
		Confidence:     fallbackConfidence,
		EstimatedHours: fallbackHours,
		Reasoning:      fmt.Sprintf("Fallback routing to %s: capacity data unavailable", r.defaultGroup),
		EscalationPath: []string{r.defaultGroup, r.defaultGroup + "_manager"},
		FallbackMode:   true,
		Timestamp:      r.clock(),
	}
}

// UpdateFromOutcome folds an actual resolution outcome into the primary
// group's rolling history for future capacity reads. The original decision
// record is never mutated.
func (r *Router) UpdateFromOutcome(ctx context.Context, decisionID string, actualHours float64, satisfaction float64) error {
	decision, err := r.decisions.GetDecision(ctx, decisionID)
	if err != nil {
		return fmt.Errorf("decision %s not found: %w", decisionID, err)
	}

	if err := r.outcomes.RecordOutcome(ctx, decision.PrimaryGroup, actualHours, satisfaction); err != nil {
		return fmt.Errorf("failed to record outcome for group %s: %w", decision.PrimaryGroup, err)
	}

	r.logger.WithFields(logrus.Fields{
		"decision":     decisionID,
		"group":        decision.PrimaryGroup,
		"actual_hours": actualHours,
		"satisfaction": satisfaction,
	}).Info("Outcome recorded")

	return nil
}
