// Package scoring combines weighted routing factors into a per-group score.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tributary-ai/triage-router/internal/types"
)

// Score component names, used in breakdowns and reasoning strings.
const (
	ComponentKeywordMatch         = "keyword_match"
	ComponentClassifierConfidence = "classifier_confidence"
	ComponentCapacityHeadroom     = "capacity_headroom"
	ComponentSpecialization       = "specialization_performance"
	ComponentPriorityCapability   = "priority_capability"
)

// Neutral component values substituted when the backing store is degraded.
const (
	neutralCapacityHeadroom = 0.5
	neutralSpecialization   = 0.7
)

// Weights holds the relative weight of each scoring component. The weights
// are tunable configuration but must sum to 1.0.
type Weights struct {
	KeywordMatch         float64 `yaml:"keyword_match"`
	ClassifierConfidence float64 `yaml:"classifier_confidence"`
	CapacityHeadroom     float64 `yaml:"capacity_headroom"`
	Specialization       float64 `yaml:"specialization_performance"`
	PriorityCapability   float64 `yaml:"priority_capability"`
}

// DefaultWeights returns the stock weighting.
func DefaultWeights() Weights {
	return Weights{
		KeywordMatch:         0.25,
		ClassifierConfidence: 0.30,
		CapacityHeadroom:     0.20,
		Specialization:       0.15,
		PriorityCapability:   0.10,
	}
}

// Validate checks the weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		ComponentKeywordMatch:         w.KeywordMatch,
		ComponentClassifierConfidence: w.ClassifierConfidence,
		ComponentCapacityHeadroom:     w.CapacityHeadroom,
		ComponentSpecialization:       w.Specialization,
		ComponentPriorityCapability:   w.PriorityCapability,
	} {
		if v < 0 {
			return fmt.Errorf("scoring weight %s is negative: %f", name, v)
		}
	}

	sum := w.KeywordMatch + w.ClassifierConfidence + w.CapacityHeadroom + w.Specialization + w.PriorityCapability
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %f", sum)
	}
	return nil
}

// GroupScore is the scored result for one candidate group.
type GroupScore struct {
	Group    types.ServiceGroup
	Snapshot types.CapacitySnapshot

	// Components holds each factor's raw value in [0,1].
	Components map[string]float64

	// Total is the weighted sum of the components.
	Total float64

	// Confidence is Total shifted up by 0.1 and capped at 1.0.
	Confidence float64

	// MatchedKeywords counts the group keywords found in the request text.
	MatchedKeywords int
}

// Contribution returns a component's weighted contribution to the total.
func (gs GroupScore) Contribution(w Weights, component string) float64 {
	value := gs.Components[component]
	switch component {
	case ComponentKeywordMatch:
		return w.KeywordMatch * value
	case ComponentClassifierConfidence:
		return w.ClassifierConfidence * value
	case ComponentCapacityHeadroom:
		return w.CapacityHeadroom * value
	case ComponentSpecialization:
		return w.Specialization * value
	case ComponentPriorityCapability:
		return w.PriorityCapability * value
	default:
		return 0
	}
}

// TopComponents returns the n component names with the largest weighted
// contribution, descending.
func (gs GroupScore) TopComponents(w Weights, n int) []string {
	names := []string{
		ComponentKeywordMatch,
		ComponentClassifierConfidence,
		ComponentCapacityHeadroom,
		ComponentSpecialization,
		ComponentPriorityCapability,
	}
	sort.SliceStable(names, func(i, j int) bool {
		return gs.Contribution(w, names[i]) > gs.Contribution(w, names[j])
	})
	if n > len(names) {
		n = len(names)
	}
	return names[:n]
}

// Scorer computes per-group scores for a request.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights. Weights are assumed
// validated at startup.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Weights returns the scorer's configured weights.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score computes the weighted total for one candidate group from the request
// text, the upstream classifier output, and a fresh capacity snapshot.
func (s *Scorer) Score(req *types.Request, cls *types.ClassifierOutput, group types.ServiceGroup, snap types.CapacitySnapshot) GroupScore {
	keyword, matched := keywordMatch(req.FullText(), group.Keywords)

	components := map[string]float64{
		ComponentKeywordMatch:         keyword,
		ComponentClassifierConfidence: classifierConfidence(cls, group),
		ComponentCapacityHeadroom:     capacityHeadroom(group, snap),
		ComponentSpecialization:       specialization(snap),
		ComponentPriorityCapability:   priorityCapability(req.Priority, group),
	}

	gs := GroupScore{
		Group:           group,
		Snapshot:        snap,
		Components:      components,
		MatchedKeywords: matched,
	}
	for name := range components {
		gs.Total += gs.Contribution(s.weights, name)
	}
	gs.Confidence = math.Min(gs.Total+0.1, 1.0)

	return gs
}

// keywordMatch is the fraction of the group's specialization keywords found
// case-insensitively in the request text, capped at 1.0.
func keywordMatch(text string, keywords []string) (score float64, matched int) {
	if len(keywords) == 0 {
		return 0, 0
	}

	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			matched++
		}
	}

	score = float64(matched) / float64(len(keywords))
	if score > 1.0 {
		score = 1.0
	}
	return score, matched
}

// classifierConfidence passes through the upstream confidence when the
// predicted category names this group or one of its keywords, else 0.
func classifierConfidence(cls *types.ClassifierOutput, group types.ServiceGroup) float64 {
	if cls == nil || cls.Category == "" {
		return 0
	}

	category := strings.ToLower(cls.Category)
	if category == strings.ToLower(group.ID) || category == strings.ToLower(group.Name) {
		return cls.Confidence
	}
	for _, kw := range group.Keywords {
		if category == strings.ToLower(kw) {
			return cls.Confidence
		}
	}
	return 0
}

// capacityHeadroom is the group's free-capacity fraction; a degraded
// workload read scores the neutral 0.5, and zero capacity scores 0.
func capacityHeadroom(group types.ServiceGroup, snap types.CapacitySnapshot) float64 {
	if snap.WorkloadUnknown {
		return neutralCapacityHeadroom
	}
	if group.MaxCapacity <= 0 {
		return 0
	}

	headroom := 1.0 - float64(snap.CurrentWorkload)/float64(group.MaxCapacity)
	if headroom < 0 {
		return 0
	}
	return headroom
}

// specialization is the tracker's historical-performance score, with the
// neutral 0.7 substituted for degraded snapshots.
func specialization(snap types.CapacitySnapshot) float64 {
	if snap.Degraded {
		return neutralSpecialization
	}
	return snap.SpecializationScore
}

// priorityCapability scores 1.0 when the group declares the request's
// priority, else the floor 0.3.
func priorityCapability(p types.Priority, group types.ServiceGroup) float64 {
	if group.HandlesPriority(p) {
		return 1.0
	}
	return 0.3
}
