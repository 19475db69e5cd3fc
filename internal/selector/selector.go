// Package selector picks an analysis provider for each task by walking a
// priority-ordered fallback chain under live quota constraints.
package selector

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/triage-router/internal/quota"
	"github.com/tributary-ai/triage-router/internal/types"
)

// premiumQualityFloor marks providers whose quality reserves them for
// complex or critical work when quota is contended.
const premiumQualityFloor = 0.9

// premiumPriorities lists the request priorities allowed to claim a
// reserved higher-quality provider.
var premiumPriorities = map[string]bool{
	"complex":  true,
	"critical": true,
}

// Selector chooses one provider per call from a fixed fallback chain.
//
// Selection never fails: when every limited provider is exhausted, the
// designated universal fallback is returned. Each successful selection
// consumes one unit of the chosen provider's daily quota.
type Selector struct {
	chain      []types.Provider // sorted by ChainRank ascending
	byID       map[string]types.Provider
	fallbackID string
	ledger     quota.Ledger
	logger     *logrus.Logger
}

// New creates a Selector over the provider catalog. fallbackID names the
// universal fallback, which must exist in the catalog and carry no daily
// limit; config validation enforces that before startup completes.
func New(providers []types.Provider, fallbackID string, ledger quota.Ledger, logger *logrus.Logger) *Selector {
	chain := make([]types.Provider, len(providers))
	copy(chain, providers)
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].ChainRank < chain[j].ChainRank
	})

	byID := make(map[string]types.Provider, len(chain))
	for _, p := range chain {
		byID[p.ID] = p
	}

	return &Selector{
		chain:      chain,
		byID:       byID,
		fallbackID: fallbackID,
		ledger:     ledger,
		logger:     logger,
	}
}

// Select picks the provider for a task and records one unit of usage on it.
//
// Candidates are chain entries that are enabled, support the task type (the
// universal fallback is always eligible) and have quota headroom. Among the
// candidates, precedence is fixed: an unlimited provider first, then one
// specialized for the task, then a higher-quality provider when the work is
// complex or critical, then the first remaining chain entry. Quota
// exhaustion is not an error; it silently narrows the candidate set.
func (s *Selector) Select(taskType types.TaskType, priority string) types.Provider {
	s.ledger.ResetIfNewDay()

	var candidates []types.Provider
	var exhausted []string
	for _, p := range s.chain {
		if !p.Enabled {
			continue
		}
		if !p.SupportsTask(taskType) && p.ID != s.fallbackID {
			continue
		}
		if !s.ledger.IsAvailable(p.ID) {
			exhausted = append(exhausted, p.ID)
			continue
		}
		candidates = append(candidates, p)
	}

	if len(exhausted) > 0 {
		s.logger.WithFields(logrus.Fields{
			"task_type": taskType,
			"exhausted": exhausted,
		}).Warn("Providers out of daily quota, falling back along the chain")
	}

	chosen := s.pick(candidates, taskType, priority)

	// The availability check above and this increment race against other
	// callers; RecordUse re-checks under the ledger's lock, so a loser
	// falls through to the universal fallback instead of overshooting.
	if !s.ledger.RecordUse(chosen.ID) && chosen.ID != s.fallbackID {
		chosen = s.byID[s.fallbackID]
		s.ledger.RecordUse(chosen.ID)
	}

	s.logger.WithFields(logrus.Fields{
		"provider":  chosen.ID,
		"task_type": taskType,
		"priority":  priority,
	}).Debug("Provider selected")

	return chosen
}

// pick applies the fixed precedence over the eligible candidates.
func (s *Selector) pick(candidates []types.Provider, taskType types.TaskType, priority string) types.Provider {
	if len(candidates) == 0 {
		return s.byID[s.fallbackID]
	}

	for _, p := range candidates {
		if p.Unlimited() {
			return p
		}
	}

	for _, p := range candidates {
		if p.Specialty == taskType {
			return p
		}
	}

	if premiumPriorities[priority] {
		best := types.Provider{}
		for _, p := range candidates {
			if p.QualityScore >= premiumQualityFloor && p.QualityScore > best.QualityScore {
				best = p
			}
		}
		if best.ID != "" {
			return best
		}
	}

	return candidates[0]
}

// CheckAndSwitch keeps a long-lived session alive across quota boundaries:
// it returns the current provider while it still has headroom, and re-runs
// selection the moment it runs dry.
func (s *Selector) CheckAndSwitch(currentID string, taskType types.TaskType) types.Provider {
	if current, ok := s.byID[currentID]; ok && s.ledger.IsAvailable(currentID) {
		return current
	}

	s.logger.WithFields(logrus.Fields{
		"provider":  currentID,
		"task_type": taskType,
	}).Warn("Current provider exhausted mid-session, reselecting")

	return s.Select(taskType, "")
}

// UsageStatus exposes the ledger's read-only per-provider view.
func (s *Selector) UsageStatus() map[string]types.UsageStatus {
	s.ledger.ResetIfNewDay()
	return s.ledger.UsageStatus()
}
