// Package capacity computes point-in-time workload and performance snapshots
// for service groups from the backing record store.
package capacity

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/triage-router/internal/types"
)

// historyWindow is the trailing window over which resolution times are
// averaged.
const historyWindow = 30 * 24 * time.Hour

// Neutral defaults used when the backing store cannot be read.
const (
	defaultSpecializationScore = 0.7
)

// Tracker computes capacity snapshots. Snapshots are recomputed from the
// store on every call, trading latency for freshness; no cross-call caching.
type Tracker struct {
	store  RecordStore
	clock  func() time.Time
	logger *logrus.Logger
}

// NewTracker creates a tracker over the given record store.
func NewTracker(store RecordStore, logger *logrus.Logger) *Tracker {
	return &Tracker{
		store:  store,
		clock:  time.Now,
		logger: logger,
	}
}

// SetClock overrides the time source. Intended for tests.
func (t *Tracker) SetClock(clock func() time.Time) {
	t.clock = clock
}

// Snapshot computes a fresh capacity snapshot for a group. Store failures
// degrade to neutral defaults and mark the snapshot degraded instead of
// surfacing an error.
func (t *Tracker) Snapshot(ctx context.Context, group types.ServiceGroup) types.CapacitySnapshot {
	now := t.clock()

	snap := types.CapacitySnapshot{
		GroupID:            group.ID,
		AvailabilityStatus: t.availability(group, now),
	}

	workload, err := t.store.OpenAssignments(ctx, group.ID)
	if err != nil {
		t.logger.WithError(err).WithField("group", group.ID).Warn("Workload read failed, using neutral defaults")
		snap.Degraded = true
		snap.WorkloadUnknown = true
		snap.AvgResolutionHours = group.EscalationThresholdHours
		snap.SpecializationScore = defaultSpecializationScore
		return snap
	}
	if workload < 0 {
		workload = 0
	}
	snap.CurrentWorkload = workload

	durations, err := t.store.CompletedDurations(ctx, group.ID, now.Add(-historyWindow))
	if err != nil {
		t.logger.WithError(err).WithField("group", group.ID).Warn("History read failed, using neutral defaults")
		snap.Degraded = true
		snap.AvgResolutionHours = group.EscalationThresholdHours
		snap.SpecializationScore = defaultSpecializationScore
		return snap
	}

	snap.AvgResolutionHours = averageHours(durations, group.EscalationThresholdHours)
	snap.SpecializationScore = specializationScore(durations, snap.AvgResolutionHours, group.EscalationThresholdHours)

	return snap
}

// availability maps the current hour against the group's working window.
// A window with start > end wraps past midnight.
func (t *Tracker) availability(group types.ServiceGroup, now time.Time) string {
	hour := now.Hour()
	start, end := group.WorkStartHour, group.WorkEndHour

	var inWindow bool
	if start <= end {
		inWindow = hour >= start && hour < end
	} else {
		inWindow = hour >= start || hour < end
	}

	if !inWindow {
		return types.AvailabilityOffline
	}
	return types.AvailabilityAvailable
}

// averageHours is the mean completed-resolution time in hours, falling back
// to the group's escalation threshold when there is no history.
func averageHours(durations []time.Duration, threshold float64) float64 {
	if len(durations) == 0 {
		return threshold
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total.Hours() / float64(len(durations))
}

// specializationScore tiers the group's historical speed against its
// escalation threshold. No history reads as the neutral 0.7.
func specializationScore(durations []time.Duration, avgHours, threshold float64) float64 {
	if len(durations) == 0 {
		return defaultSpecializationScore
	}

	switch {
	case avgHours <= 0.5*threshold:
		return 1.0
	case avgHours <= threshold:
		return 0.8
	case avgHours <= 1.5*threshold:
		return 0.6
	default:
		return 0.4
	}
}
