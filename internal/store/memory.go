// Package store provides the reference in-memory backing store: request
// assignment state, completion history, group rosters and the routing
// decision audit log for single-instance deployments and tests.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tributary-ai/triage-router/internal/capacity"
	"github.com/tributary-ai/triage-router/internal/routing"
)

// completion is one finished request's resolution record.
type completion struct {
	completedAt time.Time
	duration    time.Duration
}

// assignment tracks one request's lifecycle inside a group.
type assignment struct {
	groupID   string
	memberID  string
	createdAt time.Time
	open      bool
}

// MemoryStore is a mutex-guarded in-memory implementation of the record
// store, decision store and outcome recorder contracts.
type MemoryStore struct {
	mu          sync.RWMutex
	assignments map[string]*assignment
	completions map[string][]completion
	members     map[string][]capacity.Member
	decisions   map[string]routing.Decision

	clock func() time.Time
}

var (
	_ capacity.RecordStore    = (*MemoryStore)(nil)
	_ routing.DecisionStore   = (*MemoryStore)(nil)
	_ routing.OutcomeRecorder = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments: make(map[string]*assignment),
		completions: make(map[string][]completion),
		members:     make(map[string][]capacity.Member),
		decisions:   make(map[string]routing.Decision),
		clock:       time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// AddMember registers an active member of a group.
func (s *MemoryStore) AddMember(groupID, memberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[groupID] = append(s.members[groupID], capacity.Member{ID: memberID})
}

// Assign opens an assignment of a request to a group, optionally to a
// specific member.
func (s *MemoryStore) Assign(requestID, groupID, memberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignments[requestID] = &assignment{
		groupID:   groupID,
		memberID:  memberID,
		createdAt: s.clock(),
		open:      true,
	}
	s.adjustMemberLoad(groupID, memberID, +1)
}

// Complete closes an assignment successfully, recording its resolution
// duration in the group's history.
func (s *MemoryStore) Complete(requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[requestID]
	if !ok {
		return fmt.Errorf("unknown request %s", requestID)
	}
	if !a.open {
		return nil
	}

	now := s.clock()
	a.open = false
	s.completions[a.groupID] = append(s.completions[a.groupID], completion{
		completedAt: now,
		duration:    now.Sub(a.createdAt),
	})
	s.adjustMemberLoad(a.groupID, a.memberID, -1)
	return nil
}

// adjustMemberLoad shifts a member's open-assignment count. Caller must
// hold s.mu.
func (s *MemoryStore) adjustMemberLoad(groupID, memberID string, delta int) {
	if memberID == "" {
		return
	}
	roster := s.members[groupID]
	for i := range roster {
		if roster[i].ID == memberID {
			roster[i].OpenAssignments += delta
			if roster[i].OpenAssignments < 0 {
				roster[i].OpenAssignments = 0
			}
			return
		}
	}
}

// OpenAssignments returns the group's count of non-terminal requests.
func (s *MemoryStore) OpenAssignments(_ context.Context, groupID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, a := range s.assignments {
		if a.groupID == groupID && a.open {
			count++
		}
	}
	return count, nil
}

// CompletedDurations returns the group's resolution durations completed at
// or after since.
func (s *MemoryStore) CompletedDurations(_ context.Context, groupID string, since time.Time) ([]time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var durations []time.Duration
	for _, c := range s.completions[groupID] {
		if !c.completedAt.Before(since) {
			durations = append(durations, c.duration)
		}
	}
	return durations, nil
}

// ActiveMembers returns the group's roster with current open loads.
func (s *MemoryStore) ActiveMembers(_ context.Context, groupID string) ([]capacity.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roster := make([]capacity.Member, len(s.members[groupID]))
	copy(roster, s.members[groupID])
	return roster, nil
}

// SaveDecision appends a decision to the audit log. Decisions are immutable:
// saving an existing id is rejected.
func (s *MemoryStore) SaveDecision(_ context.Context, decision *routing.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decisions[decision.ID]; exists {
		return fmt.Errorf("decision %s already recorded", decision.ID)
	}
	s.decisions[decision.ID] = *decision
	return nil
}

// GetDecision returns a copy of a stored decision.
func (s *MemoryStore) GetDecision(_ context.Context, id string) (*routing.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	decision, ok := s.decisions[id]
	if !ok {
		return nil, fmt.Errorf("decision %s not found", id)
	}
	return &decision, nil
}

// RecordOutcome folds an actual resolution time into the group's rolling
// history as a synthetic completion, so future capacity snapshots reflect
// observed reality. Satisfaction is accepted for forward compatibility with
// richer scoring but does not affect the rolling window.
func (s *MemoryStore) RecordOutcome(_ context.Context, groupID string, actualHours float64, _ float64) error {
	if actualHours < 0 {
		return fmt.Errorf("actual hours must be non-negative, got %f", actualHours)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.completions[groupID] = append(s.completions[groupID], completion{
		completedAt: s.clock(),
		duration:    time.Duration(actualHours * float64(time.Hour)),
	})
	return nil
}
