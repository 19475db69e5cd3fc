package quota

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/triage-router/internal/types"
)

const dateLayout = "2006-01-02"

// MemoryLedger is an in-memory Ledger for single-instance deployments.
//
// The check-and-increment pair runs under one mutex so two concurrent callers
// cannot jointly exceed a daily limit. The daily reset is a compare-and-set
// on the stored date, so redundant triggers from callers crossing midnight
// together are harmless.
type MemoryLedger struct {
	mu        sync.Mutex
	providers map[string]types.Provider
	counters  map[string]int
	lastReset string

	clock  func() time.Time
	logger *logrus.Logger
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates a ledger over the given provider catalog.
func NewMemoryLedger(providers []types.Provider, logger *logrus.Logger) *MemoryLedger {
	catalog := make(map[string]types.Provider, len(providers))
	for _, p := range providers {
		catalog[p.ID] = p
	}

	return &MemoryLedger{
		providers: catalog,
		counters:  make(map[string]int),
		lastReset: time.Now().Format(dateLayout),
		clock:     time.Now,
		logger:    logger,
	}
}

// SetClock overrides the time source. Intended for tests.
func (l *MemoryLedger) SetClock(clock func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clock = clock
}

// ResetIfNewDay zeroes all counters once per date change.
func (l *MemoryLedger) ResetIfNewDay() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNewDayLocked()
}

// resetIfNewDayLocked compares the stored date against the clock and resets
// on mismatch. Caller must hold l.mu.
func (l *MemoryLedger) resetIfNewDayLocked() {
	today := l.clock().Format(dateLayout)
	if l.lastReset == today {
		return
	}

	l.counters = make(map[string]int)
	l.lastReset = today

	l.logger.WithField("date", today).Info("Daily quota counters reset")
}

// IsAvailable reports whether a provider has quota headroom right now.
func (l *MemoryLedger) IsAvailable(providerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNewDayLocked()

	p, ok := l.providers[providerID]
	if !ok || !p.Enabled {
		return false
	}
	return p.Unlimited() || l.counters[providerID] < p.DailyLimit
}

// RecordUse atomically verifies headroom and increments the counter.
func (l *MemoryLedger) RecordUse(providerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNewDayLocked()

	p, ok := l.providers[providerID]
	if !ok || !p.Enabled {
		return false
	}
	if !p.Unlimited() && l.counters[providerID] >= p.DailyLimit {
		return false
	}

	l.counters[providerID]++
	return true
}

// Usage returns the current count and configured limit for a provider.
func (l *MemoryLedger) Usage(providerID string) (used, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNewDayLocked()

	p := l.providers[providerID]
	return l.counters[providerID], p.DailyLimit
}

// UsageStatus returns a per-provider snapshot of the ledger.
func (l *MemoryLedger) UsageStatus() map[string]types.UsageStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetIfNewDayLocked()

	status := make(map[string]types.UsageStatus, len(l.providers))
	for id, p := range l.providers {
		used := l.counters[id]
		status[id] = types.UsageStatus{
			ProviderID:  id,
			Used:        used,
			Limit:       p.DailyLimit,
			Remaining:   remainingFor(p, used),
			Status:      statusFor(p, used),
			CostPerCall: p.CostPerCall,
		}
	}
	return status
}
