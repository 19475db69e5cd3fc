// Package quota tracks per-provider daily usage against configured limits.
//
// A Ledger is owned by the caller's composition root and shared by reference
// with the provider selector; fresh instances give tests full isolation.
package quota

import (
	"github.com/tributary-ai/triage-router/internal/types"
)

// Ledger manages per-provider daily usage counters.
//
// Implementations must make the availability check and the increment a single
// atomic step (RecordUse), so concurrent callers cannot jointly push a
// counter unboundedly past its limit. A small overshoot under heavy race is
// tolerated; unbounded overshoot is not.
type Ledger interface {
	// ResetIfNewDay zeroes all counters when the stored last-reset date
	// differs from the current date. Safe to trigger redundantly from
	// concurrent callers.
	ResetIfNewDay()

	// IsAvailable reports whether the provider is enabled and has quota
	// headroom. An unbounded limit is always available.
	IsAvailable(providerID string) bool

	// RecordUse atomically checks headroom and increments the provider's
	// counter. It reports false, without incrementing, when the provider
	// is disabled or out of quota.
	RecordUse(providerID string) bool

	// Usage returns the current count and configured limit (0 = unbounded)
	// for a provider.
	Usage(providerID string) (used, limit int)

	// UsageStatus returns a read-only snapshot for every configured
	// provider.
	UsageStatus() map[string]types.UsageStatus
}

// statusFor derives the display status for one provider's counters.
func statusFor(p types.Provider, used int) string {
	switch {
	case !p.Enabled:
		return "disabled"
	case p.Unlimited():
		return "unlimited"
	case used >= p.DailyLimit:
		return "exhausted"
	default:
		return "available"
	}
}

// remainingFor derives the remaining headroom for one provider's counters.
func remainingFor(p types.Provider, used int) int {
	if p.Unlimited() {
		return -1
	}
	remaining := p.DailyLimit - used
	if remaining < 0 {
		return 0
	}
	return remaining
}
