package selector

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/triage-router/internal/quota"
	"github.com/tributary-ai/triage-router/internal/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

var allTasks = []types.TaskType{types.TaskClassification, types.TaskSentiment, types.TaskSummarization, types.TaskGeneration}

// testCatalog mirrors a typical chain: unlimited local first, then a
// task-specialized limited provider, then a premium limited provider.
func testCatalog() []types.Provider {
	return []types.Provider{
		{ID: "local", Enabled: true, DailyLimit: 0, QualityScore: 0.6, TaskTypes: []types.TaskType{types.TaskClassification, types.TaskSentiment}, ChainRank: 0},
		{ID: "openai", Enabled: true, DailyLimit: 3, QualityScore: 0.85, TaskTypes: allTasks, Specialty: types.TaskSummarization, ChainRank: 1},
		{ID: "anthropic", Enabled: true, DailyLimit: 2, QualityScore: 0.95, TaskTypes: allTasks, ChainRank: 2},
	}
}

func newTestSelector(t *testing.T, providers []types.Provider, fallbackID string) (*Selector, quota.Ledger) {
	t.Helper()
	ledger := quota.NewMemoryLedger(providers, testLogger())
	return New(providers, fallbackID, ledger, testLogger()), ledger
}

func drain(ledger quota.Ledger, providerID string) {
	for ledger.RecordUse(providerID) {
	}
}

func TestSelector_PrefersUnlimitedProvider(t *testing.T) {
	sel, _ := newTestSelector(t, testCatalog(), "local")

	// The unlimited fallback is always eligible and outranks every other
	// tier, including for tasks it does not natively support.
	assert.Equal(t, "local", sel.Select(types.TaskClassification, "medium").ID)
	assert.Equal(t, "local", sel.Select(types.TaskSummarization, "medium").ID)
}

func TestSelector_SpecializedProviderForTask(t *testing.T) {
	// No unlimited candidate in the chain, so precedence falls to the
	// task-specialized tier.
	providers := []types.Provider{
		{ID: "openai", Enabled: true, DailyLimit: 10, QualityScore: 0.85, TaskTypes: allTasks, Specialty: types.TaskSummarization, ChainRank: 0},
		{ID: "anthropic", Enabled: true, DailyLimit: 10, QualityScore: 0.95, TaskTypes: allTasks, ChainRank: 1},
	}
	sel, _ := newTestSelector(t, providers, "openai")

	assert.Equal(t, "openai", sel.Select(types.TaskSummarization, "medium").ID)
}

func TestSelector_PremiumProviderForCriticalWork(t *testing.T) {
	providers := []types.Provider{
		{ID: "openai", Enabled: true, DailyLimit: 10, QualityScore: 0.85, TaskTypes: allTasks, ChainRank: 0},
		{ID: "anthropic", Enabled: true, DailyLimit: 10, QualityScore: 0.95, TaskTypes: allTasks, ChainRank: 1},
	}
	sel, _ := newTestSelector(t, providers, "openai")

	assert.Equal(t, "anthropic", sel.Select(types.TaskGeneration, "critical").ID,
		"critical work claims the reserved high-quality provider")
	assert.Equal(t, "anthropic", sel.Select(types.TaskGeneration, "complex").ID)
	assert.Equal(t, "openai", sel.Select(types.TaskGeneration, "medium").ID,
		"ordinary work takes the first remaining chain entry")
}

func TestSelector_FallsBackWhenAllLimitedExhausted(t *testing.T) {
	sel, ledger := newTestSelector(t, testCatalog(), "local")

	drain(ledger, "openai")
	drain(ledger, "anthropic")

	// Summarization is not natively supported by local, but the universal
	// fallback is always eligible and selection never fails.
	for _, task := range allTasks {
		p := sel.Select(task, "high")
		assert.Equal(t, "local", p.ID, "task %s must fall back to the unlimited local option", task)
	}
}

func TestSelector_NeverReturnsUnconfiguredProvider(t *testing.T) {
	sel, _ := newTestSelector(t, testCatalog(), "local")
	known := map[string]bool{"local": true, "openai": true, "anthropic": true}

	for i := 0; i < 50; i++ {
		for _, task := range allTasks {
			p := sel.Select(task, "critical")
			require.True(t, known[p.ID], "selected unknown provider %s", p.ID)
		}
	}
}

func TestSelector_SelectionConsumesQuota(t *testing.T) {
	providers := []types.Provider{
		{ID: "openai", Enabled: true, DailyLimit: 5, QualityScore: 0.85, TaskTypes: allTasks, ChainRank: 0},
	}
	sel, ledger := newTestSelector(t, providers, "openai")

	sel.Select(types.TaskSummarization, "medium")
	sel.Select(types.TaskSummarization, "medium")

	used, limit := ledger.Usage("openai")
	assert.Equal(t, 2, used)
	assert.Equal(t, 5, limit)
}

func TestSelector_SkipsDisabledProviders(t *testing.T) {
	providers := testCatalog()
	providers[0].Enabled = false
	sel, _ := newTestSelector(t, providers, "local")

	p := sel.Select(types.TaskClassification, "low")
	assert.Equal(t, "openai", p.ID)
}

func TestSelector_CheckAndSwitch(t *testing.T) {
	sel, ledger := newTestSelector(t, testCatalog(), "local")

	// Provider with headroom is kept.
	p := sel.CheckAndSwitch("openai", types.TaskSummarization)
	assert.Equal(t, "openai", p.ID)

	// Exhausted provider triggers reselection.
	drain(ledger, "openai")
	p = sel.CheckAndSwitch("openai", types.TaskClassification)
	assert.Equal(t, "local", p.ID)

	// Unknown current provider also reselects.
	p = sel.CheckAndSwitch("ghost", types.TaskClassification)
	assert.Equal(t, "local", p.ID)
}

func TestSelector_UsageStatusReflectsSelections(t *testing.T) {
	sel, _ := newTestSelector(t, testCatalog(), "local")

	sel.Select(types.TaskClassification, "low")
	sel.Select(types.TaskClassification, "low")

	status := sel.UsageStatus()
	require.Len(t, status, 3)
	assert.Equal(t, 2, status["local"].Used)
	assert.Equal(t, "unlimited", status["local"].Status)
	assert.Equal(t, 0, status["openai"].Used)
	assert.Equal(t, "available", status["openai"].Status)
	assert.Equal(t, 3, status["openai"].Remaining)
}
