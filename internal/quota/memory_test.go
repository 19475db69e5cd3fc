package quota

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/triage-router/internal/types"
)

func testProviders() []types.Provider {
	return []types.Provider{
		{ID: "local", Enabled: true, DailyLimit: 0, TaskTypes: []types.TaskType{types.TaskClassification}},
		{ID: "openai", Enabled: true, DailyLimit: 5, CostPerCall: 0.002, TaskTypes: []types.TaskType{types.TaskClassification}},
		{ID: "disabled", Enabled: false, DailyLimit: 10, TaskTypes: []types.TaskType{types.TaskClassification}},
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestMemoryLedger_UsageNeverExceedsLimit(t *testing.T) {
	ledger := NewMemoryLedger(testProviders(), testLogger())

	granted := 0
	for i := 0; i < 20; i++ {
		if ledger.RecordUse("openai") {
			granted++
		}
	}

	used, limit := ledger.Usage("openai")
	assert.Equal(t, 5, granted, "only limit uses should be granted")
	assert.Equal(t, 5, used)
	assert.Equal(t, 5, limit)
	assert.False(t, ledger.IsAvailable("openai"))
}

func TestMemoryLedger_UnlimitedProvider(t *testing.T) {
	ledger := NewMemoryLedger(testProviders(), testLogger())

	for i := 0; i < 1000; i++ {
		require.True(t, ledger.RecordUse("local"))
	}

	used, limit := ledger.Usage("local")
	assert.Equal(t, 1000, used)
	assert.Equal(t, 0, limit)
	assert.True(t, ledger.IsAvailable("local"))
}

func TestMemoryLedger_DisabledAndUnknownProviders(t *testing.T) {
	ledger := NewMemoryLedger(testProviders(), testLogger())

	assert.False(t, ledger.IsAvailable("disabled"))
	assert.False(t, ledger.RecordUse("disabled"))
	assert.False(t, ledger.IsAvailable("nonexistent"))
	assert.False(t, ledger.RecordUse("nonexistent"))
}

func TestMemoryLedger_DayBoundaryReset(t *testing.T) {
	ledger := NewMemoryLedger(testProviders(), testLogger())

	now := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
	ledger.SetClock(func() time.Time { return now })
	ledger.ResetIfNewDay()

	for i := 0; i < 5; i++ {
		require.True(t, ledger.RecordUse("openai"))
	}
	assert.False(t, ledger.IsAvailable("openai"))

	// Cross midnight: counters must read zero before any new use.
	now = now.Add(20 * time.Minute)

	used, _ := ledger.Usage("openai")
	assert.Equal(t, 0, used, "counters must be zero after the day boundary")
	assert.True(t, ledger.IsAvailable("openai"))
}

func TestMemoryLedger_ResetIdempotentUnderConcurrency(t *testing.T) {
	ledger := NewMemoryLedger(testProviders(), testLogger())

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger.SetClock(func() time.Time { return now })
	require.True(t, ledger.RecordUse("openai"))

	now = now.Add(24 * time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger.ResetIfNewDay()
		}()
	}
	wg.Wait()

	used, _ := ledger.Usage("openai")
	assert.Equal(t, 0, used)
}

func TestMemoryLedger_ConcurrentRecordUseNeverOvershoots(t *testing.T) {
	providers := []types.Provider{
		{ID: "scarce", Enabled: true, DailyLimit: 50, TaskTypes: []types.TaskType{types.TaskClassification}},
	}
	ledger := NewMemoryLedger(providers, testLogger())

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ledger.RecordUse("scarce") {
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	used, _ := ledger.Usage("scarce")
	assert.Equal(t, 50, count, "exactly limit grants under concurrency")
	assert.Equal(t, 50, used)
}

func TestMemoryLedger_UsageStatus(t *testing.T) {
	ledger := NewMemoryLedger(testProviders(), testLogger())

	ledger.RecordUse("openai")
	ledger.RecordUse("openai")
	ledger.RecordUse("local")

	status := ledger.UsageStatus()
	require.Len(t, status, 3)

	assert.Equal(t, 2, status["openai"].Used)
	assert.Equal(t, 3, status["openai"].Remaining)
	assert.Equal(t, "available", status["openai"].Status)
	assert.Equal(t, 0.002, status["openai"].CostPerCall)

	assert.Equal(t, "unlimited", status["local"].Status)
	assert.Equal(t, -1, status["local"].Remaining)

	assert.Equal(t, "disabled", status["disabled"].Status)
}
