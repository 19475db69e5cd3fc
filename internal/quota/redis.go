package quota

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/triage-router/internal/types"
)

// incrWithLimitScript atomically increments a counter unless it has reached
// its limit. KEYS[1] = counter key, ARGV[1] = limit (0 = unbounded),
// ARGV[2] = TTL seconds. Returns the new count, or -1 when the limit is hit.
const incrWithLimitScript = `
local limit = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if limit > 0 and current >= limit then
  return -1
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
end
return count
`

// RedisLedger is a Redis-backed Ledger for multi-instance deployments.
//
// Counters are keyed by (date, provider) so the day boundary needs no
// explicit reset: a new date reads as zero and stale keys expire on their
// own. The check-and-increment runs as a single Lua script, which keeps the
// limit atomic across processes.
type RedisLedger struct {
	client    goredis.Cmdable
	providers map[string]types.Provider
	keyPrefix string
	script    *goredis.Script

	clock  func() time.Time
	logger *logrus.Logger
}

var _ Ledger = (*RedisLedger)(nil)

// RedisOption configures a RedisLedger.
type RedisOption func(*RedisLedger)

// WithKeyPrefix sets the Redis key prefix (default "triage:quota:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLedger) { l.keyPrefix = prefix }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) RedisOption {
	return func(l *RedisLedger) { l.clock = clock }
}

// NewRedisLedger creates a Redis-backed ledger over the provider catalog.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func NewRedisLedger(client goredis.Cmdable, providers []types.Provider, logger *logrus.Logger, opts ...RedisOption) *RedisLedger {
	catalog := make(map[string]types.Provider, len(providers))
	for _, p := range providers {
		catalog[p.ID] = p
	}

	l := &RedisLedger{
		client:    client,
		providers: catalog,
		keyPrefix: "triage:quota:",
		script:    goredis.NewScript(incrWithLimitScript),
		clock:     time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLedger) key(providerID string) string {
	return l.keyPrefix + l.clock().Format(dateLayout) + ":" + providerID
}

// ResetIfNewDay is a no-op: date-scoped keys make the boundary implicit.
func (l *RedisLedger) ResetIfNewDay() {}

// IsAvailable reports whether a provider has quota headroom right now.
// Redis errors degrade to unavailable for limited providers so a flaky store
// cannot blow through a quota; unbounded providers stay available.
func (l *RedisLedger) IsAvailable(providerID string) bool {
	p, ok := l.providers[providerID]
	if !ok || !p.Enabled {
		return false
	}
	if p.Unlimited() {
		return true
	}

	used, err := l.currentCount(providerID)
	if err != nil {
		l.logger.WithError(err).WithField("provider", providerID).Warn("Quota read failed, treating provider as unavailable")
		return false
	}
	return used < p.DailyLimit
}

// RecordUse atomically verifies headroom and increments the counter.
func (l *RedisLedger) RecordUse(providerID string) bool {
	p, ok := l.providers[providerID]
	if !ok || !p.Enabled {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// 48h TTL keeps yesterday's key readable for introspection without
	// accumulating state.
	count, err := l.script.Run(ctx, l.client, []string{l.key(providerID)}, p.DailyLimit, int((48 * time.Hour).Seconds())).Int64()
	if err != nil {
		l.logger.WithError(err).WithField("provider", providerID).Warn("Quota increment failed")
		// Unbounded providers keep serving through store outages.
		return p.Unlimited()
	}
	return count != -1
}

// Usage returns the current count and configured limit for a provider.
func (l *RedisLedger) Usage(providerID string) (used, limit int) {
	p := l.providers[providerID]
	count, err := l.currentCount(providerID)
	if err != nil {
		return 0, p.DailyLimit
	}
	return count, p.DailyLimit
}

// UsageStatus returns a per-provider snapshot of the ledger.
func (l *RedisLedger) UsageStatus() map[string]types.UsageStatus {
	status := make(map[string]types.UsageStatus, len(l.providers))
	for id, p := range l.providers {
		used, err := l.currentCount(id)
		if err != nil {
			used = 0
		}
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

func (l *RedisLedger) currentCount(providerID string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := l.client.Get(ctx, l.key(providerID)).Int()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}
