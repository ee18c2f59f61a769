package history

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/cache"
)

// StatisticsCache caches per-archer statistics for each period.
// Every invalidation bumps the archer's generation; a result computed under an
// older generation is never stored.
type StatisticsCache struct {
	cache *cache.Cache

	mu          sync.Mutex
	generations map[string]uint64
}

// NewStatisticsCache creates a new statistics cache
func NewStatisticsCache(ttl time.Duration) *StatisticsCache {
	return &StatisticsCache{
		cache:       cache.NewCache(ttl),
		generations: make(map[string]uint64),
	}
}

// Generation returns the archer's current invalidation generation
func (sc *StatisticsCache) Generation(archerID string) uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.generations[archerID]
}

func statisticsKey(archerID, period string) string {
	return fmt.Sprintf("stats:%s:%s", archerID, period)
}

// Get retrieves cached statistics
func (sc *StatisticsCache) Get(archerID, period string) (*TargetStatistics, bool) {
	key := statisticsKey(archerID, period)

	item, found := sc.cache.Get(key)
	if !found {
		return nil, false
	}

	var stats TargetStatistics
	if err := json.Unmarshal(item.Data, &stats); err != nil {
		slog.Error("Failed to unmarshal cached statistics", "error", err, "key", key)
		sc.cache.Delete(key)
		return nil, false
	}

	slog.Debug("Statistics cache hit", "period", period)
	return &stats, true
}

// Set caches statistics computed at generation; it reports false and stores nothing
// when the archer was invalidated in the meantime
func (sc *StatisticsCache) Set(archerID string, generation uint64, stats *TargetStatistics) bool {
	data, err := json.Marshal(stats)
	if err != nil {
		slog.Error("Failed to marshal statistics for cache", "error", err, "period", stats.Period)
		return false
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.generations[archerID] != generation {
		slog.Debug("Dropping statistics computed before invalidation", "period", stats.Period)
		return false
	}
	sc.cache.Set(statisticsKey(archerID, stats.Period), data, "application/json")
	return true
}

// InvalidateArcher drops every cached period of the archer
func (sc *StatisticsCache) InvalidateArcher(archerID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.generations[archerID]++
	for _, period := range Periods() {
		sc.cache.Delete(statisticsKey(archerID, period))
	}
}

// Stats returns cache statistics
func (sc *StatisticsCache) Stats() map[string]interface{} {
	return sc.cache.Stats()
}

// Close stops the cache janitor
func (sc *StatisticsCache) Close() error {
	return sc.cache.Close()
}
