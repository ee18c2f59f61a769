package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const responseSampleSize = 1000

// Metrics holds in-process counters for the service
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	CacheHits           int64
	CacheMisses         int64
	AverageResponseTime int64 // nanoseconds, exponential average
	StartTime           time.Time

	responseTimes []time.Duration
	responseNext  int
	responseMutex sync.RWMutex

	requestCountByStatus map[int]int64
	statusMutex          sync.RWMutex

	// analyses by kind (pose, target, frame, quick) and failures by reason
	analyses        map[string]int64
	analysisFailure map[string]int64
	analysisMutex   sync.RWMutex

	FramesSampled int64
	FramesSkipped int64
	ArrowsScored  int64

	CircuitBreakerOpens  int64
	CircuitBreakerCloses int64

	externalAPIRequests   map[string]int64
	externalAPIErrorCount map[string]int64
	externalAPIMutex      sync.RWMutex

	RateLimitIPBlocks      int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64
	rateLimitEndpoint      map[string]int64
	rateLimitMutex         sync.RWMutex
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.Reset()
	return m
}

func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	for {
		current := atomic.LoadInt64(&m.AverageResponseTime)
		next := duration.Nanoseconds()
		if current != 0 {
			next = (current + next) / 2
		}
		if atomic.CompareAndSwapInt64(&m.AverageResponseTime, current, next) {
			break
		}
	}

	m.responseMutex.Lock()
	if len(m.responseTimes) < responseSampleSize {
		m.responseTimes = append(m.responseTimes, duration)
	} else {
		m.responseTimes[m.responseNext] = duration
		m.responseNext = (m.responseNext + 1) % responseSampleSize
	}
	m.responseMutex.Unlock()
}

func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	m.requestCountByStatus[statusCode]++
}

// RecordAnalysis counts one analysis of the given kind. reason is empty on success.
func (m *Metrics) RecordAnalysis(kind, reason string) {
	m.analysisMutex.Lock()
	defer m.analysisMutex.Unlock()
	m.analyses[kind]++
	if reason != "" {
		m.analysisFailure[reason]++
	}
}

// RecordFrames adds sampled and skipped frame counts from a pose sequence
func (m *Metrics) RecordFrames(sampled, skipped int) {
	atomic.AddInt64(&m.FramesSampled, int64(sampled))
	atomic.AddInt64(&m.FramesSkipped, int64(skipped))
}

func (m *Metrics) RecordArrows(n int) {
	atomic.AddInt64(&m.ArrowsScored, int64(n))
}

func (m *Metrics) IncrementCircuitBreakerOpen() {
	atomic.AddInt64(&m.CircuitBreakerOpens, 1)
}

func (m *Metrics) IncrementCircuitBreakerClose() {
	atomic.AddInt64(&m.CircuitBreakerCloses, 1)
}

// RecordExternalAPIRequest records a perception service call
func (m *Metrics) RecordExternalAPIRequest(apiName string, success bool) {
	m.externalAPIMutex.Lock()
	defer m.externalAPIMutex.Unlock()

	m.externalAPIRequests[apiName]++
	if !success {
		m.externalAPIErrorCount[apiName]++
	}
}

func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.rateLimitMutex.Lock()
	defer m.rateLimitMutex.Unlock()
	m.rateLimitEndpoint[endpoint]++
}

// GetPercentileResponseTime calculates percentile response time over the last samples
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseMutex.RLock()
	times := make([]time.Duration, len(m.responseTimes))
	copy(times, m.responseTimes)
	m.responseMutex.RUnlock()

	if len(times) == 0 {
		return 0
	}

	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMutex.RLock()
	defer m.statusMutex.RUnlock()
	return copyCounts(m.requestCountByStatus)
}

// GetAnalysisStats returns analysis counts by kind and failures by reason
func (m *Metrics) GetAnalysisStats() map[string]interface{} {
	m.analysisMutex.RLock()
	byKind := copyCounts(m.analyses)
	byReason := copyCounts(m.analysisFailure)
	m.analysisMutex.RUnlock()

	return map[string]interface{}{
		"by_kind":        byKind,
		"failures":       byReason,
		"frames_sampled": atomic.LoadInt64(&m.FramesSampled),
		"frames_skipped": atomic.LoadInt64(&m.FramesSkipped),
		"arrows_scored":  atomic.LoadInt64(&m.ArrowsScored),
	}
}

// GetExternalAPIStats returns upstream call statistics
func (m *Metrics) GetExternalAPIStats() map[string]interface{} {
	m.externalAPIMutex.RLock()
	defer m.externalAPIMutex.RUnlock()

	stats := make(map[string]interface{})
	for api, requests := range m.externalAPIRequests {
		errors := m.externalAPIErrorCount[api]
		errorRate := float64(0)
		if requests > 0 {
			errorRate = float64(errors) / float64(requests) * 100
		}

		stats[api] = map[string]interface{}{
			"requests":   requests,
			"errors":     errors,
			"error_rate": errorRate,
		}
	}
	return stats
}

// GetRateLimitStats returns rate limiting statistics
func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	m.rateLimitMutex.RLock()
	endpoints := copyCounts(m.rateLimitEndpoint)
	m.rateLimitMutex.RUnlock()

	return map[string]interface{}{
		"ip_blocks":       atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": endpoints,
	}
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     errorRate,
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,
		"avg_response_time_ms":   float64(atomic.LoadInt64(&m.AverageResponseTime)) / 1e6,
		"start_time":             m.StartTime.Format(time.RFC3339),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),

		"analyses":           m.GetAnalysisStats(),
		"external_api_stats": m.GetExternalAPIStats(),
		"rate_limit":         m.GetRateLimitStats(),

		"circuit_breaker_opens":  atomic.LoadInt64(&m.CircuitBreakerOpens),
		"circuit_breaker_closes": atomic.LoadInt64(&m.CircuitBreakerCloses),
	}
}

// Reset clears every counter, used at construction and by tests
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.RequestCount, 0)
	atomic.StoreInt64(&m.ErrorCount, 0)
	atomic.StoreInt64(&m.CacheHits, 0)
	atomic.StoreInt64(&m.CacheMisses, 0)
	atomic.StoreInt64(&m.AverageResponseTime, 0)
	atomic.StoreInt64(&m.FramesSampled, 0)
	atomic.StoreInt64(&m.FramesSkipped, 0)
	atomic.StoreInt64(&m.ArrowsScored, 0)
	atomic.StoreInt64(&m.CircuitBreakerOpens, 0)
	atomic.StoreInt64(&m.CircuitBreakerCloses, 0)
	atomic.StoreInt64(&m.RateLimitIPBlocks, 0)
	atomic.StoreInt64(&m.RateLimitRedisErrors, 0)
	atomic.StoreInt64(&m.RateLimitFallbackCount, 0)

	m.responseMutex.Lock()
	m.responseTimes = make([]time.Duration, 0, responseSampleSize)
	m.responseNext = 0
	m.responseMutex.Unlock()

	m.statusMutex.Lock()
	m.requestCountByStatus = make(map[int]int64)
	m.statusMutex.Unlock()

	m.analysisMutex.Lock()
	m.analyses = make(map[string]int64)
	m.analysisFailure = make(map[string]int64)
	m.analysisMutex.Unlock()

	m.externalAPIMutex.Lock()
	m.externalAPIRequests = make(map[string]int64)
	m.externalAPIErrorCount = make(map[string]int64)
	m.externalAPIMutex.Unlock()

	m.rateLimitMutex.Lock()
	m.rateLimitEndpoint = make(map[string]int64)
	m.rateLimitMutex.Unlock()

	m.StartTime = time.Now()
}

func copyCounts[K comparable](src map[K]int64) map[K]int64 {
	out := make(map[K]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
