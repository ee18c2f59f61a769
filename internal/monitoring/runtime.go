package monitoring

import "runtime"

// RuntimeStats snapshots heap and GC figures for the metrics endpoint
func RuntimeStats() map[string]interface{} {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	heapUsage := float64(0)
	if ms.HeapSys > 0 {
		heapUsage = float64(ms.HeapAlloc) / float64(ms.HeapSys) * 100
	}

	return map[string]interface{}{
		"goroutines":            runtime.NumGoroutine(),
		"go_gc_count":           ms.NumGC,
		"go_gc_pause_total_ns":  ms.PauseTotalNs,
		"go_heap_alloc_bytes":   ms.HeapAlloc,
		"go_heap_sys_bytes":     ms.HeapSys,
		"go_heap_usage_percent": heapUsage,
	}
}
