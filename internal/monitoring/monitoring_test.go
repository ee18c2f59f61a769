package monitoring

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "INFO", expected: slog.LevelInfo},
		{input: "warning", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "", expected: slog.LevelInfo},
		{input: "verbose", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelInfo)

	logger.AnalysisLogger("target", 6, 8.5, 12*time.Millisecond, nil)
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"msg":"Analysis Completed"`)
	assert.Contains(t, out, `"kind":"target"`)
	assert.Contains(t, out, `"timestamp":`)
	assert.NotContains(t, out, "hidden")

	logger.SetLevel(slog.LevelDebug)
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestLogger_APIErrorCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelInfo)

	logger.APIErrorLogger(errors.New("boom"), http.MethodPost, "/analyze/pose", "10.0.0.1", 500)
	assert.Regexp(t, `"caller":"[^"]+:\d+"`, buf.String())
}

func TestLogger_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	logger := NewLoggerWithConfig(LogConfig{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1})
	logger.SystemLogger("startup", "test")
	require.NoError(t, logger.Close())
	assert.FileExists(t, path)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	m.IncrementRequest()
	m.IncrementRequest()
	m.IncrementError()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.RecordAnalysis("pose", "")
	m.RecordAnalysis("target", "no_target_detected")
	m.RecordFrames(10, 2)
	m.RecordArrows(6)
	m.RecordExternalAPIRequest("object_detector", true)
	m.RecordExternalAPIRequest("object_detector", false)
	m.IncrementRateLimitEndpoint("/analyze/pose")
	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, 50.0, stats["error_rate_percent"])
	assert.Equal(t, 50.0, stats["cache_hit_rate_percent"])

	analyses := stats["analyses"].(map[string]interface{})
	assert.Equal(t, map[string]int64{"pose": 1, "target": 1}, analyses["by_kind"])
	assert.Equal(t, map[string]int64{"no_target_detected": 1}, analyses["failures"])
	assert.Equal(t, int64(10), analyses["frames_sampled"])
	assert.Equal(t, int64(6), analyses["arrows_scored"])

	detector := m.GetExternalAPIStats()["object_detector"].(map[string]interface{})
	assert.Equal(t, 50.0, detector["error_rate"])

	assert.Equal(t, 50*time.Millisecond, m.GetPercentileResponseTime(50))
	assert.Equal(t, 100*time.Millisecond, m.GetPercentileResponseTime(100))

	m.Reset()
	assert.Equal(t, int64(0), m.GetStats()["total_requests"])
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(50))
}

func TestMetrics_ResponseWindow(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < responseSampleSize+10; i++ {
		m.RecordResponseTime(time.Second)
	}
	m.RecordResponseTime(time.Millisecond)
	assert.Equal(t, time.Millisecond, m.GetPercentileResponseTime(0))
	assert.Equal(t, time.Second, m.GetPercentileResponseTime(99))
}

func TestMonitoringMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, slog.LevelInfo)
	metrics := NewMetrics()

	router := gin.New()
	router.Use(MonitoringMiddleware(metrics, logger), SecurityMonitoringMiddleware(logger, 1024))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	req := httptest.NewRequest(http.MethodGet, "/missing?id=1%27;--", nil)
	req.Header.Set("User-Agent", "sqlmap/1.7")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, int64(2), metrics.RequestCount)
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.Equal(t, map[int]int64{200: 1, 404: 1}, metrics.GetStatusCodeDistribution())
	assert.Contains(t, buf.String(), "suspicious_activity_detected")
}

func TestContainsAny(t *testing.T) {
	assert.True(t, containsSQLInjectionPatterns("q=1 UNION SELECT password"))
	assert.False(t, containsSQLInjectionPatterns("target_type=standard"))
	assert.True(t, containsSuspiciousUserAgent("Mozilla/5.0 Nikto"))
	assert.False(t, containsSuspiciousUserAgent("curl/8.0"))
}

func TestTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewTracer("archery-analyzer", NewLoggerTo(&buf, slog.LevelDebug))

	root, ctx := tracer.StartSpan(context.Background(), "request")
	var child *Span
	err := tracer.Trace(ctx, "perception.detect", func(ctx context.Context) error {
		child = SpanFromContext(ctx)
		assert.Equal(t, 2, tracer.ActiveSpans())
		return errors.New("upstream down")
	})
	assert.Error(t, err)
	tracer.EndSpan(root, nil)

	require.NotNil(t, child)
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Equal(t, SpanStatusError, child.Status)
	assert.Equal(t, 0, tracer.ActiveSpans())
	assert.Equal(t, 2, strings.Count(buf.String(), "Trace Span"))
}

func TestRuntimeStats(t *testing.T) {
	stats := RuntimeStats()
	assert.Contains(t, stats, "goroutines")
	assert.Contains(t, stats, "go_heap_alloc_bytes")
}
