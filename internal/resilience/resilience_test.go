package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestBreaker(clock *fakeClock, onChange func(string, CircuitBreakerState, CircuitBreakerState)) *CircuitBreaker {
	cb := NewCircuitBreaker("pose_estimator", CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 1,
		OnStateChange:    onChange,
	})
	cb.now = clock.Now
	return cb
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var transitions []string
	cb := newTestBreaker(clock, func(name string, from, to CircuitBreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	var cbErr *CircuitBreakerError
	require.ErrorAs(t, err, &cbErr)
	assert.True(t, cbErr.Unavailable())
	assert.Equal(t, "pose_estimator", cbErr.Name)
	assert.False(t, called)

	clock.Advance(2 * time.Second)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cb := newTestBreaker(clock, nil)

	_ = cb.Call(func() error { return errBoom })
	_ = cb.Call(func() error { return errBoom })
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(2 * time.Second)
	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("detector", CircuitBreakerConfig{FailureThreshold: 3})

	_ = cb.Call(func() error { return errBoom })
	_ = cb.Call(func() error { return errBoom })
	require.NoError(t, cb.Call(func() error { return nil }))
	_ = cb.Call(func() error { return errBoom })

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Failures())
}

func TestCircuitBreakerRegistry(t *testing.T) {
	registry := NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1})

	a := registry.GetOrCreate("pose_estimator")
	assert.Same(t, a, registry.GetOrCreate("pose_estimator"))

	_ = a.Call(func() error { return errBoom })
	stats := registry.GetStats()
	require.Contains(t, stats, "pose_estimator")
	assert.Equal(t, "open", stats["pose_estimator"].(map[string]interface{})["state"])

	a.Reset()
	assert.Equal(t, StateClosed, a.State())

	_, ok := registry.Get("missing")
	assert.False(t, ok)
}

func TestRetryWithConfig(t *testing.T) {
	fast := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{name: "first attempt succeeds", failures: 0, err: nil, wantCalls: 1},
		{name: "retryable server error then success", failures: 2, err: NewHTTPError(503, "503 Service Unavailable"), wantCalls: 3},
		{name: "retryable error exhausts attempts", failures: 5, err: NewHTTPError(502, "502 Bad Gateway"), wantCalls: 3, wantErr: true},
		{name: "client error is not retried", failures: 5, err: NewHTTPError(400, "400 Bad Request"), wantCalls: 1, wantErr: true},
		{name: "open circuit is not retried", failures: 5, err: NewCircuitBreakerError("x", StateOpen), wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithConfig(context.Background(), fast, func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryWithConfig_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, BackoffFactor: 1}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- RetryWithConfig(ctx, config, func() error {
			calls++
			return NewHTTPError(503, "503 Service Unavailable")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		var httpErr *HTTPError
		assert.ErrorAs(t, err, &httpErr)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
}

func TestCalculateDelay(t *testing.T) {
	config := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(config, 0))
	assert.Equal(t, 400*time.Millisecond, calculateDelay(config, 2))
	assert.Equal(t, time.Second, calculateDelay(config, 10))

	config.JitterEnabled = true
	d := calculateDelay(config, 0)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.Less(t, d, 110*time.Millisecond)

	config.InitialDelay = 5
	assert.NotPanics(t, func() { calculateDelay(config, 0) })
}

func TestRetryManager(t *testing.T) {
	rm := NewRetryManager()
	assert.Equal(t, "standard", rm.GetPolicy("unknown").Name)

	policy := FastRetryPolicy()
	policy.Config.InitialDelay = time.Millisecond
	rm.RegisterPolicy(ServicePoseEstimator, policy)
	assert.Equal(t, "fast", rm.GetPolicy(ServicePoseEstimator).Name)

	calls := 0
	err := rm.Execute(context.Background(), ServicePoseEstimator, func() error {
		calls++
		return NewHTTPError(500, "500 Internal Server Error")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestConnectionPool_DoRequest(t *testing.T) {
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		switch r.URL.Path {
		case "/fail":
			w.WriteHeader(http.StatusBadGateway)
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer server.Close()

	cb := NewCircuitBreaker("detector", CircuitBreakerConfig{FailureThreshold: 2})
	pool := NewConnectionPool(2, 2, time.Minute, time.Second, cb)
	defer pool.Close()
	headers := map[string]string{"X-API-Key": "secret"}

	resp, err := pool.DoRequest(context.Background(), http.MethodPost, server.URL+"/ok", []byte(`{}`), headers)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = pool.DoRequest(context.Background(), http.MethodPost, server.URL+"/bad", nil, headers)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 2; i++ {
		_, err = pool.DoRequest(context.Background(), http.MethodPost, server.URL+"/fail", nil, headers)
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	}
	assert.Equal(t, StateOpen, cb.State())

	before := atomic.LoadInt64(&hits)
	_, err = pool.DoRequest(context.Background(), http.MethodPost, server.URL+"/ok", nil, headers)
	var cbErr *CircuitBreakerError
	assert.ErrorAs(t, err, &cbErr)
	assert.Equal(t, before, atomic.LoadInt64(&hits))

	stats := pool.GetStats()
	assert.Equal(t, int64(0), stats["in_flight"])
	assert.Equal(t, int64(4), stats["requests"])
	assert.Equal(t, int64(2), stats["failures"])
	assert.Equal(t, "open", stats["circuit_breaker_state"])
}

func TestConnectionPool_BoundsConcurrency(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	pool := NewConnectionPool(1, 1, time.Minute, 5*time.Second, NewCircuitBreaker("pose", CircuitBreakerConfig{}))

	go func() {
		resp, err := pool.DoRequest(context.Background(), http.MethodGet, server.URL, nil, nil)
		if err == nil {
			resp.Body.Close()
		}
	}()
	require.Eventually(t, func() bool {
		return pool.GetStats()["in_flight"].(int64) == 1
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.DoRequest(ctx, http.MethodGet, server.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "connection pool exhausted")
}

func TestDegradationManager_Levels(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	config := DefaultDegradationConfig()
	config.MinRequests = 4
	dm := NewDegradationManager(config)
	dm.now = clock.Now

	dm.RegisterService(ServicePoseEstimator, false, nil)
	dm.RegisterService(ServiceRedis, true, nil)

	dm.Observe(ServicePoseEstimator, errBoom)
	dm.Observe(ServicePoseEstimator, errBoom)
	health, ok := dm.GetServiceHealth(ServicePoseEstimator)
	require.True(t, ok)
	assert.Equal(t, LevelNormal, health.Level, "below the minimum request count")

	dm.Observe(ServicePoseEstimator, nil)
	dm.Observe(ServicePoseEstimator, errBoom)
	health, _ = dm.GetServiceHealth(ServicePoseEstimator)
	assert.Equal(t, LevelEmergency, health.Level)
	assert.InDelta(t, 0.75, health.ErrorRate, 1e-9)
	assert.Equal(t, "boom", health.LastError)
	assert.False(t, dm.IsServiceAvailable(ServicePoseEstimator))

	ready, down := dm.Ready()
	assert.False(t, ready)
	assert.Equal(t, []string{ServicePoseEstimator}, down)
	assert.Equal(t, LevelEmergency, dm.OverallLevel())

	clock.Advance(config.RecoveryTimeWindow + time.Second)
	dm.Observe(ServicePoseEstimator, nil)
	health, _ = dm.GetServiceHealth(ServicePoseEstimator)
	assert.Equal(t, LevelNormal, health.Level)
	assert.Equal(t, int64(1), health.TotalRequests)

	ready, _ = dm.Ready()
	assert.True(t, ready)
	assert.False(t, dm.IsServiceAvailable("unknown"))
}

func TestDegradationManager_OptionalServiceDoesNotBlockReadiness(t *testing.T) {
	config := DefaultDegradationConfig()
	config.MinRequests = 1
	dm := NewDegradationManager(config)
	dm.RegisterService(ServiceRedis, true, nil)

	dm.Observe(ServiceRedis, errBoom)

	ready, down := dm.Ready()
	assert.True(t, ready)
	assert.Empty(t, down)
	assert.Equal(t, LevelEmergency, dm.GetAllServiceHealth()[ServiceRedis].Level)

	dm.ResetService(ServiceRedis)
	health, _ := dm.GetServiceHealth(ServiceRedis)
	assert.Equal(t, LevelNormal, health.Level)
	assert.Empty(t, health.LastError)
}

func TestDegradationManager_RunHealthChecks(t *testing.T) {
	config := DefaultDegradationConfig()
	config.MinRequests = 1
	config.HealthCheckTimeout = time.Second
	dm := NewDegradationManager(config)

	dm.RegisterService(ServiceObjectDetector, false, func(ctx context.Context) error { return errBoom })
	dm.RegisterService(ServiceDatabase, false, func(ctx context.Context) error { return nil })

	dm.RunHealthChecks(context.Background())

	detector, _ := dm.GetServiceHealth(ServiceObjectDetector)
	assert.Equal(t, LevelEmergency, detector.Level)
	assert.Contains(t, detector.LastError, "health check failed for service object_detector")

	db, _ := dm.GetServiceHealth(ServiceDatabase)
	assert.Equal(t, LevelNormal, db.Level)
	assert.Equal(t, int64(1), db.TotalRequests)
}
