package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// ConnectionPool bounds concurrent calls to one perception service and routes them through its circuit breaker
type ConnectionPool struct {
	maxIdle     int
	maxActive   int
	idleTimeout time.Duration

	circuitBreaker *CircuitBreaker

	client    *http.Client
	transport *http.Transport
	slots     chan struct{}

	inFlight int64
	requests int64
	failures int64
}

// NewConnectionPool creates a pool allowing maxActive requests at once
func NewConnectionPool(maxIdle, maxActive int, idleTimeout, requestTimeout time.Duration, cb *CircuitBreaker) *ConnectionPool {
	if maxActive <= 0 {
		maxActive = 1
	}
	if maxIdle <= 0 {
		maxIdle = maxActive
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          maxIdle,
		MaxConnsPerHost:       maxActive,
		MaxIdleConnsPerHost:   maxIdle,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: requestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &ConnectionPool{
		maxIdle:        maxIdle,
		maxActive:      maxActive,
		idleTimeout:    idleTimeout,
		circuitBreaker: cb,
		transport:      transport,
		client: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
		slots: make(chan struct{}, maxActive),
	}
}

func (cp *ConnectionPool) acquire(ctx context.Context) error {
	select {
	case cp.slots <- struct{}{}:
		atomic.AddInt64(&cp.inFlight, 1)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection pool exhausted: %d/%d active: %w", atomic.LoadInt64(&cp.inFlight), cp.maxActive, ctx.Err())
	}
}

func (cp *ConnectionPool) release() {
	atomic.AddInt64(&cp.inFlight, -1)
	<-cp.slots
}

// DoRequest executes one request under the circuit breaker.
// A 5xx response is closed and returned as *HTTPError so that it counts against the breaker;
// any other response is handed to the caller, who must close its body.
func (cp *ConnectionPool) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var resp *http.Response

	err := cp.circuitBreaker.Call(func() error {
		if err := cp.acquire(ctx); err != nil {
			return err
		}
		defer cp.release()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		atomic.AddInt64(&cp.requests, 1)
		start := time.Now()
		r, err := cp.client.Do(req)
		duration := time.Since(start)
		if err != nil {
			atomic.AddInt64(&cp.failures, 1)
			slog.Warn("Request failed", "breaker", cp.circuitBreaker.Name(), "url", url, "error", err, "duration_ms", duration.Milliseconds())
			return err
		}

		if r.StatusCode >= http.StatusInternalServerError {
			atomic.AddInt64(&cp.failures, 1)
			_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 4096))
			r.Body.Close()
			slog.Warn("Upstream server error", "breaker", cp.circuitBreaker.Name(), "url", url, "status", r.StatusCode, "duration_ms", duration.Milliseconds())
			return NewHTTPError(r.StatusCode, r.Status)
		}

		slog.Debug("Request completed", "breaker", cp.circuitBreaker.Name(), "url", url, "status", r.StatusCode, "duration_ms", duration.Milliseconds())
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"in_flight":             atomic.LoadInt64(&cp.inFlight),
		"requests":              atomic.LoadInt64(&cp.requests),
		"failures":              atomic.LoadInt64(&cp.failures),
		"max_idle":              cp.maxIdle,
		"max_active":            cp.maxActive,
		"idle_timeout_ms":       cp.idleTimeout.Milliseconds(),
		"circuit_breaker_state": cp.circuitBreaker.State().String(),
	}
}

// Close drops idle keep-alive connections
func (cp *ConnectionPool) Close() error {
	cp.transport.CloseIdleConnections()
	slog.Info("Connection pool closed", "breaker", cp.circuitBreaker.Name())
	return nil
}
