package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/monitoring"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/resilience"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ClientConfig configures one perception service
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	MaxActive int
}

// Deps are the shared resilience and observability components a client reports to.
// Every field is optional.
type Deps struct {
	Breakers    *resilience.CircuitBreakerRegistry
	Retries     *resilience.RetryManager
	Degradation *resilience.DegradationManager
	Metrics     *monitoring.Metrics
	Logger      *monitoring.Logger
	Tracer      *monitoring.Tracer
}

// UpstreamError is a non-2xx answer that the service returned on purpose
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Retryable is false: the service rejected this frame and will do so again
func (e *UpstreamError) Retryable() bool {
	return false
}

// client is the HTTP plumbing shared by the pose estimator and detector clients
type client struct {
	service string
	config  ClientConfig
	pool    *resilience.ConnectionPool
	deps    Deps
}

func newClient(service string, config ClientConfig, deps Deps) (*client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", service)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxActive <= 0 {
		config.MaxActive = 8
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if deps.Breakers == nil {
		deps.Breakers = resilience.NewCircuitBreakerRegistry(resilience.CircuitBreakerConfig{})
	}
	if deps.Retries == nil {
		deps.Retries = resilience.NewRetryManager()
	}

	pool := resilience.NewConnectionPool(config.MaxActive, config.MaxActive, 90*time.Second, config.Timeout, deps.Breakers.GetOrCreate(service))

	return &client{
		service: service,
		config:  config,
		pool:    pool,
		deps:    deps,
	}, nil
}

// postImage sends frame to path and decodes the JSON answer into out
func (c *client) postImage(ctx context.Context, path string, frame Frame, out interface{}) error {
	url := c.config.BaseURL + path
	headers := map[string]string{
		"Content-Type": "image/jpeg",
		"Accept":       "application/json",
	}
	if c.config.APIKey != "" {
		headers["X-API-Key"] = c.config.APIKey
	}

	call := func(ctx context.Context) error {
		return c.deps.Retries.Execute(ctx, c.service, func() error {
			start := time.Now()
			resp, err := c.pool.DoRequest(ctx, http.MethodPost, url, frame.Data, headers)
			if err != nil {
				c.logCall(path, 0, time.Since(start), false)
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				c.logCall(path, resp.StatusCode, time.Since(start), false)
				if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
					return resilience.NewHTTPError(resp.StatusCode, resp.Status)
				}
				return &UpstreamError{Service: c.service, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				c.logCall(path, resp.StatusCode, time.Since(start), false)
				return fmt.Errorf("failed to decode %s response: %w", c.service, err)
			}
			c.logCall(path, resp.StatusCode, time.Since(start), true)
			return nil
		})
	}

	var err error
	if c.deps.Tracer != nil {
		err = c.deps.Tracer.Trace(ctx, c.service+" "+path, func(ctx context.Context) error {
			if span := monitoring.SpanFromContext(ctx); span != nil {
				span.SetTag("frame_bytes", fmt.Sprintf("%d", len(frame.Data)))
			}
			return call(ctx)
		})
	} else {
		err = call(ctx)
	}

	if c.deps.Degradation != nil {
		c.deps.Degradation.Observe(c.service, err)
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordExternalAPIRequest(c.service, err == nil)
	}
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.service, err)
	}
	return nil
}

func (c *client) logCall(path string, status int, duration time.Duration, success bool) {
	if c.deps.Logger != nil {
		c.deps.Logger.ExternalAPILogger(c.service, http.MethodPost, path, status, duration, success)
	}
}

// ping checks that the service answers its health endpoint
func (c *client) ping(ctx context.Context) error {
	headers := map[string]string{"Accept": "application/json"}
	if c.config.APIKey != "" {
		headers["X-API-Key"] = c.config.APIKey
	}
	resp, err := c.pool.DoRequest(ctx, http.MethodGet, c.config.BaseURL+"/health", nil, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Service: c.service, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *client) stats() map[string]interface{} {
	return c.pool.GetStats()
}

func (c *client) close() error {
	return c.pool.Close()
}
