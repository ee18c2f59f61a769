package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TraceID string
type SpanID string

type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// Span is one timed operation inside a request
type Span struct {
	TraceID   TraceID           `json:"trace_id"`
	SpanID    SpanID            `json:"span_id"`
	ParentID  SpanID            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	Duration  time.Duration     `json:"duration"`
	Tags      map[string]string `json:"tags,omitempty"`
	Error     string            `json:"error,omitempty"`
	Status    SpanStatus        `json:"status"`

	mu sync.Mutex
}

// SetTag is safe to call from the goroutines a span fans out to
func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Tags == nil {
		s.Tags = make(map[string]string)
	}
	s.Tags[key] = value
}

type spanKey struct{}

// SpanFromContext returns the innermost active span, if any
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey{}).(*Span)
	return span
}

// Tracer writes finished spans as log lines and tracks the ones in flight
type Tracer struct {
	serviceName string
	logger      *Logger
	active      map[SpanID]*Span
	mu          sync.RWMutex
}

func NewTracer(serviceName string, logger *Logger) *Tracer {
	return &Tracer{
		serviceName: serviceName,
		logger:      logger,
		active:      make(map[SpanID]*Span),
	}
}

// StartSpan opens a span under the span in ctx, or a new trace when there is none
func (t *Tracer) StartSpan(ctx context.Context, operation string) (*Span, context.Context) {
	span := &Span{
		SpanID:    SpanID(uuid.NewString()),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanStatusOK,
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else {
		span.TraceID = TraceID(uuid.NewString())
	}

	t.mu.Lock()
	t.active[span.SpanID] = span
	t.mu.Unlock()

	return span, context.WithValue(ctx, spanKey{}, span)
}

// EndSpan closes span and logs it
func (t *Tracer) EndSpan(span *Span, err error) {
	span.mu.Lock()
	span.Duration = time.Since(span.StartTime)
	if err != nil {
		span.Error = err.Error()
		span.Status = SpanStatusError
	}
	attrs := []any{
		"service", t.serviceName,
		"trace_id", span.TraceID,
		"span_id", span.SpanID,
		"operation", span.Operation,
		"status", span.Status,
		"duration_ms", span.Duration.Milliseconds(),
	}
	if span.ParentID != "" {
		attrs = append(attrs, "parent_id", span.ParentID)
	}
	if span.Error != "" {
		attrs = append(attrs, "error", span.Error)
	}
	for k, v := range span.Tags {
		attrs = append(attrs, "tag_"+k, v)
	}
	span.mu.Unlock()

	t.mu.Lock()
	delete(t.active, span.SpanID)
	t.mu.Unlock()

	t.logger.Debug("Trace Span", attrs...)
}

// Trace runs fn inside a child span
func (t *Tracer) Trace(ctx context.Context, operation string, fn func(context.Context) error) error {
	span, spanCtx := t.StartSpan(ctx, operation)
	err := fn(spanCtx)
	t.EndSpan(span, err)
	return err
}

func (t *Tracer) ActiveSpans() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}

// TracingMiddleware opens the request span and exposes its trace id to the client
func TracingMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := tracer.StartSpan(c.Request.Context(), fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()))
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("client_ip", c.ClientIP())

		c.Header("X-Trace-ID", string(span.TraceID))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetTag("http.status_code", fmt.Sprintf("%d", c.Writer.Status()))
		var err error
		if len(c.Errors) > 0 {
			err = fmt.Errorf("request errors: %v", c.Errors.Errors())
		}
		tracer.EndSpan(span, err)
	}
}
