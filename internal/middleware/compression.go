package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // minimum response size to compress (bytes)
	CompressionLevel int      // gzip level, 1-9
	ContentTypes     []string // content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
		},
	}
}

// CompressionMiddleware gzips large responses for clients that accept it
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	cm := &CompressionMiddleware{
		config: config,
		stats:  &CompressionStats{},
	}
	cm.pool.New = func() interface{} {
		gz, _ := gzip.NewWriterLevel(io.Discard, level)
		return gz
	}
	return cm
}

// Handler returns the gin middleware. Responses are buffered so small or
// non-compressible bodies can be sent unchanged.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		w := &bufferedWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()
		c.Writer = w.ResponseWriter

		cm.flush(w)
	}
}

func (cm *CompressionMiddleware) flush(w *bufferedWriter) {
	body := w.body
	header := w.ResponseWriter.Header()

	if len(body) < cm.config.MinSize || !cm.shouldCompress(header.Get("Content-Type")) || header.Get("Content-Encoding") != "" {
		cm.stats.record(int64(len(body)), int64(len(body)), false)
		w.ResponseWriter.WriteHeader(w.statusOr(http.StatusOK))
		if len(body) > 0 {
			w.ResponseWriter.Write(body)
		}
		return
	}

	header.Set("Content-Encoding", "gzip")
	header.Add("Vary", "Accept-Encoding")
	header.Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.statusOr(http.StatusOK))

	counter := &countingWriter{w: w.ResponseWriter}
	gz := cm.pool.Get().(*gzip.Writer)
	gz.Reset(counter)
	gz.Write(body)
	gz.Close()
	cm.pool.Put(gz)

	cm.stats.record(int64(len(body)), counter.n, true)
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}

// bufferedWriter holds the response until the handler chain completes
type bufferedWriter struct {
	gin.ResponseWriter
	body   []byte
	status int
}

func (w *bufferedWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body = append(w.body, data...)
	return len(data), nil
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *bufferedWriter) Status() int {
	return w.statusOr(http.StatusOK)
}

func (w *bufferedWriter) Size() int {
	if w.status == 0 && len(w.body) == 0 {
		return -1
	}
	return len(w.body)
}

func (w *bufferedWriter) Written() bool {
	return w.status != 0
}

func (w *bufferedWriter) statusOr(def int) int {
	if w.status == 0 {
		return def
	}
	return w.status
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
}

func (cs *CompressionStats) record(originalSize, writtenSize int64, compressed bool) {
	atomic.AddInt64(&cs.TotalRequests, 1)
	atomic.AddInt64(&cs.TotalBytes, originalSize)
	if compressed {
		atomic.AddInt64(&cs.CompressedRequests, 1)
		atomic.AddInt64(&cs.CompressedBytes, writtenSize)
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	total := atomic.LoadInt64(&cm.stats.TotalRequests)
	compressed := atomic.LoadInt64(&cm.stats.CompressedRequests)

	return map[string]interface{}{
		"total_requests":      total,
		"compressed_requests": compressed,
		"total_bytes":         atomic.LoadInt64(&cm.stats.TotalBytes),
		"compressed_bytes":    atomic.LoadInt64(&cm.stats.CompressedBytes),
		"min_size":            strconv.Itoa(cm.config.MinSize),
	}
}
