package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompressionRouter(cm *CompressionMiddleware, body string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(cm.Handler())
	r.GET("/json", func(c *gin.Context) {
		c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(body))
	})
	r.GET("/png", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", []byte(body))
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestCompressionMiddleware(t *testing.T) {
	large := `{"frames":"` + strings.Repeat("keypoints ", 500) + `"}`
	small := `{"ok":true}`

	tests := []struct {
		name           string
		path           string
		body           string
		acceptEncoding string
		wantGzip       bool
		wantStatus     int
	}{
		{name: "large json with gzip", path: "/json", body: large, acceptEncoding: "gzip, deflate", wantGzip: true, wantStatus: http.StatusCreated},
		{name: "large json without gzip", path: "/json", body: large, wantStatus: http.StatusCreated},
		{name: "small json", path: "/json", body: small, acceptEncoding: "gzip", wantStatus: http.StatusCreated},
		{name: "binary content", path: "/png", body: large, acceptEncoding: "gzip", wantStatus: http.StatusOK},
		{name: "no content", path: "/empty", acceptEncoding: "gzip", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := NewCompressionMiddleware(DefaultCompressionConfig())
			r := newCompressionRouter(cm, tt.body)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if !tt.wantGzip {
				assert.Empty(t, w.Header().Get("Content-Encoding"))
				assert.Equal(t, tt.body, w.Body.String())
				return
			}

			assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
			assert.Contains(t, w.Header().Values("Vary"), "Accept-Encoding")
			assert.Less(t, w.Body.Len(), len(tt.body))

			gz, err := gzip.NewReader(w.Body)
			require.NoError(t, err)
			decoded, err := io.ReadAll(gz)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(decoded))
		})
	}
}

func TestCompressionMiddleware_Stats(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	large := strings.Repeat("a", 4096)
	r := newCompressionRouter(cm, large)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/json", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	req := httptest.NewRequest(http.MethodGet, "/png", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(httptest.NewRecorder(), req)

	stats := cm.GetStats()
	assert.Equal(t, int64(4), stats["total_requests"])
	assert.Equal(t, int64(3), stats["compressed_requests"])
	assert.Equal(t, int64(4*4096), stats["total_bytes"])
	assert.Greater(t, stats["compressed_bytes"].(int64), int64(0))
	assert.Less(t, stats["compressed_bytes"].(int64), int64(3*4096))
}

func TestNewCompressionMiddleware_InvalidLevel(t *testing.T) {
	config := DefaultCompressionConfig()
	config.CompressionLevel = 42
	cm := NewCompressionMiddleware(config)

	r := newCompressionRouter(cm, strings.Repeat("b", 2048))
	req := httptest.NewRequest(http.MethodGet, "/json", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}
