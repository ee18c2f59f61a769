package security

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/ZanzyTHEbar/archery-analyzer/internal/errors"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

var (
	archerIDPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,63}$`)
	requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)
)

// SecurityConfig holds security configuration
type SecurityConfig struct {
	MaxBodyBytes   int64         `json:"max_body_bytes"`
	MaxUploadBytes int64         `json:"max_upload_bytes"`
	RequestTimeout time.Duration `json:"request_timeout"`
	AllowedOrigins []string      `json:"allowed_origins"`
	EnableHSTS     bool          `json:"enable_hsts"`
}

// DefaultSecurityConfig returns secure defaults
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxBodyBytes:   10 << 20,
		MaxUploadBytes: 16 << 20,
		RequestTimeout: 60 * time.Second,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// SecurityMiddleware provides the request hygiene middlewares
type SecurityMiddleware struct {
	config SecurityConfig
}

// NewSecurityMiddleware creates a new security middleware instance
func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

// Config returns the middleware configuration
// ValidateArcherID checks an archer identifier before it is signed into a token or stored
func ValidateArcherID(id string) error {
	if id == "" {
		return errors.New("archer id is required")
	}
	if !archerIDPattern.MatchString(id) {
		return fmt.Errorf("archer id must be 1-64 characters of letters, digits, '.', '_', '@' or '-' and start with a letter or digit")
	}
	return nil
}

// RequestID assigns every request an id, reusing a well-formed inbound X-Request-ID
func (sm *SecurityMiddleware) RequestID(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if !requestIDPattern.MatchString(id) {
		id = uuid.New().String()
	}
	c.Set(RequestIDKey, id)
	c.Header(RequestIDHeader, id)
	c.Next()
}

// ValidateContentType accepts JSON and multipart bodies only
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	switch c.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		c.Next()
		return
	}

	contentType := c.GetHeader("Content-Type")
	if contentType == "" {
		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}
		apperrors.Respond(c, apperrors.NewUnsupportedMediaTypeError("missing"))
		return
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		apperrors.Respond(c, apperrors.NewUnsupportedMediaTypeError(contentType))
		return
	}

	switch mediaType {
	case "application/json", "multipart/form-data":
		c.Next()
	default:
		apperrors.Respond(c, apperrors.NewUnsupportedMediaTypeError(mediaType))
	}
}

// BodyLimit caps request bodies: uploads get MaxUploadBytes, everything else MaxBodyBytes
func (sm *SecurityMiddleware) BodyLimit(c *gin.Context) {
	limit := sm.config.MaxBodyBytes
	if strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
		limit = sm.config.MaxUploadBytes
	}
	if limit <= 0 || c.Request.Body == nil {
		c.Next()
		return
	}

	if c.Request.ContentLength > limit {
		apperrors.Respond(c, apperrors.NewPayloadTooLargeError(limit))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	c.Next()
}

// IsBodyTooLarge reports whether err came from reading past the body limit
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// RequestTimeout bounds the request context
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	if sm.config.RequestTimeout <= 0 {
		c.Next()
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// CORS returns the cross-origin policy for the configured origins
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", RequestIDHeader, "X-Issuer-Key"},
		ExposeHeaders:    []string{RequestIDHeader, "X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	origins := sm.config.AllowedOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
		config.AllowCredentials = false
	} else {
		config.AllowOrigins = origins
	}

	return cors.New(config)
}
