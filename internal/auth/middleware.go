package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/archery-analyzer/internal/errors"
)

const archerKey = "archer_id"

// IssuerKeyHeader carries the shared key required to mint tokens
const IssuerKeyHeader = "X-Issuer-Key"

// ArcherID returns the authenticated archer of the request, if any
func ArcherID(c *gin.Context) (string, bool) {
	id := c.GetString(archerKey)
	return id, id != ""
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	return strings.TrimSpace(token), ok
}

func authenticate(c *gin.Context, issuer *Issuer) bool {
	token, ok := bearerToken(c)
	if !ok || token == "" {
		apperrors.Respond(c, apperrors.NewUnauthorizedError("Malformed Authorization header", nil))
		return false
	}
	archerID, err := issuer.Validate(token)
	if err != nil {
		apperrors.Respond(c, apperrors.NewUnauthorizedError("Invalid or expired token", err))
		return false
	}
	c.Set(archerKey, archerID)
	return true
}

// OptionalArcher identifies the archer when a bearer token is present.
// Requests without Authorization pass through anonymously; invalid tokens are rejected.
func OptionalArcher(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		if !authenticate(c, issuer) {
			return
		}
		c.Next()
	}
}

// RequireArcher rejects requests without a valid archer token
func RequireArcher(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ArcherID(c); ok {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") == "" {
			apperrors.Respond(c, apperrors.NewUnauthorizedError("Authentication required", nil))
			return
		}
		if !authenticate(c, issuer) {
			return
		}
		c.Next()
	}
}

// RequireIssuerKey guards token issuance with a shared key. An empty key disables the check.
func RequireIssuerKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(IssuerKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			apperrors.Respond(c, apperrors.NewUnauthorizedError("Invalid issuer key", nil))
			return
		}
		c.Next()
	}
}
