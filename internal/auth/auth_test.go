package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-0123456789"

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	return issuer
}

func TestNewIssuer(t *testing.T) {
	_, err := NewIssuer("short", time.Hour)
	assert.ErrorIs(t, err, ErrSecretTooShort)

	issuer, err := NewIssuer(testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, issuer.ttl)
}

func TestIssuer_IssueValidate(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.Issue("archer-7")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, "archer-7", token.ArcherID)

	archer, err := issuer.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "archer-7", archer)

	_, err = issuer.Issue("")
	assert.ErrorIs(t, err, ErrMissingArcher)
}

func TestIssuer_ValidateRejects(t *testing.T) {
	issuer := newTestIssuer(t)
	other, err := NewIssuer("another-secret-0123456789", time.Hour)
	require.NoError(t, err)

	expiredIssuer := newTestIssuer(t)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredIssuer.Issue("a")
	require.NoError(t, err)

	foreign, err := other.Issue("a")
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &ArcherClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ArcherID: "a",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &ArcherClaims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: TokenIssuer},
		ArcherID:         "a",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &ArcherClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ArcherID: "a",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "expired", token: expired.AccessToken},
		{name: "signed with another secret", token: foreign.AccessToken},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "missing expiry", token: noExpiry},
		{name: "unsigned", token: noneAlg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Validate(tt.token)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}
}

func newAuthRouter(issuer *Issuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(OptionalArcher(issuer))

	whoami := func(c *gin.Context) {
		id, ok := ArcherID(c)
		c.JSON(http.StatusOK, gin.H{"archer_id": id, "authenticated": ok})
	}
	router.GET("/open", whoami)
	router.GET("/private", RequireArcher(issuer), whoami)
	router.POST("/token", RequireIssuerKey("issuer-key"), func(c *gin.Context) { c.Status(http.StatusCreated) })
	return router
}

func TestMiddleware(t *testing.T) {
	issuer := newTestIssuer(t)
	token, err := issuer.Issue("archer-1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		method     string
		path       string
		headers    map[string]string
		wantStatus int
		wantBody   string
	}{
		{name: "anonymous open route", method: http.MethodGet, path: "/open", wantStatus: http.StatusOK, wantBody: `"authenticated":false`},
		{name: "authenticated open route", method: http.MethodGet, path: "/open", headers: map[string]string{"Authorization": "Bearer " + token.AccessToken}, wantStatus: http.StatusOK, wantBody: `"archer_id":"archer-1"`},
		{name: "invalid token on open route", method: http.MethodGet, path: "/open", headers: map[string]string{"Authorization": "Bearer nope"}, wantStatus: http.StatusUnauthorized},
		{name: "non bearer scheme", method: http.MethodGet, path: "/open", headers: map[string]string{"Authorization": "Basic abc"}, wantStatus: http.StatusUnauthorized},
		{name: "private without token", method: http.MethodGet, path: "/private", wantStatus: http.StatusUnauthorized},
		{name: "private with token", method: http.MethodGet, path: "/private", headers: map[string]string{"Authorization": "Bearer " + token.AccessToken}, wantStatus: http.StatusOK, wantBody: `"authenticated":true`},
		{name: "issuer key missing", method: http.MethodPost, path: "/token", wantStatus: http.StatusUnauthorized},
		{name: "issuer key wrong", method: http.MethodPost, path: "/token", headers: map[string]string{IssuerKeyHeader: "guess"}, wantStatus: http.StatusUnauthorized},
		{name: "issuer key valid", method: http.MethodPost, path: "/token", headers: map[string]string{IssuerKeyHeader: "issuer-key"}, wantStatus: http.StatusCreated},
	}

	router := newAuthRouter(issuer)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireIssuerKey_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/token", RequireIssuerKey(""), func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/token", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}
