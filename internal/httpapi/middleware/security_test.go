package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FrK06/web-rag-original/internal/auth"
	"github.com/FrK06/web-rag-original/internal/logger"
	"github.com/FrK06/web-rag-original/internal/ratelimit"
	"github.com/FrK06/web-rag-original/internal/store/memstore"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct{}

func (fakeTokens) Validate(_ context.Context, raw string, want auth.TokenType) (*auth.Claims, error) {
	if raw != "good" || want != auth.TokenAccess {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{Type: auth.TokenAccess, UserID: "u1"}, nil
}

func newTestEngine(t *testing.T, limits map[string]ratelimit.Rule) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	r := gin.New()
	r.Use(Recovery(log), RequestID())
	r.Use(Security(SecurityConfig{
		Limiter:    ratelimit.New(memstore.New(time.Minute), log, time.Second),
		Tokens:     fakeTokens{},
		RateLimits: limits,
		Log:        log,
	}))

	r.GET("/api/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })
	r.POST("/api/auth/login", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/api/auth/me", func(c *gin.Context) {
		uid, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": uid})
	})
	r.POST("/api/chat/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/api/boom", func(c *gin.Context) { panic("boom") })
	return r
}

func assertSecurityHeaders(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	for k, v := range securityHeaders {
		assert.Equal(t, v, w.Header().Get(k), "header %s", k)
	}
}

func do(r http.Handler, method, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func withAuth(req *http.Request) { req.Header.Set("Authorization", "Bearer good") }

func withCSRF(token string) func(*http.Request) {
	return func(req *http.Request) {
		withAuth(req)
		req.Header.Set("X-CSRF-Token", token)
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-123"})
	}
}

func TestSecurity_ExemptPathsAndHeaders(t *testing.T) {
	r := newTestEngine(t, nil)

	w := do(r, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assertSecurityHeaders(t, w)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	// login is exempt from both csrf and auth
	w = do(r, http.MethodPost, "/api/auth/login", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSecurity_BearerGate(t *testing.T) {
	r := newTestEngine(t, nil)

	w := do(r, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assertSecurityHeaders(t, w)

	w = do(r, http.MethodGet, "/api/auth/me", func(req *http.Request) { req.Header.Set("Authorization", "Bearer bad") })
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/auth/me", withAuth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"u1"`)
}

func TestSecurity_CSRFDoubleSubmit(t *testing.T) {
	r := newTestEngine(t, nil)

	// missing header and cookie
	w := do(r, http.MethodPost, "/api/chat/", withAuth)
	require.Equal(t, http.StatusForbidden, w.Code)
	assertSecurityHeaders(t, w)

	w = do(r, http.MethodPost, "/api/chat/", withCSRF("tok-999"))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/api/chat/", withCSRF("tok-123"))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSecurity_CSRFRunsBeforeAuth(t *testing.T) {
	r := newTestEngine(t, nil)
	// no csrf and no bearer: csrf refusal wins
	w := do(r, http.MethodPost, "/api/chat/", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestSecurity_RateLimitGate(t *testing.T) {
	r := newTestEngine(t, map[string]ratelimit.Rule{
		"/api/auth/login": {Scope: "login", Limit: 2, Window: 15 * time.Minute},
	})
	fromIP := func(ip string) func(*http.Request) {
		return func(req *http.Request) { req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1") }
	}

	for i := 0; i < 2; i++ {
		w := do(r, http.MethodPost, "/api/auth/login", fromIP("1.2.3.4"))
		require.Equal(t, http.StatusOK, w.Code, "attempt %d", i+1)
	}
	w := do(r, http.MethodPost, "/api/auth/login", fromIP("1.2.3.4"))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, fmt.Sprint(15*60), w.Header().Get("Retry-After"))
	assertSecurityHeaders(t, w)

	// the first forwarded hop is the identity
	w = do(r, http.MethodPost, "/api/auth/login", fromIP("5.6.7.8"))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSecurity_PanicKeepsHeaders(t *testing.T) {
	r := newTestEngine(t, nil)
	w := do(r, http.MethodGet, "/api/boom", withAuth)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assertSecurityHeaders(t, w)
	assert.Contains(t, w.Body.String(), `"code":50000`)
}

func TestRetryAfterUsesBlockTTL(t *testing.T) {
	rule := ratelimit.Rule{Window: time.Minute, BlockThreshold: 3, BlockTTL: time.Hour}
	assert.Equal(t, 3600, retryAfter(rule))
	assert.Equal(t, 1, retryAfter(ratelimit.Rule{}))
}
