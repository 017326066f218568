package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/FrK06/web-rag-original/internal/auth"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TokenValidator is satisfied by *auth.TokenService.
type TokenValidator interface {
	Validate(ctx context.Context, raw string, want auth.TokenType) (*auth.Claims, error)
}

var (
	DefaultCSRFExempt = []string{
		"/api/health",
		"/api/auth/login",
		"/api/auth/register",
		"/api/auth/csrf-token",
		"/metrics",
	}
	DefaultAuthExempt = append(append([]string{}, DefaultCSRFExempt...), "/api/auth/refresh")
)

var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Content-Security-Policy":   "default-src 'self'; img-src 'self' data: https:; frame-ancestors 'none'",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
}

type SecurityConfig struct {
	Limiter ratelimit.Admitter
	Tokens  TokenValidator
	// RateLimits maps a request path to the rule guarding it.
	RateLimits map[string]ratelimit.Rule

	CSRFCookie string
	CSRFHeader string
	CSRFExempt []string
	AuthExempt []string

	Log logrus.FieldLogger
}

type security struct {
	cfg        SecurityConfig
	limits     map[string]ratelimit.Rule
	csrfExempt map[string]struct{}
	authExempt map[string]struct{}
}

// Security is the per-request gate: headers first, then the rate-limit gate,
// the CSRF double-submit check and the bearer gate, then the handler.
// Every response, including refusals and panics, carries the headers.
func Security(cfg SecurityConfig) gin.HandlerFunc {
	if cfg.CSRFCookie == "" {
		cfg.CSRFCookie = "csrf_token"
	}
	if cfg.CSRFHeader == "" {
		cfg.CSRFHeader = "X-CSRF-Token"
	}
	if cfg.CSRFExempt == nil {
		cfg.CSRFExempt = DefaultCSRFExempt
	}
	if cfg.AuthExempt == nil {
		cfg.AuthExempt = DefaultAuthExempt
	}
	s := &security{
		cfg:        cfg,
		limits:     make(map[string]ratelimit.Rule, len(cfg.RateLimits)),
		csrfExempt: pathSet(cfg.CSRFExempt),
		authExempt: pathSet(cfg.AuthExempt),
	}
	for p, r := range cfg.RateLimits {
		s.limits[normalizePath(p)] = r
	}
	return s.handle
}

func pathSet(paths []string) map[string]struct{} {
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[normalizePath(p)] = struct{}{}
	}
	return out
}

func normalizePath(p string) string {
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

func (s *security) handle(c *gin.Context) {
	for k, v := range securityHeaders {
		c.Header(k, v)
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.cfg.Log.WithFields(logrus.Fields{
				"panic":      rec,
				"path":       c.Request.URL.Path,
				"request_id": RequestIDFrom(c),
				"stack":      string(debug.Stack()),
			}).Error("security: request panicked")
			if !c.Writer.Written() {
				common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
			}
			c.Abort()
		}
	}()

	if c.Request.Method == http.MethodOptions {
		c.Next()
		return
	}
	path := normalizePath(c.Request.URL.Path)

	// 1) rate limit
	if rule, ok := s.limits[path]; ok {
		if err := ratelimit.Enforce(c.Request.Context(), s.cfg.Limiter, ClientIP(c), rule); err != nil {
			c.Header("Retry-After", strconv.Itoa(retryAfter(rule)))
			common.FailError(c, fmt.Errorf("%w: please try again later", err))
			c.Abort()
			return
		}
	}

	// 2) csrf double submit
	if isStateChanging(c.Request.Method) {
		if _, exempt := s.csrfExempt[path]; !exempt && !s.csrfValid(c) {
			s.cfg.Log.WithFields(logrus.Fields{"path": path, "client_ip": ClientIP(c)}).Warn("security: csrf check failed")
			common.FailError(c, fmt.Errorf("%w: CSRF token missing or invalid", common.ErrForbidden))
			c.Abort()
			return
		}
	}

	// 3) bearer token
	if _, exempt := s.authExempt[path]; !exempt {
		claims, err := s.bearer(c)
		if err != nil {
			common.FailError(c, err)
			c.Abort()
			return
		}
		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)
	}

	c.Next()
}

func (s *security) csrfValid(c *gin.Context) bool {
	header := c.GetHeader(s.cfg.CSRFHeader)
	cookie, err := c.Cookie(s.cfg.CSRFCookie)
	if err != nil || header == "" || cookie == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) == 1
}

func (s *security) bearer(c *gin.Context) (*auth.Claims, error) {
	raw := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(raw, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: not authenticated", common.ErrUnauthenticated)
	}
	if s.cfg.Tokens == nil {
		return nil, fmt.Errorf("%w: not authenticated", common.ErrUnauthenticated)
	}
	return s.cfg.Tokens.Validate(c.Request.Context(), strings.TrimSpace(token), auth.TokenAccess)
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func retryAfter(r ratelimit.Rule) int {
	d := r.Window
	if r.BlockThreshold > 0 && r.BlockTTL > d {
		d = r.BlockTTL
	}
	if d < time.Second {
		return 1
	}
	return int(d / time.Second)
}

// ClientIP prefers the first X-Forwarded-For hop.
func ClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}
