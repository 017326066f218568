package app

import (
	"github.com/FrK06/web-rag-original/internal/config"
	"github.com/FrK06/web-rag-original/internal/httpapi"
	"github.com/FrK06/web-rag-original/internal/httpapi/handlers"
	"github.com/FrK06/web-rag-original/internal/httpapi/middleware"
	"github.com/FrK06/web-rag-original/internal/jobs"
	"github.com/FrK06/web-rag-original/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// inboundRules maps request paths to their per-IP rate limit.
func inboundRules(cfg config.Config) map[string]ratelimit.Rule {
	chat := ratelimit.Rule{Scope: "chat", Limit: cfg.ChatRateLimit, Window: cfg.RateLimitWindow}
	return map[string]ratelimit.Rule{
		"/api/auth/login": {
			Scope:          "login",
			Limit:          cfg.LoginRateLimit,
			Window:         cfg.RateLimitWindow,
			BlockThreshold: cfg.LoginBlockThreshold,
			BlockTTL:       cfg.BlockTTL,
		},
		"/api/auth/register": {Scope: "register", Limit: cfg.RegisterRateLimit, Window: cfg.RateLimitWindow},
		"/api/chat":          chat,
		"/api/chat/jobs":     chat,
	}
}

func setupHTTP(cfg config.Config, s *Services, jobSvc *jobs.Service, log logrus.FieldLogger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	h := handlers.NewHandler(handlers.Handler{
		Cfg:          cfg,
		Accounts:     s.Accounts,
		Tokens:       s.Tokens,
		Orchestrator: s.Orchestrator,
		Threads:      s.Threads,
		Jobs:         jobSvc,
		Media:        s.Media,
		Notify:       s.Notify,
		Prober:       s.Prober,
		Log:          log,
	})

	return httpapi.NewRouter(h, httpapi.RouterOptions{
		Security: middleware.SecurityConfig{
			Limiter:    s.Limiter,
			Tokens:     s.Tokens,
			RateLimits: inboundRules(cfg),
			CSRFCookie: cfg.CSRFCookieName,
			CSRFHeader: cfg.CSRFHeaderName,
			Log:        log,
		},
		CORSOrigins: cfg.CORSAllowOrigins,
		CSRFHeader:  cfg.CSRFHeaderName,
		Log:         log,
	})
}
