package handlers

import (
	"github.com/FrK06/web-rag-original/internal/auth"
	"github.com/FrK06/web-rag-original/internal/chat"
	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/config"
	"github.com/FrK06/web-rag-original/internal/httpapi/middleware"
	"github.com/FrK06/web-rag-original/internal/jobs"
	"github.com/FrK06/web-rag-original/internal/orchestrator"
	"github.com/FrK06/web-rag-original/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	Cfg          config.Config
	Accounts     *auth.Accounts
	Tokens       *auth.TokenService
	Orchestrator *orchestrator.Orchestrator
	Threads      *chat.Store
	Jobs         *jobs.Service
	Media        *upstream.MediaService
	Notify       *upstream.NotificationService
	Prober       *upstream.Prober
	Log          logrus.FieldLogger
}

func NewHandler(h Handler) *Handler {
	if h.Log == nil {
		h.Log = logrus.StandardLogger()
	}
	return &h
}

// owner returns the authenticated user id or writes a 401.
func owner(c *gin.Context) (string, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.FailError(c, errNotAuthenticated)
		return "", false
	}
	return uid, true
}

func (h *Handler) logFor(c *gin.Context) logrus.FieldLogger {
	entry := h.Log.WithField("request_id", middleware.RequestIDFrom(c))
	if uid, ok := middleware.UserID(c); ok {
		entry = entry.WithField("user_id", uid)
	}
	return entry
}
