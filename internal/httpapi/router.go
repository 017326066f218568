package httpapi

import (
	"net/http"
	"time"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/httpapi/handlers"
	"github.com/FrK06/web-rag-original/internal/httpapi/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type RouterOptions struct {
	Security    middleware.SecurityConfig
	CORSOrigins []string
	CSRFHeader  string
	Log         logrus.FieldLogger
}

func NewRouter(h *handlers.Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(opts.Log))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(opts.Log))
	if len(opts.CORSOrigins) > 0 {
		csrfHeader := opts.CSRFHeader
		if csrfHeader == "" {
			csrfHeader = "X-CSRF-Token"
		}
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", middleware.RequestIDHeader, csrfHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(middleware.Security(opts.Security))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.HealthCheck)

	// auth
	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh", h.Refresh)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/me", h.Me)
	authGroup.PUT("/update-password", h.UpdatePassword)
	authGroup.GET("/csrf-token", h.CSRFToken)

	// chat
	api.POST("/chat/", h.Chat)
	api.POST("/chat/jobs", h.SubmitChatJob)
	api.GET("/chat/jobs/:job_id", h.GetChatJob)

	// conversations
	api.GET("/conversations/", h.ListConversations)
	api.POST("/conversations/", h.StoreMessage)
	api.GET("/conversations/:thread_id", h.ConversationHistory)
	api.PUT("/conversations/:thread_id", h.RenameConversation)
	api.PUT("/conversations/:thread_id/rename", h.RenameConversation)
	api.DELETE("/conversations/:thread_id", h.DeleteConversation)

	// media
	api.POST("/speech-to-text/", h.SpeechToText)
	api.POST("/text-to-speech/", h.TextToSpeech)
	api.POST("/generate-image/", h.GenerateImage)
	api.POST("/direct-image-generation/", h.GenerateImage)
	api.POST("/analyze-image/", h.AnalyzeImage)
	api.POST("/process-image/", h.ProcessImage)

	// notifications
	api.POST("/send-sms/", h.SendSMS)
	api.POST("/make-call/", h.MakeCall)

	return r
}
