package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Recovery turns a panic anywhere below it into a 500 envelope.
func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(logrus.Fields{
					"panic":      rec,
					"path":       c.Request.URL.Path,
					"request_id": RequestIDFrom(c),
					"stack":      string(debug.Stack()),
				}).Error("http: panic recovered")
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
