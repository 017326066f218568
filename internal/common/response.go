package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"error":   msg,
	})
}

// FailError writes err using the taxonomy. Internal errors are sanitized in release mode.
func FailError(c *gin.Context, err error) {
	status, code := Classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && gin.Mode() == gin.ReleaseMode {
		msg = http.StatusText(status)
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	Fail(c, status, code, msg)
}
