package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// requestLogger logs each request at a level matching its status code.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		code := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status":  code,
			"latency": latency,
			"method":  c.Request.Method,
			"path":    path,
			"size":    max(c.Writer.Size(), 0),
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}
		msg := fmt.Sprintf("%s %s %d", c.Request.Method, path, code)
		switch {
		case code >= http.StatusInternalServerError:
			entry.Error(msg)
		case code >= http.StatusBadRequest:
			entry.Warn(msg)
		default:
			entry.Debug(msg)
		}
	}
}
