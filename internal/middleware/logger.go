package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs request outcomes and recovers from panics.
func RequestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Errorw("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", recovered,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   gin.H{"code": "INTERNAL_SERVER_ERROR", "message": "Internal Server Error"},
				})
				return
			}

			status := c.Writer.Status()
			fields := []any{
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", status,
				"client_ip", c.ClientIP(),
				"latency", time.Since(start),
			}
			if actor := ActorFrom(c); actor.ID != 0 {
				fields = append(fields, "actor_id", actor.ID)
			}
			if status >= http.StatusInternalServerError {
				log.Errorw("request failed", fields...)
			} else {
				log.Debugw("request", fields...)
			}
		}()

		c.Next()
	}
}
