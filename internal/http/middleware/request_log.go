package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/buddybot-backend/internal/pkg/ctxutil"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

// quietPaths are polled by orchestrators and only logged when they fail.
var quietPaths = map[string]bool{
	"/healthcheck": true,
	"/readyz":      true,
	"/metrics":     true,
}

// RequestLogger writes one line per request once the handler chain returns.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		status := c.Writer.Status()
		if quietPaths[c.Request.URL.Path] && status < 500 {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(began).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		ctx := c.Request.Context()
		if td := ctxutil.GetTraceData(ctx); td != nil {
			kv = append(kv, "request_id", td.RequestID, "trace_id", td.TraceID)
		}
		if a := ctxutil.GetActor(ctx); a != nil {
			kv = append(kv, "actor_id", a.UserID, "role", a.Role)
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			kv = append(kv, "errors", errs.String())
		}

		switch {
		case status >= 500:
			log.Error("request failed", kv...)
		case status >= 400:
			log.Warn("request rejected", kv...)
		default:
			log.Info("request served", kv...)
		}
	}
}
