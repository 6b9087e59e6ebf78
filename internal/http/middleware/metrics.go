package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/buddybot-backend/internal/observability"
)

// unmatchedRoute labels requests no route matched, so probing for random paths
// cannot grow the route label set.
const unmatchedRoute = "unmatched"

// Metrics records API latency and in-flight count per route template.
// Scrapes of /metrics are not counted.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		m.ApiInflightInc()
		began := time.Now()
		defer func() {
			m.ApiInflightDec()
			route := c.FullPath()
			if route == "" {
				route = unmatchedRoute
			}
			m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(began))
		}()
		c.Next()
	}
}
