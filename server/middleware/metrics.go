package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/service-template/observability"
)

// Metrics records request count, duration and in-flight requests. The route
// label is the matched Gin pattern so path parameters don't explode
// cardinality; unmatched requests are labelled "unmatched".
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()
		m.RecordRequestStart(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequestEnd(ctx, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
