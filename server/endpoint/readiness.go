package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/service-template/component"
)

// ReadinessChecker returns the lifecycle health of registered components.
type ReadinessChecker func(ctx context.Context) []component.Health

// Readiness returns a handler for K8s readiness probes. The service is ready
// while no component reports unhealthy.
func Readiness(serviceName string, checker ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ready"
		httpStatus := http.StatusOK

		components := checker(c.Request.Context())
		for _, ch := range components {
			if ch.Status == component.StatusUnhealthy {
				status = "not_ready"
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(httpStatus, gin.H{
			"status":     status,
			"service":    serviceName,
			"components": components,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}
