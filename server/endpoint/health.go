package endpoint

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/service-template/health"
	"github.com/kbukum/service-template/logger"
	"github.com/kbukum/service-template/observability"
)

// HealthChecker produces a dependency health report.
type HealthChecker interface {
	CheckHealth(ctx context.Context) health.Report
}

// Health returns the dependency health handler. The body is the report, e.g.
// {"isPostgresUp":true,"isRabbitMqUp":false}; the status is 200 when every
// dependency is up and 500 otherwise.
func Health(checker HealthChecker, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, scope := observability.Start(c.Request.Context(),
			observability.Trace{Tracer: health.TracerName, Span: "router"},
			observability.Here())
		defer scope.End()

		report := checker.CheckHealth(ctx)

		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusInternalServerError
		}
		scope.SetAttributes(attribute.Int(observability.AttrStatus, status))
		log.WithContext(ctx).Debug("Health", logger.Fields("health", report))

		c.JSON(status, report)
	}
}
