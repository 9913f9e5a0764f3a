package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Metrics exposes a metrics exporter handler, typically the Prometheus
// registry handler, as a Gin route.
func Metrics(h http.Handler) gin.HandlerFunc {
	return gin.WrapH(h)
}
