package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Liveness returns a handler for K8s liveness probes. It only confirms the
// process can serve HTTP; dependency state belongs to /health.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "alive",
			"service": serviceName,
		})
	}
}
