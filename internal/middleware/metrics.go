package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/expoferia/expoferia-api/internal/service"
)

// Metrics records one observation per request, labelled by the route
// template rather than the raw URL so /projects/:id stays one series.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
