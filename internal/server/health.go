package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/premiosplatzi/polls/pkg/response"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a dependency (postgres, redis) is reachable.
type HealthCheck func(ctx context.Context) error

func health(checks map[string]HealthCheck, logger *zap.Logger) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		if len(names) == 0 {
			response.OK(c, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		results := make(map[string]string, len(names))
		healthy := true
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
				results[name] = "unavailable"
				healthy = false
				continue
			}
			results[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, response.Body{
				Success: false,
				Data:    gin.H{"status": "degraded", "checks": results},
				Error:   "dependency unavailable",
			})
			return
		}
		response.OK(c, gin.H{"status": "ok", "checks": results})
	}
}
