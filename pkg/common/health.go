package common

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	CheckedAt time.Time         `json:"checked_at"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns a liveness handler with no dependency probes
func HealthCheck(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "healthy",
			Service:   serviceName,
			Version:   version,
			CheckedAt: time.Now().UTC(),
		})
	}
}

// HealthCheckWithDeps returns a readiness handler that probes each
// dependency and reports per-check latency. Any failing check marks the
// whole response unhealthy and the handler answers 503.
func HealthCheckWithDeps(serviceName, version string, checks map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		checkResults := make(map[string]string, len(checks))

		for name, checkFunc := range checks {
			start := time.Now()
			err := checkFunc()
			elapsed := time.Since(start).Round(time.Millisecond)
			if err != nil {
				checkResults[name] = fmt.Sprintf("unhealthy: %v (%s)", err, elapsed)
				status = "unhealthy"
			} else {
				checkResults[name] = fmt.Sprintf("healthy (%s)", elapsed)
			}
		}

		statusCode := http.StatusOK
		if status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, HealthResponse{
			Status:    status,
			Service:   serviceName,
			Version:   version,
			CheckedAt: time.Now().UTC(),
			Checks:    checkResults,
		})
	}
}
