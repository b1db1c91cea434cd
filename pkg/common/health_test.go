package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckWithDeps_AllHealthy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/healthz", HealthCheckWithDeps("pool-matching", "1.0.0", map[string]func() error{
		"postgres": func() error { return nil },
		"redis":    func() error { return nil },
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "pool-matching", resp.Service)
	require.False(t, resp.CheckedAt.IsZero())
	require.Len(t, resp.Checks, 2)
	require.Contains(t, resp.Checks["postgres"], "healthy")
}

func TestHealthCheckWithDeps_FailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/healthz", HealthCheckWithDeps("pool-matching", "1.0.0", map[string]func() error{
		"postgres": func() error { return errors.New("connection refused") },
		"redis":    func() error { return nil },
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "unhealthy", resp.Status)
	require.Contains(t, resp.Checks["postgres"], "unhealthy: connection refused")
	require.Contains(t, resp.Checks["redis"], "healthy")
}
