package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/http/middleware"
	"github.com/notehaven/notehaven-auth/internal/workspace"
)

func throttledEngine(t *testing.T, throttle *middleware.Throttle, workspaceID int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if workspaceID != 0 {
		r.Use(func(c *gin.Context) {
			c.Set("workspaceContext", &workspace.Context{Workspace: domain.Workspace{ID: workspaceID}})
			c.Next()
		})
	}
	r.Use(throttle.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func hit(r *gin.Engine) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestThrottleExhaustsBudget(t *testing.T) {
	// 60 rpm yields a burst of 10; the refill within the loop is
	// negligible.
	r := throttledEngine(t, middleware.NewThrottle(60), 0)

	allowed, limited := 0, 0
	for i := 0; i < 30; i++ {
		switch hit(r) {
		case http.StatusNoContent:
			allowed++
		case http.StatusTooManyRequests:
			limited++
		}
	}
	require.GreaterOrEqual(t, allowed, 10)
	require.Greater(t, limited, 0)
}

func TestThrottleScopesBucketsPerWorkspace(t *testing.T) {
	throttle := middleware.NewThrottle(60)
	first := throttledEngine(t, throttle, 1)
	second := throttledEngine(t, throttle, 2)

	for hit(first) == http.StatusNoContent {
	}
	require.Equal(t, http.StatusTooManyRequests, hit(first))
	require.Equal(t, http.StatusNoContent, hit(second), "other workspaces keep their own budget")
}

func TestThrottleDisabledByNonPositiveBudget(t *testing.T) {
	require.Nil(t, middleware.NewThrottle(0))
	r := throttledEngine(t, nil, 0)
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusNoContent, hit(r))
	}
}
