package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/notehaven/notehaven-auth/internal/workspace"
)

const workspaceContextKey = "workspaceContext"

// Workspace attaches the resolved workspace to the gin context. Hints
// are tried in order: explicit header, query parameter, request host,
// then the single-tenant default.
func Workspace(resolver *workspace.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			wc  *workspace.Context
			err error
		)

		if raw := strings.TrimSpace(c.Request.Header.Get("X-Workspace-ID")); raw != "" {
			wc, err = resolver.ResolveByID(ctx, raw)
		} else if raw := strings.TrimSpace(c.Query("workspace_id")); raw != "" {
			wc, err = resolver.ResolveByID(ctx, raw)
		} else {
			wc, err = resolver.Resolve(ctx, stripPort(c.Request.Host))
			if err != nil {
				wc, err = resolver.ResolveDefault(ctx)
			}
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invalid_workspace", "error_description": "Unknown workspace."})
			return
		}

		c.Set(workspaceContextKey, wc)
		c.Next()
	}
}

// GetWorkspace extracts the workspace context from gin.
func GetWorkspace(c *gin.Context) (*workspace.Context, bool) {
	value, ok := c.Get(workspaceContextKey)
	if !ok {
		return nil, false
	}
	wc, ok := value.(*workspace.Context)
	return wc, ok
}

func stripPort(host string) string {
	if strings.Contains(host, ":") {
		h, _, err := net.SplitHostPort(host)
		if err == nil {
			return h
		}
	}
	return host
}
