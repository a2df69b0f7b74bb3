package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/service"
)

const currentUserKey = "currentUser"

// SessionCookieName is the cookie carrying the session JWT.
const SessionCookieName = "authToken"

// Auth validates the session token and attaches the user.
type Auth struct {
	AuthService *service.AuthService
}

// ValidateSession ensures the request carries a valid session, from the
// session cookie or an Authorization bearer header.
func (m *Auth) ValidateSession(c *gin.Context) {
	wc, ok := GetWorkspace(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_workspace", "error_description": "Workspace missing."})
		return
	}

	token := sessionToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	user, err := m.AuthService.ValidateSession(c.Request.Context(), wc.Workspace.ID, token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid session."})
		return
	}

	c.Set(currentUserKey, user)
	c.Next()
}

// RequireAdmin rejects non-admin users. It must run after
// ValidateSession.
func RequireAdmin(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}
	if !user.IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "Admin access required."})
		return
	}
	c.Next()
}

// GetCurrentUser exposes the authenticated user to handlers.
func GetCurrentUser(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
