package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/notehaven/notehaven-auth/internal/config"
	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/http/middleware"
	"github.com/notehaven/notehaven-auth/internal/service"
)

// AuthHandler exposes password login and account endpoints.
type AuthHandler struct {
	Auth *service.AuthService
	Cfg  config.Config
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, cfg config.Config) *AuthHandler {
	return &AuthHandler{Auth: auth, Cfg: cfg}
}

// Login authenticates with email and password.
func (h *AuthHandler) Login(c *gin.Context) {
	wc, ok := middleware.GetWorkspace(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_workspace", "error_description": "Workspace not resolved."})
		return
	}

	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "email and password are required."})
		return
	}

	session, err := h.Auth.Login(c.Request.Context(), wc.Workspace.ID, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "error_description": "Wrong email or password."})
			return
		}
		zap.L().Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Unexpected error."})
		return
	}

	setSessionCookie(c, h.Cfg, session.Token, int(session.ExpiresIn.Seconds()))
	c.JSON(http.StatusOK, userResponse(session.User))
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	setSessionCookie(c, h.Cfg, "", -1)
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// ChangePassword rotates the authenticated user's password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	wc, ok := middleware.GetWorkspace(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_workspace", "error_description": "Workspace not resolved."})
		return
	}
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "currentPassword and newPassword are required."})
		return
	}

	if err := h.Auth.ChangePassword(c.Request.Context(), wc.Workspace.ID, user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "error_description": "Current password is wrong."})
			return
		}
		zap.L().Error("change password failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Unexpected error."})
		return
	}

	c.Status(http.StatusNoContent)
}

func userResponse(user domain.User) gin.H {
	var verifiedAt *time.Time
	if user.EmailVerifiedAt != nil {
		t := user.EmailVerifiedAt.UTC()
		verifiedAt = &t
	}
	return gin.H{
		"id":              strconv.FormatInt(user.ID, 10),
		"workspaceId":     strconv.FormatInt(user.WorkspaceID, 10),
		"name":            user.Name,
		"email":           user.Email,
		"emailVerifiedAt": verifiedAt,
		"locale":          user.Locale,
		"role":            user.Role,
		"discordId":       user.DiscordID,
		"avatarUrl":       user.AvatarURL,
	}
}

// setSessionCookie writes the session JWT. Secure is tied to the
// deployment scheme so local HTTP setups keep working.
func setSessionCookie(c *gin.Context, cfg config.Config, token string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.IsHTTPS(),
		SameSite: http.SameSiteLaxMode,
	})
}
