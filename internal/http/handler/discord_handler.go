package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/notehaven/notehaven-auth/internal/config"
	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/domain/discord"
	"github.com/notehaven/notehaven-auth/internal/http/middleware"
	"github.com/notehaven/notehaven-auth/internal/service"
)

// DiscordHandler exposes the Discord login flow over HTTP.
type DiscordHandler struct {
	Discord *service.DiscordService
	Cfg     config.Config
}

// NewDiscordHandler creates the handler set.
func NewDiscordHandler(discordService *service.DiscordService, cfg config.Config) *DiscordHandler {
	return &DiscordHandler{Discord: discordService, Cfg: cfg}
}

// Start redirects the browser to Discord's authorize page.
func (h *DiscordHandler) Start(c *gin.Context) {
	wc, ok := middleware.GetWorkspace(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_workspace", "error_description": "Workspace not resolved."})
		return
	}

	authorizeURL, err := h.Discord.Start(c.Request.Context(), wc.Workspace.ID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.Redirect(http.StatusFound, authorizeURL)
}

// Callback handles the provider redirect. Existing accounts get a
// session cookie and land on the app root; new accounts are sent to the
// frontend setup page with the pending-signup descriptor.
func (h *DiscordHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		h.renderError(c, discord.ErrInvalidState)
		return
	}

	result, err := h.Discord.Callback(c.Request.Context(), state, code)
	if err != nil {
		h.renderError(c, err)
		return
	}

	if result.Session != nil {
		setSessionCookie(c, h.Cfg, result.Session.Token, int(result.Session.ExpiresIn.Seconds()))
		c.Redirect(http.StatusFound, h.Cfg.FrontendURL)
		return
	}

	payload, err := json.Marshal(result.Pending)
	if err != nil {
		zap.L().Error("encode pending signup", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Unexpected error."})
		return
	}
	c.Redirect(http.StatusFound, h.Cfg.FrontendURL+"/discord-setup?data="+url.QueryEscape(string(payload)))
}

// CompleteSetup finalizes a pending signup with the chosen password.
func (h *DiscordHandler) CompleteSetup(c *gin.Context) {
	var req struct {
		PendingUser service.PendingUser `json:"pendingUser" binding:"required"`
		Password    string              `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "pendingUser and password are required."})
		return
	}

	session, err := h.Discord.CompleteSetup(c.Request.Context(), req.PendingUser, req.Password)
	if err != nil {
		h.renderError(c, err)
		return
	}

	setSessionCookie(c, h.Cfg, session.Token, int(session.ExpiresIn.Seconds()))
	c.JSON(http.StatusOK, userResponse(session.User))
}

// GetConfig returns the workspace's Discord settings. Admin only.
func (h *DiscordHandler) GetConfig(c *gin.Context) {
	wc, ok := middleware.GetWorkspace(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_workspace", "error_description": "Workspace not resolved."})
		return
	}

	cfg, err := h.Discord.GetConfig(c.Request.Context(), wc.Workspace.ID)
	if err != nil {
		h.renderConfigError(c, err)
		return
	}
	c.JSON(http.StatusOK, discordConfigResponse(cfg))
}

// UpdateConfig applies a partial settings update. Admin only.
func (h *DiscordHandler) UpdateConfig(c *gin.Context) {
	wc, ok := middleware.GetWorkspace(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_workspace", "error_description": "Workspace not resolved."})
		return
	}

	var patch service.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Malformed settings payload."})
		return
	}

	cfg, err := h.Discord.UpdateConfig(c.Request.Context(), wc.Workspace.ID, patch)
	if err != nil {
		h.renderConfigError(c, err)
		return
	}
	c.JSON(http.StatusOK, discordConfigResponse(cfg))
}

// renderConfigError distinguishes a vanished workspace from genuine
// server failures.
func (h *DiscordHandler) renderConfigError(c *gin.Context, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid_workspace", "error_description": "Unknown workspace."})
		return
	}
	zap.L().Error("discord config failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Unexpected error."})
}

func discordConfigResponse(cfg domain.DiscordConfig) gin.H {
	return gin.H{
		"enabled":      cfg.Enabled,
		"clientId":     cfg.ClientID,
		"clientSecret": cfg.ClientSecret,
		"guildId":      cfg.GuildID,
		"jitEnabled":   cfg.JITEnabled,
	}
}

// renderError maps flow errors onto the HTTP surface. Auth-shaped
// failures are all 401 so callers cannot probe integration settings.
func (h *DiscordHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, discord.ErrInvalidState):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_state", "error_description": "Login session is invalid or expired. Please retry."})
	case errors.Is(err, discord.ErrNotConfigured):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_configured", "error_description": "Discord login is not enabled for this workspace."})
	case errors.Is(err, discord.ErrProvisioningDisabled):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "provisioning_disabled", "error_description": "Your Discord account is not linked to an existing user."})
	case errors.Is(err, discord.ErrNotAMember):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_a_member", "error_description": "You must be a member of the required Discord server."})
	case errors.Is(err, discord.ErrEmailMissing):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "email_missing", "error_description": "Your Discord account has no email address."})
	case errors.Is(err, discord.ErrProviderUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider_unavailable", "error_description": "Discord is unavailable. Please retry."})
	case errors.Is(err, discord.ErrInvalidOrExpiredToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_token", "error_description": "Signup link is invalid or expired. Please log in again."})
	case errors.Is(err, discord.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
	default:
		zap.L().Error("discord flow failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Unexpected error."})
	}
}
