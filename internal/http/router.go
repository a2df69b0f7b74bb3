package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/notehaven/notehaven-auth/internal/config"
	"github.com/notehaven/notehaven-auth/internal/http/handler"
	"github.com/notehaven/notehaven-auth/internal/http/middleware"
	"github.com/notehaven/notehaven-auth/internal/workspace"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, discordHandler *handler.DiscordHandler, authMiddleware *middleware.Auth, resolver *workspace.Resolver, throttle *middleware.Throttle) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(nil))
	r.Use(middleware.Workspace(resolver))
	r.Use(throttle.Middleware())
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authMiddleware.ValidateSession, authHandler.Me)
		authGroup.POST("/change-password", authMiddleware.ValidateSession, authHandler.ChangePassword)

		authGroup.GET("/discord", discordHandler.Start)
		authGroup.GET("/discord/callback", discordHandler.Callback)
		authGroup.POST("/discord/complete-setup", discordHandler.CompleteSetup)

		admin := authGroup.Group("/discord-config", authMiddleware.ValidateSession, middleware.RequireAdmin)
		{
			admin.GET("", discordHandler.GetConfig)
			admin.PATCH("", discordHandler.UpdateConfig)
		}
	}

	return r
}
