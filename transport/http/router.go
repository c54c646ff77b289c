package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/metrics"
	"github.com/layer-3/warden/service"
	"github.com/rs/zerolog"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, m *metrics.Metrics, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log), MetricsMiddleware(m))

	handlers := NewAuthHandlers(authService, log)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
		auth.POST("/revoke", handlers.Revoke)
		auth.POST("/password/forgot", handlers.ForgotPassword)
		auth.POST("/password/reset", handlers.ResetPassword)
		auth.POST("/email/verify", handlers.VerifyEmail)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
		api.POST("/email/verify/request", handlers.RequestVerification)
	}

	return router
}
