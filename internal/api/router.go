// Package api wires together all HTTP routes for the Bandroom gateway.
//
// Route grouping philosophy:
//   - Session endpoints used to establish a session (sign-in, token install)
//     are unauthenticated; everything that reads or mutates workspace state
//     requires a live session via middleware.RequireSession.
//   - The gateway fronts a local app frontend, so the surface is a single
//     /api/v1 tree plus health/version probes. Prometheus metrics are served on
//     a side-channel port by cmd/server, never through this router.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bandroomhq/bandroom/internal/config"
	"github.com/bandroomhq/bandroom/internal/middleware"
	"github.com/bandroomhq/bandroom/internal/storage"
	"github.com/bandroomhq/bandroom/internal/storage/local"
	"github.com/bandroomhq/bandroom/internal/workspace"
)

// NewRouter creates and configures the Gin router. The workspace manager and
// session provider are constructed by cmd/server and passed by handle; the
// router owns no state of its own.
func NewRouter(cfg *config.Config, db *sql.DB, manager *workspace.Manager, sessions SessionService, icons storage.IconStore) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/version", versionHandler())

	// Icons uploaded to the local backend are served by the gateway itself;
	// remote backends hand out their own public URLs.
	if localStore, ok := icons.(*local.LocalStore); ok {
		router.Static("/icons", localStore.BasePath())
	}

	sessionHandlers := NewSessionHandlers(sessions)
	workspaceHandlers := NewWorkspaceHandlers(manager)

	apiV1 := router.Group("/api/v1")
	{
		sessionGroup := apiV1.Group("/session")
		{
			sessionGroup.POST("/signin", sessionHandlers.SignIn)
			sessionGroup.POST("/tokens", sessionHandlers.SetTokens)

			guarded := sessionGroup.Group("")
			guarded.Use(middleware.RequireSession(sessions))
			{
				guarded.POST("/signout", sessionHandlers.SignOut)
				guarded.GET("/user", sessionHandlers.CurrentUser)
				guarded.PATCH("/profile", sessionHandlers.UpdateProfile)
			}
		}

		workspacesGroup := apiV1.Group("/workspaces")
		workspacesGroup.Use(middleware.RequireSession(sessions))
		{
			workspacesGroup.GET("", workspaceHandlers.List)
			workspacesGroup.POST("", workspaceHandlers.Create)
			workspacesGroup.POST("/refresh", workspaceHandlers.Refresh)
			workspacesGroup.POST("/join", workspaceHandlers.Join)
			workspacesGroup.PUT("/active", workspaceHandlers.SetActive)
			workspacesGroup.PATCH("/:id", workspaceHandlers.Update)
			workspacesGroup.DELETE("/:id", workspaceHandlers.Delete)
			workspacesGroup.POST("/:id/icon", workspaceHandlers.UploadIcon)
		}
	}

	return router
}

// healthCheckHandler returns the health status of the gateway, including
// remote store connectivity.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging via slog. The output
// format (JSON or text) follows the global handler installed by
// telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
		)
	}
}

// CORSMiddleware allows the app frontend's origin to call the gateway. The
// frontend origin is the same one the magic-link sign-in redirects back to.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowedOrigin := cfg.Auth.RedirectOrigin
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && origin == allowedOrigin {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Requested-With, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
