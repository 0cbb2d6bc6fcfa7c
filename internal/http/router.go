// Package http wires the web surface: the document library, reader
// sessions, progress sync, settings, auth, and the maintenance endpoints.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf/internal/auth"
	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/entities"
)

// NewRouter builds the Gin engine with all routes and middleware.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.AuthConfig.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	authEnabled := cfg.AuthConfig.Mode == config.AuthModeLocal &&
		cfg.AuthService != nil && cfg.SessionManager != nil

	if authEnabled {
		router.Use(cfg.SessionManager.SessionLoadSave())
		if len(cfg.CSRFSecret) > 0 {
			router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies, cfg.AuthService))
		}
	}
	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	}

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.String(200, "pong")
	})

	if authEnabled {
		authController := auth.NewController(cfg.AuthService, cfg.SessionManager, cfg.TokenIssuer, cfg.AuthConfig)
		authController.RegisterRoutes(router)
	}

	library := NewLibraryController(cfg.Documents, cfg.Storage)
	readerCtl := NewReaderController(cfg.Documents, cfg.Storage, cfg.Sessions, cfg.Cache, cfg.Writer, cfg.TaskClient)
	progressCtl := NewProgressController(cfg.Documents, cfg.Cache, cfg.Writer)
	settings := NewSettingsController(cfg.Settings, cfg.AuthService)

	api := router.Group("/api")
	{
		api.GET("/documents", library.List)
		api.POST("/documents", library.Upload)
		api.GET("/documents/:id", library.Get)
		api.DELETE("/documents/:id", library.Delete)

		api.GET("/documents/:id/progress", progressCtl.Get)
		api.PUT("/documents/:id/progress", progressCtl.Update)

		api.POST("/reader/open", readerCtl.Open)
		api.GET("/reader/:id/position", readerCtl.Position)
		api.POST("/reader/:id/navigate", readerCtl.Navigate)
		api.POST("/reader/:id/display", readerCtl.Display)
		api.POST("/reader/:id/close", readerCtl.Close)

		api.GET("/settings/reader", settings.Get)
		api.PUT("/settings/reader", settings.Update)

		if cfg.TaskClient != nil {
			tasksCtl := NewTasksController(cfg.TaskClient, cfg.Scheduler)
			admin := api.Group("/admin")
			if authEnabled && cfg.AuthMiddleware != nil {
				admin.Use(cfg.AuthMiddleware.RequireRole(entities.UserRoleAdmin))
			}
			admin.POST("/reconcile", tasksCtl.RunReconcile)
			admin.GET("/tasks/status", tasksCtl.Status)
			admin.GET("/tasks/:id", tasksCtl.TaskStatus)
		}
	}

	return router
}
