package http

import (
	"github.com/openshelf/openshelf/internal/auth"
	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/database"
	"github.com/openshelf/openshelf/internal/progress"
	"github.com/openshelf/openshelf/internal/reader"
	"github.com/openshelf/openshelf/internal/scheduler"
	"github.com/openshelf/openshelf/internal/storage"
	"github.com/openshelf/openshelf/internal/tasks"
)

// RouterConfig contains all dependencies needed to create the HTTP
// router.
type RouterConfig struct {
	// Core dependencies
	Database  *database.Database
	Documents DocumentStore
	Settings  SettingsStore

	// Object storage for uploaded documents
	Storage storage.Client

	// Reading progress pipeline
	Cache  progress.Cache
	Writer *progress.Writer

	// Open reader sessions
	Sessions *reader.Registry

	// Task queue and sweep scheduler (both optional)
	TaskClient *tasks.Client
	Scheduler  *scheduler.ReconcileScheduler

	// Authentication (all optional; nil runs in single-user mode)
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	SessionManager *auth.SessionManager
	TokenIssuer    *auth.StorageTokenIssuer
	AuthConfig     config.Auth
	CSRFSecret     []byte

	// Application info
	Version string
}
