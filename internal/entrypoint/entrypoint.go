package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf/internal/auth"
	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/database"
	"github.com/openshelf/openshelf/internal/database/documents"
	"github.com/openshelf/openshelf/internal/database/settings"
	http_controllers "github.com/openshelf/openshelf/internal/http"
	"github.com/openshelf/openshelf/internal/progress"
	"github.com/openshelf/openshelf/internal/reader"
	"github.com/openshelf/openshelf/internal/scheduler"
	"github.com/openshelf/openshelf/internal/storage"
	s3provider "github.com/openshelf/openshelf/internal/storage/providers/s3"
	"github.com/openshelf/openshelf/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT/SIGTERM, then drains with the
// configured timeout. onShutdown runs before the listener closes so
// pending progress writes land first.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting OpenShelf v%s", version)

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	documentStore := documents.NewRepository(db.DB)
	settingsStore := settings.NewRepository(db.DB)

	// Object storage for uploaded documents
	storageClient, err := newStorageClient(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	// Progress pipeline: fast cache in front of the debounced writer
	cache, cacheCleanup := newProgressCache(cfg.Progress)
	defer cacheCleanup()

	writer := progress.NewWriter(documentStore, cfg.Progress.DebounceWindow)

	// Open reader sessions
	sessions := reader.NewRegistry()

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var reconcileScheduler *scheduler.ReconcileScheduler
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewGenerateLocationsQueue(sessions),
			tasks.NewReconcileStorageQueue(storageClient, documentStore, settingsStore),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		// Scheduled storage reconciliation sweep
		reconcileScheduler = scheduler.NewReconcileScheduler(taskClient, cfg.Reconcile)
		if err := reconcileScheduler.Start(taskCtx); err != nil {
			log.Printf("WARNING: Failed to start reconcile scheduler: %v", err)
		}
	}

	// Initialize authentication if enabled
	var authService *auth.Service
	var authMiddleware *auth.Middleware
	var sessionManager *auth.SessionManager
	var tokenIssuer *auth.StorageTokenIssuer
	var csrfSecret []byte

	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Printf("Authentication mode: local")

		authService = auth.NewService(db.DB, cfg.Auth)

		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatalf("Failed to get SQL DB for sessions: %v", err)
		}

		sessionManager, err = auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialize session manager: %v", err)
		}

		authMiddleware = auth.NewMiddleware(authService, sessionManager, cfg.Auth)

		tokenIssuer, err = auth.NewStorageTokenIssuer(cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialize storage token issuer: %v", err)
		}

		if cfg.Auth.SessionSecret != "" {
			csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
			if err != nil {
				// Not hex, use as raw bytes
				csrfSecret = []byte(cfg.Auth.SessionSecret)
			}
		} else {
			secret, err := auth.GenerateSessionSecret()
			if err != nil {
				log.Fatalf("Failed to generate CSRF secret: %v", err)
			}
			csrfSecret, _ = hex.DecodeString(secret)
			log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
		}

		hasUsers, _ := authService.HasUsers()
		if !hasUsers {
			log.Printf("No users found. POST /setup to create an administrator account.")
		}
	} else {
		log.Printf("Authentication mode: none (single-user)")
	}

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Documents:      documentStore,
		Settings:       settingsStore,
		Storage:        storageClient,
		Cache:          cache,
		Writer:         writer,
		Sessions:       sessions,
		TaskClient:     taskClient,
		Scheduler:      reconcileScheduler,
		AuthService:    authService,
		AuthMiddleware: authMiddleware,
		SessionManager: sessionManager,
		TokenIssuer:    tokenIssuer,
		AuthConfig:     cfg.Auth,
		CSRFSecret:     csrfSecret,
		Version:        version,
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		// Flush pending progress writes before anything else stops.
		writer.Close()

		if reconcileScheduler != nil {
			reconcileScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// newStorageClient builds the S3 client from config.
func newStorageClient(ctx context.Context, cfg config.Storage) (storage.Client, error) {
	return s3provider.NewClient(ctx, cfg)
}

// newProgressCache selects Redis when an address is configured, the
// in-process cache otherwise.
func newProgressCache(cfg config.Progress) (progress.Cache, func()) {
	if cfg.RedisAddr == "" {
		return progress.NewMemoryCache(), func() {}
	}

	redisCache, err := progress.NewRedisCache(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("WARNING: Redis unreachable (%v), falling back to in-process cache", err)
		return progress.NewMemoryCache(), func() {}
	}

	log.Printf("Progress cache: redis at %s", cfg.RedisAddr)
	return redisCache, func() {
		if err := redisCache.Close(); err != nil {
			log.Printf("Error closing redis cache: %v", err)
		}
	}
}
