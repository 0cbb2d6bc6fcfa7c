package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // No authentication required (default)
	AuthModeLocal AuthMode = "local" // Local user database with sessions
)

type (
	Config struct {
		HTTP
		Global
		Database
		Storage
		Auth
		Tasks
		Progress
		Reconcile
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Storage struct {
		Endpoint        string // S3-compatible endpoint, e.g. http://localhost:9000 for MinIO
		Region          string
		Bucket          string
		AccessKeyID     string
		SecretAccessKey string
		URLExpiry       time.Duration // Lifetime of presigned download URLs
	}
	Auth struct {
		Mode            AuthMode
		SessionSecret   string
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS

		// Storage token bridge: session is exchanged for a short-lived
		// HS256 token scoped to the user's storage prefix.
		StorageTokenSecret string
		StorageTokenExpiry time.Duration

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Progress struct {
		// DebounceWindow is the quiet window of the sync writer: repeated
		// position events for a document within this window coalesce into a
		// single trailing-edge write.
		DebounceWindow time.Duration

		// Optional Redis backend for the fast progress cache. Empty address
		// selects the in-process cache.
		RedisAddr     string
		RedisPassword string
		RedisDB       int
	}
	Reconcile struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8288)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Object storage defaults (MinIO-friendly)
	v.SetDefault("storage_endpoint", "")
	v.SetDefault("storage_region", "us-east-1")
	v.SetDefault("storage_bucket", "openshelf")
	v.SetDefault("storage_access_key_id", "")
	v.SetDefault("storage_secret_access_key", "")
	v.SetDefault("storage_url_expiry", "15m")

	// Auth defaults
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_session_secret", "") // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_storage_token_secret", "") // Auto-generated if empty
	v.SetDefault("auth_storage_token_expiry", "1h")
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "10m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Progress sync defaults
	v.SetDefault("progress_debounce_window", "1s")
	v.SetDefault("progress_redis_addr", "")
	v.SetDefault("progress_redis_password", "")
	v.SetDefault("progress_redis_db", 0)

	// Storage reconciliation defaults
	v.SetDefault("reconcile_enabled", false)
	v.SetDefault("reconcile_schedule", "0 3 * * *") // Daily at 03:00

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("port"),
			Host: v.GetString("host"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("shutdown_timeout_in_seconds"),
		},
		Database: Database{
			Path: v.GetString("database_path"),
		},
		Storage: Storage{
			Endpoint:        v.GetString("storage_endpoint"),
			Region:          v.GetString("storage_region"),
			Bucket:          v.GetString("storage_bucket"),
			AccessKeyID:     v.GetString("storage_access_key_id"),
			SecretAccessKey: v.GetString("storage_secret_access_key"),
			URLExpiry:       v.GetDuration("storage_url_expiry"),
		},
		Auth: Auth{
			Mode:               AuthMode(v.GetString("auth_mode")),
			SessionSecret:      v.GetString("auth_session_secret"),
			SessionLifetime:    v.GetDuration("auth_session_lifetime"),
			BcryptCost:         v.GetInt("auth_bcrypt_cost"),
			SecureCookies:      v.GetBool("auth_secure_cookies"),
			StorageTokenSecret: v.GetString("auth_storage_token_secret"),
			StorageTokenExpiry: v.GetDuration("auth_storage_token_expiry"),
			MaxLoginAttempts:   v.GetInt("auth_max_login_attempts"),
			RateLimitWindow:    v.GetDuration("auth_rate_limit_window"),
			LockoutDuration:    v.GetDuration("auth_lockout_duration"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("tasks_enabled"),
			Workers:         v.GetInt("task_workers"),
			ReleaseAfter:    v.GetDuration("task_release_after"),
			CleanupInterval: v.GetDuration("task_cleanup_interval"),
		},
		Progress: Progress{
			DebounceWindow: v.GetDuration("progress_debounce_window"),
			RedisAddr:      v.GetString("progress_redis_addr"),
			RedisPassword:  v.GetString("progress_redis_password"),
			RedisDB:        v.GetInt("progress_redis_db"),
		},
		Reconcile: Reconcile{
			Enabled:  v.GetBool("reconcile_enabled"),
			Schedule: v.GetString("reconcile_schedule"),
		},
	}
}
