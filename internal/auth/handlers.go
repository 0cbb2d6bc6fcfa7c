package auth

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/entities"
)

// setupMutex serializes setup requests so concurrent first-run submissions
// cannot both pass the HasUsers check.
var setupMutex sync.Mutex

// isLocalPath rejects redirect targets that would leave the site.
func isLocalPath(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	if strings.HasPrefix(path, "//") {
		return false
	}
	if strings.Contains(path, "://") || strings.Contains(path, "\\") {
		return false
	}
	return true
}

func sanitizeRedirectPath(path string) string {
	if isLocalPath(path) {
		return path
	}
	return "/"
}

// Controller handles the authentication HTTP endpoints.
type Controller struct {
	service        *Service
	sessionManager *SessionManager
	tokenIssuer    *StorageTokenIssuer
	config         config.Auth
	rateLimiter    *RateLimiter
}

func NewController(service *Service, sessionManager *SessionManager, tokenIssuer *StorageTokenIssuer, cfg config.Auth) *Controller {
	rateLimiter := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     cfg.MaxLoginAttempts,
		WindowDuration:  cfg.RateLimitWindow,
		LockoutDuration: cfg.LockoutDuration,
	})

	return &Controller{
		service:        service,
		sessionManager: sessionManager,
		tokenIssuer:    tokenIssuer,
		config:         cfg,
		rateLimiter:    rateLimiter,
	}
}

// RegisterRoutes registers the authentication routes.
func (ac *Controller) RegisterRoutes(router *gin.Engine) {
	router.POST("/login", ac.Login)
	router.POST("/logout", ac.Logout)
	router.POST("/setup", ac.Setup)

	router.GET("/api/auth/me", ac.Me)
	router.POST("/api/auth/token", ac.GenerateToken)
	router.DELETE("/api/auth/token", ac.RevokeToken)
	router.GET("/api/storage/token", ac.StorageToken)
}

// Stop releases the rate limiter's background goroutine.
func (ac *Controller) Stop() {
	if ac.rateLimiter != nil {
		ac.rateLimiter.Stop()
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Next     string `json:"next"`
}

// Login authenticates credentials and starts a session.
func (ac *Controller) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	clientIP := c.ClientIP()

	if ac.rateLimiter != nil {
		allowed, retryAfter := ac.rateLimiter.Allow(clientIP, req.Username)
		if !allowed {
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many login attempts",
				"retry_after": retryAfter.String(),
			})
			return
		}
	}

	user, err := ac.service.Authenticate(req.Username, req.Password)
	if err != nil {
		if ac.rateLimiter != nil {
			ac.rateLimiter.RecordFailure(clientIP, req.Username)
		}

		if errors.Is(err, ErrAccountLocked) {
			c.JSON(http.StatusForbidden, gin.H{"error": "account is locked, try again later"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	if ac.rateLimiter != nil {
		ac.rateLimiter.RecordSuccess(clientIP, req.Username)
	}

	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
		"next": sanitizeRedirectPath(req.Next),
	})
}

// Logout destroys the session.
func (ac *Controller) Logout(c *gin.Context) {
	if ac.sessionManager != nil {
		_ = ac.sessionManager.DestroySession(c.Request)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type setupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Setup creates the initial admin account. Only available while no users
// exist.
func (ac *Controller) Setup(c *gin.Context) {
	setupMutex.Lock()
	defer setupMutex.Unlock()

	hasUsers, err := ac.service.HasUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	if hasUsers {
		c.JSON(http.StatusConflict, gin.H{"error": "setup already completed"})
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
		return
	}

	user, err := ac.service.CreateUser(req.Username, req.Email, req.Password, entities.UserRoleAdmin)
	if err != nil {
		switch {
		case errors.Is(err, ErrPasswordTooShort),
			errors.Is(err, ErrPasswordTooLong),
			errors.Is(err, ErrUsernameInvalid),
			errors.Is(err, ErrEmailInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": "setup already completed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		}
		return
	}

	if ac.sessionManager != nil {
		_ = ac.sessionManager.CreateSession(c.Request, user)
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Me returns the authenticated user.
func (ac *Controller) Me(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusOK, gin.H{
			"authenticated": GetAuthType(c) == AuthTypeNone,
			"mode":          ac.service.GetAuthMode(),
		})
		return
	}

	user, err := ac.service.GetUserByID(userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": user})
}

// GenerateToken creates a new API token for the authenticated user. The
// plaintext is returned once and never again.
func (ac *Controller) GenerateToken(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	token, err := ac.service.GenerateToken(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "store this token securely, it will not be shown again",
	})
}

// RevokeToken revokes the authenticated user's API token.
func (ac *Controller) RevokeToken(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	if err := ac.service.RevokeToken(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

// StorageToken exchanges an authenticated session for a short-lived token
// scoped to the user's own storage prefix.
func (ac *Controller) StorageToken(c *gin.Context) {
	if ac.tokenIssuer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "storage tokens are not configured"})
		return
	}

	userID := GetUserID(c)
	if userID == 0 && ac.service.IsAuthEnabled() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	token, expiresAt, err := ac.tokenIssuer.Issue(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue storage token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
	})
}
