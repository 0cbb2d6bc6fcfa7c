package auth

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware adds the standard hardening headers to every
// response. The CSP allows blob: for object URLs created by the in-browser
// readers and https: images for book covers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Header("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data: blob: https:; "+
				"font-src 'self'; "+
				"connect-src 'self' https:; "+
				"frame-ancestors 'none'; "+
				"form-action 'self'")

		c.Header("Permissions-Policy",
			"accelerometer=(), camera=(), geolocation=(), microphone=(), payment=(), usb=()")

		c.Next()
	}
}

// StrictTransportSecurityMiddleware adds the HSTS header on HTTPS
// responses. Enable only when the deployment serves HTTPS.
func StrictTransportSecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
