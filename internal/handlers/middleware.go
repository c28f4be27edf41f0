package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/auth"
)

const (
	// ContextKeyUserID holds the key for user ID in Gin context.
	ContextKeyUserID = "userID"
	// ContextKeyIsAdmin holds the key for admin status in Gin context.
	ContextKeyIsAdmin = "isAdmin"

	// AdminApplyPath is where non-admins are sent from admin pages
	AdminApplyPath = "/admin/apply"
)

// Authenticator validates session tokens
type Authenticator interface {
	Authenticate(token string) (*auth.Claims, error)
}

// AdminChecker reports whether a user has an approved admin application
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := authn.Authenticate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and never rejects
func OptionalAuth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := authn.Authenticate(token); err == nil {
				c.Set(ContextKeyUserID, claims.UserID)
			}
		}
		c.Next()
	}
}

// AdminMiddleware requires an approved admin application. Assumes AuthMiddleware runs first.
func AdminMiddleware(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		isAdmin, err := checker.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			log.Printf("[API] Admin check failed for %s: %v", userID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not verify admin status"})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    "Administrator privileges required",
				"redirect": AdminApplyPath,
			})
			return
		}
		c.Set(ContextKeyIsAdmin, true)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

// isAdmin reports admin status for handlers on routes without AdminMiddleware
func isAdmin(c *gin.Context, checker AdminChecker) bool {
	if c.GetBool(ContextKeyIsAdmin) {
		return true
	}
	userID := currentUserID(c)
	if userID == "" {
		return false
	}
	ok, err := checker.IsAdmin(c.Request.Context(), userID)
	return err == nil && ok
}

// RequestLogger logs each request with its latency
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}).Info("[API] Request")
	}
}
