package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/siteanalyzer/backend/auth"
	"github.com/siteanalyzer/backend/store"
)

const (
	claimsKey = "auth_claims"
	userKey   = "auth_user"

	apiKeyHeader = "X-API-Key"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// UserStore loads accounts for the auth and credit guards.
type UserStore interface {
	UserByID(ctx context.Context, id string) (*store.User, error)
	UserByAPIKey(ctx context.Context, key string) (*store.User, error)
}

// RequireToken accepts "Authorization: Bearer <token>". A missing token is
// 401, an invalid one 403.
func RequireToken(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAPIKey accepts the X-API-Key header.
func RequireAPIKey(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		user, err := users.UserByAPIKey(c.Request.Context(), key)
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid API key"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// ClaimsFromContext returns the claims RequireToken stored.
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// UserFromContext returns the user RequireAPIKey or RequireCredits stored.
func UserFromContext(c *gin.Context) (*store.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*store.User)
	return user, ok
}
