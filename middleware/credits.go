package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siteanalyzer/backend/store"
)

// RequireCredits rejects users with no credits left with 402. It runs after
// RequireToken or RequireAPIKey and leaves the user in the context.
func RequireCredits(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := UserFromContext(c)
		if !ok {
			claims, ok := ClaimsFromContext(c)
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
				return
			}

			var err error
			user, err = users.UserByID(c.Request.Context(), claims.UserID)
			if errors.Is(err, store.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			if err != nil {
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check credits"})
				return
			}
			c.Set(userKey, user)
		}

		if !user.Unlimited() && user.CreditsRemaining <= 0 {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":             "Insufficient credits",
				"message":           "Please upgrade your plan to continue analyzing websites.",
				"credits_remaining": 0,
			})
			return
		}

		c.Next()
	}
}
