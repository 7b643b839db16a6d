package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/siteanalyzer/backend/auth"
	"github.com/siteanalyzer/backend/logging"
	"github.com/siteanalyzer/backend/middleware"
	"github.com/siteanalyzer/backend/store"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// account is a user as shown to its owner, API key included.
type account struct {
	*store.User
	APIKey string `json:"api_key"`
}

func newAccount(u *store.User) account {
	return account{User: u, APIKey: u.APIKey}
}

func (s *Server) bindCredentials(c *gin.Context) (credentials, bool) {
	var in credentials
	_ = c.ShouldBindJSON(&in)
	in.Email = store.NormalizeEmail(in.Email)
	if in.Email == "" || strings.TrimSpace(in.Password) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return in, false
	}
	return in, true
}

func (s *Server) register(c *gin.Context) {
	ctx := c.Request.Context()
	in, ok := s.bindCredentials(c)
	if !ok {
		return
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		s.Logger.Error(ctx, "hash password", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	user, err := s.Store.CreateUser(ctx, store.NewUser{
		Email:        in.Email,
		PasswordHash: hash,
		APIKey:       auth.NewAPIKey(),
	})
	if errors.Is(err, store.ErrEmailTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already exists"})
		return
	}
	if err != nil {
		s.Logger.Error(ctx, "create user", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	token, err := s.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.Logger.Error(ctx, "issue token", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	s.Logger.Info(ctx, "user registered", logging.String("user_id", user.ID))
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": user})
}

func (s *Server) login(c *gin.Context) {
	ctx := c.Request.Context()
	in, ok := s.bindCredentials(c)
	if !ok {
		return
	}

	user, err := s.Store.UserByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.Logger.Error(ctx, "load user", logging.Error(err))
	}
	if err != nil || auth.CheckPassword(user.PasswordHash, in.Password) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := s.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		s.Logger.Error(ctx, "issue token", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": newAccount(user)})
}

// currentUserID is the id from the bearer token.
func currentUserID(c *gin.Context) string {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return ""
	}
	return claims.UserID
}

func (s *Server) profile(c *gin.Context) {
	user, err := s.Store.UserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.Logger.Error(c.Request.Context(), "load profile", logging.Error(err))
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, newAccount(user))
}

func (s *Server) history(c *gin.Context) {
	history, err := s.Store.History(c.Request.Context(), currentUserID(c), store.HistoryLimit)
	if err != nil {
		s.Logger.Error(c.Request.Context(), "load history", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) userStats(c *gin.Context) {
	st, err := s.Store.UserStats(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.Logger.Error(c.Request.Context(), "load user stats", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch statistics"})
		return
	}
	c.JSON(http.StatusOK, st)
}
