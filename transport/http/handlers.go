package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/service"
	"github.com/rs/zerolog"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, log zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         log,
	}
}

type tokenResponse struct {
	AccessToken    string    `json:"access_token"`
	AccessExpires  time.Time `json:"access_expires"`
	RefreshToken   string    `json:"refresh_token"`
	RefreshExpires time.Time `json:"refresh_expires"`
	TokenType      string    `json:"token_type"`
}

func newTokenResponse(set *core.TokenSet) tokenResponse {
	return tokenResponse{
		AccessToken:    set.Access.Token,
		AccessExpires:  set.Access.Expires,
		RefreshToken:   set.Renewal.Token,
		RefreshExpires: set.Renewal.Expires,
		TokenType:      "Bearer",
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login checks the password and opens a session
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "Authentication failed")
		return
	}

	set, err := h.authService.IssueSession(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err, "Failed to create session")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   user,
		"tokens": newTokenResponse(set),
	})
}

// Refresh handles token rotation
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	set, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err, "Failed to refresh tokens")
		return
	}

	c.JSON(http.StatusOK, newTokenResponse(set))
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Revoke disables a refresh token without using it
func (h *AuthHandlers) Revoke(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err, "Failed to revoke token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Revoked"})
}

func (h *AuthHandlers) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err, "Failed to request password reset")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Password reset link sent"})
}

func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.CompletePasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		h.fail(c, err, "Failed to reset password")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *AuthHandlers) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.CompleteEmailVerification(c.Request.Context(), req.Token); err != nil {
		h.fail(c, err, "Failed to verify email")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

// RequestVerification mails a verification link to the authenticated user
func (h *AuthHandlers) RequestVerification(c *gin.Context) {
	if err := h.authService.RequestEmailVerification(c.Request.Context(), c.GetString(userIDKey)); err != nil {
		h.fail(c, err, "Failed to request verification")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Verification link sent"})
}

// Me returns the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	user, err := h.authService.Profile(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		h.fail(c, err, "Failed to load user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// fail maps service errors to status codes. Anything unrecognised is an
// infrastructure fault and is logged.
func (h *AuthHandlers) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
	case errors.Is(err, core.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, core.ErrResetFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
	case errors.Is(err, core.ErrVerificationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired verification token"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
