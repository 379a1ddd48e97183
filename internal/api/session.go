// session.go implements the session endpoints the frontend drives sign-in
// through: requesting a magic link, installing the token pair from the
// redirect, sign-out, and profile reads/updates.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bandroomhq/bandroom/internal/auth"
	"github.com/bandroomhq/bandroom/internal/db/models"
)

// SessionService is the slice of the session provider the handlers consume
type SessionService interface {
	RequestEmailSignIn(ctx context.Context, email string) error
	SetSessionFromTokens(ctx context.Context, accessToken, refreshToken string) error
	SignOut(ctx context.Context) error
	UpdateUserMetadata(ctx context.Context, attrs map[string]string) (*models.User, error)
	GetCurrentUser(ctx context.Context) (*models.User, error)
	Session() *auth.Session
	User() *models.User
}

// SessionHandlers handles sign-in, sign-out, and profile endpoints
type SessionHandlers struct {
	sessions SessionService
}

// NewSessionHandlers creates a new SessionHandlers instance
func NewSessionHandlers(sessions SessionService) *SessionHandlers {
	return &SessionHandlers{sessions: sessions}
}

// SignIn requests a magic-link email for the given address
// POST /api/v1/session/signin
func (h *SessionHandlers) SignIn(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email address is required"})
		return
	}

	if err := h.sessions.RequestEmailSignIn(c.Request.Context(), req.Email); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Sign-in link sent"})
}

// SetTokens installs the token pair the frontend extracted from the magic-link
// redirect, completing sign-in.
// POST /api/v1/session/tokens
func (h *SessionHandlers) SetTokens(c *gin.Context) {
	var req struct {
		AccessToken  string `json:"access_token" binding:"required"`
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access_token and refresh_token are required"})
		return
	}

	if err := h.sessions.SetSessionFromTokens(c.Request.Context(), req.AccessToken, req.RefreshToken); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": h.sessions.User()})
}

// SignOut revokes the session remotely and clears local session state
// POST /api/v1/session/signout
func (h *SessionHandlers) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context()); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// CurrentUser force-fetches the current user from the auth service
// GET /api/v1/session/user
func (h *SessionHandlers) CurrentUser(c *gin.Context) {
	user, err := h.sessions.GetCurrentUser(c.Request.Context())
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile merges attributes into the current user's metadata
// PATCH /api/v1/session/profile
func (h *SessionHandlers) UpdateProfile(c *gin.Context) {
	var req struct {
		Metadata map[string]string `json:"metadata" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metadata object is required"})
		return
	}

	user, err := h.sessions.UpdateUserMetadata(c.Request.Context(), req.Metadata)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// respondAuthError maps provider errors onto HTTP statuses, passing the auth
// service's own status through when it rejected the request.
func respondAuthError(c *gin.Context, err error) {
	var reqErr *auth.RequestError
	if errors.As(err, &reqErr) {
		status := reqErr.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		message := reqErr.Message
		if message == "" {
			message = "Auth service request failed"
		}
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
