package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/savings-wallet-ledger/internal/config"
	"github.com/savings-wallet-ledger/internal/wallet_api/service"
)

// AuthHandler handles registration and session endpoints
type AuthHandler struct {
	authService service.AuthService
	cookie      config.AuthConfig
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(logger *slog.Logger, authService service.AuthService, cookie config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
		logger:      logger,
	}
}

// Register opens a new account with a zero balance
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.authService.Register(c.Request.Context(), req.Email, req.FullName, req.Password)
	if err != nil {
		RespondWithServiceError(c, h.logger, "register account", err)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// Login returns an access token and sets the refresh cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithServiceError(c, h.logger, "log in", err)
		return
	}

	h.setRefreshCookie(c, session.RefreshToken, time.Until(session.RefreshExpiresAt))
	RespondOK(c, mapSessionToResponse(session))
}

// Refresh exchanges the refresh cookie for a new access token
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.cookie.RefreshCookieName)

	session, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		RespondWithServiceError(c, h.logger, "refresh session", err)
		return
	}

	RespondOK(c, mapSessionToResponse(session))
}

// Logout revokes the refresh token and clears the cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.cookie.RefreshCookieName)

	if err := h.authService.Logout(c.Request.Context(), refreshToken); err != nil {
		RespondWithServiceError(c, h.logger, "log out", err)
		return
	}

	h.setRefreshCookie(c, "", -1)
	RespondNoContent(c)
}

// a negative ttl deletes the cookie
func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, ttl time.Duration) {
	maxAge := -1
	if ttl > 0 {
		maxAge = int(ttl.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		h.cookie.RefreshCookieName,
		value,
		maxAge,
		h.cookie.RefreshCookiePath,
		h.cookie.CookieDomain,
		h.cookie.CookieSecure,
		true,
	)
}

func mapSessionToResponse(session *service.Session) SessionResponse {
	return SessionResponse{
		AccountID:   session.AccountID.String(),
		AccessToken: session.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   formatTime(session.AccessExpiresAt),
	}
}
