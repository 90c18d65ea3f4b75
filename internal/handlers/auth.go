package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "invoria/internal/auth"
	"invoria/internal/middleware"
	"invoria/internal/models"
	"invoria/internal/services"
	appErrors "invoria/pkg/errors"
	"invoria/pkg/logger"
	"invoria/pkg/metrics"
	"invoria/pkg/response"
)

// AuthHandler owns Google sign-in: handing out authorization URLs and turning
// callback codes into sessions.
type AuthHandler struct {
	google *iauth.GoogleService
	users  *services.UserService
	jwt    *iauth.JWTService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(google *iauth.GoogleService, users *services.UserService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{google: google, users: users, jwt: jwt}
}

type exchangeCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

type sessionResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// GET /auth/google/login
// A fresh authorization URL is built per request; nothing is cached.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"auth_url": h.google.LoginAuthURL()})
}

// POST /auth/google/exchange
func (h *AuthHandler) Exchange(c *gin.Context) {
	var req exchangeCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	identity, err := h.google.ExchangeLogin(ctx, req.Code)
	if err != nil {
		metrics.OAuthExchanges.WithLabelValues("login", "error").Inc()
		logger.WithModule("auth").Warn("login code exchange failed", zap.Error(err))
		response.Error(c, appErrors.New("OAUTH_EXCHANGE_FAILED", "Failed to exchange authorization code", http.StatusBadRequest))
		return
	}

	user, err := h.users.UpsertFromIdentity(ctx, identity)
	if err != nil {
		metrics.OAuthExchanges.WithLabelValues("login", "error").Inc()
		response.Error(c, appErrors.Wrap(err, "Failed to sign in"))
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		metrics.OAuthExchanges.WithLabelValues("login", "error").Inc()
		response.Error(c, appErrors.Wrap(err, "Failed to issue session token"))
		return
	}

	metrics.OAuthExchanges.WithLabelValues("login", "success").Inc()
	response.JSON(c, http.StatusOK, sessionResponse{User: user, AccessToken: accessToken})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"user": user})
}
