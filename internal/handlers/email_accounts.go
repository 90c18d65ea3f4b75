package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

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

// EmailAccountHandler manages connected mailboxes and the OAuth flows that
// connect them.
type EmailAccountHandler struct {
	google   *iauth.GoogleService
	accounts *services.EmailAccountService
	invites  *services.InviteService
}

// NewEmailAccountHandler constructs an EmailAccountHandler.
func NewEmailAccountHandler(google *iauth.GoogleService, accounts *services.EmailAccountService, invites *services.InviteService) *EmailAccountHandler {
	return &EmailAccountHandler{google: google, accounts: accounts, invites: invites}
}

type emailAccountDTO struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Provider         string     `json:"provider"`
	ConnectedAt      time.Time  `json:"connected_at"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
	ConnectedByToken bool       `json:"connected_by_invite"`
}

type callbackResponse struct {
	Email         string  `json:"email"`
	AccountID     string  `json:"account_id,omitempty"`
	InviterUserID *string `json:"inviter_user_id,omitempty"`
	Message       string  `json:"message,omitempty"`
}

func toEmailAccountDTO(account *models.EmailAccount) emailAccountDTO {
	return emailAccountDTO{
		ID:               account.ID,
		Email:            account.Email,
		Provider:         account.Provider,
		ConnectedAt:      account.ConnectedAt,
		LastSyncedAt:     account.LastSyncedAt,
		ConnectedByToken: account.ConnectedByToken,
	}
}

// Only Google mailboxes are supported today. The provider path segment exists
// so the API shape survives adding another provider.
func supportedProvider(provider string) bool {
	switch strings.ToLower(provider) {
	case "google", "gmail":
		return true
	default:
		return false
	}
}

// GET /api/email-accounts/oauth/:provider/url
func (h *EmailAccountHandler) AuthURL(c *gin.Context) {
	if !supportedProvider(c.Param("provider")) {
		response.Error(c, appErrors.NewBadRequest("unsupported provider"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"auth_url": h.google.GmailAuthURL(iauth.FlowEmailAccount)})
}

// GET /api/email-accounts/oauth/:provider/url-public
// Used by invited users who have no session yet.
func (h *EmailAccountHandler) AuthURLPublic(c *gin.Context) {
	if !supportedProvider(c.Param("provider")) {
		response.Error(c, appErrors.NewBadRequest("unsupported provider"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"auth_url": h.google.GmailAuthURL(iauth.FlowEmailAccountPublic)})
}

// POST /api/email-accounts/oauth/:provider/callback
// Authenticated: the mailbox lands in the caller's own workspace.
func (h *EmailAccountHandler) Callback(c *gin.Context) {
	if !supportedProvider(c.Param("provider")) {
		response.Error(c, appErrors.NewBadRequest("unsupported provider"))
		return
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req exchangeCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	identity, token, err := h.google.ExchangeGmail(ctx, req.Code)
	if err != nil {
		metrics.OAuthExchanges.WithLabelValues("email_account", "error").Inc()
		logger.WithModule("email_accounts").Warn("gmail code exchange failed", zap.Error(err))
		response.Error(c, appErrors.New("OAUTH_EXCHANGE_FAILED", "Failed to exchange authorization code", http.StatusBadRequest))
		return
	}

	account, err := h.accounts.Connect(ctx, services.ConnectInput{
		OwnerUserID:  userID,
		Email:        identity.Email,
		RefreshToken: token.RefreshToken,
	})
	if err != nil {
		metrics.OAuthExchanges.WithLabelValues("email_account", "error").Inc()
		response.Error(c, appErrors.Wrap(err, "Failed to connect email account"))
		return
	}

	metrics.OAuthExchanges.WithLabelValues("email_account", "success").Inc()
	response.JSON(c, http.StatusOK, callbackResponse{
		Email:     account.Email,
		AccountID: account.ID,
		Message:   "Email account connected",
	})
}

// POST /api/email-accounts/oauth/:provider/callback-public
// Public: completes an invite-driven connection. The mailbox lands in the
// inviter's workspace, located by matching the authenticated Google address
// against a redeemed add-email invite. Accepts the code as form data or query
// because the callback page posts whatever it has on hand.
func (h *EmailAccountHandler) CallbackPublic(c *gin.Context) {
	if !supportedProvider(c.Param("provider")) {
		response.Error(c, appErrors.NewBadRequest("unsupported provider"))
		return
	}

	code := strings.TrimSpace(c.PostForm("code"))
	if code == "" {
		code = strings.TrimSpace(c.Query("code"))
	}
	if code == "" {
		response.Error(c, appErrors.NewBadRequest("code is required"))
		return
	}

	ctx := requestContext(c)

	identity, token, err := h.google.ExchangeGmail(ctx, code)
	if err != nil {
		metrics.OAuthExchanges.WithLabelValues("email_account_public", "error").Inc()
		logger.WithModule("email_accounts").Warn("public gmail code exchange failed", zap.Error(err))
		response.Error(c, appErrors.New("OAUTH_EXCHANGE_FAILED", "Failed to exchange authorization code", http.StatusBadRequest))
		return
	}

	invite, err := h.invites.FindRedeemedEmailInvite(ctx, identity.Email)
	if err != nil {
		metrics.OAuthExchanges.WithLabelValues("email_account_public", "error").Inc()
		if errors.Is(err, services.ErrInviteNotFound) {
			response.Error(c, appErrors.New("INVITE_NOT_FOUND", "No accepted invite found for this email address", http.StatusBadRequest))
			return
		}
		response.Error(c, appErrors.Wrap(err, "Failed to connect email account"))
		return
	}

	account, err := h.accounts.Connect(ctx, services.ConnectInput{
		OwnerUserID:      invite.InviterUserID,
		Email:            identity.Email,
		RefreshToken:     token.RefreshToken,
		InviterUserID:    &invite.InviterUserID,
		ConnectedByToken: true,
	})
	if err != nil {
		metrics.OAuthExchanges.WithLabelValues("email_account_public", "error").Inc()
		response.Error(c, appErrors.Wrap(err, "Failed to connect email account"))
		return
	}

	if err := h.invites.AttachEmailAccount(ctx, invite.ID, account.ID); err != nil {
		logger.WithModule("email_accounts").Warn("failed to link account to invite",
			zap.String("invite_id", invite.ID),
			zap.Error(err),
		)
	}

	metrics.OAuthExchanges.WithLabelValues("email_account_public", "success").Inc()
	response.JSON(c, http.StatusOK, callbackResponse{
		Email:         account.Email,
		InviterUserID: &invite.InviterUserID,
		Message:       "Email account connected",
	})
}

// GET /api/email-accounts
func (h *EmailAccountHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	accounts, err := h.accounts.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "Failed to list email accounts"))
		return
	}

	dtos := make([]emailAccountDTO, 0, len(accounts))
	for i := range accounts {
		dtos = append(dtos, toEmailAccountDTO(&accounts[i]))
	}
	response.JSON(c, http.StatusOK, gin.H{"email_accounts": dtos})
}

// DELETE /api/email-accounts/:id
func (h *EmailAccountHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.accounts.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		if errors.Is(err, services.ErrEmailAccountNotFound) {
			response.Error(c, appErrors.New("NOT_FOUND", "Email account not found", http.StatusNotFound))
			return
		}
		response.Error(c, appErrors.Wrap(err, "Failed to delete email account"))
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"success": true})
}
