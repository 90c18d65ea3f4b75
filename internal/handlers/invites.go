package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invoria/internal/middleware"
	"invoria/internal/models"
	"invoria/internal/services"
	appErrors "invoria/pkg/errors"
	"invoria/pkg/metrics"
	"invoria/pkg/response"
)

// InviteHandler exposes the invite lifecycle over HTTP.
type InviteHandler struct {
	invites  *services.InviteService
	accounts *services.EmailAccountService
}

// NewInviteHandler constructs an InviteHandler.
func NewInviteHandler(invites *services.InviteService, accounts *services.EmailAccountService) *InviteHandler {
	return &InviteHandler{invites: invites, accounts: accounts}
}

type createShareInviteRequest struct {
	EmailAccountID string `json:"email_account_id" validate:"required,uuid4"`
	InvitedEmail   string `json:"invited_email" validate:"omitempty,email"`
	ExpiresInHours int    `json:"expires_in_hours" validate:"omitempty,min=1,max=8760"`
}

type createEmailInviteRequest struct {
	InvitedEmail   string `json:"invited_email" validate:"omitempty,email"`
	ExpiresInHours int    `json:"expires_in_hours" validate:"omitempty,min=1,max=8760"`
}

type acceptInviteRequest struct {
	InviteToken string `json:"invite_token" validate:"required"`
}

type inviteDTO struct {
	ID             string     `json:"id"`
	InviteType     string     `json:"invite_type"`
	InvitedEmail   string     `json:"invited_email,omitempty"`
	EmailAccountID *string    `json:"email_account_id,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
}

type inviteCreatedResponse struct {
	Success    bool      `json:"success"`
	InviteLink inviteDTO `json:"invite_link"`
	InviteURL  string    `json:"invite_url"`
}

type acceptInviteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func toInviteDTO(invite *models.InviteLink) inviteDTO {
	return inviteDTO{
		ID:             invite.ID,
		InviteType:     invite.InviteType,
		InvitedEmail:   invite.InvitedEmail,
		EmailAccountID: invite.EmailAccountID,
		Status:         invite.Status,
		CreatedAt:      invite.CreatedAt,
		ExpiresAt:      invite.ExpiresAt,
		UsedAt:         invite.UsedAt,
	}
}

// POST /api/invites/
// Issues a mailbox-share invite for one of the caller's connected accounts.
func (h *InviteHandler) CreateShare(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createShareInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	// The shared mailbox must belong to the inviter.
	if _, err := h.accounts.GetByID(ctx, userID, req.EmailAccountID); err != nil {
		if errors.Is(err, services.ErrEmailAccountNotFound) {
			response.Error(c, appErrors.New("NOT_FOUND", "Email account not found", http.StatusNotFound))
			return
		}
		response.Error(c, appErrors.Wrap(err, "Failed to create invite"))
		return
	}

	created, err := h.invites.Create(ctx, userID, services.CreateInviteInput{
		InviteType:     models.InviteTypeShareAccess,
		InvitedEmail:   req.InvitedEmail,
		EmailAccountID: &req.EmailAccountID,
		ExpiresInHours: req.ExpiresInHours,
	})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "Failed to create invite"))
		return
	}

	response.JSON(c, http.StatusCreated, inviteCreatedResponse{
		Success:    true,
		InviteLink: toInviteDTO(created.Invite),
		InviteURL:  created.InviteURL,
	})
}

// POST /api/invites/email-account
// Issues an invite asking someone to connect their mailbox to the caller's workspace.
func (h *InviteHandler) CreateEmailAccount(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createEmailInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	created, err := h.invites.Create(requestContext(c), userID, services.CreateInviteInput{
		InviteType:     models.InviteTypeAddEmailAccount,
		InvitedEmail:   req.InvitedEmail,
		ExpiresInHours: req.ExpiresInHours,
	})
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "Failed to create invite"))
		return
	}

	response.JSON(c, http.StatusCreated, inviteCreatedResponse{
		Success:    true,
		InviteLink: toInviteDTO(created.Invite),
		InviteURL:  created.InviteURL,
	})
}

// GET /api/invites/validate/:token
// Public. Always answers 200; invalidity is expressed in the body so the
// browser client can branch without exception handling.
func (h *InviteHandler) Validate(c *gin.Context) {
	result, err := h.invites.Validate(requestContext(c), c.Param("token"))
	if err != nil {
		metrics.InviteValidations.WithLabelValues("error").Inc()
		response.Error(c, appErrors.Wrap(err, "Failed to validate invite"))
		return
	}

	outcome := "invalid"
	switch {
	case result.Valid:
		outcome = "valid"
	case result.Reason == services.ReasonExpired:
		outcome = "expired"
	}
	metrics.InviteValidations.WithLabelValues(outcome).Inc()

	response.JSON(c, http.StatusOK, result)
}

// POST /api/invites/accept
func (h *InviteHandler) Accept(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	h.accept(c, "authenticated", userID)
}

// POST /api/invites/accept-public
// No session required: a brand-new user consumes an add-email invite before
// they ever authenticate.
func (h *InviteHandler) AcceptPublic(c *gin.Context) {
	h.accept(c, "public", "")
}

func (h *InviteHandler) accept(c *gin.Context, mode, userID string) {
	var req acceptInviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	expectedType := ""
	if mode == "public" {
		expectedType = models.InviteTypeAddEmailAccount
	}

	_, err := h.invites.Redeem(requestContext(c), req.InviteToken, expectedType, userID)
	if err != nil {
		metrics.InviteAcceptances.WithLabelValues(mode, "error").Inc()
		response.Error(c, acceptError(err))
		return
	}

	metrics.InviteAcceptances.WithLabelValues(mode, "success").Inc()
	response.JSON(c, http.StatusOK, acceptInviteResponse{Success: true, Message: "Invite accepted"})
}

func acceptError(err error) error {
	switch {
	case errors.Is(err, services.ErrInviteNotFound):
		return appErrors.New("INVITE_NOT_FOUND", "Invite link is invalid", http.StatusNotFound)
	case errors.Is(err, services.ErrInviteUsed):
		return appErrors.New("INVITE_USED", "Invite link has already been used", http.StatusBadRequest)
	case errors.Is(err, services.ErrInviteExpired):
		return appErrors.New("INVITE_EXPIRED", "Invite link has expired", http.StatusBadRequest)
	case errors.Is(err, services.ErrInviteTypeMismatch):
		return appErrors.New("INVITE_TYPE_MISMATCH", "This is not an email account addition invite link", http.StatusBadRequest)
	default:
		return appErrors.Wrap(err, "Failed to accept invite")
	}
}

// GET /api/invites/
func (h *InviteHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	invites, err := h.invites.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "Failed to list invites"))
		return
	}

	dtos := make([]inviteDTO, 0, len(invites))
	for i := range invites {
		dtos = append(dtos, toInviteDTO(&invites[i]))
	}
	response.JSON(c, http.StatusOK, gin.H{"invites": dtos})
}

// GET /api/invites/:id
func (h *InviteHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	invite, err := h.invites.GetByID(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, inviteLookupError(err))
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"invite": toInviteDTO(invite)})
}

// DELETE /api/invites/:id
func (h *InviteHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.invites.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, inviteLookupError(err))
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"success": true})
}

func inviteLookupError(err error) error {
	switch {
	case errors.Is(err, services.ErrInviteNotFound):
		return appErrors.New("INVITE_NOT_FOUND", "Invite not found", http.StatusNotFound)
	case errors.Is(err, services.ErrNotInviteOwner):
		return appErrors.ErrForbidden
	default:
		return appErrors.Wrap(err, "Failed to load invite")
	}
}
