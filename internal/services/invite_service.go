package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoria/internal/models"
	"invoria/pkg/crypto"
	"invoria/pkg/logger"
	"invoria/pkg/mail"
)

const (
	// DefaultInviteExpiry applies when no explicit expiry is requested.
	DefaultInviteExpiry = 7 * 24 * time.Hour

	// DefaultInviteTokenBytes is the entropy of generated invite tokens.
	DefaultInviteTokenBytes = 48
)

// Validation reasons reported to clients. "expired" is the only reason that
// clients treat differently from a plain invalid link.
const (
	ReasonNotFound = "not_found"
	ReasonUsed     = "used"
	ReasonExpired  = "expired"
)

// InviteServiceConfig tunes invite generation.
type InviteServiceConfig struct {
	BaseURL       string
	DefaultExpiry time.Duration
	TokenBytes    int
}

// InviteService owns the invite lifecycle: creation, validation, at-most-once
// redemption, and expiry sweeping. Tokens are never stored; only their SHA-256
// hash is persisted.
type InviteService struct {
	db     *gorm.DB
	cfg    InviteServiceConfig
	now    func() time.Time
	mailer mail.Mailer
}

// InviteOption customises an InviteService.
type InviteOption func(*InviteService)

// WithInviteClock overrides the time source, used by tests.
func WithInviteClock(now func() time.Time) InviteOption {
	return func(s *InviteService) {
		s.now = now
	}
}

// WithInviteMailer attaches a mailer used to deliver invite links.
func WithInviteMailer(m mail.Mailer) InviteOption {
	return func(s *InviteService) {
		s.mailer = m
	}
}

// NewInviteService constructs an InviteService.
func NewInviteService(db *gorm.DB, cfg InviteServiceConfig, opts ...InviteOption) *InviteService {
	if cfg.DefaultExpiry <= 0 {
		cfg.DefaultExpiry = DefaultInviteExpiry
	}
	if cfg.TokenBytes <= 0 {
		cfg.TokenBytes = DefaultInviteTokenBytes
	}

	svc := &InviteService{db: db, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateInviteInput describes a new invite.
type CreateInviteInput struct {
	InviteType     string
	InvitedEmail   string
	EmailAccountID *string
	ExpiresInHours int
}

// CreatedInvite pairs the persisted record with the one-time plaintext token.
type CreatedInvite struct {
	Invite    *models.InviteLink
	Token     string
	InviteURL string
}

// Create issues a new invite on behalf of inviterUserID. The plaintext token
// is returned exactly once and cannot be recovered afterwards.
func (s *InviteService) Create(ctx context.Context, inviterUserID string, in CreateInviteInput) (*CreatedInvite, error) {
	if inviterUserID == "" {
		return nil, errors.New("invites: inviter user id is required")
	}
	switch in.InviteType {
	case models.InviteTypeShareAccess, models.InviteTypeAddEmailAccount:
	default:
		return nil, fmt.Errorf("invites: unsupported invite type %q", in.InviteType)
	}

	token, err := crypto.GenerateToken(s.cfg.TokenBytes)
	if err != nil {
		return nil, fmt.Errorf("invites: generate token: %w", err)
	}

	expiry := s.cfg.DefaultExpiry
	if in.ExpiresInHours > 0 {
		expiry = time.Duration(in.ExpiresInHours) * time.Hour
	}

	invite := &models.InviteLink{
		InviterUserID:  inviterUserID,
		InviteType:     in.InviteType,
		EmailAccountID: in.EmailAccountID,
		InvitedEmail:   strings.ToLower(strings.TrimSpace(in.InvitedEmail)),
		TokenHash:      hashToken(token),
		Status:         models.InviteStatusActive,
		ExpiresAt:      s.now().Add(expiry),
	}

	if err := s.db.WithContext(ctx).Create(invite).Error; err != nil {
		return nil, fmt.Errorf("invites: create: %w", err)
	}

	created := &CreatedInvite{
		Invite:    invite,
		Token:     token,
		InviteURL: s.inviteURL(invite.InviteType, token),
	}

	s.deliver(ctx, created)
	return created, nil
}

// ValidationResult is the public response shape for token validation. The
// endpoint always answers 200; failures are expressed through Valid and Reason.
type ValidationResult struct {
	Valid        bool       `json:"valid"`
	InviteType   string     `json:"invite_type,omitempty"`
	InvitedEmail string     `json:"invited_email,omitempty"`
	InviterName  string     `json:"inviter_name,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Message      string     `json:"message,omitempty"`
}

// Validate classifies a token without consuming it. Unknown and already-used
// tokens are indistinguishable from each other beyond the reason code; expired
// tokens are reported separately so clients can show a dedicated screen.
func (s *InviteService) Validate(ctx context.Context, token string) (*ValidationResult, error) {
	invite, err := s.findByToken(ctx, token)
	if errors.Is(err, ErrInviteNotFound) {
		return &ValidationResult{Valid: false, Reason: ReasonNotFound, Message: "Invite link is invalid"}, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case invite.Status == models.InviteStatusUsed:
		return &ValidationResult{Valid: false, Reason: ReasonUsed, Message: "Invite link has already been used"}, nil
	case invite.Status == models.InviteStatusExpired || invite.ExpiresAt.Before(now):
		if invite.Status == models.InviteStatusActive {
			s.markExpired(ctx, invite)
		}
		return &ValidationResult{Valid: false, Reason: ReasonExpired, Message: "Invite link has expired"}, nil
	}

	result := &ValidationResult{
		Valid:        true,
		InviteType:   invite.InviteType,
		InvitedEmail: invite.InvitedEmail,
		ExpiresAt:    &invite.ExpiresAt,
	}
	if invite.Inviter != nil {
		result.InviterName = invite.Inviter.Name
	}
	return result, nil
}

// Redeem consumes an invite exactly once. A non-empty expectedType guards
// against a token of one kind being redeemed through the other flow.
// usedByUserID may be empty for public redemptions where the acceptor has no
// account yet.
func (s *InviteService) Redeem(ctx context.Context, token, expectedType, usedByUserID string) (*models.InviteLink, error) {
	invite, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if expectedType != "" && invite.InviteType != expectedType {
		return nil, ErrInviteTypeMismatch
	}
	if invite.Status == models.InviteStatusUsed {
		return nil, ErrInviteUsed
	}
	if invite.Status == models.InviteStatusExpired || invite.ExpiresAt.Before(now) {
		if invite.Status == models.InviteStatusActive {
			s.markExpired(ctx, invite)
		}
		return nil, ErrInviteExpired
	}

	updates := map[string]interface{}{
		"status":  models.InviteStatusUsed,
		"used_at": now,
	}
	if usedByUserID != "" {
		updates["used_by_user_id"] = usedByUserID
	}

	// Conditional update enforces at-most-once under concurrent redemption.
	result := s.db.WithContext(ctx).
		Model(&models.InviteLink{}).
		Where("id = ? AND status = ?", invite.ID, models.InviteStatusActive).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("invites: redeem: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInviteUsed
	}

	invite.Status = models.InviteStatusUsed
	invite.UsedAt = &now
	if usedByUserID != "" {
		invite.UsedByUserID = &usedByUserID
	}
	return invite, nil
}

// AttachEmailAccount links the mailbox created by a redeemed invite back to
// the invite record.
func (s *InviteService) AttachEmailAccount(ctx context.Context, inviteID, accountID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.InviteLink{}).
		Where("id = ?", inviteID).
		Update("added_email_account_id", accountID).Error
	if err != nil {
		return fmt.Errorf("invites: attach email account: %w", err)
	}
	return nil
}

// FindRedeemedEmailInvite locates the add-email invite that a public OAuth
// callback should complete: redeemed, not yet linked to a mailbox, preferring
// an exact invited-email match and falling back to open invites issued without
// a pinned address.
func (s *InviteService) FindRedeemedEmailInvite(ctx context.Context, email string) (*models.InviteLink, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var invite models.InviteLink
	err := s.db.WithContext(ctx).
		Where("invite_type = ? AND status = ? AND added_email_account_id IS NULL AND invited_email = ?",
			models.InviteTypeAddEmailAccount, models.InviteStatusUsed, email).
		Order("used_at DESC").
		First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = s.db.WithContext(ctx).
			Where("invite_type = ? AND status = ? AND added_email_account_id IS NULL AND invited_email = ''",
				models.InviteTypeAddEmailAccount, models.InviteStatusUsed).
			Order("used_at DESC").
			First(&invite).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invites: find redeemed: %w", err)
	}
	return &invite, nil
}

// List returns all invites issued by a user, newest first.
func (s *InviteService) List(ctx context.Context, inviterUserID string) ([]models.InviteLink, error) {
	var invites []models.InviteLink
	err := s.db.WithContext(ctx).
		Where("inviter_user_id = ?", inviterUserID).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("invites: list: %w", err)
	}
	return invites, nil
}

// GetByID fetches a single invite issued by the given user.
func (s *InviteService) GetByID(ctx context.Context, inviterUserID, inviteID string) (*models.InviteLink, error) {
	var invite models.InviteLink
	err := s.db.WithContext(ctx).First(&invite, "id = ?", inviteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invites: get: %w", err)
	}
	if invite.InviterUserID != inviterUserID {
		return nil, ErrNotInviteOwner
	}
	return &invite, nil
}

// Delete revokes an invite. Only the inviter can delete their own invites.
func (s *InviteService) Delete(ctx context.Context, inviterUserID, inviteID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND inviter_user_id = ?", inviteID, inviterUserID).
		Delete(&models.InviteLink{})
	if result.Error != nil {
		return fmt.Errorf("invites: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInviteNotFound
	}
	return nil
}

// SweepExpired transitions overdue active invites to expired and returns how
// many rows changed. Run periodically by the maintenance scheduler.
func (s *InviteService) SweepExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.InviteLink{}).
		Where("status = ? AND expires_at < ?", models.InviteStatusActive, s.now()).
		Update("status", models.InviteStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("invites: sweep expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *InviteService) findByToken(ctx context.Context, token string) (*models.InviteLink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInviteNotFound
	}

	var invite models.InviteLink
	err := s.db.WithContext(ctx).
		Preload("Inviter").
		Where("token_hash = ?", hashToken(token)).
		First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invites: lookup: %w", err)
	}
	return &invite, nil
}

// markExpired records lazily-detected expiry. Best effort: the sweeper will
// catch anything missed here.
func (s *InviteService) markExpired(ctx context.Context, invite *models.InviteLink) {
	err := s.db.WithContext(ctx).
		Model(&models.InviteLink{}).
		Where("id = ? AND status = ?", invite.ID, models.InviteStatusActive).
		Update("status", models.InviteStatusExpired).Error
	if err != nil {
		logger.Warn("failed to mark invite expired",
			zap.String("invite_id", invite.ID),
			zap.Error(err),
		)
	}
}

func (s *InviteService) deliver(ctx context.Context, created *CreatedInvite) {
	if s.mailer == nil || created.Invite.InvitedEmail == "" {
		return
	}

	subject := "You've been invited to Invoria"
	body := fmt.Sprintf("You have been invited to Invoria.\n\nOpen this link to continue:\n%s\n\nThe link expires on %s.",
		created.InviteURL, created.Invite.ExpiresAt.Format(time.RFC1123))

	err := s.mailer.Send(ctx, mail.Message{
		To:      []string{created.Invite.InvitedEmail},
		Subject: subject,
		Body:    body,
	})
	if err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		logger.Warn("failed to send invite email",
			zap.String("invite_id", created.Invite.ID),
			zap.Error(err),
		)
	}
}

func (s *InviteService) inviteURL(inviteType, token string) string {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	path := "/invited"
	if inviteType == models.InviteTypeAddEmailAccount {
		path = "/add-email-account"
	}
	return fmt.Sprintf("%s%s?token=%s", base, path, url.QueryEscape(token))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
