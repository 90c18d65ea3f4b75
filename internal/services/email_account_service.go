package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"invoria/internal/models"
	"invoria/pkg/crypto"
)

// EmailAccountService manages mailboxes connected for invoice scanning.
// Refresh tokens are encrypted with AES-256-GCM before they hit the database.
type EmailAccountService struct {
	db            *gorm.DB
	encryptionKey []byte
	now           func() time.Time
}

// EmailAccountOption customises an EmailAccountService.
type EmailAccountOption func(*EmailAccountService)

// WithEmailAccountClock overrides the time source, used by tests.
func WithEmailAccountClock(now func() time.Time) EmailAccountOption {
	return func(s *EmailAccountService) {
		s.now = now
	}
}

// NewEmailAccountService constructs an EmailAccountService.
func NewEmailAccountService(db *gorm.DB, encryptionKey []byte, opts ...EmailAccountOption) (*EmailAccountService, error) {
	switch len(encryptionKey) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("email accounts: encryption key must be 16, 24, or 32 bytes, got %d", len(encryptionKey))
	}

	svc := &EmailAccountService{db: db, encryptionKey: encryptionKey, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ConnectInput describes a mailbox being linked to a workspace. OwnerUserID is
// the workspace the account lands in; for invite-driven connections that is the
// inviter, not whoever completed the OAuth consent.
type ConnectInput struct {
	OwnerUserID      string
	Email            string
	Provider         string
	RefreshToken     string
	InviterUserID    *string
	ConnectedByToken bool
}

// Connect stores or refreshes a connected mailbox. Reconnecting an existing
// address replaces the stored refresh token instead of creating a duplicate.
func (s *EmailAccountService) Connect(ctx context.Context, in ConnectInput) (*models.EmailAccount, error) {
	if in.OwnerUserID == "" {
		return nil, errors.New("email accounts: owner user id is required")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, errors.New("email accounts: email is required")
	}

	encrypted := ""
	if in.RefreshToken != "" {
		enc, err := crypto.Encrypt([]byte(in.RefreshToken), s.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("email accounts: encrypt refresh token: %w", err)
		}
		encrypted = enc
	}

	provider := in.Provider
	if provider == "" {
		provider = "gmail"
	}

	now := s.now()
	var account models.EmailAccount

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND email = ?", in.OwnerUserID, email).First(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			account = models.EmailAccount{
				UserID:           in.OwnerUserID,
				Email:            email,
				Provider:         provider,
				RefreshTokenEnc:  encrypted,
				ConnectedAt:      now,
				InviterUserID:    in.InviterUserID,
				ConnectedByToken: in.ConnectedByToken,
			}
			return tx.Create(&account).Error
		}
		if err != nil {
			return err
		}

		account.Provider = provider
		if encrypted != "" {
			account.RefreshTokenEnc = encrypted
		}
		account.ConnectedAt = now
		if in.InviterUserID != nil {
			account.InviterUserID = in.InviterUserID
		}
		account.ConnectedByToken = account.ConnectedByToken || in.ConnectedByToken
		return tx.Save(&account).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email accounts: concurrent connect for %s: %w", email, err)
		}
		return nil, fmt.Errorf("email accounts: connect: %w", err)
	}

	return &account, nil
}

// List returns all mailboxes in a user's workspace, newest first.
func (s *EmailAccountService) List(ctx context.Context, ownerUserID string) ([]models.EmailAccount, error) {
	var accounts []models.EmailAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerUserID).
		Order("created_at DESC").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("email accounts: list: %w", err)
	}
	return accounts, nil
}

// GetByID fetches a mailbox owned by the given user.
func (s *EmailAccountService) GetByID(ctx context.Context, ownerUserID, accountID string) (*models.EmailAccount, error) {
	var account models.EmailAccount
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", accountID, ownerUserID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmailAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("email accounts: get: %w", err)
	}
	return &account, nil
}

// Delete removes a mailbox from the owner's workspace.
func (s *EmailAccountService) Delete(ctx context.Context, ownerUserID, accountID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", accountID, ownerUserID).
		Delete(&models.EmailAccount{})
	if result.Error != nil {
		return fmt.Errorf("email accounts: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEmailAccountNotFound
	}
	return nil
}

// RefreshToken decrypts the stored OAuth refresh token for a mailbox.
func (s *EmailAccountService) RefreshToken(account *models.EmailAccount) (string, error) {
	if account == nil || account.RefreshTokenEnc == "" {
		return "", errors.New("email accounts: no refresh token stored")
	}
	plaintext, err := crypto.Decrypt(account.RefreshTokenEnc, s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("email accounts: decrypt refresh token: %w", err)
	}
	return string(plaintext), nil
}
