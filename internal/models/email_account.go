package models

import (
	"time"

	"gorm.io/datatypes"
)

// EmailAccount is a mailbox connected for invoice scanning. The OAuth refresh
// token is stored AES-256-GCM encrypted; the plaintext never touches the database.
type EmailAccount struct {
	BaseModel

	UserID           string         `gorm:"type:uuid;index;not null" json:"user_id"`
	Email            string         `gorm:"index;not null" json:"email"`
	Provider         string         `gorm:"not null;default:gmail" json:"provider"`
	RefreshTokenEnc  string         `gorm:"column:refresh_token_enc" json:"-"`
	Settings         datatypes.JSON `json:"settings,omitempty"`
	ConnectedAt      time.Time      `json:"connected_at"`
	LastSyncedAt     *time.Time     `json:"last_synced_at,omitempty"`
	InviterUserID    *string        `gorm:"type:uuid" json:"inviter_user_id,omitempty"`
	ConnectedByToken bool           `json:"connected_by_invite"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
}
