package models

import "time"

// Invite types determine which acceptance flow applies.
const (
	InviteTypeShareAccess     = "share_access"
	InviteTypeAddEmailAccount = "add_email_account"
)

// Invite statuses. Once an invite leaves "active" it never returns.
const (
	InviteStatusActive  = "active"
	InviteStatusUsed    = "used"
	InviteStatusExpired = "expired"
)

// InviteLink is a single-use invitation identified by an opaque bearer token.
// Only the SHA-256 hash of the token is persisted.
type InviteLink struct {
	BaseModel

	InviterUserID       string     `gorm:"type:uuid;index;not null" json:"inviter_user_id"`
	InviteType          string     `gorm:"not null" json:"invite_type"`
	EmailAccountID      *string    `gorm:"type:uuid;index" json:"email_account_id,omitempty"`
	InvitedEmail        string     `gorm:"index" json:"invited_email,omitempty"`
	TokenHash           string     `gorm:"uniqueIndex;not null" json:"-"`
	Status              string     `gorm:"not null;default:active;index" json:"status"`
	ExpiresAt           time.Time  `gorm:"index" json:"expires_at"`
	UsedAt              *time.Time `json:"used_at,omitempty"`
	UsedByUserID        *string    `gorm:"type:uuid" json:"used_by_user_id,omitempty"`
	AddedEmailAccountID *string    `gorm:"type:uuid" json:"added_email_account_id,omitempty"`

	Inviter      *User         `gorm:"foreignKey:InviterUserID" json:"inviter,omitempty"`
	EmailAccount *EmailAccount `gorm:"foreignKey:EmailAccountID;constraint:OnDelete:CASCADE" json:"email_account,omitempty"`
}

// Terminal reports whether the invite can no longer be redeemed.
func (i *InviteLink) Terminal(now time.Time) bool {
	if i == nil {
		return true
	}
	if i.Status != InviteStatusActive {
		return true
	}
	return i.ExpiresAt.Before(now)
}
