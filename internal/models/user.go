package models

import "time"

// User represents an account authenticated through Google sign-in.
type User struct {
	BaseModel

	GoogleID    string     `gorm:"uniqueIndex;not null" json:"google_id"`
	Email       string     `gorm:"uniqueIndex;not null" json:"email"`
	Name        string     `json:"name"`
	Picture     string     `json:"picture,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	EmailAccounts []EmailAccount `gorm:"foreignKey:UserID" json:"email_accounts,omitempty"`
}
