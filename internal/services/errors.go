package services

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Sentinel errors returned by the service layer. Handlers translate these
// into API responses with errors.Is.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailAccountNotFound = errors.New("email account not found")
	ErrInviteNotFound       = errors.New("invite not found")
	ErrInviteExpired        = errors.New("invite has expired")
	ErrInviteUsed           = errors.New("invite has already been used")
	ErrInviteTypeMismatch   = errors.New("invite type mismatch")
	ErrNotInviteOwner       = errors.New("invite belongs to another user")
)

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err stems from a unique constraint. The
// postgres driver surfaces a typed error; SQLite only gives us message text.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
