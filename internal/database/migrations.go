package database

import (
	"gorm.io/gorm"

	"invoria/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.EmailAccount{},
		&models.InviteLink{},
	)
}
