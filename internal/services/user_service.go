package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"invoria/internal/auth"
	"invoria/internal/models"
)

// UserService manages user records backed by Google identities.
type UserService struct {
	db  *gorm.DB
	now func() time.Time
}

// UserOption customises a UserService.
type UserOption func(*UserService)

// WithUserClock overrides the time source, used by tests.
func WithUserClock(now func() time.Time) UserOption {
	return func(s *UserService) {
		s.now = now
	}
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, opts ...UserOption) *UserService {
	svc := &UserService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// UpsertFromIdentity creates or refreshes the user matching a verified Google
// identity and stamps the login time.
func (s *UserService) UpsertFromIdentity(ctx context.Context, identity *auth.Identity) (*models.User, error) {
	if identity == nil || identity.GoogleID == "" {
		return nil, errors.New("users: identity is required")
	}

	now := s.now()
	var user models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("google_id = ?", identity.GoogleID).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{
				GoogleID:    identity.GoogleID,
				Email:       identity.Email,
				Name:        identity.Name,
				Picture:     identity.Picture,
				LastLoginAt: &now,
			}
			return tx.Create(&user).Error
		}
		if err != nil {
			return err
		}

		user.Email = identity.Email
		user.Name = identity.Name
		user.Picture = identity.Picture
		user.LastLoginAt = &now
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, fmt.Errorf("users: upsert: %w", err)
	}

	return &user, nil
}

// GetByID fetches a user by primary key.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: get: %w", err)
	}
	return &user, nil
}
