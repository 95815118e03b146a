package database

import (
	"context"
	"errors"

	"github.com/anjiri1684/social_chat/apperrors"
	"github.com/anjiri1684/social_chat/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserDirectory resolves public profiles for the chat components.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (*models.PublicProfile, error)
	// Users returns id -> user for the given ids; unknown ids are skipped.
	Users(ctx context.Context, userIDs []string) (map[string]models.User, error)
	// UpdateProfile changes the non-nil fields and returns the new profile.
	UpdateProfile(ctx context.Context, userID string, name, avatarURL *string) (*models.PublicProfile, error)
}

type GormUserDirectory struct {
	db *gorm.DB
}

func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

func (d *GormUserDirectory) Lookup(ctx context.Context, userID string) (*models.PublicProfile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperrors.ErrUserNotFound
	}

	var user models.User
	if err := d.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to look up user", err)
	}

	profile := user.Profile()
	return &profile, nil
}

func (d *GormUserDirectory) Users(ctx context.Context, userIDs []string) (map[string]models.User, error) {
	ids := make([]uuid.UUID, 0, len(userIDs))
	for _, raw := range userIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []models.User
	if err := d.db.WithContext(ctx).Where("id IN ? AND is_active = ?", ids, true).Find(&users).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to load users", err)
	}
	for _, u := range users {
		out[u.ID.String()] = u
	}
	return out, nil
}

func (d *GormUserDirectory) UpdateProfile(ctx context.Context, userID string, name, avatarURL *string) (*models.PublicProfile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperrors.ErrUserNotFound
	}

	var user models.User
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND is_active = ?", id, true).First(&user).Error; err != nil {
			return err
		}
		if name != nil {
			user.Name = *name
		}
		if avatarURL != nil {
			user.AvatarURL = avatarURL
		}
		return tx.Save(&user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to update user", err)
	}

	profile := user.Profile()
	return &profile, nil
}
