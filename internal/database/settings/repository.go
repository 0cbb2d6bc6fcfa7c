// Package settings provides database operations for per-user settings.
//
// # Usage
//
//	repo := settings.NewRepository(db)
//	theme, err := repo.GetSetting(userID, entities.SettingKeyTheme)
package settings

import (
	"errors"

	"gorm.io/gorm"

	"github.com/openshelf/openshelf/internal/entities"
)

// Repository handles all settings database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new settings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetSetting retrieves a setting by user and key.
func (r *Repository) GetSetting(userID uint, key string) (*entities.Setting, error) {
	var setting entities.Setting
	err := r.db.Where("user_id = ? AND key = ?", userID, key).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// GetSettingValue retrieves a setting value, returning the fallback when
// the key has never been written.
func (r *Repository) GetSettingValue(userID uint, key, fallback string) string {
	setting, err := r.GetSetting(userID, key)
	if err != nil {
		return fallback
	}
	return setting.Value
}

// SetSetting creates or updates a setting.
func (r *Repository) SetSetting(userID uint, key, value string) error {
	var setting entities.Setting
	result := r.db.Where("user_id = ? AND key = ?", userID, key).First(&setting)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		setting = entities.Setting{
			UserID: userID,
			Key:    key,
			Value:  value,
		}
		return r.db.Create(&setting).Error
	} else if result.Error != nil {
		return result.Error
	}

	setting.Value = value
	return r.db.Save(&setting).Error
}

// DeleteSetting removes a setting by user and key.
func (r *Repository) DeleteSetting(userID uint, key string) error {
	return r.db.Where("user_id = ? AND key = ?", userID, key).
		Delete(&entities.Setting{}).Error
}
