package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index:idx_settings_user_key,unique" json:"user_id"`
	Key       string    `gorm:"index:idx_settings_user_key,unique;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Reader presentation settings
	SettingKeyTheme     = "reader_theme"      // "light" or "dark"
	SettingKeyFontScale = "reader_font_scale" // percent, 50-200

	// Storage reconciliation bookkeeping
	SettingKeyReconcileLastAt     = "reconcile_last_at"
	SettingKeyReconcileLastStatus = "reconcile_last_status"
)
