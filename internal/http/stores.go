package http

import "github.com/openshelf/openshelf/internal/entities"

// Controllers depend on narrow store interfaces; the concrete
// implementations live under internal/database.

// DocumentStore is the metadata access the library and reader
// controllers need.
type DocumentStore interface {
	Create(doc *entities.Document) error
	ListByUser(userID uint) ([]entities.Document, error)
	GetByID(id uint, userID uint) (*entities.Document, error)
	UpdateProgress(id uint, userID uint, marker string, percentage int, finished bool) error
	UpdateURL(id uint, url string) error
	Delete(id uint, userID uint) error
	FindByReference(userID uint, name string) (*entities.Document, error)
}

// SettingsStore holds per-user key/value preferences.
type SettingsStore interface {
	GetSettingValue(userID uint, key, fallback string) string
	SetSetting(userID uint, key, value string) error
}
