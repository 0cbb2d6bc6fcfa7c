package settings

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openshelf/openshelf/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&entities.Setting{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestSetAndGetSetting(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	if err := repo.SetSetting(1, entities.SettingKeyTheme, "dark"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := repo.GetSettingValue(1, entities.SettingKeyTheme, "light"); got != "dark" {
		t.Errorf("expected dark, got %q", got)
	}

	// Upsert overwrites.
	if err := repo.SetSetting(1, entities.SettingKeyTheme, "light"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	if got := repo.GetSettingValue(1, entities.SettingKeyTheme, "dark"); got != "light" {
		t.Errorf("expected light, got %q", got)
	}
}

func TestGetSettingValueFallback(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	if got := repo.GetSettingValue(1, entities.SettingKeyFontScale, "100"); got != "100" {
		t.Errorf("expected fallback 100, got %q", got)
	}
}

func TestSettingsScopedByUser(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	repo.SetSetting(1, entities.SettingKeyTheme, "dark")
	repo.SetSetting(2, entities.SettingKeyTheme, "light")

	if got := repo.GetSettingValue(1, entities.SettingKeyTheme, ""); got != "dark" {
		t.Errorf("user 1: expected dark, got %q", got)
	}
	if got := repo.GetSettingValue(2, entities.SettingKeyTheme, ""); got != "light" {
		t.Errorf("user 2: expected light, got %q", got)
	}
}

func TestDeleteSetting(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	repo.SetSetting(1, entities.SettingKeyTheme, "dark")
	if err := repo.DeleteSetting(1, entities.SettingKeyTheme); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := repo.GetSettingValue(1, entities.SettingKeyTheme, "light"); got != "light" {
		t.Errorf("expected fallback after delete, got %q", got)
	}
}
