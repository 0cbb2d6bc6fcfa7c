package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf/internal/auth"
	"github.com/openshelf/openshelf/internal/entities"
)

// SettingsController persists reader presentation preferences so they
// survive across sessions and devices.
type SettingsController struct {
	store       SettingsStore
	authService *auth.Service
}

func NewSettingsController(store SettingsStore, authService *auth.Service) *SettingsController {
	return &SettingsController{store: store, authService: authService}
}

// Get returns the user's reader preferences with defaults filled in.
func (sc *SettingsController) Get(c *gin.Context) {
	userID := GetUserID(c)

	scale, err := strconv.Atoi(sc.store.GetSettingValue(userID, entities.SettingKeyFontScale, "100"))
	if err != nil {
		scale = 100
	}

	c.JSON(http.StatusOK, gin.H{
		"theme":      sc.store.GetSettingValue(userID, entities.SettingKeyTheme, string(entities.ThemeLight)),
		"font_scale": scale,
	})
}

type settingsUpdate struct {
	Theme     string `json:"theme"`
	FontScale *int   `json:"font_scale"`
}

// Update writes the provided preferences. The theme is mirrored onto the
// user row so new sessions pick it up without a settings lookup.
func (sc *SettingsController) Update(c *gin.Context) {
	userID := GetUserID(c)

	var req settingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid settings payload")
		return
	}

	if req.Theme != "" {
		if req.Theme != string(entities.ThemeLight) && req.Theme != string(entities.ThemeDark) {
			respondBadRequest(c, "theme must be light or dark")
			return
		}
		if err := sc.store.SetSetting(userID, entities.SettingKeyTheme, req.Theme); err != nil {
			respondInternalError(c, err, "save theme")
			return
		}
		if sc.authService != nil && userID != auth.DefaultUserID {
			if err := sc.authService.SetTheme(userID, entities.ThemePreference(req.Theme)); err != nil {
				respondInternalError(c, err, "save theme")
				return
			}
		}
	}

	if req.FontScale != nil {
		scale := *req.FontScale
		if scale < 50 || scale > 200 {
			respondBadRequest(c, "font_scale must be between 50 and 200")
			return
		}
		if err := sc.store.SetSetting(userID, entities.SettingKeyFontScale, strconv.Itoa(scale)); err != nil {
			respondInternalError(c, err, "save font scale")
			return
		}
	}

	sc.Get(c)
}
