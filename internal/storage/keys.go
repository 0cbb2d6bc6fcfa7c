package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EbooksPrefix is the folder under a user's prefix that holds uploads.
const EbooksPrefix = "ebooks"

// UserPrefix returns the storage key prefix owned by a user. The storage
// token bridge scopes client credentials to this prefix.
func UserPrefix(userID uint) string {
	return fmt.Sprintf("users/%d/%s/", userID, EbooksPrefix)
}

// ObjectKey builds the stable key for a new upload. Keys carry a timestamp
// prefix so re-uploads of the same filename never collide; the display
// title is derived back from the key by stripping it.
func ObjectKey(userID uint, filename string) string {
	return fmt.Sprintf("%s%d_%s", UserPrefix(userID), time.Now().UnixMilli(), filename)
}

// RandomObjectKey builds a key with no user-supplied component, for
// content whose original name is unusable after sanitization.
func RandomObjectKey(userID uint, extension string) string {
	key := fmt.Sprintf("%s%d_%s", UserPrefix(userID), time.Now().UnixMilli(), uuid.NewString())
	if extension != "" {
		key += "." + extension
	}
	return key
}

// DisplayTitle derives a human title from an object key: final path
// segment, timestamp prefix stripped, extension dropped.
func DisplayTitle(key string) string {
	name := key
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	// Strip the "<unix-ms>_" prefix if present.
	if idx := strings.Index(name, "_"); idx > 0 {
		if isDigits(name[:idx]) {
			name = name[idx+1:]
		}
	}
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
