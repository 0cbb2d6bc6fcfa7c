package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey(7, "war-and-peace.epub")

	assert.True(t, strings.HasPrefix(key, "users/7/ebooks/"))
	assert.True(t, strings.HasSuffix(key, "_war-and-peace.epub"))
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"users/7/ebooks/1714000000000_war-and-peace.epub", "war-and-peace"},
		{"users/7/ebooks/1714000000000_notes.txt", "notes"},
		{"plain.pdf", "plain"},
		{"users/1/ebooks/no-timestamp.pdf", "no-timestamp"},
		{"users/1/ebooks/snake_case_name.pdf", "snake_case_name"},
		{"noextension", "noextension"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, DisplayTitle(tt.key), "key: %s", tt.key)
	}
}

func TestRandomObjectKey(t *testing.T) {
	key := RandomObjectKey(7, "pdf")

	assert.True(t, strings.HasPrefix(key, "users/7/ebooks/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotEqual(t, key, RandomObjectKey(7, "pdf"))

	// Without an extension the key is just the generated segment.
	bare := RandomObjectKey(7, "")
	assert.False(t, strings.Contains(bare[len("users/7/ebooks/"):], "."))
}
