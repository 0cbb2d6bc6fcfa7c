package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "correct-horse-battery" {
		t.Fatal("password stored in plaintext")
	}

	if err := CheckPassword("correct-horse-battery", hash); err != nil {
		t.Errorf("valid password rejected: %v", err)
	}
	if err := CheckPassword("wrong-password-here", hash); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestHashPasswordLengthBounds(t *testing.T) {
	if _, err := HashPassword("short", 10); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := HashPassword(strings.Repeat("x", 73), 10); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestGenerateAPIToken(t *testing.T) {
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plaintext) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(plaintext))
	}
	if hash != HashToken(plaintext) {
		t.Error("hash does not match plaintext")
	}

	other, _, err := GenerateAPIToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other == plaintext {
		t.Error("tokens are not unique")
	}
}
