package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/storage"
)

var (
	ErrStorageTokenInvalid = errors.New("storage token is invalid")
	ErrStorageTokenExpired = errors.New("storage token is expired")
)

// StorageClaims scope a short-lived token to one user's object-storage
// prefix. An authenticated session is exchanged for one of these at
// /api/storage/token; storage operations on other prefixes are rejected.
type StorageClaims struct {
	jwt.RegisteredClaims
	UserID uint   `json:"uid"`
	Prefix string `json:"prefix"`
}

// StorageTokenIssuer mints and verifies storage tokens.
type StorageTokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewStorageTokenIssuer creates an issuer from the auth configuration.
// An empty secret gets a random one, which invalidates outstanding tokens
// across restarts.
func NewStorageTokenIssuer(cfg config.Auth) (*StorageTokenIssuer, error) {
	secret := cfg.StorageTokenSecret
	if secret == "" {
		generated, err := GenerateSessionSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate storage token secret: %w", err)
		}
		secret = generated
	}

	expiry := cfg.StorageTokenExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &StorageTokenIssuer{secret: []byte(secret), expiry: expiry}, nil
}

// Issue creates a signed token scoped to the user's storage prefix.
func (i *StorageTokenIssuer) Issue(userID uint) (token string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(i.expiry)

	claims := StorageClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
		Prefix: storage.UserPrefix(userID),
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign storage token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses a storage token and returns its claims.
func (i *StorageTokenIssuer) Verify(token string) (*StorageClaims, error) {
	claims := &StorageClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrStorageTokenExpired
		}
		return nil, ErrStorageTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrStorageTokenInvalid
	}
	return claims, nil
}
