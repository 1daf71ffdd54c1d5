package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jordanlanch/colorbook/pkg/cache"
)

const blacklistKeyPrefix = "colorbook:jwt:blacklist:"

// TokenBlacklist manages revoked tokens
type TokenBlacklist struct {
	cache *cache.Client
}

// NewTokenBlacklist creates a new token blacklist
func NewTokenBlacklist(cache *cache.Client) *TokenBlacklist {
	return &TokenBlacklist{
		cache: cache,
	}
}

// Add revokes token until expiration elapses. Tokens that are already
// expired are not stored.
func (b *TokenBlacklist) Add(ctx context.Context, token string, expiration time.Duration) error {
	if expiration <= 0 {
		return nil
	}
	if err := b.cache.Set(ctx, b.key(token), "revoked", expiration); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Revoke blacklists token unless it already is, atomically. It reports
// whether this call revoked it, so of two concurrent callers exactly one
// wins.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiration time.Duration) (bool, error) {
	if expiration <= 0 {
		return false, nil
	}
	ok, err := b.cache.SetNX(ctx, b.key(token), "revoked", expiration)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return ok, nil
}

// IsBlacklisted checks if a token has been revoked
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	revoked, err := b.cache.Exists(ctx, b.key(token))
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return revoked, nil
}

// key hashes the token so raw tokens are never stored
func (b *TokenBlacklist) key(token string) string {
	hash := sha256.Sum256([]byte(token))
	return blacklistKeyPrefix + hex.EncodeToString(hash[:])
}
