package cache

import (
	"context"
	"time"
)

const revokedMarker = "1"

// RevocationStore is the authoritative blacklist, normally Postgres
type RevocationStore interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Blacklist is a read-through cache in front of a RevocationStore. Only
// positive answers are cached: revocation is permanent until the token
// expires, while a negative answer can change at any moment.
type Blacklist struct {
	store  RevocationStore
	cache  Cache
	maxTTL time.Duration
	now    func() time.Time
}

func NewBlacklist(store RevocationStore, c Cache, maxTTL time.Duration) *Blacklist {
	return &Blacklist{store: store, cache: c, maxTTL: maxTTL, now: time.Now}
}

func (b *Blacklist) key(jti string) string { return "revoked:" + jti }

// IsRevoked reports whether jti is blacklisted. expiresAt bounds how long a
// positive answer is cached.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	if v, err := b.cache.Get(ctx, b.key(jti)); err == nil && v == revokedMarker {
		return true, nil
	}

	revoked, err := b.store.IsRevoked(ctx, jti)
	if err != nil {
		return false, err
	}
	if revoked {
		b.Remember(ctx, jti, expiresAt)
	}
	return revoked, nil
}

// Remember caches a revocation just written to the store
func (b *Blacklist) Remember(ctx context.Context, jti string, expiresAt time.Time) {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return
	}
	if b.maxTTL > 0 && ttl > b.maxTTL {
		ttl = b.maxTTL
	}
	_ = b.cache.Set(ctx, b.key(jti), revokedMarker, ttl)
}
