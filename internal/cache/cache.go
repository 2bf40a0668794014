// Package cache provides the key/value caches used in front of the token
// blacklist: an in-process go-cache store and an optional Redis store.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Cache is the minimal key/value contract shared by every backend.
type Cache interface {
	// Get returns ErrNotFound when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Tiered reads through L1 then L2 and backfills L1 on an L2 hit. L2 may be nil.
// L2 failures are logged and treated as misses.
type Tiered struct {
	l1     Cache
	l2     Cache
	logger *slog.Logger
}

func NewTiered(l1, l2 Cache, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{l1: l1, l2: l2, logger: logger}
}

func (t *Tiered) Get(ctx context.Context, key string) (string, error) {
	if v, err := t.l1.Get(ctx, key); err == nil {
		return v, nil
	}
	if t.l2 == nil {
		return "", ErrNotFound
	}

	v, err := t.l2.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.logger.Warn("l2 cache read failed", slog.Any("error", err))
		}
		return "", ErrNotFound
	}
	_ = t.l1.Set(ctx, key, v, 0)
	return v, nil
}

func (t *Tiered) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_ = t.l1.Set(ctx, key, value, ttl)
	if t.l2 == nil {
		return nil
	}
	if err := t.l2.Set(ctx, key, value, ttl); err != nil {
		t.logger.Warn("l2 cache write failed", slog.Any("error", err))
	}
	return nil
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	if t.l2 != nil {
		return t.l2.Delete(ctx, key)
	}
	return nil
}
