package storage

import (
	"context"
	"errors"
	"fmt"

	"startgate/internal/config"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Store is the durable key-value store behind the gate cache and the identity keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close()
}

// Open builds the store selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		return New(ctx, cfg)
	case "redis":
		return NewRedis(ctx, cfg.Storage.RedisURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
