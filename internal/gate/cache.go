package gate

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"startgate/internal/storage"
)

// CacheKey holds the last resolved destination URL.
const CacheKey = "cached_final_url"

// Cache persists the last destination URL. Entries never expire; they are
// only overwritten by the next successful resolution.
type Cache struct {
	store storage.Store
}

func NewCache(store storage.Store) *Cache {
	return &Cache{store: store}
}

// Read returns the cached URL. Read errors and unparsable values count as a miss.
func (c *Cache) Read(ctx context.Context) (*url.URL, bool) {
	raw, err := c.store.Get(ctx, CacheKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("gate cache read failed; treating as miss")
		}
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		log.Warn().Str("value", raw).Msg("gate cache holds an invalid URL; treating as miss")
		return nil, false
	}
	return u, true
}

func (c *Cache) Write(ctx context.Context, u *url.URL) error {
	if err := c.store.Set(ctx, CacheKey, u.String()); err != nil {
		return fmt.Errorf("write gate cache: %w", err)
	}
	return nil
}
