// Package identity hands out the per-install identifiers sent with every gate request.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"startgate/internal/storage"
)

const (
	SessionKey = "device_uuid_lower"
	InstallKey = "install_instance_id"
)

// Provider returns stable lowercase UUIDs persisted in the store. When the
// store fails, the value generated for this run is kept in memory instead.
type Provider struct {
	store storage.Store

	mu   sync.Mutex
	memo map[string]string
}

func NewProvider(store storage.Store) *Provider {
	return &Provider{store: store, memo: map[string]string{}}
}

func (p *Provider) GetOrCreateSessionID(ctx context.Context) string {
	return p.getOrCreate(ctx, SessionKey)
}

func (p *Provider) GetOrCreateInstallID(ctx context.Context) string {
	return p.getOrCreate(ctx, InstallKey)
}

func (p *Provider) getOrCreate(ctx context.Context, key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.memo[key]; ok {
		return v
	}

	v, err := p.store.Get(ctx, key)
	switch {
	case err == nil && v != "":
		p.memo[key] = v
		return v
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		// the stored id may still exist; never overwrite it from here
		v = strings.ToLower(uuid.NewString())
		log.Warn().Err(err).Str("key", key).Msg("identity read failed; using a new id for this run only")
		p.memo[key] = v
		return v
	}

	v = strings.ToLower(uuid.NewString())
	if err := p.store.Set(ctx, key, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("identity not persisted; using it for this run only")
	} else {
		log.Info().Str("key", key).Str("id", v).Msg("persisted new identity")
	}
	p.memo[key] = v
	return v
}
