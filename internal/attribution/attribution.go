// Package attribution reads the platform attribution token, if one is available.
package attribution

import (
	"context"
	"encoding/base64"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Source fetches the attribution token. The returned token is base64 encoded;
// ok is false when no token is available.
type Source interface {
	Fetch(ctx context.Context) (token string, ok bool)
}

// FileSource reads the raw token written by the platform integration to a file.
// An empty path means the platform does not support attribution.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Fetch(ctx context.Context) (string, bool) {
	if s == nil || s.Path == "" {
		log.Debug().Msg("attribution unsupported: no token file configured")
		return "", false
	}
	if ctx.Err() != nil {
		return "", false
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", s.Path).Msg("attribution token unavailable")
		return "", false
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", false
	}
	enc := base64.StdEncoding.EncodeToString([]byte(token))
	log.Info().Int("len", len(enc)).Msg("attribution token loaded")
	return enc, true
}

// Static returns a fixed token; used when the token is supplied out of band.
type Static string

func (s Static) Fetch(context.Context) (string, bool) {
	return string(s), s != ""
}
