// Package backend calls the gate backend and turns its answer into the
// destination URL.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sentinel errors for the two failure classes of a resolution.
var (
	ErrNetwork         = errors.New("backend network error")
	ErrInvalidResponse = errors.New("backend invalid response")
)

// Resolver is an HTTP client for the gate backend.
type Resolver struct {
	UserAgent string
	HTTP      *http.Client
}

func NewResolver(timeout time.Duration, userAgent string) *Resolver {
	return &Resolver{
		UserAgent: userAgent,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

// RequestURL appends the payload as the data parameter. The base64 text is
// sent unescaped, byte for byte.
func RequestURL(baseEndpoint, payloadB64 string) string {
	sep := "?"
	if strings.Contains(baseEndpoint, "?") {
		sep = "&"
	}
	return baseEndpoint + sep + "data=" + payloadB64
}

// Resolve issues GET baseEndpoint?data=payload and reconstructs the
// destination URL from the response. Persisting it is the caller's job.
func (r *Resolver) Resolve(ctx context.Context, baseEndpoint, payloadB64 string) (*url.URL, error) {
	target := RequestURL(baseEndpoint, payloadB64)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrNetwork, err)
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	log.Debug().Str("url", target).Msg("backend request")
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body (status %d)", ErrNetwork, resp.StatusCode)
	}
	log.Debug().Int("status", resp.StatusCode).RawJSON("body", sanitize(body)).Msg("backend response")

	parts, err := ExtractParts(body)
	if err != nil {
		return nil, err
	}
	u, err := Reconstruct(parts)
	if err != nil {
		return nil, err
	}
	log.Info().Strs("parts", parts[:]).Str("url", u.String()).Msg("backend resolved destination")
	return u, nil
}

// sanitize keeps zerolog's RawJSON from emitting invalid output.
func sanitize(body []byte) []byte {
	if !json.Valid(body) {
		b, _ := json.Marshal(string(body))
		return b
	}
	return body
}
