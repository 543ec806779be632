// Package remoteconfig reads the small key/value document that names the
// backend endpoint for the gate.
package remoteconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// ErrConfigUnavailable covers every way the fetch can fail: transport,
// empty or malformed snapshot, missing keys.
var ErrConfigUnavailable = errors.New("remote config unavailable")

// DocumentPath is the location of the document inside the database.
const DocumentPath = "config"

// Document is the string-valued subset of the remote config snapshot.
type Document struct {
	Values map[string]string
	Host   string
	Path   string
}

// Endpoint is the backend base URL: https://{host}{path}, with the path
// forced to start with a slash.
func (d Document) Endpoint() string {
	p := d.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "https://" + d.Host + p
}

// ParseDocument decodes a snapshot body and checks the host and path keys.
func ParseDocument(body []byte, hostKey, pathKey string) (Document, error) {
	if !gjson.ValidBytes(body) {
		return Document{}, fmt.Errorf("%w: snapshot is not valid JSON", ErrConfigUnavailable)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return Document{}, fmt.Errorf("%w: snapshot is empty or not an object", ErrConfigUnavailable)
	}

	doc := Document{Values: map[string]string{}}
	root.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.String {
			doc.Values[k.String()] = v.String()
		}
		return true
	})

	host, okHost := doc.Values[hostKey]
	path, okPath := doc.Values[pathKey]
	if !okHost || !okPath {
		return Document{}, fmt.Errorf("%w: missing %q or %q", ErrConfigUnavailable, hostKey, pathKey)
	}
	doc.Host = strings.TrimSpace(host)
	doc.Path = path
	return doc, nil
}

// Fetcher reads the document over the realtime-database REST interface:
// GET {BaseURL}/config.json.
type Fetcher struct {
	BaseURL   string
	AuthToken string
	HostKey   string
	PathKey   string
	HTTP      *http.Client
}

func NewFetcher(baseURL, authToken, hostKey, pathKey string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		BaseURL:   baseURL,
		AuthToken: authToken,
		HostKey:   hostKey,
		PathKey:   pathKey,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

func (f *Fetcher) documentURL() (string, error) {
	if f.BaseURL == "" {
		return "", errors.New("database url is not configured")
	}
	u, err := url.Parse(strings.TrimRight(f.BaseURL, "/") + "/" + DocumentPath + ".json")
	if err != nil {
		return "", err
	}
	if f.AuthToken != "" {
		q := u.Query()
		q.Set("auth", f.AuthToken)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Fetch performs a single read. It never retries.
func (f *Fetcher) Fetch(ctx context.Context) (Document, error) {
	target, err := f.documentURL()
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrConfigUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Document{}, fmt.Errorf("%w: status %d", ErrConfigUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}, fmt.Errorf("%w: read body: %w", ErrConfigUnavailable, err)
	}

	doc, err := ParseDocument(body, f.HostKey, f.PathKey)
	if err != nil {
		log.Error().Err(err).Msg("remote config rejected")
		return Document{}, err
	}
	log.Info().Str("endpoint", doc.Endpoint()).Msg("remote config fetched")
	return doc, nil
}
