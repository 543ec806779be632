package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startgate/internal/backend"
	"startgate/internal/config"
	"startgate/internal/gate"
)

func testConfig(databaseURL string) config.Config {
	var cfg config.Config
	cfg.Storage.Driver = "memory"
	cfg.Events.Sink = "log"
	cfg.Events.Buffer = 8
	cfg.RemoteConfig.DatabaseURL = databaseURL
	cfg.RemoteConfig.HostKey = "small"
	cfg.RemoteConfig.PathKey = "stick"
	cfg.RemoteConfig.Timeout = time.Second
	cfg.Backend.Timeout = time.Second
	cfg.Gate.PushTokenTimeout = 10 * time.Millisecond
	cfg.App.BundleID = "com.example.homefix"
	return cfg
}

func TestResolve_EndToEnd(t *testing.T) {
	var (
		mu          sync.Mutex
		backendHits int
		gotData     string
	)
	backendSrv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		backendHits++
		gotData = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"tock":".org","jims":"example.com/"}`))
	}))
	defer backendSrv.Close()
	backendHost := backendSrv.Listener.Addr().String()

	configSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/config.json", r.URL.Path)
		_, _ = w.Write([]byte(`{"small":"` + backendHost + `","stick":"gate"}`))
	}))
	defer configSrv.Close()

	cfg := testConfig(configSrv.URL)
	app, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close(context.Background())

	// the backend is reached over TLS with the test server's certificate
	resolver := backend.NewResolver(time.Second, "")
	resolver.HTTP = backendSrv.Client()
	app.Gate = app.newGate(cfg, resolver)

	d := app.Gate.Run(context.Background())
	assert.Equal(t, gate.OutcomeWeb, d.Outcome)
	assert.Equal(t, "https://example.com.org", d.URL)
	mu.Lock()
	assert.Equal(t, 1, backendHits)
	assert.True(t, strings.HasPrefix(gotData, "data="))
	mu.Unlock()

	cached, err := app.Store.Get(context.Background(), gate.CacheKey)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com.org", cached)
}

func TestResolve_ConfigUnavailableFallsBack(t *testing.T) {
	configSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer configSrv.Close()

	d, err := Resolve(context.Background(), testConfig(configSrv.URL))
	require.NoError(t, err)
	assert.Equal(t, gate.OutcomeNative, d.Outcome)
	assert.Equal(t, gate.Fallback, d.State)
	assert.NotEmpty(t, d.Reason)
}

func TestBuild_UnknownSink(t *testing.T) {
	cfg := testConfig("")
	cfg.Events.Sink = "kafka"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRequestTimeout(t *testing.T) {
	cfg := testConfig("")
	assert.Equal(t, 1*time.Second+10*time.Millisecond+1*time.Second+5*time.Second, requestTimeout(cfg))
}
