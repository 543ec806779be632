package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"startgate/internal/gate"
	"startgate/internal/pushtoken"
)

type stubGate struct {
	d     gate.Decision
	calls atomic.Int32
}

func (s *stubGate) Run(context.Context) gate.Decision {
	s.calls.Add(1)
	return s.d
}

func TestRouter_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		url        string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"healthz", http.MethodGet, "/healthz", "", http.StatusOK, "ok"},
		{"push token accepted", http.MethodPost, "/v1/push-token", `{"token":"fcm-1"}`, http.StatusNoContent, ""},
		{"push token missing", http.MethodPost, "/v1/push-token", `{"token":"  "}`, http.StatusBadRequest, "token is required"},
		{"push token bad json", http.MethodPost, "/v1/push-token", `{`, http.StatusBadRequest, "invalid json"},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK, "startgate_"},
		{"unknown route", http.MethodGet, "/v1/nope", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := pushtoken.NewWaiter()
			h := NewGateHandler(&stubGate{}, tokens)
			srv := Router(h, time.Second)

			req := httptest.NewRequest(tt.method, tt.url, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
			if tt.name == "push token accepted" {
				tok, ok := tokens.Token()
				assert.True(t, ok)
				assert.Equal(t, "fcm-1", tok)
			}
		})
	}
}

func TestRouter_Decision(t *testing.T) {
	g := &stubGate{d: gate.Decision{
		Outcome:   gate.OutcomeWeb,
		URL:       "https://example.com.org",
		FromCache: true,
		SessionID: "sid",
		State:     gate.Resolved,
	}}
	ts := httptest.NewServer(Router(NewGateHandler(g, pushtoken.NewWaiter()), time.Second))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/decision")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "web", got["outcome"])
	assert.Equal(t, "https://example.com.org", got["url"])
	assert.Equal(t, "Resolved", got["state"])
	assert.Equal(t, true, got["from_cache"])
	assert.EqualValues(t, 1, g.calls.Load())
}
