package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Resolve(t *testing.T) {
	var (
		mu              sync.Mutex
		gotQuery, gotUA string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotQuery = r.URL.RawQuery
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte(`{"jims":"example.com/","tock":".org"}`))
	}))
	defer srv.Close()

	r := NewResolver(time.Second, "startgate-test")
	u, err := r.Resolve(context.Background(), srv.URL+"/gate", "YT1iJmM9ZA==")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com.org", u.String())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "data=YT1iJmM9ZA==", gotQuery)
	assert.Equal(t, "startgate-test", gotUA)
}

func TestResolver_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{"empty body", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }, ErrNetwork},
		{"not json", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("nope")) }, ErrInvalidResponse},
		{"one usable string", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"foo":"bar"}`)) }, ErrInvalidResponse},
		{"error status with unusable body", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream"}`))
		}, ErrInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewResolver(time.Second, "").Resolve(context.Background(), srv.URL, "eA==")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolver_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewResolver(time.Second, "").Resolve(context.Background(), url, "eA==")
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestRequestURL(t *testing.T) {
	assert.Equal(t, "https://h/p?data=abc=", RequestURL("https://h/p", "abc="))
	assert.Equal(t, "https://h/p?v=1&data=abc", RequestURL("https://h/p?v=1", "abc"))
}
