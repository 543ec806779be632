package eventlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	sessions []string
	events   []string
	payloads []map[string]string
	block    chan struct{}
	err      error
}

func (s *recordingSink) RecordSession(_ context.Context, sessionID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sessionID)
	return s.err
}

func (s *recordingSink) RecordEvent(_ context.Context, _ string, name string, payload map[string]string) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, name)
	s.payloads = append(s.payloads, payload)
	return s.err
}

func TestEmitter_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	e := NewEmitter(sink, 8)

	e.LogSession("sid", "att")
	e.LogEvent("sid", EventOpenWebView, map[string]string{"url": "https://example.com.org"})
	e.LogEvent("sid", EventOpenAppFallback, map[string]string{"error": "boom"})
	require.NoError(t, e.Close(context.Background()))

	assert.Equal(t, []string{"sid"}, sink.sessions)
	assert.Equal(t, []string{EventOpenWebView, EventOpenAppFallback}, sink.events)
	assert.Equal(t, "https://example.com.org", sink.payloads[0]["url"])
}

func TestEmitter_NeverBlocksOnSlowSink(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	e := NewEmitter(sink, 1)

	start := time.Now()
	for i := 0; i < 10; i++ {
		e.LogEvent("sid", EventOpenWebView, nil)
	}
	assert.Less(t, time.Since(start), time.Second)

	close(sink.block)
	require.NoError(t, e.Close(context.Background()))
	assert.NotEmpty(t, sink.events)
	assert.Less(t, len(sink.events), 10)
}

func TestEmitter_SinkErrorsAreSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	e := NewEmitter(sink, 4)
	e.LogEvent("sid", EventOpenAppFallback, nil)
	require.NoError(t, e.Close(context.Background()))
	assert.Len(t, sink.events, 1)
}

func TestEmitter_CloseIsIdempotentAndDropsLateEvents(t *testing.T) {
	sink := &recordingSink{}
	e := NewEmitter(sink, 4)
	require.NoError(t, e.Close(context.Background()))
	require.NoError(t, e.Close(context.Background()))

	e.LogEvent("sid", EventOpenWebView, nil)
	assert.Empty(t, sink.events)
}

func TestLogSink(t *testing.T) {
	var s LogSink
	assert.NoError(t, s.RecordSession(context.Background(), "sid", ""))
	assert.NoError(t, s.RecordEvent(context.Background(), "sid", EventOpenWebView, map[string]string{"url": "x"}))
}
