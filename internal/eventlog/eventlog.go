// Package eventlog is the fire-and-forget event channel of the gate.
package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"startgate/internal/observability"
)

// Event names emitted at the gate's terminal states.
const (
	EventOpenWebView     = "open_webview"
	EventOpenAppFallback = "open_app_fallback"
)

// Sink persists session and event records. storage.Postgres and storage.Redis implement it.
type Sink interface {
	RecordSession(ctx context.Context, sessionID, attToken string) error
	RecordEvent(ctx context.Context, sessionID, name string, payload map[string]string) error
}

// LogSink only writes records to the process log.
type LogSink struct{}

func (LogSink) RecordSession(_ context.Context, sessionID, attToken string) error {
	log.Info().Str("uuid", sessionID).Bool("att_token", attToken != "").Msg("session")
	return nil
}

func (LogSink) RecordEvent(_ context.Context, sessionID, name string, payload map[string]string) error {
	log.Info().Str("uuid", sessionID).Str("event", name).Interface("payload", payload).Msg("event")
	return nil
}

type record struct {
	session   bool
	sessionID string
	attToken  string
	name      string
	payload   map[string]string
}

// Emitter queues records for a single background writer. Emission never
// blocks: when the buffer is full the record is dropped.
type Emitter struct {
	sink    Sink
	timeout time.Duration
	ch      chan record
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewEmitter(sink Sink, buffer int) *Emitter {
	if buffer <= 0 {
		buffer = 64
	}
	e := &Emitter{
		sink:    sink,
		timeout: 5 * time.Second,
		ch:      make(chan record, buffer),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Emitter) run() {
	defer close(e.done)
	for r := range e.ch {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		var err error
		if r.session {
			err = e.sink.RecordSession(ctx, r.sessionID, r.attToken)
		} else {
			err = e.sink.RecordEvent(ctx, r.sessionID, r.name, r.payload)
		}
		cancel()
		if err != nil {
			log.Error().Err(err).Str("uuid", r.sessionID).Str("event", r.name).Msg("event log write failed")
		}
	}
}

// LogSession records the session id and attribution token of this run.
func (e *Emitter) LogSession(sessionID, attToken string) {
	e.enqueue(record{session: true, sessionID: sessionID, attToken: attToken, name: "session"})
}

// LogEvent records a named event for the session.
func (e *Emitter) LogEvent(sessionID, name string, payload map[string]string) {
	e.enqueue(record{sessionID: sessionID, name: name, payload: payload})
}

func (e *Emitter) enqueue(r record) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- r:
	default:
		observability.EventsDropped.Inc()
		log.Warn().Str("event", r.name).Msg("event log buffer full; dropping event")
	}
}

// Close stops accepting records and waits for queued ones until ctx is done.
func (e *Emitter) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.ch)
		e.mu.Unlock()
	})
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
