// Package pushtoken holds the messaging token delivered by the push subsystem
// and lets the gate wait for it with a deadline.
package pushtoken

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"startgate/internal/observability"
)

// Waiter records the latest push token. The first delivery releases every
// pending and future Wait call.
type Waiter struct {
	mu    sync.Mutex
	token string
	ready chan struct{}
}

func NewWaiter() *Waiter {
	return &Waiter{ready: make(chan struct{})}
}

// Deliver stores a token. Blank tokens are ignored; a later token replaces
// an earlier one.
func (w *Waiter) Deliver(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	first := w.token == ""
	w.token = token
	if first {
		close(w.ready)
	}
	log.Info().Bool("first", first).Msg("push token delivered")
}

// Token returns the current token without waiting.
func (w *Waiter) Token() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.token, w.token != ""
}

// Wait returns the token as soon as one is delivered, or ok=false once timeout
// elapses or ctx is done. A token delivered earlier returns immediately.
func (w *Waiter) Wait(ctx context.Context, timeout time.Duration) (string, bool) {
	if t, ok := w.Token(); ok {
		observability.PushTokenWaits.WithLabelValues("ready").Inc()
		return t, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.ready:
		observability.PushTokenWaits.WithLabelValues("delivered").Inc()
		return w.Token()
	case <-timer.C:
		observability.PushTokenWaits.WithLabelValues("timeout").Inc()
		log.Warn().Dur("timeout", timeout).Msg("push token wait timed out; continuing without it")
		return "", false
	case <-ctx.Done():
		observability.PushTokenWaits.WithLabelValues("canceled").Inc()
		return "", false
	}
}
