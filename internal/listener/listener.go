package listener

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"startgate/internal/storage"
)

// TokenSink receives push tokens announced on the channel.
type TokenSink interface {
	Deliver(token string)
}

// ListenForPushTokens delivers every NOTIFY payload on channel to sink until
// ctx is done. Lost connections are re-acquired after a jittered backoff.
func ListenForPushTokens(ctx context.Context, st *storage.Postgres, sink TokenSink, channel string, baseBackoff time.Duration) {
	if channel == "" {
		channel = st.ListenChannel()
	}
	for ctx.Err() == nil {
		err := listenOnce(ctx, st, sink, channel)
		if ctx.Err() != nil {
			break
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Dur("retry_in", backoff).Msg("push token listener error")
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
	}
	log.Info().Msg("listener stopped")
}

func listenOnce(ctx context.Context, st *storage.Postgres, sink TokenSink, channel string) error {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for push tokens")

	for {
		ntf, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		sink.Deliver(ntf.Payload)
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
