package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "startgate:"

// Redis keeps keys under the startgate: namespace with no expiry.
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is empty")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Close() {
	if r.client != nil {
		_ = r.client.Close()
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, redisPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, redisPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// RecordSession writes the session hash if it does not exist yet.
func (r *Redis) RecordSession(ctx context.Context, sessionID, attToken string) error {
	key := redisPrefix + "sessions:" + sessionID
	if err := r.client.HSetNX(ctx, key, "uuid", sessionID).Err(); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	err := r.client.HSetNX(ctx, key, "att_token", attToken).Err()
	if err == nil {
		err = r.client.HSetNX(ctx, key, "timestamp", time.Now().UTC().Format(time.RFC3339)).Err()
	}
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// RecordEvent appends to the per-session event stream.
func (r *Redis) RecordEvent(ctx context.Context, sessionID, name string, payload map[string]string) error {
	values := map[string]any{
		"event_name": name,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range payload {
		values["payload."+k] = v
	}
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: redisPrefix + "sessions:" + sessionID + ":events",
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("record event %s: %w", name, err)
	}
	return nil
}
