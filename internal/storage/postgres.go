package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"startgate/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS startgate_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS startgate_sessions (
	session_id TEXT PRIMARY KEY,
	att_token  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS startgate_events (
	id         BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	event_name TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Postgres is the pgx-backed store. Besides the key-value table it records
// session and event rows for the event log.
type Postgres struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Config) (*Postgres, error) {
	dsn := cfg.DSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	s := &Postgres{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Postgres) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM startgate_kv WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *Postgres) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO startgate_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// RecordSession stores the session row once; later calls for the same id are no-ops.
func (s *Postgres) RecordSession(ctx context.Context, sessionID, attToken string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO startgate_sessions (session_id, att_token) VALUES ($1, $2)
		ON CONFLICT (session_id) DO NOTHING
	`, sessionID, attToken)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

func (s *Postgres) RecordEvent(ctx context.Context, sessionID, name string, payload map[string]string) error {
	var raw []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode event payload: %w", err)
		}
		raw = b
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO startgate_events (session_id, event_name, payload) VALUES ($1, $2, $3)
	`, sessionID, name, raw)
	if err != nil {
		return fmt.Errorf("record event %s: %w", name, err)
	}
	return nil
}

func (s *Postgres) ListenChannel() string {
	return "push_token"
}

func (s *Postgres) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}
