package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"startgate/internal/api"
	"startgate/internal/attribution"
	"startgate/internal/backend"
	"startgate/internal/config"
	"startgate/internal/device"
	"startgate/internal/eventlog"
	"startgate/internal/gate"
	"startgate/internal/identity"
	"startgate/internal/listener"
	"startgate/internal/pushtoken"
	"startgate/internal/remoteconfig"
	"startgate/internal/storage"
)

// App is one process worth of gate collaborators.
type App struct {
	Store  storage.Store
	Gate   *gate.Orchestrator
	Tokens *pushtoken.Waiter
	Events *eventlog.Emitter

	closers []func()
}

// Build opens storage and the event sink and wires the orchestrator.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	app := &App{Store: store, Tokens: pushtoken.NewWaiter()}
	app.closers = append(app.closers, store.Close)

	sink, err := app.openSink(ctx, cfg)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Events = eventlog.NewEmitter(sink, cfg.Events.Buffer)

	app.Gate = app.newGate(cfg, backend.NewResolver(cfg.Backend.Timeout, cfg.Backend.UserAgent))
	return app, nil
}

func (a *App) newGate(cfg config.Config, resolver *backend.Resolver) *gate.Orchestrator {
	return gate.New(gate.Deps{
		Cache:       gate.NewCache(a.Store),
		Identity:    identity.NewProvider(a.Store),
		Attribution: attribution.NewFileSource(cfg.Attribution.TokenFile),
		Config: remoteconfig.NewFetcher(
			cfg.RemoteConfig.DatabaseURL,
			cfg.RemoteConfig.AuthToken,
			cfg.RemoteConfig.HostKey,
			cfg.RemoteConfig.PathKey,
			cfg.RemoteConfig.Timeout,
		),
		Tokens:               a.Tokens,
		Backend:              resolver,
		Events:               a.Events,
		Device:               device.Detect(cfg.App.BundleID, cfg.App.OSVersion, cfg.App.DeviceModel),
		AttributionNetworkID: cfg.Attribution.NetworkID,
		PushTokenTimeout:     cfg.Gate.PushTokenTimeout,
	})
}

// openSink reuses the store when it matches the configured sink.
func (a *App) openSink(ctx context.Context, cfg config.Config) (eventlog.Sink, error) {
	switch cfg.Events.Sink {
	case "", "log":
		return eventlog.LogSink{}, nil
	case "postgres":
		if pg, ok := a.Store.(*storage.Postgres); ok {
			return pg, nil
		}
		pg, err := storage.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init event sink: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	case "redis":
		if rd, ok := a.Store.(*storage.Redis); ok {
			return rd, nil
		}
		rd, err := storage.NewRedis(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init event sink: %w", err)
		}
		a.closers = append(a.closers, rd.Close)
		return rd, nil
	default:
		return nil, fmt.Errorf("unknown event sink %q", cfg.Events.Sink)
	}
}

// Close flushes queued events and releases storage.
func (a *App) Close(ctx context.Context) {
	if a.Events != nil {
		if err := a.Events.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("event log not fully flushed")
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Resolve runs a single cold start and returns its decision.
func Resolve(ctx context.Context, cfg config.Config) (gate.Decision, error) {
	app, err := Build(ctx, cfg)
	if err != nil {
		return gate.Decision{}, err
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Close(shCtx)
	}()
	return app.Gate.Run(ctx), nil
}

func requestTimeout(cfg config.Config) time.Duration {
	return cfg.RemoteConfig.Timeout + cfg.Gate.PushTokenTimeout + cfg.Backend.Timeout + 5*time.Second
}

// Run serves the API and runs the gate once for this cold start. It returns
// after SIGINT/SIGTERM.
func Run(cfg config.Config) error {
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(rootCtx, cfg)
	if err != nil {
		return err
	}

	// Listener (LISTEN/NOTIFY)
	if pg, ok := app.Store.(*storage.Postgres); ok {
		go listener.ListenForPushTokens(rootCtx, pg, app.Tokens, cfg.Listener.Channel, cfg.Backoff())
	}

	// HTTP
	h := api.NewGateHandler(app.Gate, app.Tokens)
	timeout := requestTimeout(cfg)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Router(h, timeout),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: timeout + time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server crashed")
		}
	}()

	// Cold start
	go func() {
		d := app.Gate.Run(rootCtx)
		log.Info().Str("outcome", string(d.Outcome)).Str("url", d.URL).Str("reason", d.Reason).Msg("cold start decided")
	}()

	// Wait for signal
	waitForSignal()
	log.Info().Msg("shutdown...")

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	_ = srv.Shutdown(shCtx)
	app.Close(shCtx)
	return nil
}

func waitForSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
