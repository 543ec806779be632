// Package gate decides, once per cold start, whether to open the web surface
// at a resolved destination URL or to fall back to the native shell.
package gate

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"startgate/internal/attribution"
	"startgate/internal/backend"
	"startgate/internal/cache"
	"startgate/internal/device"
	"startgate/internal/eventlog"
	"startgate/internal/observability"
	"startgate/internal/payload"
	"startgate/internal/remoteconfig"
)

// IdentityProvider hands out the persisted session and install ids.
type IdentityProvider interface {
	GetOrCreateSessionID(ctx context.Context) string
	GetOrCreateInstallID(ctx context.Context) string
}

// ConfigFetcher reads the remote config document.
type ConfigFetcher interface {
	Fetch(ctx context.Context) (remoteconfig.Document, error)
}

// TokenWaiter waits a bounded time for the push token.
type TokenWaiter interface {
	Wait(ctx context.Context, timeout time.Duration) (string, bool)
}

// BackendResolver turns the payload into the destination URL.
type BackendResolver interface {
	Resolve(ctx context.Context, baseEndpoint, payloadB64 string) (*url.URL, error)
}

// EventLogger is the fire-and-forget event channel.
type EventLogger interface {
	LogSession(sessionID, attToken string)
	LogEvent(sessionID, name string, payload map[string]string)
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Cache       *Cache
	Identity    IdentityProvider
	Attribution attribution.Source
	Config      ConfigFetcher
	Tokens      TokenWaiter
	Backend     BackendResolver
	Events      EventLogger
	Device      device.Info

	AttributionNetworkID string
	PushTokenTimeout     time.Duration

	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

// Orchestrator runs the gate. Run executes the flow at most once; concurrent
// callers share the in-flight run and later callers get the stored decision.
type Orchestrator struct {
	deps Deps

	group    singleflight.Group
	decision cache.Snapshot[Decision]

	mu        sync.Mutex
	state     State
	enteredAt time.Time
}

func New(deps Deps) *Orchestrator {
	if deps.PushTokenTimeout <= 0 {
		deps.PushTokenTimeout = 5 * time.Second
	}
	if deps.Attribution == nil {
		deps.Attribution = attribution.Static("")
	}
	if deps.Events == nil {
		deps.Events = nopEvents{}
	}
	return &Orchestrator{deps: deps, state: Idle, enteredAt: time.Now()}
}

// State is the current state of the machine.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Decision returns the decision of this cold start, if it has been made.
func (o *Orchestrator) Decision() (Decision, bool) {
	return o.decision.Load()
}

// Run returns the decision of this cold start, running the flow if needed.
// The flow itself is detached from ctx so an abandoned caller cannot decide
// the outcome for everyone; such a caller gets a fallback that is not stored.
func (o *Orchestrator) Run(ctx context.Context) Decision {
	if d, ok := o.decision.Load(); ok {
		return d
	}
	flowCtx := context.WithoutCancel(ctx)
	ch := o.group.DoChan("gate", func() (any, error) {
		if d, ok := o.decision.Load(); ok {
			return d, nil
		}
		d := o.run(flowCtx)
		o.decision.Store(d)
		return d, nil
	})

	select {
	case res := <-ch:
		return res.Val.(Decision)
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("gate caller gave up before the decision was made")
		return Decision{
			Outcome: OutcomeNative,
			Reason:  ctx.Err().Error(),
			State:   o.State(),
		}
	}
}

func (o *Orchestrator) run(ctx context.Context) Decision {
	o.transition(CheckingCache)
	if u, ok := o.deps.Cache.Read(ctx); ok {
		sid := o.deps.Identity.GetOrCreateSessionID(ctx)
		log.Info().Str("url", u.String()).Msg("using cached destination URL")
		return o.resolved(sid, u, true)
	}

	var sid, installID, attToken string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sid = o.deps.Identity.GetOrCreateSessionID(gctx)
		installID = o.deps.Identity.GetOrCreateInstallID(gctx)
		return nil
	})
	g.Go(func() error {
		attToken, _ = o.deps.Attribution.Fetch(gctx)
		return nil
	})
	_ = g.Wait()
	o.deps.Events.LogSession(sid, attToken)

	o.transition(FetchingConfig)
	doc, err := o.deps.Config.Fetch(ctx)
	if err != nil {
		return o.fallback(sid, err)
	}

	o.transition(WaitingForTokens)
	pushToken, _ := o.deps.Tokens.Wait(ctx, o.deps.PushTokenTimeout)

	o.transition(CallingBackend)
	in := payload.Input{
		AttributionNetworkID: o.deps.AttributionNetworkID,
		InstallID:            installID,
		SessionID:            sid,
		Device:               o.deps.Device,
		PushToken:            pushToken,
		AttributionToken:     attToken,
	}
	log.Debug().Str("payload", in.Raw()).Msg("backend payload")
	u, err := o.deps.Backend.Resolve(ctx, doc.Endpoint(), payload.Build(in))
	if err != nil {
		return o.fallback(sid, err)
	}

	if err := o.deps.Cache.Write(ctx, u); err != nil {
		log.Error().Err(err).Msg("destination URL not cached")
	}
	return o.resolved(sid, u, false)
}

func (o *Orchestrator) resolved(sid string, u *url.URL, fromCache bool) Decision {
	o.transition(Resolved)
	source := "backend"
	if fromCache {
		source = "cache"
	}
	observability.Decisions.WithLabelValues(string(OutcomeWeb), source).Inc()
	o.deps.Events.LogEvent(sid, eventlog.EventOpenWebView, map[string]string{"url": u.String(), "source": source})
	log.Info().Str("url", u.String()).Bool("from_cache", fromCache).Msg("gate resolved: open web view")
	return Decision{
		Outcome:   OutcomeWeb,
		URL:       u.String(),
		FromCache: fromCache,
		SessionID: sid,
		State:     Resolved,
	}
}

func (o *Orchestrator) fallback(sid string, err error) Decision {
	o.transition(Fallback)
	observability.Decisions.WithLabelValues(string(OutcomeNative), reason(err)).Inc()
	o.deps.Events.LogEvent(sid, eventlog.EventOpenAppFallback, map[string]string{"error": err.Error()})
	log.Warn().Err(err).Msg("gate fallback: open app")
	return Decision{
		Outcome:   OutcomeNative,
		Reason:    err.Error(),
		SessionID: sid,
		State:     Fallback,
	}
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	observability.StageDuration.WithLabelValues(from.String()).Observe(time.Since(o.enteredAt).Seconds())
	o.state = to
	o.enteredAt = time.Now()
	o.mu.Unlock()

	log.Debug().Stringer("from", from).Stringer("to", to).Msg("gate transition")
	if o.deps.OnTransition != nil {
		o.deps.OnTransition(from, to)
	}
}

type nopEvents struct{}

func (nopEvents) LogSession(string, string) {}
func (nopEvents) LogEvent(string, string, map[string]string) {}

// reason maps an error to its metric label.
func reason(err error) string {
	switch {
	case errors.Is(err, remoteconfig.ErrConfigUnavailable):
		return "config_unavailable"
	case errors.Is(err, backend.ErrNetwork):
		return "network"
	case errors.Is(err, backend.ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}
