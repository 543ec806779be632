package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "startgate_http_requests_total",
			Help: "Total API requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "startgate_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "startgate_http_in_flight",
		Help: "In-flight HTTP requests",
	})

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "startgate_decisions_total",
			Help: "Gate decisions by outcome and reason",
		}, []string{"outcome", "reason"},
	)
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "startgate_stage_duration_seconds",
		Help:    "Time spent in each gate state",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	PushTokenWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "startgate_push_token_wait_total",
			Help: "Push token waits by result",
		}, []string{"result"},
	)
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "startgate_events_dropped_total",
		Help: "Events dropped because the emitter buffer was full",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, Decisions, StageDuration, PushTokenWaits, EventsDropped)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}
