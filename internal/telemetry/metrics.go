package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "messages_received_total",
			Help:      "Inbound messages dispatched, by body type.",
		},
		[]string{"type"},
	)

	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "messages_sent_total",
			Help:      "Outbound messages written, by body type.",
		},
		[]string{"type"},
	)

	DecodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "decode_errors_total",
			Help:      "Input lines skipped because they failed to decode.",
		},
	)

	UnknownTypes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "unknown_types_total",
			Help:      "Messages dropped because no handler was registered.",
		},
	)

	RPCTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "rpc_timeouts_total",
			Help:      "Correlated sends that expired without a reply.",
		},
	)

	GossipRounds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "gossip_rounds_total",
			Help:      "Gossip rounds fired by the periodic timer.",
		},
	)

	StoreSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "murmur",
			Name:      "broadcast_store_size",
			Help:      "Number of distinct values in the broadcast store.",
		},
	)

	HandleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "murmur",
			Name:      "handle_duration_seconds",
			Help:      "Handler latency, by body type.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 13),
		},
		[]string{"type"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "murmur",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		MessagesReceived, MessagesSent, DecodeErrors, UnknownTypes,
		RPCTimeouts, GossipRounds, StoreSize, HandleDuration, uptime,
	)
}

// MetricsHandler exposes the registry for an optional /metrics listener.
// The harness only owns stdin/stdout, so this is off unless configured.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHandle records one handler invocation under the message type.
func ObserveHandle(msgType string, d time.Duration) {
	HandleDuration.WithLabelValues(msgType).Observe(d.Seconds())
}

// Serve runs a metrics-only HTTP listener. Intended to be called in a
// goroutine; errors are returned to the caller for logging.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	return http.ListenAndServe(addr, mux)
}
