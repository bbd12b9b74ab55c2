package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once
	registry     = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packlink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "packlink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	datagramsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packlink",
			Subsystem: "link",
			Name:      "datagrams_received_total",
			Help:      "Datagrams accepted by a link, by shape.",
		},
		[]string{"node", "link", "shape"},
	)
	datagramsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packlink",
			Subsystem: "link",
			Name:      "datagrams_sent_total",
			Help:      "Datagrams handed to a transport, by shape and outcome.",
		},
		[]string{"node", "link", "shape", "success"},
	)
	datagramsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packlink",
			Subsystem: "link",
			Name:      "datagrams_dropped_total",
			Help:      "Inbound datagrams dropped, by reason.",
		},
		[]string{"node", "link", "reason"},
	)
	linkTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packlink",
			Subsystem: "link",
			Name:      "transitions_total",
			Help:      "Link state transitions.",
		},
		[]string{"node", "link", "from", "to"},
	)
	linkState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "packlink",
			Subsystem: "link",
			Name:      "state",
			Help:      "Current link state (0 disconnected, 1 syncing, 2 connected, 3 standalone).",
		},
		[]string{"node", "link"},
	)
	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packlink",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Synchronizer dumps started.",
		},
		[]string{"node", "link"},
	)
	relayForwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packlink",
			Subsystem: "relay",
			Name:      "forwards_total",
			Help:      "Relay operations by config kind and step.",
		},
		[]string{"node", "kind", "step"},
	)
	relayPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "packlink",
			Subsystem: "relay",
			Name:      "pending",
			Help:      "Config kinds awaiting an answer from their owner.",
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			httpRequests,
			httpDuration,
			datagramsReceived,
			datagramsSent,
			datagramsDropped,
			linkTransitions,
			linkState,
			syncRuns,
			relayForwards,
			relayPending,
		)
	})
}

// Registry exposes the private registry for tests and embedding.
func Registry() *prometheus.Registry {
	RegisterMetrics()
	return registry
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordDatagram(node, link, shape string) {
	RegisterMetrics()
	datagramsReceived.WithLabelValues(node, link, shape).Inc()
}

func RecordSend(node, link, shape string, success bool) {
	RegisterMetrics()
	datagramsSent.WithLabelValues(node, link, shape, strconv.FormatBool(success)).Inc()
}

func RecordDrop(node, link, reason string) {
	RegisterMetrics()
	datagramsDropped.WithLabelValues(node, link, reason).Inc()
}

func RecordTransition(node, link, from, to string, state int) {
	RegisterMetrics()
	linkTransitions.WithLabelValues(node, link, from, to).Inc()
	linkState.WithLabelValues(node, link).Set(float64(state))
}

func RecordSyncRun(node, link string) {
	RegisterMetrics()
	syncRuns.WithLabelValues(node, link).Inc()
}

func RecordRelay(node, kind, step string) {
	RegisterMetrics()
	relayForwards.WithLabelValues(node, kind, step).Inc()
}

func SetRelayPending(node string, n int) {
	RegisterMetrics()
	relayPending.WithLabelValues(node).Set(float64(n))
}
