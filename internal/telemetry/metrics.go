package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zephyrfd",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"op", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zephyrfd",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			// Tune buckets to your SLOs. This covers 1ms .. ~4s.
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 13),
		},
		[]string{"op"},
	)

	InFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zephyrfd",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
		[]string{"op"},
	)

	// ---- Detector ----
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zephyrfd",
			Name:      "messages_total",
			Help:      "Messages reported to the failure detector.",
		},
		[]string{"algorithm", "direction", "kind"},
	)

	MonitoredEntities = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zephyrfd",
			Name:      "monitored_entities",
			Help:      "Entities currently registered with the failure detector.",
		},
		[]string{"algorithm"},
	)

	MemberStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zephyrfd",
			Name:      "members",
			Help:      "Members known to the monitor, by state.",
		},
		[]string{"state"},
	)

	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zephyrfd",
			Name:      "member_state_transitions_total",
			Help:      "Member state changes seen by the monitor.",
		},
		[]string{"from", "to"},
	)

	TimeoutUnits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "zephyrfd",
			Name:      "timeout_units",
			Help:      "Suspicion timeouts observed after each received message, in detector time units.",
			// 1 .. ~65k units; with millisecond units that is 1ms .. ~1min.
			Buckets: prometheus.ExponentialBuckets(1, 2, 17),
		},
		[]string{"algorithm"},
	)

	FailureChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zephyrfd",
			Name:      "failure_checks_total",
			Help:      "IsFailed evaluations by result.",
		},
		[]string{"algorithm", "failed"},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "zephyrfd",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "zephyrfd",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(RequestsTotal, RequestDuration, InFlight, buildInfo, uptime)
	Registry.MustRegister(MessagesTotal, MonitoredEntities, MemberStates, StateTransitions, TimeoutUnits, FailureChecks)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// ---- Middleware instrumentation ----

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps an http.Handler to record metrics under the provided "op" label.
// Example:
//
//	mux.HandleFunc("/info", telemetry.Instrument("info", http.HandlerFunc(s.info)).ServeHTTP)
func Instrument(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()

		InFlight.WithLabelValues(op).Inc()
		defer InFlight.WithLabelValues(op).Dec()

		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(op, class).Inc()
		RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	})
}
