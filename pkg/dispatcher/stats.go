package dispatcher

import "github.com/prometheus/client_golang/prometheus"

// Stats holds the dispatcher's per-model Prometheus instrumentation,
// served by the hub's /stats endpoint via promhttp.HandlerFor over the
// registry passed to NewStats.
type Stats struct {
	Attempts *prometheus.CounterVec
	Successes *prometheus.CounterVec
	Failures *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

// NewStats registers a fresh set of dispatcher metrics against reg.
// Pass prometheus.NewRegistry() in tests to avoid collisions with the
// global default registerer across parallel test runs.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_transcripts_dispatcher_attempts_total",
			Help: "Transcription attempts per model.",
		}, []string{"model"}),
		Successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_transcripts_dispatcher_successes_total",
			Help: "Successful transcriptions per model.",
		}, []string{"model"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_transcripts_dispatcher_failures_total",
			Help: "Failed transcription attempts per model, labeled by error kind.",
		}, []string{"model", "kind"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "live_transcripts_dispatcher_latency_seconds",
			Help:    "Transcription request latency per model.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
	}
	reg.MustRegister(s.Attempts, s.Successes, s.Failures, s.Latency)
	return s
}
