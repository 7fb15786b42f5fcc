package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "template_studio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	BackendCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "template_studio_backend_call_duration_seconds",
			Help:    "Latency of calls to the template backend in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"endpoint", "status"},
	)

	DraftSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_studio_draft_saves_total",
			Help: "Drafts written, by slot",
		},
		[]string{"slot"}, // create, update
	)

	DraftsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "template_studio_drafts_expired_total",
			Help: "Drafts discarded because they outlived their TTL",
		},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_studio_submissions_total",
			Help: "Project template submissions, by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	OpenSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "template_studio_open_sessions",
			Help: "Composition sessions currently held in memory",
		},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordBackendCall(endpoint, status string, duration time.Duration) {
	BackendCallLatency.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

func IncrementDraftSave(slot string) {
	DraftSaves.WithLabelValues(slot).Inc()
}

func AddDraftsExpired(n int) {
	if n > 0 {
		DraftsExpired.Add(float64(n))
	}
}

func IncrementSubmission(mode, status string) {
	Submissions.WithLabelValues(mode, status).Inc()
}

func SetOpenSessions(n int) {
	OpenSessions.Set(float64(n))
}
