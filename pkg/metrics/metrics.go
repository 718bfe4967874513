package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_api_requests_total",
			Help: "Number of API requests",
		},
		[]string{"method", "path", "status"},
	)
	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "form_api_latency_seconds",
			Help:    "API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	FormSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_saves_total",
			Help: "Form saves by result",
		},
		[]string{"result"},
	)
	StatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_status_changes_total",
			Help: "Publish and unpublish transitions",
		},
		[]string{"status"},
	)
	ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_validation_failures_total",
			Help: "Submission field errors by code",
		},
		[]string{"code"},
	)
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Validated submissions by outcome",
		},
		[]string{"outcome"},
	)
	PublishedForms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "form_published_total",
			Help: "Number of published forms",
		},
	)
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_cache_hits_total",
			Help: "Published form cache hits",
		},
	)
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_cache_misses_total",
			Help: "Published form cache misses",
		},
	)
	AuditErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_audit_errors_total",
			Help: "Revision write errors",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequests,
		APILatency,
		FormSaves,
		StatusChanges,
		ValidationFailures,
		Submissions,
		PublishedForms,
		CacheHits,
		CacheMisses,
		AuditErrors,
	)
}

// PublishedCounter is implemented by stores able to count published forms.
type PublishedCounter interface {
	CountPublished(ctx context.Context) (int, error)
}

// RefreshPublished sets the published gauge from the store once.
func RefreshPublished(ctx context.Context, repo PublishedCounter) error {
	n, err := repo.CountPublished(ctx)
	if err != nil {
		return err
	}
	PublishedForms.Set(float64(n))
	return nil
}
