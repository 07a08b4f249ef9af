// Package metrics exposes Prometheus collectors for provider calls, chapter
// and image generation and exports. Collectors live on a private registry
// served by Handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookforge/internal/services"
)

const namespace = "bookforge"

var (
	registry = prometheus.NewRegistry()

	providerRequests = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider calls partitioned by provider kind, provider name and outcome.",
		},
		[]string{"kind", "provider", "outcome"},
	)
	providerDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of provider calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind", "provider"},
	)
	chaptersGenerated = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chapters_generated_total",
			Help:      "Chapter generation attempts by outcome.",
		},
		[]string{"outcome"},
	)
	imagesStored = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_stored_total",
			Help:      "Chapter images stored, by source.",
		},
		[]string{"source"},
	)
	exports = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Book exports by format, outcome and cache use.",
		},
		[]string{"format", "outcome", "cached"},
	)
	exportDuration = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Time spent rendering an export.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"format"},
	)
	laneActive = promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_lane_active",
			Help:      "1 while the background lane is generating a book.",
		},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Outcome maps an error to a short label value.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	return services.Kind(err)
}

// ObserveProvider records one provider call.
func ObserveProvider(kind, provider string, started time.Time, err error) {
	providerRequests.WithLabelValues(kind, provider, Outcome(err)).Inc()
	providerDuration.WithLabelValues(kind, provider).Observe(time.Since(started).Seconds())
}

// ChapterGenerated records a chapter generation attempt.
func ChapterGenerated(err error) {
	chaptersGenerated.WithLabelValues(Outcome(err)).Inc()
}

// ImageStored records a stored chapter image.
func ImageStored(source string) {
	imagesStored.WithLabelValues(source).Inc()
}

// ExportDone records a finished export.
func ExportDone(format string, cached bool, started time.Time, err error) {
	cachedLabel := "false"
	if cached {
		cachedLabel = "true"
	}
	exports.WithLabelValues(format, Outcome(err), cachedLabel).Inc()
	if !cached {
		exportDuration.WithLabelValues(format).Observe(time.Since(started).Seconds())
	}
}

// SetLaneActive flags whether the generation lane is busy.
func SetLaneActive(active bool) {
	if active {
		laneActive.Set(1)
		return
	}
	laneActive.Set(0)
}

// Gatherer exposes the registry for tests and custom exporters.
func Gatherer() prometheus.Gatherer {
	return registry
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
