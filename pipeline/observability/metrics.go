// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the course pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// STAGE METRICS
// =============================================================================

var (
	stageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursepipeline_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"stage", "status"}, // status: success, error, forwarded
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursepipeline_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
)

// =============================================================================
// GENERATION METRICS
// =============================================================================

var (
	generationCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursepipeline_generation_calls_total",
			Help: "Total number of text generation calls",
		},
		[]string{"agent", "status"}, // status: success, error
	)

	generationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursepipeline_generation_duration_seconds",
			Help:    "Text generation call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)
)

// =============================================================================
// QUEUE AND SINK METRICS
// =============================================================================

var (
	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coursepipeline_queue_depth",
			Help: "Number of pending messages per queue",
		},
		[]string{"queue"},
	)

	sectionsRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursepipeline_sections_rendered_total",
			Help: "Total sections written to the output document",
		},
		[]string{"status"}, // status: success, error
	)

	bootstrapItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coursepipeline_bootstrap_items_total",
			Help: "Total work items seeded by the bootstrap gate",
		},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordStageExecution records stage execution metrics.
// This should be called after stage processing completes.
func RecordStageExecution(stage string, status string, duration time.Duration) {
	stageExecutionsTotal.WithLabelValues(stage, status).Inc()
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordGenerationCall records generation call metrics.
// This should be called after a generation call completes.
func RecordGenerationCall(agent string, status string, duration time.Duration) {
	generationCallsTotal.WithLabelValues(agent, status).Inc()
	generationDurationSeconds.WithLabelValues(agent).Observe(duration.Seconds())
}

// SetQueueDepth updates the pending-message gauge for a queue.
func SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordSectionRendered records a terminal sink write.
func RecordSectionRendered(status string) {
	sectionsRenderedTotal.WithLabelValues(status).Inc()
}

// RecordBootstrapItems records the number of items seeded at bootstrap.
func RecordBootstrapItems(count int) {
	bootstrapItemsTotal.Add(float64(count))
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
