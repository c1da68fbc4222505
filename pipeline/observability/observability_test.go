package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// METRICS TESTS
// =============================================================================

func TestRecordStageExecution(t *testing.T) {
	tests := []struct {
		name     string
		stage    string
		status   string
		duration time.Duration
	}{
		{"successful stage", "planner", "success", time.Second},
		{"failed stage", "writer", "error", 500 * time.Millisecond},
		{"forwarded stage", "critic", "forwarded", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordStageExecution(tt.stage, tt.status, tt.duration)

			count := testutil.ToFloat64(stageExecutionsTotal.WithLabelValues(tt.stage, tt.status))
			assert.Greater(t, count, 0.0)
		})
	}
}

func TestRecordGenerationCall(t *testing.T) {
	RecordGenerationCall("writer", "success", 2*time.Second)
	RecordGenerationCall("writer", "error", 100*time.Millisecond)

	success := testutil.ToFloat64(generationCallsTotal.WithLabelValues("writer", "success"))
	failure := testutil.ToFloat64(generationCallsTotal.WithLabelValues("writer", "error"))
	assert.Greater(t, success, 0.0)
	assert.Greater(t, failure, 0.0)
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth("planning", 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(queueDepth.WithLabelValues("planning")))

	SetQueueDepth("planning", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(queueDepth.WithLabelValues("planning")))
}

func TestRecordSectionRenderedAndBootstrapItems(t *testing.T) {
	before := testutil.ToFloat64(bootstrapItemsTotal)

	RecordSectionRendered("success")
	RecordBootstrapItems(3)

	assert.Greater(t, testutil.ToFloat64(sectionsRenderedTotal.WithLabelValues("success")), 0.0)
	assert.Equal(t, before+3, testutil.ToFloat64(bootstrapItemsTotal))
}

func TestMetrics_Concurrent(t *testing.T) {
	const goroutines = 10
	const iterations = 100

	done := make(chan bool, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < iterations; j++ {
				RecordStageExecution("concurrent-stage", "success", 50*time.Millisecond)
				RecordGenerationCall("concurrent-agent", "success", time.Second)
			}
			done <- true
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}

	count := testutil.ToFloat64(stageExecutionsTotal.WithLabelValues("concurrent-stage", "success"))
	assert.Equal(t, float64(goroutines*iterations), count)
}

func TestMetricsHandler(t *testing.T) {
	assert.NotNil(t, MetricsHandler())
}

// =============================================================================
// TRACING TESTS
// =============================================================================

func TestInitTracer_InvalidEndpoint(t *testing.T) {
	shutdown, err := InitTracer("test-service", "")

	require.Error(t, err)
	assert.Nil(t, shutdown)
	assert.Contains(t, err.Error(), "failed to create trace exporter")
}

func TestStartStageSpan(t *testing.T) {
	ctx, span := StartStageSpan(context.Background(), "writer", "planning", "corr-1")
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()
}
