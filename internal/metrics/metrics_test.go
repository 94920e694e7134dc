package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IngestJob("succeeded", 3)
	m.Classification(1, false)
	m.ObserveCall(CapabilityEmbedding, time.Now(), nil)
	m.SetQueueDepth(2)
}

func TestCounters(t *testing.T) {
	m := New()

	m.IngestJob("succeeded", 4)
	m.IngestJob("failed", 0)
	m.Classification(2, false)
	m.Classification(3, true)
	m.Classification(0, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestJobs.WithLabelValues("succeeded")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ingestedChunks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifications.WithLabelValues("3", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifications.WithLabelValues("none", "false")))
}

func TestObserveCallOutcomes(t *testing.T) {
	m := New()

	m.ObserveCall(CapabilityReasoning, time.Now(), nil)
	m.ObserveCall(CapabilityReasoning, time.Now(), fmt.Errorf("call: %w", context.DeadlineExceeded))
	m.ObserveCall(CapabilityReasoning, time.Now(), errors.New("boom"))

	assert.Equal(t, 3, testutil.CollectAndCount(m.externalCalls))
}

func TestHandler(t *testing.T) {
	m := New()
	m.IngestJob("succeeded", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "nhp_ingest_jobs_total")
}
