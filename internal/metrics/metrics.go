package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nhp"

// Capability names used as the "capability" label of external call metrics.
const (
	CapabilityEmbedding = "embedding"
	CapabilityReasoning = "reasoning"
	CapabilityOCR       = "ocr"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry        *prom.Registry
	ingestJobs      *prom.CounterVec
	ingestedChunks  prom.Counter
	classifications *prom.CounterVec
	externalCalls   *prom.HistogramVec
	queueDepth      prom.Gauge
}

func New() *Metrics {
	reg := prom.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ingestJobs: factory.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_jobs_total",
			Help:      "Monograph ingestion jobs by final status.",
		}, []string{"status"}),
		ingestedChunks: factory.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Monograph chunks written to the knowledge base.",
		}),
		classifications: factory.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Ingredient classifications by regulatory class and outcome.",
		}, []string{"class", "degraded"}),
		externalCalls: factory.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Duration of OCR, embedding and reasoning calls.",
			Buckets:   prom.ExponentialBuckets(0.01, 2, 14),
		}, []string{"capability", "outcome"}),
		queueDepth: factory.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_queue_depth",
			Help:      "Ingestion jobs waiting for the worker.",
		}),
	}
}

func (m *Metrics) IngestJob(status string, chunks int) {
	if m == nil {
		return
	}
	m.ingestJobs.WithLabelValues(status).Inc()
	if chunks > 0 {
		m.ingestedChunks.Add(float64(chunks))
	}
}

func (m *Metrics) Classification(class int, degraded bool) {
	if m == nil {
		return
	}
	label := "none"
	if class > 0 {
		label = strconv.Itoa(class)
	}
	m.classifications.WithLabelValues(label, strconv.FormatBool(degraded)).Inc()
}

// ObserveCall records one external call that started at start and ended with err.
func (m *Metrics) ObserveCall(capability string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.externalCalls.WithLabelValues(capability, outcome(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prom.Registry {
	return m.registry
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
