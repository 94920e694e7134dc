package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nhp/internal/adapter/cache"
	"nhp/internal/adapter/chunker"
	"nhp/internal/adapter/embedding"
	"nhp/internal/adapter/label"
	"nhp/internal/adapter/memstore"
	"nhp/internal/domain"
	"nhp/internal/logger"
	"nhp/internal/port"
)

const (
	vitaminCMonograph  = "Vitamin C (Ascorbic Acid): antioxidant, water-soluble vitamin."
	zincMonograph      = "Zinc gluconate: essential trace mineral that helps maintain immune function."
	echinaceaMonograph = "Echinacea purpurea: herb traditionally used in herbal medicine to help relieve symptoms of upper respiratory tract infections."

	class1Response = `{"regulatory_class": 1, "confidence_score": 0.92, "reasoning": "The context is the monograph for this ingredient.", "safety_notes": ""}`
)

// textExtractor treats the document bytes as already extracted text.
type textExtractor struct{}

func (textExtractor) Extract(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &domain.ExtractionError{Reason: "empty document"}
	}
	if string(data) == "corrupt" {
		return "", &domain.ExtractionError{Reason: "unreadable PDF", Err: errors.New("xref table not found")}
	}
	return string(data), nil
}

type stubReasoner struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     atomic.Int32
	prompts   []string
}

func (r *stubReasoner) Complete(_ context.Context, prompt string, _ *port.Schema) (string, error) {
	n := int(r.calls.Add(1))
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	if n > len(r.responses) {
		return r.responses[len(r.responses)-1], nil
	}
	return r.responses[n-1], nil
}

func (r *stubReasoner) ModelName() string { return "stub" }

// blockingReasoner waits for its context to end.
type blockingReasoner struct{}

func (blockingReasoner) Complete(ctx context.Context, _ string, _ *port.Schema) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingReasoner) ModelName() string { return "blocking" }

type failingEmbedder struct{ dim int }

func (e failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, &domain.EmbeddingError{Attempts: 3, Err: errors.New("connection refused")}
}

func (e failingEmbedder) Dimension() int    { return e.dim }
func (e failingEmbedder) ModelName() string { return "failing" }

func testContext() context.Context {
	return logger.ContextWithLogger(context.Background(), logger.NewLogger(logger.TestConfig()))
}

func testClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		TopK:               3,
		MinSimilarity:      0.25,
		FallbackConfidence: 0.1,
		MaxAttempts:        3,
		Timeout:            time.Second,
		BackoffBase:        time.Millisecond,
		ContextTokens:      1500,
	}
}

type harness struct {
	store    *memstore.MemoryStore
	embedder port.Embedder
	ingestor *MonographIngestor
	queue    *IngestQueue
	state    *KnowledgeBaseState
	reasoner *stubReasoner
	cache    *cache.MemoryCache
	service  *Service
}

// newHarness wires the service over in-memory adapters. The queue worker is started
// unless start is false.
func newHarness(t *testing.T, start bool) *harness {
	t.Helper()

	h := &harness{
		store:    memstore.NewMemoryStore(),
		embedder: embedding.NewHashEmbedder(512),
		state:    NewKnowledgeBaseState(),
		reasoner: &stubReasoner{responses: []string{class1Response}},
		cache:    cache.NewMemoryCache(64, time.Hour),
	}
	h.ingestor = NewMonographIngestor(h.store, h.embedder, chunker.NewWordChunker(50, 0.1))
	h.queue = NewIngestQueue(8, textExtractor{}, h.ingestor, h.store, h.state, nil)

	classifier := NewRetrievalClassifier(h.embedder, h.store, h.reasoner, h.cache, nil, testClassifierConfig())
	analyzer := NewAnalyzeUseCase(textExtractor{}, label.NewExtractor(false), classifier, NewResultAggregator(0.7), 2, 4)
	h.service = NewService(h.store, h.queue, h.state, analyzer, h.cache)

	if start {
		h.queue.Start(testContext())
	}
	t.Cleanup(h.queue.Close)
	return h
}

func (h *harness) upload(t *testing.T, files ...domain.UploadedFile) {
	t.Helper()
	ctx := testContext()
	_, err := h.service.UploadMonographs(ctx, files)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, h.service.WaitForIngestion(waitCtx))
}

func pdfFile(name, text string) domain.UploadedFile {
	return domain.UploadedFile{Name: name, Data: []byte(text)}
}
