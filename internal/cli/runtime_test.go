package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhp/config"
	"nhp/internal/adapter/cache"
	"nhp/internal/domain"
	"nhp/internal/logger"
)

func testContext() context.Context {
	return logger.ContextWithLogger(context.Background(), logger.NewLogger(logger.TestConfig()))
}

func offlineConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Reasoning.Provider = "none"
	cfg.Extract.OCREnabled = false
	return cfg
}

func TestBuildReasonerMissingKey(t *testing.T) {
	t.Setenv("NHP_TEST_MISSING_KEY", "")

	r, err := buildReasoner(context.Background(), config.ReasoningConfig{
		Provider:  "gemini",
		APIKeyEnv: "NHP_TEST_MISSING_KEY",
	})
	assert.Nil(t, r)

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "NHP_TEST_MISSING_KEY", cfgErr.Setting)
}

func TestBuildReasonerNone(t *testing.T) {
	r, err := buildReasoner(context.Background(), config.ReasoningConfig{Provider: "none"})
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestBuildEmbedderHash(t *testing.T) {
	cfg := config.DefaultConfig().Embedding
	cfg.Dimension = 256

	e, err := buildEmbedder(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 256, e.Dimension())
	assert.Equal(t, "hash-256", e.ModelName())

	vecs, err := e.Embed(context.Background(), []string{"vitamin c"})
	require.NoError(t, err)
	assert.Len(t, vecs[0], 256)
}

func TestBuildCacheBackends(t *testing.T) {
	c, err := buildCache(context.Background(), config.CacheConfig{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, cache.Nop{}, c)

	c, err = buildCache(context.Background(), config.CacheConfig{Backend: "memory", Size: 8})
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)
}

func TestOpenRuntimeEmptyKnowledgeBase(t *testing.T) {
	ctx := testContext()

	rt, err := openRuntime(ctx, offlineConfig(), t.TempDir(), true)
	require.NoError(t, err)
	defer rt.Close()

	status := rt.service.KnowledgeBaseStatus(ctx)
	assert.False(t, status.Ready)
	assert.Equal(t, 0, status.DocumentsLoaded)

	_, err = rt.service.Analyze(ctx, []domain.UploadedFile{{Name: "label.pdf", Data: []byte("%PDF-1.4")}})
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestOpenRuntimeRejectsOtherEmbeddingModel(t *testing.T) {
	ctx := testContext()
	dir := t.TempDir()

	cfg := offlineConfig()
	cfg.Embedding.Dimension = 8
	rt, err := openRuntime(ctx, cfg, dir, true)
	require.NoError(t, err)
	require.NoError(t, rt.store.Upsert(ctx, domain.ChunkBatch{
		Source: "vitamin-c.pdf",
		Chunks: []domain.MonographChunk{{ID: "a", Text: "Vitamin C", Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0}}},
	}))
	rt.Close()

	cfg.Embedding.Dimension = 16
	_, err = openRuntime(ctx, cfg, dir, true)
	assert.ErrorIs(t, err, domain.ErrEmbeddingMismatch)

	// Reset must still be possible
	rt, err = openRuntime(ctx, cfg, dir, false)
	require.NoError(t, err)
	defer rt.Close()
	require.NoError(t, rt.service.ResetKnowledgeBase(ctx))
	assert.Equal(t, 0, rt.service.KnowledgeBaseStatus(ctx).DocumentsLoaded)
}

func TestOpenRuntimeWarnsWithoutReasoningKey(t *testing.T) {
	t.Setenv("NHP_TEST_GEMINI_KEY", "")
	cfg := offlineConfig()
	cfg.Reasoning.Provider = "gemini"
	cfg.Reasoning.APIKeyEnv = "NHP_TEST_GEMINI_KEY"

	rt, err := openRuntime(testContext(), cfg, t.TempDir(), true)
	require.NoError(t, err)
	defer rt.Close()

	require.Len(t, rt.service.ConfigWarnings(), 1)
	assert.Contains(t, rt.service.ConfigWarnings()[0].Error(), "NHP_TEST_GEMINI_KEY")
}

func TestWriteReportsText(t *testing.T) {
	reports := []domain.AnalysisReport{
		{
			Filename: "label.pdf",
			MedicinalIngredients: []domain.ClassificationResult{{
				Ingredient:      domain.Ingredient{Name: "Vitamin C", DeclaredAmount: "500 mg", Section: domain.SectionMedicinal},
				RegulatoryClass: domain.Class1,
				ConfidenceScore: 0.92,
				MonographFound:  true,
			}},
			NonMedicinalIngredients: []domain.ClassificationResult{{
				Ingredient: domain.Ingredient{Name: "Purified Water", Section: domain.SectionNonMedicinal},
			}},
			Summary: domain.Summary{TotalIngredients: 2, MedicinalCount: 1, NonMedicinalCount: 1, HighConfidenceCount: 2,
				ClassDistribution: domain.ClassDistribution{Class1: 1}},
		},
		{Filename: "empty.pdf", Error: "Could not read the document: empty document."},
	}

	var buf bytes.Buffer
	writeReportsText(&buf, reports)
	out := buf.String()

	assert.Contains(t, out, "Vitamin C (500 mg)")
	assert.Contains(t, out, "Class 1  0.92  monograph")
	assert.Contains(t, out, "Purified Water")
	assert.Contains(t, out, "Class 1: 1  Class 2: 0  Class 3: 0")
	assert.Contains(t, out, "Error: Could not read the document: empty document.")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0ms", formatDuration(0))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
}
