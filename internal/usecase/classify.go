package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-retry"

	"nhp/internal/adapter/analyzer"
	"nhp/internal/adapter/cache"
	"nhp/internal/domain"
	"nhp/internal/logger"
	"nhp/internal/metrics"
	"nhp/internal/port"
)

const (
	nonMedicinalConfidence = 0.95
	nonMedicinalReasoning  = "Non-medicinal ingredient; no regulatory classification required."
	noContextMessage       = "No specific monograph information was found."
)

// ClassifierConfig tunes retrieval and reasoning for RetrievalClassifier.
type ClassifierConfig struct {
	TopK               int
	MinSimilarity      float64
	FallbackConfidence float64
	MaxAttempts        uint64
	Timeout            time.Duration
	BackoffBase        time.Duration
	// ContextTokens bounds the monograph text placed in the prompt; zero means unbounded.
	ContextTokens int
}

// RetrievalClassifier grounds each medicinal ingredient in retrieved monograph text and asks
// the reasoner for a regulatory class.
type RetrievalClassifier struct {
	embedder  port.Embedder
	store     port.KnowledgeStore
	reasoner  port.Reasoner
	cache     port.ClassificationCache
	metrics   *metrics.Metrics
	cfg       ClassifierConfig
	validate  *validator.Validate
	tokenizer *analyzer.Tokenizer
}

// NewRetrievalClassifier creates a classifier. A nil reasoner disables reasoning and every
// medicinal ingredient receives the fallback class.
func NewRetrievalClassifier(
	embedder port.Embedder,
	store port.KnowledgeStore,
	reasoner port.Reasoner,
	resultCache port.ClassificationCache,
	m *metrics.Metrics,
	cfg ClassifierConfig,
) *RetrievalClassifier {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if resultCache == nil {
		resultCache = cache.Nop{}
	}
	return &RetrievalClassifier{
		embedder:  embedder,
		store:     store,
		reasoner:  reasoner,
		cache:     resultCache,
		metrics:   m,
		cfg:       cfg,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		tokenizer: analyzer.NewTokenizer(1, false),
	}
}

// reasonerOutput is the structured answer requested from the reasoner.
type reasonerOutput struct {
	RegulatoryClass *int     `json:"regulatory_class" validate:"required,gte=1,lte=3"`
	ConfidenceScore *float64 `json:"confidence_score" validate:"required,gte=0,lte=1"`
	Reasoning       string   `json:"reasoning" validate:"required"`
	SafetyNotes     string   `json:"safety_notes"`
}

func classificationSchema() *port.Schema {
	classLo, classHi, confLo, confHi := 1.0, 3.0, 0.0, 1.0
	return &port.Schema{
		Type: port.TypeObject,
		Properties: map[string]*port.Schema{
			"regulatory_class": {
				Type:        port.TypeInteger,
				Description: "1, 2 or 3 as defined in the task",
				Minimum:     &classLo,
				Maximum:     &classHi,
			},
			"confidence_score": {
				Type:        port.TypeNumber,
				Description: "confidence in the classification between 0.0 and 1.0",
				Minimum:     &confLo,
				Maximum:     &confHi,
			},
			"reasoning": {
				Type:        port.TypeString,
				Description: "why the context does or does not support the ingredient",
			},
			"safety_notes": {
				Type:        port.TypeString,
				Description: "cautions or interactions stated in the context, empty if none",
			},
		},
		Required: []string{"regulatory_class", "confidence_score", "reasoning", "safety_notes"},
	}
}

// Classify never fails. Any unavailable capability yields a degraded Class 3 result.
func (c *RetrievalClassifier) Classify(ctx context.Context, ing domain.Ingredient) domain.ClassificationResult {
	result := c.classify(ctx, ing)
	result.ConfidenceScore = clamp01(result.ConfidenceScore)
	c.metrics.Classification(int(result.RegulatoryClass), result.Degraded)
	return result
}

func (c *RetrievalClassifier) classify(ctx context.Context, ing domain.Ingredient) domain.ClassificationResult {
	log := logger.FromContext(ctx).With("ingredient", ing.Name)

	if ing.Section == domain.SectionNonMedicinal {
		return domain.ClassificationResult{
			Ingredient:      ing,
			RegulatoryClass: domain.ClassNone,
			ConfidenceScore: nonMedicinalConfidence,
			Reasoning:       nonMedicinalReasoning,
		}
	}

	// Retrieve grounding context
	found, passages, err := c.Retrieve(ctx, ing)
	if err != nil {
		log.Warn("knowledge base search failed", "error", err)
		return c.fallback(ing, false, fmt.Sprintf("Knowledge base search failed (%v). Defaulting to Class 3 for manual review of '%s'.", err, ing.Name))
	}

	// Cached decisions keep their class but monograph_found reflects the current knowledge base
	key := cache.Key(ing)
	if cached, ok := c.cache.Get(ctx, key); ok {
		log.Debug("classification cache hit")
		cached.Ingredient = ing
		cached.MonographFound = found
		return cached
	}

	if c.reasoner == nil {
		return c.fallback(ing, found, fmt.Sprintf("AI reasoning is disabled because no reasoning credential is configured. Defaulting to Class 3 for manual review of '%s'.", ing.Name))
	}

	out, attempts, err := c.reason(ctx, ing, passages)
	if err != nil {
		log.Error("classification failed, using fallback", "attempts", attempts, "error", err)
		return c.fallback(ing, found, fmt.Sprintf("Automated classification failed after %d attempt(s) (%v). Defaulting to Class 3 for manual review of '%s'.", attempts, err, ing.Name))
	}

	result := domain.ClassificationResult{
		Ingredient:      ing,
		RegulatoryClass: domain.RegulatoryClass(*out.RegulatoryClass),
		ConfidenceScore: clamp01(*out.ConfidenceScore),
		MonographFound:  found,
		Reasoning:       out.Reasoning,
		SafetyNotes:     out.SafetyNotes,
	}
	c.cache.Put(ctx, key, result)
	return result
}

// Retrieve reports whether a monograph passage exceeded the similarity threshold and returns
// the passages that did, best first.
func (c *RetrievalClassifier) Retrieve(ctx context.Context, ing domain.Ingredient) (bool, []domain.ScoredChunk, error) {
	vectors, err := c.embedder.Embed(ctx, []string{ing.Query()})
	if err != nil {
		return false, nil, err
	}
	if len(vectors) != 1 {
		return false, nil, &domain.EmbeddingError{Attempts: 1, Err: fmt.Errorf("got %d embeddings for 1 query", len(vectors))}
	}

	hits, err := c.store.Query(ctx, vectors[0], c.cfg.TopK)
	if err != nil {
		return false, nil, err
	}

	var relevant []domain.ScoredChunk
	for _, h := range hits {
		if h.Similarity > c.cfg.MinSimilarity {
			relevant = append(relevant, h)
		}
	}
	return len(relevant) > 0, relevant, nil
}

func (c *RetrievalClassifier) reason(ctx context.Context, ing domain.Ingredient, passages []domain.ScoredChunk) (*reasonerOutput, int, error) {
	prompt := BuildPrompt(ing, PackPassages(passages, c.cfg.ContextTokens, c.tokenizer))
	schema := classificationSchema()
	backoff := retry.WithMaxRetries(c.cfg.MaxAttempts-1, retry.WithJitter(c.cfg.BackoffBase/4, retry.NewExponential(c.cfg.BackoffBase)))

	var (
		out      *reasonerOutput
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		callCtx := ctx
		if c.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}

		start := time.Now()
		raw, err := c.reasoner.Complete(callCtx, prompt, schema)
		c.metrics.ObserveCall(metrics.CapabilityReasoning, start, err)
		if err != nil {
			if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return retry.RetryableError(fmt.Errorf("%w after %s", domain.ErrTimeout, c.cfg.Timeout))
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			return retry.RetryableError(err)
		}

		parsed, err := c.parse(raw)
		if err != nil {
			return retry.RetryableError(err)
		}
		out = parsed
		return nil
	})
	if err != nil {
		return nil, attempts, &domain.ReasoningError{Attempts: attempts, Err: err}
	}
	return out, attempts, nil
}

// parse decodes a reasoner response, tolerating markdown code fences around the JSON.
func (c *RetrievalClassifier) parse(raw string) (*reasonerOutput, error) {
	var out reasonerOutput
	if err := json.Unmarshal([]byte(StripFences(raw)), &out); err != nil {
		return nil, fmt.Errorf("malformed structured output: %w", err)
	}
	if err := c.validate.Struct(&out); err != nil {
		return nil, fmt.Errorf("invalid structured output: %w", err)
	}
	out.Reasoning = strings.TrimSpace(out.Reasoning)
	if out.Reasoning == "" {
		return nil, fmt.Errorf("invalid structured output: empty reasoning")
	}
	return &out, nil
}

func (c *RetrievalClassifier) fallback(ing domain.Ingredient, found bool, reasoning string) domain.ClassificationResult {
	return domain.ClassificationResult{
		Ingredient:      ing,
		RegulatoryClass: domain.Class3,
		ConfidenceScore: c.cfg.FallbackConfidence,
		MonographFound:  found,
		Reasoning:       reasoning,
		Degraded:        true,
	}
}

// StripFences removes a surrounding ```json ... ``` block if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i > 0 && j > i {
			return s[i : j+1]
		}
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// BuildPrompt renders the regulatory analyst prompt for one ingredient.
func BuildPrompt(ing domain.Ingredient, passages []domain.ScoredChunk) string {
	var ctxText strings.Builder
	if len(passages) == 0 {
		ctxText.WriteString(noContextMessage + "\n")
	}
	for i, p := range passages {
		if i > 0 {
			ctxText.WriteString("\n")
		}
		fmt.Fprintf(&ctxText, "[%s #%d, similarity %.2f]\n%s\n", p.Chunk.Source, p.Chunk.SequenceIndex, p.Similarity, p.Chunk.Text)
	}

	amount := ing.DeclaredAmount
	if amount == "" {
		amount = "not stated"
	}

	return fmt.Sprintf(`You are a strict regulatory analyst. Your task is to classify a single medicinal ingredient based ONLY on the provided monograph context.

Ingredient Name: "%s"
Declared Amount: %s

Provided Monograph Context:
---
%s---

Task:
1. First, critically evaluate if the provided context is ACTUALLY about the ingredient in question.
2. If the context is irrelevant, state that clearly in your reasoning.
3. Provide a regulatory_class (1, 2 or 3) and a confidence_score (0.0-1.0).
   - Class 1: Context fully supports the ingredient.
   - Class 2: Context provides some support, but is not definitive.
   - Class 3: Context is irrelevant, does not support the ingredient, or is insufficient.
4. Put any cautions, contraindications or interactions stated in the context in safety_notes.

Respond ONLY with a single, valid JSON object.
Example for irrelevant context:
{"regulatory_class": 3, "confidence_score": 1.0, "reasoning": "The provided context is for 'L-Carnitine', not 'Acerola'. Therefore, no valid classification can be made.", "safety_notes": ""}
`, ing.Name, amount, ctxText.String())
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
