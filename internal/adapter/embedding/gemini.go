package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// embedContenter is the part of *genai.Models used for embeddings.
type embedContenter interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder embeds text with the Gemini API.
type GeminiEmbedder struct {
	models    embedContenter
	model     string
	dimension int
	batchSize int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension, batchSize int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the gemini embedding provider")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiEmbedder(client.Models, model, dimension, batchSize), nil
}

func newGeminiEmbedder(models embedContenter, model string, dimension, batchSize int) *GeminiEmbedder {
	if model == "" {
		model = "gemini-embedding-001"
	}
	if dimension <= 0 {
		dimension = 768
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &GeminiEmbedder{models: models, model: model, dimension: dimension, batchSize: batchSize}
}

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	dim := int32(e.dimension)

	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		contents := make([]*genai.Content, 0, end-i)
		for _, text := range texts[i:end] {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		resp, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &dim,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embed request failed: %w", err)
		}
		if resp == nil || len(resp.Embeddings) != len(contents) {
			return nil, fmt.Errorf("gemini returned an unexpected number of embeddings")
		}
		for j, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) != e.dimension {
				return nil, fmt.Errorf("gemini embedding %d has wrong dimension", i+j)
			}
			out = append(out, emb.Values)
		}
	}

	return out, nil
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

func (e *GeminiEmbedder) ModelName() string {
	return e.model
}
