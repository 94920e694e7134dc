package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	model     string
	dimension int
	batchSize int
	client    *resty.Client
	// sent as "dimensions" when the model supports shortened embeddings
	requestDimensions int
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type errorEnvelope struct {
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// StatusError is a non-2xx response from an HTTP provider.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Message)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Options configures an OpenAI-compatible embedder.
type Options struct {
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

func NewOpenAIEmbedder(opts Options) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the openai embedding provider")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "text-embedding-3-small"
	}
	e := newOpenAICompatible(opts)
	if opts.Dimension > 0 {
		e.requestDimensions = opts.Dimension
	}
	return e, nil
}

func NewOllamaEmbedder(opts Options) *OpenAIEmbedder {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434/v1"
	}
	if opts.APIKey == "" {
		opts.APIKey = "ollama"
	}
	if opts.Model == "" {
		opts.Model = "nomic-embed-text"
	}
	return newOpenAICompatible(opts)
}

func newOpenAICompatible(opts Options) *OpenAIEmbedder {
	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = defaultDimension(opts.Model)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(opts.APIKey)

	return &OpenAIEmbedder{
		model:     opts.Model,
		dimension: dimension,
		batchSize: opts.BatchSize,
		client:    client,
	}
}

func defaultDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	case "nomic-embed-text":
		return 768
	default:
		return 1536
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	allEmbeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var result embeddingResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(embeddingRequest{Input: texts, Model: e.model, Dimensions: e.requestDimensions}).
		SetResult(&result).
		SetError(&errorEnvelope{}).
		Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		msg := resp.String()
		if env, ok := resp.Error().(*errorEnvelope); ok && env.Error != nil {
			msg = env.Error.Message
		}
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode(), Message: msg}
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range result.Data {
		if data.Index >= 0 && data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, v := range embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("response is missing embedding %d of %d", i, len(texts))
		}
		if len(v) != e.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), e.dimension)
		}
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
