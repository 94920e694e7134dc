package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"nhp/internal/port"
)

// OpenAIReasoner calls an OpenAI-compatible /chat/completions endpoint with a JSON schema
// response format.
type OpenAIReasoner struct {
	model       string
	temperature float32
	client      *resty.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string       `json:"name"`
	Schema *port.Schema `json:"schema"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StatusError is a non-2xx response from the completion endpoint.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

func NewOpenAIReasoner(opts Options) (*OpenAIReasoner, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the openai reasoning provider")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
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

	return &OpenAIReasoner{model: opts.Model, temperature: opts.Temperature, client: client}, nil
}

func (r *OpenAIReasoner) Complete(ctx context.Context, prompt string, schema *port.Schema) (string, error) {
	req := chatRequest{
		Model:       r.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: r.temperature,
	}
	if schema != nil {
		req.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: "classification", Schema: schema},
		}
	}

	var result chatResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&errorEnvelope{}).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		msg := resp.String()
		if env, ok := resp.Error().(*errorEnvelope); ok && env.Error != nil {
			msg = env.Error.Message
		}
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return "", &StatusError{Code: resp.StatusCode(), Message: msg}
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("completion response has no content")
	}
	return result.Choices[0].Message.Content, nil
}

func (r *OpenAIReasoner) ModelName() string {
	return r.model
}
