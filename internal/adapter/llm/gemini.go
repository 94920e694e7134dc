package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"nhp/internal/port"
)

// contentGenerator is the part of *genai.Models used for completions.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiReasoner requests schema-constrained JSON from the Gemini API.
type GeminiReasoner struct {
	models      contentGenerator
	model       string
	temperature float32
}

func NewGeminiReasoner(ctx context.Context, apiKey, model string, temperature float32) (*GeminiReasoner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for the gemini reasoning provider")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGeminiReasoner(client.Models, model, temperature), nil
}

func newGeminiReasoner(models contentGenerator, model string, temperature float32) *GeminiReasoner {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiReasoner{models: models, model: model, temperature: temperature}
}

func (r *GeminiReasoner) Complete(ctx context.Context, prompt string, schema *port.Schema) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(r.temperature),
	}
	if schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenaiSchema(schema)
	}

	resp, err := r.models.GenerateContent(ctx, r.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate request failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}

func (r *GeminiReasoner) ModelName() string {
	return r.model
}

func toGenaiSchema(s *port.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
	}
	switch s.Type {
	case port.TypeObject:
		out.Type = genai.TypeObject
	case port.TypeInteger:
		out.Type = genai.TypeInteger
	case port.TypeNumber:
		out.Type = genai.TypeNumber
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toGenaiSchema(p)
		}
		// keep field order stable in the generated JSON
		out.PropertyOrdering = append([]string(nil), s.Required...)
	}
	return out
}
