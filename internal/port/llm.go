package port

import "context"

// Reasoner produces a structured completion constrained by a schema.
type Reasoner interface {
	// Complete returns the raw JSON text of the response.
	Complete(ctx context.Context, prompt string, schema *Schema) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}

type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
)

// Schema is a provider-neutral subset of JSON Schema for structured output.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
}
