package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	tests := []struct {
		name string
		err  error
	}{
		{"extraction", &ExtractionError{Reason: "corrupt", Err: cause}},
		{"embedding", &EmbeddingError{Attempts: 3, Err: cause}},
		{"reasoning", &ReasoningError{Attempts: 2, Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("failed to process: %w", tt.err)
			assert.ErrorIs(t, wrapped, cause)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestExtractionErrorAs(t *testing.T) {
	err := fmt.Errorf("file a.pdf: %w", &ExtractionError{Reason: "empty document"})

	var extErr *ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "empty document", extErr.Reason)
	assert.Equal(t, "extraction failed: empty document", extErr.Error())
}

func TestRegulatoryClassJSON(t *testing.T) {
	data, err := json.Marshal(ClassificationResult{RegulatoryClass: ClassNone})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"regulatory_class":null`)

	data, err = json.Marshal(ClassificationResult{RegulatoryClass: Class2})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"regulatory_class":2`)

	var c RegulatoryClass
	require.NoError(t, json.Unmarshal([]byte("null"), &c))
	assert.Equal(t, ClassNone, c)
	assert.False(t, c.Valid())
}

func TestIngredientQuery(t *testing.T) {
	assert.Equal(t, "Vitamin C 500mg", Ingredient{Name: "Vitamin C", DeclaredAmount: "500mg"}.Query())
	assert.Equal(t, "Zinc", Ingredient{Name: "Zinc"}.Query())
}
