package port

import (
	"context"

	"nhp/internal/domain"
)

// TextExtractor converts document bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// IngredientExtractor parses product label text into ingredient entries.
type IngredientExtractor interface {
	Extract(text string) []domain.Ingredient
}
