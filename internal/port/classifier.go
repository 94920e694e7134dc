package port

import (
	"context"

	"nhp/internal/domain"
)

// Classifier decides the regulatory classification of one ingredient. It never fails;
// problems are reported as degraded results.
type Classifier interface {
	Classify(ctx context.Context, ingredient domain.Ingredient) domain.ClassificationResult
}
