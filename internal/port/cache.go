package port

import (
	"context"

	"nhp/internal/domain"
)

// ClassificationCache stores reasoned classifications keyed by ingredient.
type ClassificationCache interface {
	Get(ctx context.Context, key string) (domain.ClassificationResult, bool)
	Put(ctx context.Context, key string, result domain.ClassificationResult)
	Clear(ctx context.Context) error
}
