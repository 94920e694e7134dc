package usecase

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"nhp/internal/domain"
	"nhp/internal/logger"
	"nhp/internal/port"
)

// AnalyzeUseCase classifies the ingredients of product documents.
type AnalyzeUseCase struct {
	extractor   port.TextExtractor
	ingredients port.IngredientExtractor
	classifier  port.Classifier
	aggregator  *ResultAggregator

	fileConcurrency       int
	ingredientConcurrency int
}

func NewAnalyzeUseCase(
	extractor port.TextExtractor,
	ingredients port.IngredientExtractor,
	classifier port.Classifier,
	aggregator *ResultAggregator,
	fileConcurrency, ingredientConcurrency int,
) *AnalyzeUseCase {
	if fileConcurrency <= 0 {
		fileConcurrency = 1
	}
	if ingredientConcurrency <= 0 {
		ingredientConcurrency = 1
	}
	return &AnalyzeUseCase{
		extractor:             extractor,
		ingredients:           ingredients,
		classifier:            classifier,
		aggregator:            aggregator,
		fileConcurrency:       fileConcurrency,
		ingredientConcurrency: ingredientConcurrency,
	}
}

// Analyze returns one report per file in submission order. A failing file gets a report
// with Error set; it never affects its siblings.
func (u *AnalyzeUseCase) Analyze(ctx context.Context, files []domain.UploadedFile) ([]domain.AnalysisReport, error) {
	if len(files) == 0 {
		return nil, domain.ErrNoFiles
	}

	reports := make([]domain.AnalysisReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.fileConcurrency)

	for i, f := range files {
		g.Go(func() error {
			reports[i] = u.analyzeFile(gctx, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (u *AnalyzeUseCase) analyzeFile(ctx context.Context, f domain.UploadedFile) domain.AnalysisReport {
	log := logger.FromContext(ctx).With("file", f.Name)

	text, err := u.extractor.Extract(ctx, f.Data)
	if err != nil {
		log.Warn("product document could not be read", "error", err)
		report := u.aggregator.Aggregate(f.Name, nil)
		report.Error = documentError(err)
		return report
	}

	ings := u.ingredients.Extract(text)
	log.Info("ingredients extracted", "count", len(ings))

	results := make([]domain.ClassificationResult, len(ings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.ingredientConcurrency)
	for i, ing := range ings {
		g.Go(func() error {
			results[i] = u.classifier.Classify(gctx, ing)
			return nil
		})
	}
	_ = g.Wait()

	return u.aggregator.Aggregate(f.Name, results)
}

func documentError(err error) string {
	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) {
		return "Could not read the document: " + extErr.Reason + "."
	}
	return "Could not read the document: " + err.Error()
}
