package usecase

import "nhp/internal/domain"

// ResultAggregator turns per-ingredient results into a product report.
type ResultAggregator struct {
	highConfidence float64
}

func NewResultAggregator(highConfidence float64) *ResultAggregator {
	return &ResultAggregator{highConfidence: highConfidence}
}

// Aggregate splits results by section, keeping their order, and computes the summary.
// Class distribution counts medicinal ingredients only.
func (a *ResultAggregator) Aggregate(filename string, results []domain.ClassificationResult) domain.AnalysisReport {
	report := domain.AnalysisReport{
		Filename:                filename,
		MedicinalIngredients:    []domain.ClassificationResult{},
		NonMedicinalIngredients: []domain.ClassificationResult{},
	}

	for _, r := range results {
		if r.ConfidenceScore > a.highConfidence {
			report.Summary.HighConfidenceCount++
		}
		if r.Ingredient.Section == domain.SectionNonMedicinal {
			report.NonMedicinalIngredients = append(report.NonMedicinalIngredients, r)
			continue
		}
		report.MedicinalIngredients = append(report.MedicinalIngredients, r)
		switch r.RegulatoryClass {
		case domain.Class1:
			report.Summary.ClassDistribution.Class1++
		case domain.Class2:
			report.Summary.ClassDistribution.Class2++
		case domain.Class3:
			report.Summary.ClassDistribution.Class3++
		}
	}

	report.Summary.MedicinalCount = len(report.MedicinalIngredients)
	report.Summary.NonMedicinalCount = len(report.NonMedicinalIngredients)
	report.Summary.TotalIngredients = report.Summary.MedicinalCount + report.Summary.NonMedicinalCount
	return report
}
