package usecase

import (
	"strings"

	"nhp/internal/adapter/analyzer"
	"nhp/internal/domain"
)

// PackPassages keeps passages in rank order until the token budget is spent. The best
// passage is always kept, truncated to the budget if it alone is too long.
// A budget of zero or less keeps everything.
func PackPassages(passages []domain.ScoredChunk, budget int, tok *analyzer.Tokenizer) []domain.ScoredChunk {
	if budget <= 0 || len(passages) == 0 {
		return passages
	}

	var (
		packed []domain.ScoredChunk
		used   int
	)
	for i, p := range passages {
		cost := tok.CountTokens(p.Chunk.Text)
		if used+cost <= budget {
			packed = append(packed, p)
			used += cost
			continue
		}
		if i == 0 {
			p.Chunk.Text = truncateWords(p.Chunk.Text, int(float64(budget)/1.3))
			packed = append(packed, p)
		}
		break
	}
	return packed
}

func truncateWords(text string, n int) string {
	if n <= 0 {
		n = 1
	}
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[:n], " ")
}
