package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"nhp/internal/domain"
)

// WordChunker splits text into fixed-size word windows that overlap by a fraction of the window.
type WordChunker struct {
	windowWords  int
	overlapWords int
}

func NewWordChunker(windowWords int, overlap float64) *WordChunker {
	if windowWords <= 0 {
		windowWords = 500
	}
	overlapWords := int(float64(windowWords) * overlap)
	if overlapWords >= windowWords {
		overlapWords = windowWords - 1
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	return &WordChunker{
		windowWords:  windowWords,
		overlapWords: overlapWords,
	}
}

// Chunk returns the windows of text in order. SequenceIndex is the window position.
// Embeddings are left empty.
func (c *WordChunker) Chunk(source, text string) []domain.MonographChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.windowWords - c.overlapWords
	var chunks []domain.MonographChunk

	for start := 0; start < len(words); start += step {
		end := start + c.windowWords
		if end > len(words) {
			end = len(words)
		}

		windowText := strings.Join(words[start:end], " ")
		index := len(chunks)
		chunks = append(chunks, domain.MonographChunk{
			ID:            generateChunkID(source, index, windowText),
			Source:        source,
			Text:          windowText,
			SequenceIndex: index,
		})

		if end == len(words) {
			break
		}
	}

	return chunks
}

func generateChunkID(source string, index int, text string) string {
	data := fmt.Sprintf("%s:%d:%s", source, index, text)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
