package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestWordChunkerBasic(t *testing.T) {
	chunker := NewWordChunker(10, 0.2)

	chunks := chunker.Chunk("vitamin_c.pdf", words(25))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if chunk.ID == "" {
			t.Error("chunk has empty ID")
		}
		if chunk.Source != "vitamin_c.pdf" {
			t.Errorf("expected Source 'vitamin_c.pdf', got '%s'", chunk.Source)
		}
		if chunk.SequenceIndex != i {
			t.Errorf("expected SequenceIndex %d, got %d", i, chunk.SequenceIndex)
		}
		if chunk.Text == "" {
			t.Error("chunk has empty text")
		}
	}
}

func TestWordChunkerOverlap(t *testing.T) {
	chunker := NewWordChunker(10, 0.2)

	chunks := chunker.Chunk("doc", words(25))

	for i := 0; i < len(chunks)-1; i++ {
		current := strings.Fields(chunks[i].Text)
		next := strings.Fields(chunks[i+1].Text)

		tail := current[len(current)-2:]
		if next[0] != tail[0] || next[1] != tail[1] {
			t.Errorf("chunk %d does not start with the last 2 words of chunk %d: %v vs %v", i+1, i, next[:2], tail)
		}
	}
}

func TestWordChunkerCoversEveryWord(t *testing.T) {
	chunker := NewWordChunker(7, 0.3)
	text := words(40)

	chunks := chunker.Chunk("doc", text)

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		for _, w := range strings.Fields(chunk.Text) {
			seen[w] = true
		}
	}
	for _, w := range strings.Fields(text) {
		if !seen[w] {
			t.Errorf("word %q not found in any chunk", w)
		}
	}
}

func TestWordChunkerEmptyContent(t *testing.T) {
	chunker := NewWordChunker(50, 0.1)

	if chunks := chunker.Chunk("doc", "  \n\t "); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for blank content, got %d", len(chunks))
	}
}

func TestWordChunkerShortText(t *testing.T) {
	chunker := NewWordChunker(500, 0.1)

	content := "Vitamin C (Ascorbic Acid): antioxidant,   water-soluble"
	chunks := chunker.Chunk("doc", content)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "Vitamin C (Ascorbic Acid): antioxidant, water-soluble" {
		t.Errorf("unexpected normalized text %q", chunks[0].Text)
	}
}

func TestWordChunkerFullOverlapClamped(t *testing.T) {
	chunker := NewWordChunker(4, 1.0)

	chunks := chunker.Chunk("doc", words(6))
	if len(chunks) != 3 {
		t.Errorf("expected step of one word to yield 3 chunks, got %d", len(chunks))
	}
}

func TestChunkIDUniqueness(t *testing.T) {
	chunker := NewWordChunker(3, 0)

	// identical windows at different positions must not collide
	chunks := chunker.Chunk("doc", "same same same same same same")

	ids := make(map[string]bool)
	for _, chunk := range chunks {
		if ids[chunk.ID] {
			t.Errorf("duplicate chunk ID: %s", chunk.ID)
		}
		ids[chunk.ID] = true
	}

	other := chunker.Chunk("other", "same same same")
	if ids[other[0].ID] {
		t.Error("chunk IDs must differ across sources")
	}
}
