package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Ingest.ChunkWords != 500 {
		t.Errorf("expected ChunkWords=500, got %d", cfg.Ingest.ChunkWords)
	}
	if cfg.Ingest.Overlap != 0.1 {
		t.Errorf("expected Overlap=0.1, got %f", cfg.Ingest.Overlap)
	}
	if cfg.Extract.MinPageChars != 150 {
		t.Errorf("expected MinPageChars=150, got %d", cfg.Extract.MinPageChars)
	}
	if cfg.Extract.OCRDPI != 300 {
		t.Errorf("expected OCRDPI=300, got %d", cfg.Extract.OCRDPI)
	}
	if cfg.Retrieve.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Classify.HighConfidence != 0.7 {
		t.Errorf("expected HighConfidence=0.7, got %f", cfg.Classify.HighConfidence)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nhp.yaml")

	content := `
ingest:
  chunk_words: 200
extract:
  ocr_enabled: false
  timeout: 30s
retrieve:
  top_k: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ingest.ChunkWords != 200 {
		t.Errorf("expected ChunkWords=200, got %d", cfg.Ingest.ChunkWords)
	}
	if cfg.Extract.OCREnabled {
		t.Errorf("expected OCREnabled=false")
	}
	if cfg.Extract.Timeout != 30*time.Second {
		t.Errorf("expected Timeout=30s, got %s", cfg.Extract.Timeout)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	// untouched sections keep their defaults
	if cfg.Ingest.QueueSize != 32 {
		t.Errorf("expected QueueSize=32, got %d", cfg.Ingest.QueueSize)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown embedding provider", "embedding:\n  provider: voyage\n"},
		{"overlap out of range", "ingest:\n  overlap: 1.5\n"},
		{"zero top k", "retrieve:\n  top_k: 0\n"},
		{"redis without address", "cache:\n  backend: redis\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nhp.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".nhp", "config.yaml")

	content := `
classify:
  high_confidence: 0.8
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Classify.HighConfidence != 0.8 {
		t.Errorf("expected HighConfidence=0.8, got %f", cfg.Classify.HighConfidence)
	}
}

func TestSaveRoundTripKeepsDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nhp.yaml")
	cfg := DefaultConfig()
	cfg.Reasoning.Timeout = 15 * time.Second

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Reasoning.Timeout != 15*time.Second {
		t.Errorf("expected 15s, got %s", loaded.Reasoning.Timeout)
	}
}

func TestDBPath(t *testing.T) {
	cfg := DefaultConfig()
	path := cfg.DBPath("/home/user/project")
	expected := filepath.Join("/home/user/project", ".nhp", "knowledge.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Store.Path = "/var/lib/nhp/kb.db"
	if got := cfg.DBPath("/home/user/project"); got != "/var/lib/nhp/kb.db" {
		t.Errorf("expected absolute path to win, got %s", got)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NHP_TEST_GEMINI_KEY=abc123\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("NHP_TEST_GEMINI_KEY") })

	if err := LoadEnv(dir); err != nil {
		t.Fatal(err)
	}
	r := ReasoningConfig{APIKeyEnv: "NHP_TEST_GEMINI_KEY"}
	if r.APIKey() != "abc123" {
		t.Errorf("expected key from .env, got %q", r.APIKey())
	}

	if err := LoadEnv(t.TempDir()); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}
