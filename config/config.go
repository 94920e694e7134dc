package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the classifier.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Extract   ExtractConfig   `yaml:"extract"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Classify  ClassifyConfig  `yaml:"classify"`
	Cache     CacheConfig     `yaml:"cache"`
	Analyze   AnalyzeConfig   `yaml:"analyze"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// StoreConfig holds knowledge base storage configuration.
type StoreConfig struct {
	Path string `yaml:"path"` // empty means .nhp/knowledge.db under the working directory
}

// ExtractConfig holds document text extraction configuration.
type ExtractConfig struct {
	MinPageChars             int           `yaml:"min_page_chars" validate:"gte=0"`
	OCREnabled               bool          `yaml:"ocr_enabled"`
	OCRDPI                   int           `yaml:"ocr_dpi" validate:"gte=72,lte=1200"`
	OCRLang                  string        `yaml:"ocr_lang" validate:"required"`
	PdftoppmPath             string        `yaml:"pdftoppm_path"`
	TesseractPath            string        `yaml:"tesseract_path"`
	Timeout                  time.Duration `yaml:"timeout" validate:"gt=0"`
	SingleIngredientFallback bool          `yaml:"single_ingredient_fallback"`
}

// IngestConfig holds monograph ingestion configuration.
type IngestConfig struct {
	ChunkWords int     `yaml:"chunk_words" validate:"gt=0"`
	Overlap    float64 `yaml:"overlap" validate:"gte=0,lt=1"`
	QueueSize  int     `yaml:"queue_size" validate:"gt=0"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string        `yaml:"provider" validate:"oneof=hash openai ollama gemini"`
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	BaseURL     string        `yaml:"base_url"`
	Dimension   int           `yaml:"dimension" validate:"gte=0"`
	BatchSize   int           `yaml:"batch_size" validate:"gt=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxAttempts uint64        `yaml:"max_attempts" validate:"gte=1"`
	CacheSize   int           `yaml:"cache_size" validate:"gte=0"`
}

// ReasoningConfig holds generative reasoning configuration.
type ReasoningConfig struct {
	Provider    string        `yaml:"provider" validate:"oneof=gemini openai none"`
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxAttempts uint64        `yaml:"max_attempts" validate:"gte=1,lte=10"`
	Temperature float32       `yaml:"temperature" validate:"gte=0,lte=2"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK          int     `yaml:"top_k" validate:"gt=0"`
	MinSimilarity float64 `yaml:"min_similarity" validate:"gte=-1,lte=1"`
	ContextTokens int     `yaml:"context_tokens" validate:"gte=0"` // 0 means unbounded
}

// ClassifyConfig holds classification and reporting configuration.
type ClassifyConfig struct {
	HighConfidence     float64 `yaml:"high_confidence" validate:"gte=0,lte=1"`
	FallbackConfidence float64 `yaml:"fallback_confidence" validate:"gte=0,lte=1"`
	Concurrency        int     `yaml:"concurrency" validate:"gt=0"`
}

// CacheConfig holds classification cache configuration.
type CacheConfig struct {
	Backend   string        `yaml:"backend" validate:"oneof=memory redis none"`
	Size      int           `yaml:"size" validate:"gte=0"`
	TTL       time.Duration `yaml:"ttl" validate:"gte=0"`
	RedisAddr string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int           `yaml:"redis_db"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// AnalyzeConfig holds product analysis configuration.
type AnalyzeConfig struct {
	Concurrency          int  `yaml:"concurrency" validate:"gt=0"`
	RequireKnowledgeBase bool `yaml:"require_knowledge_base"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Extract: ExtractConfig{
			MinPageChars:  150,
			OCREnabled:    true,
			OCRDPI:        300,
			OCRLang:       "eng",
			PdftoppmPath:  "pdftoppm",
			TesseractPath: "tesseract",
			Timeout:       2 * time.Minute,
		},
		Ingest: IngestConfig{
			ChunkWords: 500,
			Overlap:    0.1,
			QueueSize:  32,
		},
		Embedding: EmbeddingConfig{
			Provider:    "hash",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   0, // provider default
			BatchSize:   64,
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
			CacheSize:   1024,
		},
		Reasoning: ReasoningConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			APIKeyEnv:   "GEMINI_API_KEY",
			Timeout:     60 * time.Second,
			MaxAttempts: 3,
			Temperature: 0.1,
		},
		Retrieve: RetrieveConfig{
			TopK:          3,
			MinSimilarity: 0.25,
			ContextTokens: 1500,
		},
		Classify: ClassifyConfig{
			HighConfidence:     0.7,
			FallbackConfidence: 0.1,
			Concurrency:        4,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			Size:      2048,
			TTL:       24 * time.Hour,
			KeyPrefix: "nhp:classification:",
		},
		Analyze: AnalyzeConfig{
			Concurrency:          4,
			RequireKnowledgeBase: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for nhp.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "nhp.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".nhp", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Validate checks every section against its constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DBPath returns the knowledge base path, relative paths resolved against dir.
func (c *Config) DBPath(dir string) string {
	if c.Store.Path == "" {
		return filepath.Join(dir, ".nhp", "knowledge.db")
	}
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// EnsureDir ensures the .nhp directory exists.
func EnsureDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".nhp"), 0755)
}

// LoadEnv loads .env from dir into the process environment. Existing variables win.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// APIKey reads the embedding credential from the configured environment variable.
func (e EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// APIKey reads the reasoning credential from the configured environment variable.
func (r ReasoningConfig) APIKey() string {
	if r.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(r.APIKeyEnv)
}
