// Package config loads the YAML configuration of the chunky CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SourceConfig lists what gets ingested.
type SourceConfig struct {
	Topics         []string `yaml:"topics"`
	Files          []string `yaml:"files,omitempty"`
	WikipediaCache string   `yaml:"wikipedia_cache"`
	Language       string   `yaml:"language"`
	UserAgent      string   `yaml:"user_agent"`
	TimeoutSecs    int      `yaml:"timeout_secs"`
}

type PreprocessConfig struct {
	Lowercase *bool `yaml:"lowercase"`
}

// LowercaseOrDefault reports whether chunks are lowercased; defaults to true.
func (p *PreprocessConfig) LowercaseOrDefault() bool {
	if p.Lowercase != nil {
		return *p.Lowercase
	}
	return true
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type           string                `yaml:"type"`
	OpenAI         *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	QueryCacheSize int                   `yaml:"query_cache_size"`
}

type OpenAIAnswererConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// AnswererConfig selects the chat model used to answer questions. Type
// "none" disables answering.
type AnswererConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIAnswererConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type IndexConfig struct {
	OnDegenerate    string `yaml:"on_degenerate"`
	LexicalFallback bool   `yaml:"lexical_fallback"`
}

type RankingConfig struct {
	Booster string `yaml:"booster"`
	TopK    int    `yaml:"top_k"`
}

type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	Enabled      *bool  `yaml:"enabled"`
}

// EnabledOrDefault reports whether the SQLite store is used; defaults to true.
func (s *StorageConfig) EnabledOrDefault() bool {
	if s.Enabled != nil {
		return *s.Enabled
	}
	return true
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Source      SourceConfig      `yaml:"source"`
	Preprocess  PreprocessConfig  `yaml:"preprocess"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Answerer    AnswererConfig    `yaml:"answerer"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Index       IndexConfig       `yaml:"index"`
	Ranking     RankingConfig     `yaml:"ranking"`
	Storage     StorageConfig     `yaml:"storage"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/chunky/config.yaml.
// If neither exists, it writes defaults to ~/.config/chunky/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chunky", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Source: SourceConfig{
			Topics: []string{"Python (programming language)", "Artificial intelligence", "Machine learning"},
		},
		Embedder:    EmbedderConfig{Type: "openai"},
		Answerer:    AnswererConfig{Type: "openai"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field.
func ApplyDefaults(cfg *AppConfig) {
	src := &cfg.Source
	if src.WikipediaCache == "" {
		src.WikipediaCache = "data/wikipedia_output.txt"
	}
	if src.Language == "" {
		src.Language = "en"
	}
	if src.UserAgent == "" {
		src.UserAgent = "chunky/1.0 (https://github.com/matthewhenry1/chunky)"
	}
	if src.TimeoutSecs == 0 {
		src.TimeoutSecs = 30
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "paragraph"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-ada-002"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 10
		}
	}
	if cfg.Embedder.QueryCacheSize == 0 {
		cfg.Embedder.QueryCacheSize = 256
	}

	if cfg.Answerer.Type == "" {
		cfg.Answerer.Type = "openai"
	}
	if cfg.Answerer.Type == "openai" {
		if cfg.Answerer.OpenAI == nil {
			cfg.Answerer.OpenAI = &OpenAIAnswererConfig{}
		}
		o := cfg.Answerer.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4"
		}
		if o.Temperature == 0 {
			o.Temperature = 0.7
		}
		if o.MaxTokens == 0 {
			o.MaxTokens = 200
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		if q.URL == "" {
			q.URL = "http://localhost:6333"
		}
		if q.Collection == "" {
			q.Collection = "chunky"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 10
		}
	}

	if cfg.Index.OnDegenerate == "" {
		cfg.Index.OnDegenerate = "abort"
	}
	if cfg.Ranking.Booster == "" {
		cfg.Ranking.Booster = "keyword"
	}
	if cfg.Ranking.TopK == 0 {
		cfg.Ranking.TopK = 5
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "data/chunky.db"
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "data/chunky.log"
	}
}

// applyEnv applies OPENAI_PROMPT_MODEL and CHUNKY_DEBUG.
func applyEnv(cfg *AppConfig) {
	if model := os.Getenv("OPENAI_PROMPT_MODEL"); model != "" && cfg.Answerer.OpenAI != nil {
		cfg.Answerer.OpenAI.Model = model
	}
	if v := os.Getenv("CHUNKY_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.Debug = debug
		}
	}
}

// Validate rejects unknown component types.
func (c *AppConfig) Validate() error {
	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"chunker.type", c.Chunker.Type, []string{"paragraph", "sentence"}},
		{"embedder.type", c.Embedder.Type, []string{"openai", "tfidf"}},
		{"answerer.type", c.Answerer.Type, []string{"openai", "none"}},
		{"vector_store.type", c.VectorStore.Type, []string{"memory", "qdrant"}},
		{"index.on_degenerate", c.Index.OnDegenerate, []string{"abort", "skip"}},
		{"ranking.booster", c.Ranking.Booster, []string{"keyword", "ochiai", "none"}},
		{"summarizer.type", c.Summarizer.Type, []string{"frequency", "none"}},
	}
	for _, chk := range checks {
		if !slices.Contains(chk.allow, chk.value) {
			return fmt.Errorf("invalid %s %q, want one of %v", chk.field, chk.value, chk.allow)
		}
	}
	if c.Chunker.ChunkSize < 0 {
		return fmt.Errorf("invalid chunker.chunk_size %d", c.Chunker.ChunkSize)
	}
	return nil
}
