// Package config loads the gallery YAML configuration, applies defaults and
// GALLERY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HarrySoteriou/gallery/internal/chain"
	"github.com/HarrySoteriou/gallery/internal/chunker"
	"github.com/HarrySoteriou/gallery/internal/embedding"
	"github.com/HarrySoteriou/gallery/internal/llm"
	"github.com/HarrySoteriou/gallery/internal/logger"
	"github.com/HarrySoteriou/gallery/internal/memstore"
	"github.com/HarrySoteriou/gallery/internal/store"
	"github.com/HarrySoteriou/gallery/internal/video"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "gallery.yaml"

// LLMConfig selects the language model.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	ServerURL   string  `yaml:"server_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EmbedderConfig selects the embedding provider. An empty provider disables
// the embedding-backed chain.
type EmbedderConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	ServerURL string `yaml:"server_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dims      int    `yaml:"dims"`
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`
}

// SemanticMemoryConfig configures the SQLite vector store.
type SemanticMemoryConfig struct {
	// Path is a database file, or ":memory:" for a session-scoped store.
	Path          string  `yaml:"path"`
	NumDocuments  int     `yaml:"num_documents"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

type ChunkerConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size"`
}

// FallbackConfig configures keyword retrieval.
type FallbackConfig struct {
	MaxChunks int `yaml:"max_chunks"`
	// DisableRetrieval sends prompts to the model unchanged.
	DisableRetrieval bool `yaml:"disable_retrieval"`
}

type VideoConfig struct {
	BatchSize    int    `yaml:"batch_size"`
	Concurrency  int    `yaml:"concurrency"`
	IntervalSecs int    `yaml:"interval_secs"`
	Prompt       string `yaml:"prompt"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the root configuration.
type Config struct {
	LLM            LLMConfig            `yaml:"llm"`
	Embedder       EmbedderConfig       `yaml:"embedder"`
	SemanticMemory SemanticMemoryConfig `yaml:"semantic_memory"`
	Chunker        ChunkerConfig        `yaml:"chunker"`
	Fallback       FallbackConfig       `yaml:"fallback"`
	Video          VideoConfig          `yaml:"video"`
	Log            LogConfig            `yaml:"log"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the config at path. A missing file yields defaults. Environment
// overrides apply in both cases.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		cfg := Default()
		if err := applyEnv(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.Model == "" {
		cfg.LLM.Model = "llava"
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.Provider == "openai" && cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.SemanticMemory.Path == "" {
		cfg.SemanticMemory.Path = store.InMemory
	}
	if cfg.SemanticMemory.NumDocuments == 0 {
		cfg.SemanticMemory.NumDocuments = store.DefaultTopK
	}
	if cfg.Chunker.MaxChunkSize == 0 {
		cfg.Chunker.MaxChunkSize = chunker.DefaultMaxChunkSize
	}
	if cfg.Fallback.MaxChunks == 0 {
		cfg.Fallback.MaxChunks = memstore.DefaultMaxChunks
	}
	if cfg.Video.BatchSize == 0 {
		cfg.Video.BatchSize = video.DefaultBatchSize
	}
	if cfg.Video.Concurrency == 0 {
		cfg.Video.Concurrency = video.DefaultConcurrency
	}
	if cfg.Video.IntervalSecs == 0 {
		cfg.Video.IntervalSecs = int(video.DefaultInterval / time.Second)
	}
	if cfg.Video.Prompt == "" {
		cfg.Video.Prompt = video.DefaultPrompt
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = string(logger.InfoLevel)
	}
}

// applyEnv overrides fields from GALLERY_* variables.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"GALLERY_LLM_PROVIDER":        &cfg.LLM.Provider,
		"GALLERY_LLM_MODEL":           &cfg.LLM.Model,
		"GALLERY_LLM_SERVER_URL":      &cfg.LLM.ServerURL,
		"GALLERY_EMBEDDER_PROVIDER":   &cfg.Embedder.Provider,
		"GALLERY_EMBEDDER_MODEL":      &cfg.Embedder.Model,
		"GALLERY_EMBEDDER_SERVER_URL": &cfg.Embedder.ServerURL,
		"GALLERY_DB_PATH":             &cfg.SemanticMemory.Path,
		"GALLERY_LOG_LEVEL":           &cfg.Log.Level,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	ints := map[string]*int{
		"GALLERY_MAX_CHUNK_SIZE": &cfg.Chunker.MaxChunkSize,
		"GALLERY_MAX_CHUNKS":     &cfg.Fallback.MaxChunks,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	if v, ok := os.LookupEnv("GALLERY_DISABLE_RETRIEVAL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GALLERY_DISABLE_RETRIEVAL: %w", err)
		}
		cfg.Fallback.DisableRetrieval = b
	}
	return nil
}

// LLMOptions converts the llm section, resolving the API key variable.
func (c *Config) LLMOptions() llm.Config {
	return llm.Config{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		ServerURL:   c.LLM.ServerURL,
		APIKey:      lookupKey(c.LLM.APIKeyEnv),
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
}

// EmbeddingOptions converts the embedder section.
func (c *Config) EmbeddingOptions() embedding.Config {
	return embedding.Config{
		Provider:  c.Embedder.Provider,
		Model:     c.Embedder.Model,
		ServerURL: c.Embedder.ServerURL,
		APIKey:    lookupKey(c.Embedder.APIKeyEnv),
		Dims:      c.Embedder.Dims,
		BatchSize: c.Embedder.BatchSize,
		CacheSize: c.Embedder.CacheSize,
	}
}

func (c *Config) ChainOptions() chain.Config {
	return chain.Config{
		NumDocuments:  c.SemanticMemory.NumDocuments,
		MinSimilarity: c.SemanticMemory.MinSimilarity,
	}
}

func (c *Config) VideoOptions() video.Config {
	return video.Config{
		BatchSize:   c.Video.BatchSize,
		Concurrency: c.Video.Concurrency,
		Prompt:      c.Video.Prompt,
	}
}

// FrameInterval is the spacing assumed between loaded video frames.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Video.IntervalSecs) * time.Second
}

func lookupKey(env string) string {
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}
