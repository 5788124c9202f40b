// Package config provides configuration loading and structs for the kotae service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

// CorpusConfig points at the exported wiki pages.
type CorpusConfig struct {
	Directory string `yaml:"directory" validate:"required"`
}

// IngestConfig holds chunking and filtering settings for a build.
type IngestConfig struct {
	ChunkSize        int      `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap     *int     `yaml:"chunk_overlap" validate:"omitempty,gte=0"`
	MinContentLength int      `yaml:"min_content_length" validate:"gte=0"`
	Extensions       []string `yaml:"extensions" validate:"min=1,dive,startswith=."`
}

// Overlap returns the chunk overlap; 200 when unset.
func (i *IngestConfig) Overlap() int {
	if i.ChunkOverlap != nil {
		return *i.ChunkOverlap
	}
	return DefaultChunkOverlap
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" validate:"gt=0"`
}

// StorageConfig locates the persisted collection: <index_location>/<index_name>/.
type StorageConfig struct {
	IndexLocation string `yaml:"index_location" validate:"required"`
	IndexName     string `yaml:"index_name" validate:"required,excludesall=/\\"`
}

// CollectionDir returns the directory holding the collection files.
func (s *StorageConfig) CollectionDir() string {
	return filepath.Join(s.IndexLocation, s.IndexName)
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" validate:"oneof=mock ollama onnx gemini"`
	Model      string `yaml:"model" validate:"required"`
	BaseURL    string `yaml:"base_url" validate:"omitempty,url"`
	Dimensions int    `yaml:"dimensions" validate:"gt=0"`
	ModelPath  string `yaml:"model_path"`
	MaxTokens  int    `yaml:"max_tokens" validate:"gte=0"`
	CacheSize  int    `yaml:"cache_size" validate:"gte=0"`
	APIKeyEnv  string `yaml:"api_key_env"`
}

// GenerationConfig selects and configures the answer-generation provider.
type GenerationConfig struct {
	Provider    string        `yaml:"provider" validate:"oneof=ollama claude gemini"`
	Model       string        `yaml:"model" validate:"required"`
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
	MaxTokens   int           `yaml:"max_tokens" validate:"gt=0"`
	Temperature *float64      `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	APIKeyEnv   string        `yaml:"api_key_env"`
}

// TemperatureOrDefault returns the sampling temperature; 0.1 when unset.
func (g *GenerationConfig) TemperatureOrDefault() float64 {
	if g.Temperature != nil {
		return *g.Temperature
	}
	return DefaultTemperature
}

// APIKey reads the provider key from the environment variable named by APIKeyEnv.
func (g *GenerationConfig) APIKey() string {
	if g.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(g.APIKeyEnv)
}

// APIKey reads the provider key from the environment variable named by APIKeyEnv.
func (e *EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// Load reads and parses the config file at path, applies defaults, expands paths and validates.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration built from defaults only, with paths relative to the working directory.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// LoadEnv loads KEY=value pairs from an optional .env file next to the config.
// Variables already set in the environment win. A missing file is not an error.
func LoadEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("failed to load %s: %w", envPath, err)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) expandPaths(configDir string) {
	c.Corpus.Directory = expandPath(c.Corpus.Directory, configDir)
	c.Storage.IndexLocation = expandPath(c.Storage.IndexLocation, configDir)
	if c.Embedding.ModelPath != "" {
		c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	}
}

// expandPath converts a path to absolute. "~/" paths are relative to the home directory;
// any other relative path is relative to configDir.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
