package config

import "time"

// Defaults for the ingestion and query pipeline.
const (
	DefaultChunkSize        = 1000
	DefaultChunkOverlap     = 200
	DefaultMinContentLength = 100
	DefaultTopK             = 3
	DefaultIndexLocation    = "./kotae_db"
	DefaultIndexName        = "confluence_docs"
	DefaultOllamaURL        = "http://localhost:11434"
	DefaultMaxTokens        = 512
	DefaultTemperature      = 0.1
	DefaultTimeout          = 60 * time.Second
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Corpus.Directory == "" {
		cfg.Corpus.Directory = "./data"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = DefaultChunkSize
	}
	if cfg.Ingest.ChunkOverlap == nil {
		o := DefaultChunkOverlap
		cfg.Ingest.ChunkOverlap = &o
	}
	if cfg.Ingest.MinContentLength == 0 {
		cfg.Ingest.MinContentLength = DefaultMinContentLength
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".html", ".htm"}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Storage.IndexLocation == "" {
		cfg.Storage.IndexLocation = DefaultIndexLocation
	}
	if cfg.Storage.IndexName == "" {
		cfg.Storage.IndexName = DefaultIndexName
	}
	applyEmbeddingDefaults(&cfg.Embedding)
	applyGenerationDefaults(&cfg.Generation)
}

func applyEmbeddingDefaults(e *EmbeddingConfig) {
	if e.Provider == "" {
		e.Provider = "ollama"
	}
	switch e.Provider {
	case "ollama":
		if e.Model == "" {
			e.Model = "nomic-embed-text"
		}
		if e.BaseURL == "" {
			e.BaseURL = DefaultOllamaURL
		}
		if e.Dimensions == 0 {
			e.Dimensions = 768
		}
	case "onnx":
		if e.Model == "" {
			e.Model = "all-MiniLM-L6-v2"
		}
		if e.ModelPath == "" {
			e.ModelPath = "./models/all-MiniLM-L6-v2.onnx"
		}
		if e.Dimensions == 0 {
			e.Dimensions = 384
		}
		if e.MaxTokens == 0 {
			e.MaxTokens = 256
		}
	case "gemini":
		if e.Model == "" {
			e.Model = "gemini-embedding-001"
		}
		if e.Dimensions == 0 {
			e.Dimensions = 768
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = "GEMINI_API_KEY"
		}
	case "mock":
		if e.Model == "" {
			e.Model = "mock"
		}
		if e.Dimensions == 0 {
			e.Dimensions = 384
		}
	}
	if e.CacheSize == 0 {
		e.CacheSize = 10000
	}
}

func applyGenerationDefaults(g *GenerationConfig) {
	if g.Provider == "" {
		g.Provider = "ollama"
	}
	switch g.Provider {
	case "ollama":
		if g.Model == "" {
			g.Model = "mistral"
		}
		if g.BaseURL == "" {
			g.BaseURL = DefaultOllamaURL
		}
	case "claude":
		if g.Model == "" {
			g.Model = "claude-sonnet-4-20250514"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	case "gemini":
		if g.Model == "" {
			g.Model = "gemini-2.0-flash"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = DefaultMaxTokens
	}
	if g.Temperature == nil {
		t := DefaultTemperature
		g.Temperature = &t
	}
	if g.Timeout == 0 {
		g.Timeout = DefaultTimeout
	}
}
