package embedding

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	e, err := New(ctx, &config.EmbeddingConfig{Provider: "mock", Dimensions: 16, CacheSize: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("cache_size > 0 should wrap the embedder, got %T", e)
	}
	if e.Dimensions() != 16 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}

	e, err = New(ctx, &config.EmbeddingConfig{Provider: "ollama", Model: "mxbai-embed-large", Dimensions: 1024}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.ModelName() != "mxbai-embed-large" {
		t.Errorf("ModelName=%s", e.ModelName())
	}

	if _, err := New(ctx, &config.EmbeddingConfig{Provider: "word2vec"}, nil); err == nil {
		t.Error("expected unknown provider error")
	}
	if _, err := New(ctx, &config.EmbeddingConfig{Provider: "gemini", APIKeyEnv: "KOTAE_UNSET_KEY_FOR_TEST"}, nil); err == nil {
		t.Error("expected missing API key error")
	}
	missing := filepath.Join(t.TempDir(), "model.onnx")
	if _, err := New(ctx, &config.EmbeddingConfig{Provider: "onnx", ModelPath: missing, Dimensions: 384}, nil); err == nil {
		t.Error("expected missing model file error")
	}
}
