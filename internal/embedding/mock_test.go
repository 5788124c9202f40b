package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/kotae/pkg/utils"
)

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "How do I restart the message broker?")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 64 {
		t.Fatalf("len=%d", len(a))
	}
	if math.Abs(utils.L2Norm(a)-1) > 1e-5 {
		t.Errorf("embedding should be unit length, norm=%f", utils.L2Norm(a))
	}
	again, _ := e.Embed(ctx, "How do I restart the message broker?")
	for i := range a {
		if a[i] != again[i] {
			t.Fatal("embedding should be deterministic")
		}
	}

	related, _ := e.Embed(ctx, "Restart the broker after deploy")
	unrelated, _ := e.Embed(ctx, "Quarterly holiday calendar")
	if utils.Dot(a, related) <= utils.Dot(a, unrelated) {
		t.Error("texts sharing words should be more similar")
	}

	empty, _ := e.Embed(ctx, "  ...  ")
	if utils.L2Norm(empty) != 0 {
		t.Error("text without words should embed to zero")
	}

	if NewMockEmbedder(0).Dimensions() != 384 {
		t.Error("default dimensions should be 384")
	}
}

func TestMockEmbedder_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockEmbedder(4).EmbedBatch(ctx, []string{"a"}); err == nil {
		t.Error("expected context error")
	}
}
