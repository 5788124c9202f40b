package keyword

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func chunk(id, title, text string) *models.Chunk {
	return &models.Chunk{
		ID:       id,
		Text:     text,
		Metadata: models.ChunkMetadata{Title: title, SourceFile: title + ".html"},
	}
}

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "keyword.bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.Chunk{
		chunk("chunk_0", "Release Process", "Releases are cut from the main branch every Tuesday. The Omnisyan pipeline signs artifacts."),
		chunk("chunk_1", "Onboarding", "New starters request VPN access from the helpdesk."),
	}
	if err := idx.IndexChunks(ctx, chunks); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}

	results, err := idx.Search(ctx, "Omnisyan", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "chunk_0" {
		t.Fatalf("results = %+v, want only chunk_0", results)
	}

	// No stemming: "vpn" matches "VPN" as typed.
	results, err = idx.Search(ctx, "vpn", 10, nil)
	if err != nil {
		t.Fatalf("Search vpn: %v", err)
	}
	if len(results) == 0 || results[0].ID != "chunk_1" {
		t.Fatalf("results = %+v, want chunk_1 first", results)
	}
}

func TestBleveIndex_DeleteChunks(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.IndexChunks(ctx, []*models.Chunk{
		chunk("chunk_0", "Release Process", "Omnisyan signs artifacts."),
		chunk("chunk_1", "Release Process", "Omnisyan publishes images."),
	}); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	if err := idx.DeleteChunks(ctx, []string{"chunk_0"}); err != nil {
		t.Fatalf("DeleteChunks: %v", err)
	}
	results, err := idx.Search(ctx, "Omnisyan", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "chunk_1" {
		t.Fatalf("results = %+v, want only chunk_1", results)
	}
	if n, _ := idx.DocCount(); n != 1 {
		t.Errorf("DocCount = %d, want 1", n)
	}
}

func TestBleveIndex_SearchFindsTitle(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.IndexChunks(ctx, []*models.Chunk{chunk("chunk_7", "Incident Runbook", "Page the on-call engineer.")}); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	results, err := idx.Search(ctx, "runbook", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].ID != "chunk_7" {
		t.Fatalf("results = %+v, want chunk_7", results)
	}
}

func TestBleveIndex_TitleBoostRanksTitleMatchFirst(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.Chunk{
		chunk("chunk_0", "General Notes", "Some words about deployment and other things."),
		chunk("chunk_1", "Deployment", "Some words about other things."),
	}
	if err := idx.IndexChunks(ctx, chunks); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	results, err := idx.Search(ctx, "deployment", 10, &SearchOptions{TitleBoost: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "chunk_1" {
		t.Errorf("first result = %s, want chunk_1 (title match)", results[0].ID)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.IndexChunks(ctx, []*models.Chunk{chunk("chunk_0", "Kubernetes", "Cluster upgrades happen quarterly.")}); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}

	results, err := idx.Search(ctx, "upgrdes", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("exact search matched a typo: %+v", results)
	}

	results, err = idx.Search(ctx, "upgrdes", 10, &SearchOptions{FuzzyEnabled: true})
	if err != nil {
		t.Fatalf("fuzzy Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "chunk_0" {
		t.Fatalf("fuzzy results = %+v, want chunk_0", results)
	}
}

func TestBleveIndex_LimitAndEmptyQuery(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	var chunks []*models.Chunk
	for _, id := range []string{"chunk_0", "chunk_1", "chunk_2", "chunk_3"} {
		chunks = append(chunks, chunk(id, "Page", "shared term here"))
	}
	if err := idx.IndexChunks(ctx, chunks); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}

	results, err := idx.Search(ctx, "shared", 2, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}

	results, err = idx.Search(ctx, "   ", 10, nil)
	if err != nil {
		t.Fatalf("Search blank: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("blank query returned %d results", len(results))
	}

	n, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if n != 4 {
		t.Errorf("DocCount = %d, want 4", n)
	}
}

func TestBleveIndex_CreateTwiceFailsAndReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword.bleve")
	ctx := context.Background()

	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx.IndexChunks(ctx, []*models.Chunk{chunk("chunk_0", "T", "uniqueword")}); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := NewBleveIndex(path); !errors.Is(err, ErrIndexExists) {
		t.Fatalf("second NewBleveIndex err = %v, want ErrIndexExists", err)
	}

	reopened, err := OpenBleveIndex(path)
	if err != nil {
		t.Fatalf("OpenBleveIndex: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	results, err := reopened.Search(ctx, "uniqueword", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results after reopen, want 1", len(results))
	}
}

func TestNewBleveIndex_CreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "keyword.bleve")

	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	_ = idx.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}

func TestTokenizeQuery(t *testing.T) {
	got := tokenizeQuery("VPN, vpn access; Access-control")
	want := []string{"vpn", "access", "control"}
	if len(got) != len(want) {
		t.Fatalf("tokenizeQuery = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}
