package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

type addCall struct {
	ids   []string
	texts []string
	metas []models.ChunkMetadata
}

// recordingCollection records Add calls and fails for the source files listed in failFor.
type recordingCollection struct {
	calls   []addCall
	failFor map[string]bool
}

func (r *recordingCollection) Add(_ context.Context, ids, texts []string, metas []models.ChunkMetadata) error {
	if len(metas) > 0 && r.failFor[metas[0].SourceFile] {
		return errors.New("embedding service unavailable")
	}
	r.calls = append(r.calls, addCall{ids: ids, texts: texts, metas: metas})
	return nil
}

func testIndexer(t *testing.T, coll Collection, size, overlap, min int) *Indexer {
	t.Helper()
	return NewIndexer(coll, mustChunker(t, size, overlap), WithMinContentLength(min))
}

func TestIndexDocument_idsContinueAcrossDocuments(t *testing.T) {
	coll := &recordingCollection{}
	idx := testIndexer(t, coll, 10, 0, 1)
	ctx := context.Background()

	n, err := idx.IndexDocument(ctx, &models.Document{Title: "A", Text: "aaaa bbbb cccc", SourceFile: "a.html"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("first document: got %d chunks, want 2", n)
	}
	if _, err := idx.IndexDocument(ctx, &models.Document{Title: "B", Text: "dddd", SourceFile: "b.html"}); err != nil {
		t.Fatal(err)
	}

	if len(coll.calls) != 2 {
		t.Fatalf("expected one Add per document, got %d", len(coll.calls))
	}
	if want := []string{"chunk_0", "chunk_1"}; !reflect.DeepEqual(coll.calls[0].ids, want) {
		t.Errorf("ids: got %v, want %v", coll.calls[0].ids, want)
	}
	if want := []string{"chunk_2"}; !reflect.DeepEqual(coll.calls[1].ids, want) {
		t.Errorf("ids: got %v, want %v", coll.calls[1].ids, want)
	}
	for _, m := range coll.calls[0].metas {
		if m != (models.ChunkMetadata{Title: "A", SourceFile: "a.html"}) {
			t.Errorf("metadata: %+v", m)
		}
	}
	if len(coll.calls[0].ids) != len(coll.calls[0].texts) || len(coll.calls[0].texts) != len(coll.calls[0].metas) {
		t.Error("ids, texts and metadatas must be the same length")
	}
}

func TestIndexDocument_insufficientContent(t *testing.T) {
	coll := &recordingCollection{}
	idx := testIndexer(t, coll, 1000, 200, 100)
	_, err := idx.IndexDocument(context.Background(), &models.Document{Text: strings.Repeat("x", 99), SourceFile: "short.html"})
	if !errors.Is(err, ErrInsufficientContent) {
		t.Fatalf("expected ErrInsufficientContent, got %v", err)
	}
	if len(coll.calls) != 0 {
		t.Error("short document must not be added")
	}
	if idx.NextSeq() != 0 {
		t.Error("skipped documents must not consume ids")
	}
	if _, err := idx.IndexDocument(context.Background(), &models.Document{Text: strings.Repeat("x", 100), SourceFile: "ok.html"}); err != nil {
		t.Errorf("document at the minimum length should be indexed: %v", err)
	}
}

func TestIndexDocument_failedAddKeepsIDsUnique(t *testing.T) {
	coll := &recordingCollection{failFor: map[string]bool{"bad.html": true}}
	idx := testIndexer(t, coll, 10, 0, 1)
	ctx := context.Background()

	_, err := idx.IndexDocument(ctx, &models.Document{Text: "aaaa bbbb cccc", SourceFile: "bad.html"})
	var ie *IndexError
	if !errors.As(err, &ie) || ie.SourceFile != "bad.html" {
		t.Fatalf("expected *IndexError for bad.html, got %v", err)
	}
	if _, err := idx.IndexDocument(ctx, &models.Document{Text: "dddd", SourceFile: "good.html"}); err != nil {
		t.Fatal(err)
	}
	if got := coll.calls[0].ids[0]; got != "chunk_2" {
		t.Errorf("ids after a failed add should not be reused: got %s", got)
	}
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func page(title, body string) string {
	return `<html><head><title>` + title + `</title></head><body><div id="main-content" class="wiki-content group">` + body + `</div></body></html>`
}

func TestRun_summary(t *testing.T) {
	long := strings.Repeat("The deployment pipeline promotes builds nightly. ", 5)
	dir := writeCorpus(t, map[string]string{
		"a_deploy.html":   page("Deploy", long),
		"b_short.html":    page("Short", "tiny"),
		"c_broken.html":   page("Broken", long),
		"sub/d_more.html": page("More", long),
		"notes.txt":       long,
	})
	coll := &recordingCollection{failFor: map[string]bool{"c_broken.html": true}}
	idx := NewIndexer(coll, mustChunker(t, 100, 20))

	summary, err := idx.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RunID == "" {
		t.Error("run id should be set")
	}
	if summary.Files != 4 || summary.Processed != 2 || summary.Skipped != 1 || summary.Failed != 1 {
		t.Errorf("summary: %+v", summary)
	}
	added := 0
	for _, c := range coll.calls {
		added += len(c.ids)
	}
	if summary.ChunksAdded != added {
		t.Errorf("chunks added: summary %d, collection %d", summary.ChunksAdded, added)
	}
	if coll.calls[0].metas[0].SourceFile != "a_deploy.html" || coll.calls[1].metas[0].SourceFile != "d_more.html" {
		t.Error("files should be processed in lexical order")
	}
	if coll.calls[0].ids[0] != "chunk_0" {
		t.Errorf("first id: %s", coll.calls[0].ids[0])
	}
}

func TestRun_noFiles(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"readme.txt": "x"})
	idx := NewIndexer(&recordingCollection{}, mustChunker(t, 100, 0))
	if _, err := idx.Run(context.Background(), dir); !errors.Is(err, ErrNoCorpusFiles) {
		t.Fatalf("err = %v, want ErrNoCorpusFiles", err)
	}
	if _, err := FindCorpus(filepath.Join(dir, "missing"), []string{".html"}); err == nil {
		t.Error("expected error for a missing corpus directory")
	}
}

func TestRun_cancelled(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.html": page("A", strings.Repeat("word ", 40))})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idx := NewIndexer(&recordingCollection{}, mustChunker(t, 100, 0))
	summary, err := idx.Run(ctx, dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary == nil || summary.Processed != 0 {
		t.Errorf("summary: %+v", summary)
	}
}
