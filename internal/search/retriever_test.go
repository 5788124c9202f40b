package search

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

// fakeIndex returns canned hits and records the k it was asked for.
type fakeIndex struct {
	hits       []*models.QueryHit
	searchHits []*models.SearchHit
	err        error
	gotK       int
	calls      int
}

func (f *fakeIndex) Query(_ context.Context, _ string, k int) ([]*models.QueryHit, error) {
	f.calls++
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, k int) ([]*models.SearchHit, error) {
	f.calls++
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.searchHits, nil
}

func hit(id, text, file string, score float64) *models.QueryHit {
	return &models.QueryHit{
		ID:       id,
		Text:     text,
		Metadata: models.ChunkMetadata{Title: file, SourceFile: file},
		Score:    score,
	}
}

func TestRetrieve_contextAndSources(t *testing.T) {
	idx := &fakeIndex{hits: []*models.QueryHit{
		hit("chunk_4", "alpha", "b.html", 0.9),
		hit("chunk_1", "beta", "a.html", 0.8),
		hit("chunk_5", "gamma", "b.html", 0.7),
	}}
	r := NewRetriever(idx, 3)

	res, err := r.Retrieve(context.Background(), "what is alpha", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if idx.gotK != 3 {
		t.Errorf("index asked for k=%d, want 3", idx.gotK)
	}
	if idx.calls != 1 {
		t.Errorf("index queried %d times, want 1", idx.calls)
	}
	wantCtx := "alpha\n\n---\n\nbeta\n\n---\n\ngamma"
	if res.Context != wantCtx {
		t.Errorf("Context = %q, want %q", res.Context, wantCtx)
	}
	if !reflect.DeepEqual(res.Sources, []string{"b.html", "a.html"}) {
		t.Errorf("Sources = %v, want [b.html a.html]", res.Sources)
	}
	for i, want := range []string{"chunk_4", "chunk_1", "chunk_5"} {
		if res.Hits[i].ID != want {
			t.Errorf("hit %d = %s, want %s", i, res.Hits[i].ID, want)
		}
	}
}

func TestRetrieve_truncatesToK(t *testing.T) {
	idx := &fakeIndex{hits: []*models.QueryHit{
		hit("chunk_0", "one", "a.html", 0.9),
		hit("chunk_1", "two", "b.html", 0.8),
		hit("chunk_2", "three", "c.html", 0.7),
	}}
	r := NewRetriever(idx, 3)

	res, err := r.Retrieve(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if idx.gotK != 2 {
		t.Errorf("index asked for k=%d, want 2", idx.gotK)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(res.Hits))
	}
	if res.Context != "one\n\n---\n\ntwo" {
		t.Errorf("Context = %q", res.Context)
	}
	if !reflect.DeepEqual(res.Sources, []string{"a.html", "b.html"}) {
		t.Errorf("Sources = %v", res.Sources)
	}
}

func TestRetrieve_singleHitHasNoSeparator(t *testing.T) {
	r := NewRetriever(&fakeIndex{hits: []*models.QueryHit{hit("chunk_0", "only", "a.html", 1)}}, 0)
	res, err := r.Retrieve(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Context != "only" {
		t.Errorf("Context = %q, want %q", res.Context, "only")
	}
	if r.TopK() != DefaultTopK {
		t.Errorf("TopK = %d, want %d", r.TopK(), DefaultTopK)
	}
}

func TestRetrieve_noHits(t *testing.T) {
	r := NewRetriever(&fakeIndex{}, 3)
	res, err := r.Retrieve(context.Background(), "q", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Context != "" || len(res.Sources) != 0 || len(res.Hits) != 0 {
		t.Errorf("unexpected result for empty index: %+v", res)
	}
}

func TestRetrieve_emptyQuery(t *testing.T) {
	idx := &fakeIndex{}
	r := NewRetriever(idx, 3)
	_, err := r.Retrieve(context.Background(), "   ", 0)
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
	if idx.calls != 0 {
		t.Errorf("index called for blank query")
	}
}

func TestRetrieve_indexFailure(t *testing.T) {
	cause := errors.New("index unavailable")
	r := NewRetriever(&fakeIndex{err: cause}, 3)

	_, err := r.Retrieve(context.Background(), "q", 0)
	var re *RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *RetrievalError", err)
	}
	if re.Query != "q" {
		t.Errorf("Query = %q", re.Query)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error does not wrap cause")
	}
}

func TestSearch(t *testing.T) {
	idx := &fakeIndex{searchHits: []*models.SearchHit{
		{ID: "chunk_3", Metadata: models.ChunkMetadata{SourceFile: "x.html"}, Rank: 1},
		{ID: "chunk_9", Metadata: models.ChunkMetadata{SourceFile: "x.html"}, Rank: 2},
	}}
	r := NewRetriever(idx, 3)

	res, err := r.Search(context.Background(), "vpn", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if idx.gotK != 10 {
		t.Errorf("default limit = %d, want 10", idx.gotK)
	}
	if len(res.Hits) != 2 || !reflect.DeepEqual(res.Sources, []string{"x.html"}) {
		t.Errorf("unexpected response: %+v", res)
	}

	if _, err := r.Search(context.Background(), "", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank terms err = %v", err)
	}
}

func TestUniqueSources(t *testing.T) {
	got := UniqueSources([]string{"c", "a", "c", "", "b", "a"})
	want := []string{"c", "a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniqueSources = %v, want %v", got, want)
	}
}
