package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/kotae/internal/collection"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/search"
	"go.uber.org/zap"
)

type stubGenerator struct {
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string, _ rag.GenerateOptions) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return "Two approvals are required.", nil
}

func (g *stubGenerator) ModelName() string { return "stub" }

type failingRetriever struct{}

func (failingRetriever) Retrieve(_ context.Context, q string, _ int) (*models.RetrievalResult, error) {
	return nil, &search.RetrievalError{Query: q, Err: errors.New("index offline")}
}

func (failingRetriever) Search(_ context.Context, q string, _ int) (*models.SearchResponse, error) {
	return nil, &search.RetrievalError{Query: q, Err: errors.New("index offline")}
}

func newTestServer(t *testing.T, gen *stubGenerator) *Server {
	t.Helper()
	ctx := context.Background()
	coll, err := collection.Create(ctx, t.TempDir(), "docs", embedding.NewMockEmbedder(512))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = coll.Close() })

	meta := func(f string) models.ChunkMetadata { return models.ChunkMetadata{Title: f, SourceFile: f + ".html"} }
	err = coll.Add(ctx,
		[]string{"chunk_0", "chunk_1"},
		[]string{
			"Production deploys require two approvals and a green pipeline.",
			"Request VPN access from the helpdesk portal.",
		},
		[]models.ChunkMetadata{meta("release"), meta("vpn")},
	)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	cfg := config.Default()
	retriever := search.NewRetriever(coll, 1)
	assistant := rag.NewAssistant(retriever, gen)
	return NewServer(assistant, retriever, coll, cfg, zap.NewNop())
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	return w
}

func TestHandleAsk(t *testing.T) {
	gen := &stubGenerator{}
	s := newTestServer(t, gen)

	w := do(t, s, http.MethodPost, "/api/v1/ask", `{"query":"how many approvals do production deploys need?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var ans models.Answer
	if err := json.NewDecoder(w.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if ans.Text != "Two approvals are required." || ans.Failed {
		t.Errorf("answer = %+v", ans)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "release.html" {
		t.Errorf("sources = %v", ans.Sources)
	}
}

func TestHandleAsk_history(t *testing.T) {
	gen := &stubGenerator{}
	s := newTestServer(t, gen)

	body := `{"query":"and for vpn?","history":[{"role":"user","content":"who approves deploys?"},{"role":"assistant","content":"two reviewers"}]}`
	w := do(t, s, http.MethodPost, "/api/v1/ask", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "User: who approves deploys?\nAssistant: two reviewers") {
		t.Errorf("prompt lacks history: %v", gen.prompts)
	}
}

func TestHandleAsk_generationFailureIsAnswer(t *testing.T) {
	s := newTestServer(t, &stubGenerator{err: errors.New("connection refused")})

	w := do(t, s, http.MethodPost, "/api/v1/ask", `{"query":"approvals?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var ans models.Answer
	if err := json.NewDecoder(w.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if !ans.Failed || !strings.Contains(ans.Text, "connection refused") {
		t.Errorf("answer = %+v", ans)
	}
}

func TestHandleAsk_badRequests(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})
	for name, body := range map[string]string{
		"malformed":   `{"query":`,
		"empty":       `{"query":"   "}`,
		"unknownRole": `{"query":"q","history":[{"role":"system","content":"x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			if w := do(t, s, http.MethodPost, "/api/v1/ask", body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleRetrieve(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})

	w := do(t, s, http.MethodPost, "/api/v1/retrieve", `{"query":"vpn access helpdesk","top_k":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var res models.RetrievalResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if len(res.Hits) != 2 || res.Hits[0].ID != "chunk_1" {
		t.Errorf("hits = %+v", res.Hits)
	}
	if !strings.Contains(res.Context, search.ContextSeparator) {
		t.Errorf("context = %q", res.Context)
	}
}

func TestHandleRetrieve_indexFailure(t *testing.T) {
	s := NewServer(nil, failingRetriever{}, nil, config.Default(), nil)
	w := do(t, s, http.MethodPost, "/api/v1/retrieve", `{"query":"q"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})

	w := do(t, s, http.MethodPost, "/api/v1/search", `{"query":"helpdesk"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var res models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != "chunk_1" || res.Sources[0] != "vpn.html" {
		t.Errorf("response = %+v", res)
	}

	if w := do(t, s, http.MethodPost, "/api/v1/search", `{"query":""}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty search status = %d", w.Code)
	}
}

func TestHandleStatusAndHealth(t *testing.T) {
	s := newTestServer(t, &stubGenerator{})

	w := do(t, s, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Collection models.CollectionStats `json:"collection"`
		Config     map[string]interface{} `json:"config"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Collection.Chunks != 2 || out.Collection.Vectors != 2 {
		t.Errorf("collection = %+v", out.Collection)
	}
	if out.Config["index_name"] != config.DefaultIndexName {
		t.Errorf("config = %v", out.Config)
	}

	w = do(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", w.Code, w.Body)
	}
}
