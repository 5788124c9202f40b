package models

import "time"

// QueryHit is one ranked chunk returned by the vector index.
type QueryHit struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
}

// RetrievalResult is the ranked hits for a query, the joined context and the cited sources.
// Sources has set semantics in first-seen order.
type RetrievalResult struct {
	Query   string      `json:"query"`
	Hits    []*QueryHit `json:"hits"`
	Context string      `json:"context"`
	Sources []string    `json:"sources"`
}

// Answer is what the assistant returns for one question.
// When Failed is true, Text holds a readable explanation of the generation failure and Error its cause.
type Answer struct {
	Query     string   `json:"query"`
	Text      string   `json:"answer"`
	Sources   []string `json:"sources"`
	Context   string   `json:"context,omitempty"`
	Model     string   `json:"model,omitempty"`
	Failed    bool     `json:"failed,omitempty"`
	Error     string   `json:"error,omitempty"`
	QueryTime int64    `json:"query_time_ms"`
}

// BuildSummary reports the outcome of one ingestion run.
type BuildSummary struct {
	RunID       string        `json:"run_id"`
	Collection  string        `json:"collection"`
	Files       int           `json:"files"`
	Processed   int           `json:"processed"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	ChunksAdded int           `json:"chunks_added"`
	Elapsed     time.Duration `json:"elapsed"`
}

// SearchHit is a keyword match on a chunk.
type SearchHit struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Score    float64       `json:"score"`
	Rank     int           `json:"rank"`
}

// SearchResponse is the result of a keyword lookup.
type SearchResponse struct {
	Query     string       `json:"query"`
	Hits      []*SearchHit `json:"hits"`
	Sources   []string     `json:"sources"`
	QueryTime int64        `json:"query_time_ms"`
}
