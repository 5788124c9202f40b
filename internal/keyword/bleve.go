package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/kotae/internal/models"
)

const defaultFuzziness = 2

// ErrIndexExists is returned by NewBleveIndex when the path is already taken.
var ErrIndexExists = errors.New("keyword index already exists")

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// chunkDoc is the document shape stored in bleve.
type chunkDoc struct {
	Content    string `json:"content"`
	Title      string `json:"title"`
	SourceFile string `json:"source_file"`
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer lowercases and tokenizes without stemming, so wiki
	// jargon and product names match as typed.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", text)
	docMapping.AddFieldMappingsAt("title", text)

	source := bleve.NewKeywordFieldMapping()
	source.IncludeInAll = false
	docMapping.AddFieldMappingsAt("source_file", source)

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates a fresh index at path.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexExists, path)
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// OpenBleveIndex opens an existing index at path.
func OpenBleveIndex(path string) (*BleveIndex, error) {
	index, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks adds chunks in a single batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := chunkDoc{
			Content:    c.Text,
			Title:      c.Metadata.Title,
			SourceFile: c.Metadata.SourceFile,
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to apply keyword batch: %w", err)
	}
	return nil
}

// DeleteChunks removes chunks by ID in one batch.
func (b *BleveIndex) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to apply keyword delete batch: %w", err)
	}
	return nil
}

// Search runs a match query over content and title and returns up to limit hits.
// With a title boost the two fields are queried separately and merged
// additively, plus a bonus for chunks that cover more of the query terms.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	titleBoost := 1.0
	fuzzy := false
	fuzziness := defaultFuzziness
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	if titleBoost <= 1.0 {
		hits, err := b.run(ctx, b.fieldQuery(query, "", fuzzy, fuzziness), limit)
		if err != nil {
			return nil, err
		}
		out := make([]*KeywordResult, 0, len(hits.scores))
		for id, score := range hits.scores {
			out = append(out, &KeywordResult{ID: id, Score: score})
		}
		sortResults(out)
		return out, nil
	}
	return b.searchWithBoost(ctx, query, limit, titleBoost, fuzzy, fuzziness)
}

func (b *BleveIndex) searchWithBoost(ctx context.Context, query string, limit int, titleBoost float64, fuzzy bool, fuzziness int) ([]*KeywordResult, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	titleHits, err := b.run(ctx, b.fieldQuery(query, "title", fuzzy, fuzziness), reqSize)
	if err != nil {
		return nil, err
	}
	contentHits, err := b.run(ctx, b.fieldQuery(query, "content", fuzzy, fuzziness), reqSize)
	if err != nil {
		return nil, err
	}

	terms := tokenizeQuery(query)
	merged := make(map[string]float64, len(titleHits.scores)+len(contentHits.scores))
	for id, s := range contentHits.scores {
		merged[id] += s
	}
	for id, s := range titleHits.scores {
		merged[id] += s * titleBoost
	}

	out := make([]*KeywordResult, 0, len(merged))
	for id, score := range merged {
		if len(terms) > 1 {
			text := strings.ToLower(contentHits.fields[id] + " " + titleHits.fields[id])
			matched := 0
			for _, t := range terms {
				if strings.Contains(text, t) {
					matched++
				}
			}
			// 1.0x with a single matching term up to 1.5x with all terms.
			score *= 1.0 + 0.5*float64(matched-1)/float64(len(terms)-1)
		}
		out = append(out, &KeywordResult{ID: id, Score: score})
	}
	sortResults(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fieldHits struct {
	scores map[string]float64
	fields map[string]string
}

func (b *BleveIndex) run(ctx context.Context, q blevequery.Query, size int) (*fieldHits, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	req.Fields = []string{"content", "title"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := &fieldHits{
		scores: make(map[string]float64, len(res.Hits)),
		fields: make(map[string]string, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		out.scores[hit.ID] = hit.Score
		var parts []string
		for _, f := range []string{"content", "title"} {
			if v, ok := hit.Fields[f].(string); ok {
				parts = append(parts, v)
			}
		}
		out.fields[hit.ID] = strings.Join(parts, " ")
	}
	return out, nil
}

// fieldQuery builds a match or fuzzy disjunction over field; empty field means all.
func (b *BleveIndex) fieldQuery(query, field string, fuzzy bool, fuzziness int) blevequery.Query {
	if !fuzzy {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, t := range terms {
		fq := bleve.NewFuzzyQuery(t)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// tokenizeQuery lowercases and splits on anything that is not a letter or digit.
func tokenizeQuery(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func sortResults(out []*KeywordResult) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
}
