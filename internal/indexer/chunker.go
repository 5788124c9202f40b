// Package indexer provides document chunking and indexing.
package indexer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Separator is one level of the split hierarchy. Value stays attached to the end of the piece it closes.
type Separator struct {
	Name  string
	Value string
}

// DefaultSeparators is the split hierarchy, coarsest first. Pieces still longer than the
// chunk size after the last level are cut at exactly chunk size characters.
var DefaultSeparators = []Separator{
	{Name: "paragraph", Value: "\n\n"},
	{Name: "line", Value: "\n"},
	{Name: "sentence", Value: ". "},
	{Name: "word", Value: " "},
}

// ChunkingError reports an invalid chunker configuration.
type ChunkingError struct {
	MaxSize int
	Overlap int
	Reason  string
}

func (e *ChunkingError) Error() string {
	return fmt.Sprintf("invalid chunker (size=%d, overlap=%d): %s", e.MaxSize, e.Overlap, e.Reason)
}

// Span is a chunk's byte range in the source text.
type Span struct {
	Start int
	End   int
}

// unit is an indivisible piece of text no longer than the chunk size.
type unit struct {
	start, end int
	runes      int
}

// Chunker splits text into overlapping chunks of at most maxSize characters.
// Splitting prefers paragraph, then line, then sentence, then word boundaries;
// adjacent chunks share trailing pieces of at most overlap characters.
type Chunker struct {
	maxSize    int
	overlap    int
	separators []Separator
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithSeparators replaces the split hierarchy. Empty separator values are ignored.
func WithSeparators(seps []Separator) ChunkerOption {
	return func(c *Chunker) {
		c.separators = c.separators[:0]
		for _, s := range seps {
			if s.Value != "" {
				c.separators = append(c.separators, s)
			}
		}
	}
}

// NewChunker creates a chunker. Sizes are in characters.
func NewChunker(maxSize, overlap int, opts ...ChunkerOption) (*Chunker, error) {
	switch {
	case maxSize <= 0:
		return nil, &ChunkingError{MaxSize: maxSize, Overlap: overlap, Reason: "chunk size must be positive"}
	case overlap < 0:
		return nil, &ChunkingError{MaxSize: maxSize, Overlap: overlap, Reason: "overlap must not be negative"}
	case overlap >= maxSize:
		return nil, &ChunkingError{MaxSize: maxSize, Overlap: overlap, Reason: "overlap must be smaller than chunk size"}
	}
	c := &Chunker{
		maxSize:    maxSize,
		overlap:    overlap,
		separators: append([]Separator(nil), DefaultSeparators...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MaxSize returns the maximum chunk length in characters.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the maximum shared length between adjacent chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text in order. Empty text yields no chunks;
// text no longer than the chunk size yields itself.
func (c *Chunker) Split(text string) []string {
	spans := c.Spans(text)
	if len(spans) == 0 {
		return nil
	}
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = text[s.Start:s.End]
	}
	return out
}

// Spans returns the byte ranges of the chunks of text. Each span starts at or before
// the end of the previous one, so the spans cover the text without gaps.
func (c *Chunker) Spans(text string) []Span {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.maxSize {
		return []Span{{Start: 0, End: len(text)}}
	}
	return c.merge(c.units(text, 0, len(text), 0, nil))
}

// units breaks text[start:end] into pieces no longer than maxSize, descending the
// separator hierarchy only for pieces that are still too long.
func (c *Chunker) units(text string, start, end, level int, acc []unit) []unit {
	if level >= len(c.separators) {
		return c.cut(text, start, end, acc)
	}
	sep := c.separators[level].Value
	pos := start
	for pos < end {
		next := end
		if i := strings.Index(text[pos:end], sep); i >= 0 {
			next = pos + i + len(sep)
		}
		n := utf8.RuneCountInString(text[pos:next])
		if n <= c.maxSize {
			acc = append(acc, unit{start: pos, end: next, runes: n})
		} else {
			acc = c.units(text, pos, next, level+1, acc)
		}
		pos = next
	}
	return acc
}

// cut splits text[start:end] every maxSize characters.
func (c *Chunker) cut(text string, start, end int, acc []unit) []unit {
	pos, n := start, 0
	for i := range text[start:end] {
		if n == c.maxSize {
			acc = append(acc, unit{start: pos, end: start + i, runes: n})
			pos, n = start+i, 0
		}
		n++
	}
	if pos < end {
		acc = append(acc, unit{start: pos, end: end, runes: n})
	}
	return acc
}

// merge packs consecutive units greedily into chunks. When a chunk is emitted, its
// leading units are dropped until what remains fits within the overlap and leaves
// room for the next unit.
func (c *Chunker) merge(units []unit) []Span {
	var spans []Span
	var window []unit
	total := 0
	for _, u := range units {
		if total+u.runes > c.maxSize && len(window) > 0 {
			spans = append(spans, Span{Start: window[0].start, End: window[len(window)-1].end})
			for total > c.overlap || (total+u.runes > c.maxSize && total > 0) {
				total -= window[0].runes
				window = window[1:]
			}
		}
		window = append(window, u)
		total += u.runes
	}
	if len(window) > 0 {
		spans = append(spans, Span{Start: window[0].start, End: window[len(window)-1].end})
	}
	return spans
}
