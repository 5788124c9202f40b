package indexer

import (
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustChunker(t *testing.T, size, overlap int, opts ...ChunkerOption) *Chunker {
	t.Helper()
	c, err := NewChunker(size, overlap, opts...)
	if err != nil {
		t.Fatalf("NewChunker(%d, %d): %v", size, overlap, err)
	}
	return c
}

func TestNewChunker_invalid(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap)
			var ce *ChunkingError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ChunkingError, got %v", err)
			}
		})
	}
}

func TestChunker_emptyAndShort(t *testing.T) {
	c := mustChunker(t, 1000, 200)
	if got := c.Split(""); len(got) != 0 {
		t.Errorf("empty text: got %v", got)
	}
	text := strings.Repeat("a", 1000)
	got := c.Split(text)
	if len(got) != 1 || got[0] != text {
		t.Errorf("text at chunk size should be one identical chunk, got %d chunks", len(got))
	}
}

func TestChunker_Split(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		text          string
		want          []string
	}{
		{
			name: "word boundaries with overlap",
			size: 10, overlap: 4,
			text: "one two three four five six",
			want: []string{"one two ", "two three ", "four five ", "six"},
		},
		{
			name: "paragraphs preferred",
			size: 12, overlap: 0,
			text: "aaaa\n\nbbbb\n\ncccc",
			want: []string{"aaaa\n\nbbbb\n\n", "cccc"},
		},
		{
			name: "sentences",
			size: 15, overlap: 0,
			text: "First one. Second one. Third one.",
			want: []string{"First one. ", "Second one. ", "Third one."},
		},
		{
			name: "hard cut when no separator applies",
			size: 4, overlap: 0,
			text: "abcdefghij",
			want: []string{"abcd", "efgh", "ij"},
		},
		{
			name: "multibyte characters counted as one",
			size: 5, overlap: 0,
			text: "あいうえおかきくけこさ",
			want: []string{"あいうえお", "かきくけこ", "さ"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustChunker(t, tt.size, tt.overlap)
			got := c.Split(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestChunker_customSeparators(t *testing.T) {
	c := mustChunker(t, 6, 0, WithSeparators([]Separator{{Name: "pipe", Value: "|"}, {Name: "empty"}}))
	got := c.Split("abc|def|ghi")
	want := []string{"abc|", "def|", "ghi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func randomText(r *rand.Rand, words int) string {
	vocab := []string{"the", "broker", "restarts", "after", "deploy", "configuration", "x", "超長い単語", "a-very-long-hyphenated-identifier-without-spaces"}
	var b strings.Builder
	for i := 0; i < words; i++ {
		b.WriteString(vocab[r.Intn(len(vocab))])
		switch r.Intn(12) {
		case 0:
			b.WriteString("\n\n")
		case 1:
			b.WriteString("\n")
		case 2:
			b.WriteString(". ")
		default:
			b.WriteString(" ")
		}
	}
	return b.String()
}

func TestChunker_properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	configs := []struct{ size, overlap int }{{1000, 200}, {50, 10}, {20, 0}, {7, 3}, {3, 2}}
	for _, cfg := range configs {
		c := mustChunker(t, cfg.size, cfg.overlap)
		for n := 0; n < 20; n++ {
			text := randomText(r, 5+r.Intn(400))
			spans := c.Spans(text)
			if len(spans) == 0 {
				t.Fatal("non-empty text produced no chunks")
			}
			if spans[0].Start != 0 || spans[len(spans)-1].End != len(text) {
				t.Fatalf("spans do not cover text: first=%v last=%v len=%d", spans[0], spans[len(spans)-1], len(text))
			}
			var rebuilt strings.Builder
			rebuilt.WriteString(text[spans[0].Start:spans[0].End])
			for i, s := range spans {
				chunk := text[s.Start:s.End]
				if !utf8.ValidString(chunk) {
					t.Fatalf("chunk %d splits a character", i)
				}
				if got := utf8.RuneCountInString(chunk); got > cfg.size {
					t.Fatalf("size=%d: chunk %d has %d characters", cfg.size, i, got)
				}
				if i == 0 {
					continue
				}
				prev := spans[i-1]
				if s.Start > prev.End {
					t.Fatalf("gap between chunk %d and %d", i-1, i)
				}
				if s.Start <= prev.Start || s.End <= prev.End {
					t.Fatalf("chunk %d does not advance: prev=%v cur=%v", i, prev, s)
				}
				if shared := utf8.RuneCountInString(text[s.Start:prev.End]); shared > cfg.overlap {
					t.Fatalf("overlap=%d: chunks %d and %d share %d characters", cfg.overlap, i-1, i, shared)
				}
				rebuilt.WriteString(text[prev.End:s.End])
			}
			if rebuilt.String() != text {
				t.Fatal("removing overlaps does not reconstruct the text")
			}
			if again := c.Spans(text); !reflect.DeepEqual(again, spans) {
				t.Fatal("chunking is not deterministic")
			}
		}
	}
}
