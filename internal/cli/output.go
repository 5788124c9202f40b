// Package cli writes command results for the kotae CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

// ParseFormat validates a --output flag value. Empty means text.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer with its sources. The retrieved context is included when showContext is set.
func WriteAnswer(w io.Writer, a *models.Answer, format OutputFormat, showContext bool) error {
	if format == OutputJSON {
		if !showContext {
			c := *a
			c.Context = ""
			a = &c
		}
		return writeJSON(w, a)
	}
	fmt.Fprintln(w, "Answer")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, a.Text)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources")
	fmt.Fprintln(w, rule)
	if len(a.Sources) == 0 {
		fmt.Fprintln(w, "(none)")
	}
	for _, s := range a.Sources {
		fmt.Fprintf(w, "- %s\n", s)
	}
	if showContext && a.Context != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Retrieved context")
		fmt.Fprintln(w, rule)
		fmt.Fprintln(w, a.Context)
	}
	return nil
}

// WriteSearchResults writes keyword hits with a short excerpt of each chunk.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d chunks in %dms across %d files\n\n", len(response.Hits), response.QueryTime, len(response.Sources))
	for _, hit := range response.Hits {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | %s\n", hit.Rank, hit.Score, hit.ID)
		fmt.Fprintf(w, "Source: %s", hit.Metadata.SourceFile)
		if hit.Metadata.Title != "" {
			fmt.Fprintf(w, " (%s)", hit.Metadata.Title)
		}
		fmt.Fprintf(w, "\n\n%s\n\n", utils.Truncate(utils.CollapseSpace(hit.Text), 200))
	}
	return nil
}

// WriteBuildSummary writes the end-of-ingestion report.
func WriteBuildSummary(w io.Writer, s *models.BuildSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintln(w, "Build summary")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run:          %s\n", s.RunID)
	if s.Collection != "" {
		fmt.Fprintf(w, "Collection:   %s\n", s.Collection)
	}
	fmt.Fprintf(w, "Files:        %d\n", s.Files)
	fmt.Fprintf(w, "Processed:    %d\n", s.Processed)
	fmt.Fprintf(w, "Skipped:      %d\n", s.Skipped)
	fmt.Fprintf(w, "Failed:       %d\n", s.Failed)
	fmt.Fprintf(w, "Chunks added: %d\n", s.ChunksAdded)
	fmt.Fprintf(w, "Elapsed:      %s\n", s.Elapsed.Round(time.Millisecond))
	return nil
}

// WriteStatus writes collection statistics.
func WriteStatus(w io.Writer, st *models.CollectionStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	if st.Info != nil {
		fmt.Fprintf(w, "Collection:  %s (%s)\n", st.Info.Name, st.Info.ID)
		fmt.Fprintf(w, "Embedding:   %s, %d dims\n", st.Info.EmbeddingModel, st.Info.Dimensions)
		fmt.Fprintf(w, "Created:     %s\n", st.Info.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(w, "Chunks:      %d\n", st.Chunks)
	fmt.Fprintf(w, "Vectors:     %d\n", st.Vectors)
	fmt.Fprintf(w, "Keyword:     %d\n", st.KeywordDocs)
	fmt.Fprintf(w, "Disk usage:  %s\n", FormatBytes(st.DiskBytes))
	fmt.Fprintf(w, "Sources:     %d\n", len(st.Sources))
	for _, s := range st.Sources {
		fmt.Fprintf(w, "  %-40s %5d chunks\n", s.SourceFile, s.Chunks)
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
