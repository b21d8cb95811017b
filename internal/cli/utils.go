// Package cli formats kiritori responses for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/vector"
	"github.com/hyperjump/kiritori/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates s. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const rule = "─────────────────────────────────────────────────────────"

// WriteRetrieval writes a retrieval response in the given format.
func WriteRetrieval(w io.Writer, resp *models.RetrievalResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, resp)
	case OutputCompact:
		for i, r := range resp.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s#%s\t%s\n", i+1, r.Score, r.Method,
				r.Metadata["filename"], r.Metadata["chunk_index"], oneLine(Truncate(r.Content, 80)))
		}
		return nil
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (strategy %s, outcome %s)\n\n",
		len(resp.Results), resp.QueryTime, resp.Strategy, resp.Outcome)
	for i, r := range resp.Results {
		writeResult(w, i+1, r)
	}
	writeDiagnostics(w, resp.Diagnostics)
	return nil
}

func writeResult(w io.Writer, rank int, r *models.RetrievalResult) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "[%s] Rank: %d | Score: %.4f\n", r.Method, rank, r.Score)
	fmt.Fprintf(w, "File: %s (%s) chunk %s\n", r.Metadata["filename"], r.Metadata["file_id"], r.Metadata["chunk_index"])
	fmt.Fprintf(w, "\n%s\n\n", Truncate(r.Content, 200))
}

func writeDiagnostics(w io.Writer, diags []string) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintln(w, "--- Diagnostics ---")
	for _, d := range diags {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

// WriteAnswer writes a composed answer with its sources.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n", ans.Answer)
	if len(ans.Sources) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nSources:")
	for i, s := range ans.Sources {
		fmt.Fprintf(w, "  [%d] %s chunk %s (%.4f)\n", i+1, s.Metadata["filename"], s.Metadata["chunk_index"], s.Score)
	}
	return nil
}

// WriteDocuments writes a document listing.
func WriteDocuments(w io.Writer, docs []*models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, docs)
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d chunks\tgen %d\n", d.FileID, d.Filename, d.Strategy, d.ChunkCount, d.Generation)
	}
	return nil
}

// WriteChunks writes chunk previews.
func WriteChunks(w io.Writer, chunks []models.Chunk, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, chunks)
	}
	for _, c := range chunks {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "#%d [%d:%d] %s\n%s\n", c.Index, c.StartChar, c.EndChar, c.Strategy, c.Text)
	}
	fmt.Fprintf(w, "\n%d chunks\n", len(chunks))
	return nil
}

// WriteHits writes stored chunks of one document.
func WriteHits(w io.Writer, hits []vector.Hit, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, hits)
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%s\t%s\n", h.ID, oneLine(Truncate(h.Text, 100)))
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	return utils.Truncate(s, maxLen)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
