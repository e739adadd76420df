package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one interview transcript with a stable identity and enough
// positional information (line numbering) to support quote locations.
type Document struct {
	ID   string `json:"id"`   // Derived from filename, stable across runs
	Path string `json:"path"` // Source file
	Text string `json:"text"`
}

// Lines splits the document into lines for location lookups. Line numbers
// reported elsewhere are 1-based.
func (d Document) Lines() []string {
	return strings.Split(d.Text, "\n")
}

// Locate returns the 1-based line range of the first occurrence of span in
// the document, or (0, 0) when the span cannot be found verbatim.
func (d Document) Locate(span string) (start, end int) {
	span = strings.TrimSpace(span)
	if span == "" {
		return 0, 0
	}

	idx := strings.Index(d.Text, span)
	if idx < 0 {
		// Extraction backends normalize whitespace; retry with the first
		// line of the span, which survives normalization most often.
		first := span
		if nl := strings.IndexByte(span, '\n'); nl > 0 {
			first = span[:nl]
		}
		idx = strings.Index(d.Text, strings.TrimSpace(first))
		if idx < 0 {
			return 0, 0
		}
	}

	start = 1 + strings.Count(d.Text[:idx], "\n")
	end = start + strings.Count(span, "\n")
	return start, end
}

// Load reads all transcript files (.txt) from a directory. Document ids
// are the filenames without extension; files are returned in id order so
// corpus concatenation is deterministic.
func Load(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}

		docs = append(docs, Document{
			ID:   strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Path: path,
			Text: text,
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no transcript files found in %s", dir)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Concatenate joins all documents into the single corpus text consumed by
// the discovery phases, with a header marking each document boundary.
func Concatenate(docs []Document) string {
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== INTERVIEW: %s ===\n\n", doc.ID)
		b.WriteString(doc.Text)
	}
	return b.String()
}
