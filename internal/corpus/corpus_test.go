package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDocument_Locate(t *testing.T) {
	doc := Document{
		ID: "interview_01",
		Text: "Interviewer: How did your team start using AI tools?\n" +
			"Sam: It began with code review.\n" +
			"We were skeptical at first,\n" +
			"but the suggestions kept being right.\n" +
			"Interviewer: What changed?",
	}

	tests := []struct {
		name      string
		span      string
		wantStart int
		wantEnd   int
	}{
		{"single line", "Sam: It began with code review.", 2, 2},
		{"multi line", "We were skeptical at first,\nbut the suggestions kept being right.", 3, 4},
		{"first line", "Interviewer: How did your team start using AI tools?", 1, 1},
		{"not found", "this span does not exist", 0, 0},
		{"empty span", "", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := doc.Locate(tt.span)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Locate(%q) = (%d, %d), want (%d, %d)", tt.span, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestDocument_LocateNormalizedWhitespace(t *testing.T) {
	doc := Document{Text: "line one\nline two\nline three"}

	// Backend rewrote the tail of the span; the first line should still
	// anchor the location.
	start, end := doc.Locate("line two\nline  three  reworded")
	if start != 2 {
		t.Errorf("fallback start = %d, want 2", start)
	}
	if end != 3 {
		t.Errorf("fallback end = %d, want 3", end)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("interview_02.txt", "Second transcript.")
	write("interview_01.txt", "First transcript.")
	write("notes.md", "Ignored: wrong extension.")
	write("empty.txt", "   \n  ")

	docs, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "interview_01" || docs[1].ID != "interview_02" {
		t.Errorf("documents not in id order: %s, %s", docs[0].ID, docs[1].ID)
	}
	if docs[0].Text != "First transcript." {
		t.Errorf("unexpected text: %q", docs[0].Text)
	}
}

func TestLoad_EmptyDir(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for directory with no transcripts")
	}
}

func TestConcatenate(t *testing.T) {
	docs := []Document{
		{ID: "a", Text: "alpha text"},
		{ID: "b", Text: "beta text"},
	}

	joined := Concatenate(docs)

	if !strings.Contains(joined, "=== INTERVIEW: a ===") {
		t.Error("missing header for document a")
	}
	if !strings.Contains(joined, "=== INTERVIEW: b ===") {
		t.Error("missing header for document b")
	}
	if strings.Index(joined, "alpha text") > strings.Index(joined, "beta text") {
		t.Error("documents out of order")
	}
}
