package parser

import (
	"context"
	"strings"
	"testing"
)

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	doc, err := p.Parse(context.Background(), strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", doc.Title)
	}
	want := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	if doc.Text != want {
		t.Errorf("expected text %q, got %q", want, doc.Text)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(context.Background(), strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
	if doc.Text != "" {
		t.Errorf("expected empty text, got %q", doc.Text)
	}
}

func TestTextParser_SingleLine(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(context.Background(), strings.NewReader("Hello world"), "single.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "single" {
		t.Errorf("expected title %q, got %q", "single", doc.Title)
	}
	if doc.Text != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", doc.Text)
	}
}

func TestTextParser_MultipleBlankLines(t *testing.T) {
	// Multiple consecutive blank lines should not produce empty paragraphs.
	input := "Para one.\n\n\n\nPara two."
	p := &TextParser{}
	doc, err := p.Parse(context.Background(), strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "Para one.\n\nPara two." {
		t.Errorf("expected collapsed paragraphs, got %q", doc.Text)
	}
}

func TestTextParser_WhitespaceOnlyLines(t *testing.T) {
	// Lines with only whitespace should be treated as blank.
	input := "Para one.\n   \nPara two."
	p := &TextParser{}
	doc, err := p.Parse(context.Background(), strings.NewReader(input), "ws.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "Para one.\n\nPara two." {
		t.Errorf("expected two paragraphs, got %q", doc.Text)
	}
}

func TestRegistry_ForFile(t *testing.T) {
	reg := NewRegistry(nil, true)

	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"notes.txt", false},
		{"notes.md", false},
		{"data.csv", false},
		{"page.html", false},
		{"page.HTM", false},
		{"report.pdf", false},
		{"paper.docx", false},
		{"archive.zip", true},
	}
	for _, tt := range tests {
		_, err := reg.ForFile(tt.filename)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q): err=%v, wantErr=%v", tt.filename, err, tt.wantErr)
		}
	}
}

func TestIsSupportedExtension(t *testing.T) {
	if !IsSupportedExtension("doc.PDF") {
		t.Error("expected .PDF to be supported (case-insensitive)")
	}
	if IsSupportedExtension("video.mp4") {
		t.Error("expected .mp4 to be unsupported")
	}
	// Everything ForFile can parse must pass the upload gate too.
	for _, name := range []string{
		"notes.txt", "notes.md", "notes.markdown", "data.csv",
		"page.html", "page.htm", "paper.pdf", "report.docx",
	} {
		if _, err := (&Registry{pdf: &PDFParser{}}).ForFile(name); err != nil {
			t.Errorf("ForFile(%q) unexpectedly failed: %v", name, err)
		}
		if !IsSupportedExtension(name) {
			t.Errorf("IsSupportedExtension(%q) = false, want true", name)
		}
	}
}
