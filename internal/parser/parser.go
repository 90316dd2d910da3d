// Package parser converts uploaded document files into plain text
// ready for chunking and summarization-tree construction.
package parser

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/liuwen-dev/studyforge/internal/ai"
)

// Document is the parse result: a display title and the flattened text.
// Headings are kept inline as their own paragraphs so the chunker sees
// them in reading order.
type Document struct {
	Title string
	Text  string
}

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Registry selects parsers by file extension. The PDF parser is shared
// so its fallbacks are configured once.
type Registry struct {
	pdf *PDFParser
}

// NewRegistry creates a registry. ocr may be nil, which disables the
// scanned-page fallback for PDFs.
func NewRegistry(ocr ai.OCR, fallbackPdftotext bool) *Registry {
	return &Registry{
		pdf: &PDFParser{OCR: ocr, FallbackPdftotext: fallbackPdftotext},
	}
}

// ForFile returns the appropriate parser for a filename.
func (reg *Registry) ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return reg.pdf, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func joinParagraphs(paragraphs []string) string {
	kept := paragraphs[:0:0]
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
