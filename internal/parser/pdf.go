package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/liuwen-dev/studyforge/internal/ai"
)

// PDFParser handles PDF files. It tries the Go library first, then
// falls back to pdftotext if available. Scanned PDFs with no text
// layer are rasterized with pdftoppm and sent to the OCR service.
type PDFParser struct {
	FallbackPdftotext bool
	OCR               ai.OCR
}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, filename string) (*Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "studyforge-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(ctx, tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	if strings.TrimSpace(stripFormFeeds(text)) == "" && p.OCR != nil {
		text, err = p.recognizePages(ctx, tmpPath)
		if err != nil {
			return nil, fmt.Errorf("ocr pdf: %w", err)
		}
	}

	var paragraphs []string
	for _, page := range strings.Split(text, "\f") {
		if page = strings.TrimSpace(page); page != "" {
			paragraphs = append(paragraphs, page)
		}
	}

	return &Document{
		Title: titleFromFilename(filename),
		Text:  joinParagraphs(paragraphs),
	}, nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// recognizePages rasterizes each page with pdftoppm and runs OCR on
// the resulting images.
func (p *PDFParser) recognizePages(ctx context.Context, path string) (string, error) {
	dir, err := os.MkdirTemp("", "studyforge-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", "200", path, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out)))
	}

	images, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return "", err
	}
	sort.Strings(images)

	var buf strings.Builder
	for i, img := range images {
		data, err := os.ReadFile(img)
		if err != nil {
			return "", fmt.Errorf("read page image: %w", err)
		}
		text, err := p.OCR.Recognize(ctx, data)
		if err != nil {
			return "", fmt.Errorf("recognize page %d: %w", i+1, err)
		}
		if i > 0 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func stripFormFeeds(text string) string {
	return strings.ReplaceAll(text, "\f", "")
}
