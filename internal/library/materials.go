package library

import (
	"context"
	"fmt"
	"strings"
)

// MaterialKind selects the type of study material to generate.
type MaterialKind string

const (
	MaterialExam    MaterialKind = "exam"
	MaterialSummary MaterialKind = "summary"
)

// ParseMaterialKind validates a kind string from the API.
func ParseMaterialKind(s string) (MaterialKind, error) {
	switch MaterialKind(strings.ToLower(s)) {
	case MaterialExam:
		return MaterialExam, nil
	case MaterialSummary:
		return MaterialSummary, nil
	default:
		return "", fmt.Errorf("unknown material kind %q (want exam or summary)", s)
	}
}

// GenerateMaterials produces exam questions or a study summary for a
// document. Context comes from the flat leaf index so the whole
// document is eligible, not only the nodes a traversal would visit.
func (l *Library) GenerateMaterials(ctx context.Context, docID string, kind MaterialKind, topic string, count int) (string, error) {
	eng, err := l.Engine(docID)
	if err != nil {
		return "", err
	}

	if topic == "" {
		topic = "the main ideas of the document"
	}
	excerpt, err := eng.Context(ctx, topic)
	if err != nil {
		return "", fmt.Errorf("retrieve context for %s: %w", docID, err)
	}

	var prompt string
	switch kind {
	case MaterialExam:
		if count <= 0 {
			count = 5
		}
		prompt = examPrompt(topic, count, excerpt)
	case MaterialSummary:
		prompt = summaryPrompt(topic, excerpt)
	default:
		return "", fmt.Errorf("unknown material kind %q", kind)
	}

	var out string
	err = l.retry.Do(ctx, func() error {
		var genErr error
		out, genErr = l.provider.Answerer().Answer(ctx, "", prompt)
		return genErr
	})
	if err != nil {
		return "", fmt.Errorf("generate %s for %s: %w", kind, docID, err)
	}
	return out, nil
}

func examPrompt(topic string, count int, excerpt string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are preparing practice exam questions about %s.\n\n", topic)
	fmt.Fprintf(&sb, "Write exactly %d questions based strictly on the material below. ", count)
	sb.WriteString("Mix factual recall and conceptual questions. ")
	sb.WriteString("After each question, give the correct answer on the next line prefixed with \"Answer:\".\n\n")
	sb.WriteString("Material:\n")
	sb.WriteString(excerpt)
	return sb.String()
}

func summaryPrompt(topic string, excerpt string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a structured study summary of %s.\n\n", topic)
	sb.WriteString("Use short sections with headings, cover every distinct point in the material, ")
	sb.WriteString("and keep the wording faithful to the source. Base the summary strictly on the material below.\n\n")
	sb.WriteString("Material:\n")
	sb.WriteString(excerpt)
	return sb.String()
}
