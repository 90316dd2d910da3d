package tree

import (
	"slices"
	"strings"
)

// Chunk is a token-bounded slice of source text destined to become one
// leaf node. Timestamp is the start of the first contributing transcript
// segment in seconds, nil for untimed sources.
type Chunk struct {
	Text      string
	Timestamp *int
}

// Segment is one time-aligned piece of a transcript.
type Segment struct {
	Start int // seconds from the beginning of the recording
	Text  string
}

// ChunkConfig controls chunking behavior.
type ChunkConfig struct {
	ChunkSize    int // target chunk size in tokens
	ChunkOverlap int // overlap between consecutive chunks in tokens
	MinChunk     int // minimum chunk size to emit
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:    250,
		ChunkOverlap: 40,
		MinChunk:     10,
	}
}

func (cfg *ChunkConfig) clamp() {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 250
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.MinChunk <= 0 {
		cfg.MinChunk = 10
	}
}

// ChunkText splits plain text into token-bounded chunks with overlap.
// Chunks carry no timestamps. A piece shorter than MinChunk folds into
// the preceding chunk so a document's tail is never lost.
func ChunkText(text string, cfg ChunkConfig) []Chunk {
	cfg.clamp()
	var chunks []Chunk
	for _, part := range splitText(text, cfg.ChunkSize, cfg.ChunkOverlap) {
		if EstimateTokens(part) >= cfg.MinChunk || len(chunks) == 0 {
			chunks = append(chunks, Chunk{Text: part})
			continue
		}
		last := &chunks[len(chunks)-1]
		if extra := beyondOverlap(last.Text, part); extra != "" {
			last.Text += " " + extra
		}
	}
	if len(chunks) == 0 && strings.TrimSpace(text) != "" {
		chunks = []Chunk{{Text: strings.TrimSpace(text)}}
	}
	return chunks
}

// beyondOverlap strips from part the longest word prefix that is
// already the trailing overlap of prev, returning only the new words.
func beyondOverlap(prev, part string) string {
	pw := strings.Fields(prev)
	cw := strings.Fields(part)
	max := min(len(pw), len(cw))
	for n := max; n > 0; n-- {
		if slices.Equal(pw[len(pw)-n:], cw[:n]) {
			return strings.Join(cw[n:], " ")
		}
	}
	return strings.Join(cw, " ")
}

// ChunkSegments packs time-aligned segments into chunks. Segments are
// kept whole and no overlap is applied, so every chunk's timestamp is
// exactly the start of its first segment.
func ChunkSegments(segments []Segment, cfg ChunkConfig) []Chunk {
	cfg.clamp()
	var chunks []Chunk
	var current strings.Builder
	currentTokens := 0
	var start *int

	flush := func() {
		if current.Len() == 0 {
			return
		}
		ts := start
		chunks = append(chunks, Chunk{Text: current.String(), Timestamp: ts})
		current.Reset()
		currentTokens = 0
		start = nil
	}

	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		tokens := EstimateTokens(text)
		if currentTokens > 0 && currentTokens+tokens > cfg.ChunkSize {
			flush()
		}
		if start == nil {
			s := seg.Start
			start = &s
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(text)
		currentTokens += tokens
	}
	flush()
	return chunks
}

// EstimateTokens gives a rough token count using a words-based heuristic.
// Exact tokenization is not required for chunking.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens < 1 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}

// splitText breaks text into chunks of approximately targetTokens, with
// overlap. Paragraph boundaries are preferred; oversized paragraphs are
// split by sentences.
func splitText(text string, targetTokens, overlapTokens int) []string {
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		if paraTokens > targetTokens {
			if currentTokens > 0 {
				result = append(result, current.String())
				current.Reset()
				currentTokens = 0
			}
			result = append(result, splitBySentences(para, targetTokens, overlapTokens)...)
			continue
		}

		if currentTokens+paraTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := overlapTail(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func splitBySentences(text string, targetTokens, overlapTokens int) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range sentences {
		sentTokens := EstimateTokens(sent)

		if currentTokens+sentTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := overlapTail(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		cjkEnd := r == '。' || r == '！' || r == '？'
		asciiEnd := (r == '.' || r == '!' || r == '?') &&
			(i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\n')
		if cjkEnd || asciiEnd {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// overlapTail extracts the last N tokens worth of text for overlap.
func overlapTail(text string, targetTokens int) string {
	words := strings.Fields(text)
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}
