// Package mock provides deterministic, in-process implementations of
// the ai collaborator interfaces for tests.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/liuwen-dev/studyforge/internal/ai"
)

// Embedder returns preset vectors when available and otherwise derives
// a stable pseudo-embedding from the text, so identical inputs always
// embed identically.
type Embedder struct {
	mu      sync.Mutex
	Vectors map[string][]float32 // optional exact-text overrides
	Dim     int
	Err     error
	Calls   int
}

var _ ai.Embedder = (*Embedder)(nil)

func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	if v, ok := e.Vectors[text]; ok {
		return v, nil
	}
	return hashVector(text, e.dim()), nil
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := e.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *Embedder) dim() int {
	if e.Dim > 0 {
		return e.Dim
	}
	return 8
}

func hashVector(text string, dim int) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33))/float32(1<<30) - 1
		norm += float64(vec[i]) * float64(vec[i])
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// Summarizer returns a stable marker string naming the input length.
type Summarizer struct {
	mu    sync.Mutex
	Err   error
	Calls int
}

var _ ai.Summarizer = (*Summarizer)(nil)

func (s *Summarizer) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if s.Err != nil {
		return "", s.Err
	}
	head := text
	if len(head) > 24 {
		head = head[:24]
	}
	return fmt.Sprintf("summary[%d chars: %s]", len(text), head), nil
}

// Answerer echoes the question with a fixed prefix.
type Answerer struct {
	mu           sync.Mutex
	Err          error
	Calls        int
	LastContext  string
	LastQuestion string
}

var _ ai.Answerer = (*Answerer)(nil)

func (a *Answerer) Answer(ctx context.Context, contextText, question string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls++
	if a.Err != nil {
		return "", a.Err
	}
	a.LastContext = contextText
	a.LastQuestion = question
	return "answer: " + question, nil
}

// Transcriber returns a fixed transcript regardless of the audio path.
type Transcriber struct {
	Transcript string
	Err        error
}

var _ ai.Transcriber = (*Transcriber)(nil)

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if t.Err != nil {
		return "", t.Err
	}
	return t.Transcript, nil
}

// OCR returns fixed text for any image.
type OCR struct {
	Text string
	Err  error
}

var _ ai.OCR = (*OCR)(nil)

func (o *OCR) Recognize(ctx context.Context, image []byte) (string, error) {
	if o.Err != nil {
		return "", o.Err
	}
	return o.Text, nil
}

// Provider bundles the mocks behind the ai.Provider interface.
type Provider struct {
	Emb *Embedder
	Sum *Summarizer
	Ans *Answerer
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a provider with fresh mocks.
func NewProvider() *Provider {
	return &Provider{Emb: &Embedder{}, Sum: &Summarizer{}, Ans: &Answerer{}}
}

func (p *Provider) Embedder() ai.Embedder     { return p.Emb }
func (p *Provider) Summarizer() ai.Summarizer { return p.Sum }
func (p *Provider) Answerer() ai.Answerer     { return p.Ans }
func (p *Provider) Close() error              { return nil }
