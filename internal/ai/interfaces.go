// Package ai defines the external model collaborators the service
// consumes: embedding, summarization, answering, transcription and OCR.
// Implementations must be safe for concurrent use.
package ai

import "context"

// Embedder generates vector embeddings from text for similarity search.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in a batch.
	// The returned slice is in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Summarizer condenses text into a bounded summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)
}

// Answerer answers a question grounded in the supplied context text.
type Answerer interface {
	Answer(ctx context.Context, contextText, question string) (string, error)
}

// Transcriber converts a long-form audio file into text. Transcription
// may take minutes; implementations poll the remote service until the
// result is ready or ctx is done.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// OCR recognizes text in a page image.
type OCR interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Provider aggregates the model services used by tree construction and
// retrieval, so they can be injected as one constructor parameter.
type Provider interface {
	Embedder() Embedder
	Summarizer() Summarizer
	Answerer() Answerer
	Close() error
}
