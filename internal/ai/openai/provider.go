// Package openai implements the ai collaborator interfaces against any
// OpenAI-compatible API (Ollama, vLLM, hosted endpoints) via langchaingo.
package openai

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/liuwen-dev/studyforge/internal/ai"
)

// Config holds connection settings for the OpenAI-compatible services.
type Config struct {
	// Host is the base URL, e.g. "http://localhost:11434/v1".
	Host string
	// Token is the API key; local services accept any non-empty value.
	Token string
	// EmbeddingModel names the embedding model.
	EmbeddingModel string
	// ChatModel names the chat model used for summaries and answers.
	ChatModel string
}

// Validate normalizes the host and checks required fields.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("openai: host is required")
	}
	if !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
	if c.EmbeddingModel == "" {
		return errors.New("openai: embedding model is required")
	}
	if c.ChatModel == "" {
		return errors.New("openai: chat model is required")
	}
	if c.Token == "" {
		c.Token = "none"
	}
	return nil
}

// Provider bundles the embedder, summarizer and answerer behind one
// constructor so the process wires collaborators in a single place.
type Provider struct {
	embedder   *Embedder
	summarizer *Summarizer
	answerer   *Answerer
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates all model clients from one config.
func NewProvider(cfg Config, log *slog.Logger) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(cfg, log)
	if err != nil {
		return nil, err
	}

	chat, err := openai.New(
		openai.WithBaseURL(cfg.Host),
		openai.WithToken(cfg.Token),
		openai.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Provider{
		embedder:   embedder,
		summarizer: &Summarizer{client: chat, log: log.With("component", "openai-summarizer")},
		answerer:   &Answerer{client: chat, log: log.With("component", "openai-answerer")},
	}, nil
}

func (p *Provider) Embedder() ai.Embedder     { return p.embedder }
func (p *Provider) Summarizer() ai.Summarizer { return p.summarizer }
func (p *Provider) Answerer() ai.Answerer     { return p.answerer }

// Close releases provider resources. The underlying HTTP clients hold
// no long-lived connections that need explicit teardown.
func (p *Provider) Close() error { return nil }
