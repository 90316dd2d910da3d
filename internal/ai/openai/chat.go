package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/liuwen-dev/studyforge/internal/ai"
)

const (
	summarySystemPrompt = "You are a professional text summarization assistant."
	answerSystemPrompt  = "You answer strictly from the provided background " +
		"knowledge. Do not invent facts that are not supported by it."
)

// Summarizer implements ai.Summarizer over an OpenAI-compatible chat
// endpoint.
type Summarizer struct {
	client llms.Model
	log    *slog.Logger
}

var _ ai.Summarizer = (*Summarizer)(nil)

// Summarize condenses text into at most maxTokens tokens, preserving as
// many key details as possible.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	prompt := "Summarize the following content into one concise passage. " +
		"Keep as many key details as possible; stay objective and accurate:\n\n---\n\n" + text
	out, err := generate(ctx, s.client, summarySystemPrompt, prompt,
		llms.WithTemperature(0.2), llms.WithMaxTokens(maxTokens))
	if err != nil {
		s.log.Error("summarization failed", "err", err)
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

// Answerer implements ai.Answerer over an OpenAI-compatible chat
// endpoint.
type Answerer struct {
	client llms.Model
	log    *slog.Logger
}

var _ ai.Answerer = (*Answerer)(nil)

// Answer responds to the question grounded in contextText. An empty
// contextText passes the question through unframed, which the material
// generator relies on for fully assembled prompts.
func (a *Answerer) Answer(ctx context.Context, contextText, question string) (string, error) {
	prompt := question
	if contextText != "" {
		prompt = "Answer the question concisely and accurately based on the " +
			"background knowledge below.\n\nBackground knowledge:\n---\n" +
			contextText + "\n---\n\nQuestion:\n" + question
	}
	out, err := generate(ctx, a.client, answerSystemPrompt, prompt, llms.WithTemperature(0.0))
	if err != nil {
		a.log.Error("answer generation failed", "err", err)
		return "", fmt.Errorf("answer: %w", err)
	}
	return out, nil
}

func generate(ctx context.Context, client llms.Model, system, user string, opts ...llms.CallOption) (a string, err error) {
	content := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(system)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(user)}},
	}
	response, err := client.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}
