// Package generation adapts generative language models to a single prompt-in,
// text-out contract.
package generation

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lecture-chat/cli/internal/ollama"
)

// Generator produces text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OllamaGenerator generates with a local Ollama model
type OllamaGenerator struct {
	client      *ollama.Client
	model       string
	temperature float64
}

// NewOllamaGenerator creates a generator for the given model
func NewOllamaGenerator(client *ollama.Client, model string, temperature float64) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model, temperature: temperature}
}

// Generate runs a non-streaming completion
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.client.Generate(ctx, &ollama.GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Options: map[string]interface{}{
			"temperature": g.temperature,
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// OpenAIGenerator generates with an OpenAI compatible chat model
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIGenerator creates a chat completion generator
func NewOpenAIGenerator(client *openai.Client, model string, temperature float32, maxTokens int) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: client, model: model, temperature: temperature, maxTokens: maxTokens}
}

// Generate sends the prompt as a single user message
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
