package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecture-chat/cli/internal/ollama"
)

func TestOllamaGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollama.GenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.Equal(t, "prompt text", req.Prompt)
		assert.False(t, req.Stream)
		assert.Equal(t, 0.2, req.Options["temperature"])
		_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: "  An answer.\n", Done: true})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(ollama.NewClient(srv.URL), "llama3.2", 0.2)
	out, err := g.Generate(context.Background(), "prompt text")
	require.NoError(t, err)
	assert.Equal(t, "An answer.", out)
}

func TestOpenAIGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, "user", req.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" Trees are graphs. "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("k")
	cfg.BaseURL = srv.URL + "/v1"
	g := NewOpenAIGenerator(openai.NewClientWithConfig(cfg), "", 0.3, 512)

	out, err := g.Generate(context.Background(), "what are trees?")
	require.NoError(t, err)
	assert.Equal(t, "Trees are graphs.", out)
}

func TestOpenAIGeneratorNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("k")
	cfg.BaseURL = srv.URL + "/v1"
	_, err := NewOpenAIGenerator(openai.NewClientWithConfig(cfg), "m", 0, 0).Generate(context.Background(), "q")
	assert.ErrorContains(t, err, "no choices")
}
