package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	batches [][]string
	dims    func(call int) int
	err     error
}

func (f *fakeEmbedder) Model() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	call := len(f.batches)
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	dim := 3
	if f.dims != nil {
		dim = f.dims(call)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
		out[i][0] = float32(call*100 + i)
	}
	return out, nil
}

func TestEmbedAllBatches(t *testing.T) {
	f := &fakeEmbedder{}
	texts := []string{"a", "b", "c", "d", "e"}

	vecs, err := EmbedAll(context.Background(), f, texts, 2)
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, f.batches)
	assert.Equal(t, float32(200), vecs[4][0])
}

func TestEmbedAllDimensionMismatch(t *testing.T) {
	f := &fakeEmbedder{dims: func(call int) int { return 3 + call }}
	_, err := EmbedAll(context.Background(), f, []string{"a", "b", "c"}, 2)
	assert.ErrorContains(t, err, "dimension")
}

func TestEmbedAllFailsWholeCall(t *testing.T) {
	f := &fakeEmbedder{err: errors.New("model unloaded")}
	vecs, err := EmbedAll(context.Background(), f, []string{"a"}, 0)
	assert.Nil(t, vecs)
	assert.ErrorContains(t, err, "model unloaded")
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, []string{"first", "second"}, req.Input)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      req.Model,
			"embeddings": [][]float32{{1, 0}, {0, 1}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "")
	vecs, err := e.EmbedBatch(context.Background(), []string{" first ", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, "nomic-embed-text", e.Model())
}

func TestOllamaEmbedderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "missing")
	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "ollama API error: 404")

	_, err = e.Embed(context.Background(), "   ")
	assert.ErrorContains(t, err, "cannot be empty")
}

func TestOpenAIEmbedderReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			]
		}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("k")
	cfg.BaseURL = srv.URL + "/v1"
	e := NewOpenAIEmbedder(openai.NewClientWithConfig(cfg), "")

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, "text-embedding-3-small", e.Model())
}
