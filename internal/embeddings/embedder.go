// Package embeddings maps chunk and question text to fixed-length vectors.
package embeddings

import (
	"context"
	"fmt"
	"strings"
)

// DefaultBatchSize is the number of texts sent per embedding request
const DefaultBatchSize = 50

// Embedder maps text to a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// EmbedAll embeds every text in batches and verifies that all vectors share one
// length. Any failed batch fails the whole call so nothing is partially embedded.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	dim := 0
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := e.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-start)
		}

		for i, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) == 0 || len(v) != dim {
				return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", start+i, len(v), dim)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func cleanInputs(texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("text %d cannot be empty", i)
		}
		out[i] = t
	}
	return out, nil
}
