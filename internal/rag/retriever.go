package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/lecture-chat/cli/internal/embeddings"
	"github.com/lecture-chat/cli/internal/model"
	"github.com/lecture-chat/cli/internal/vectorindex"
)

// Retriever handles RAG retrieval using vector similarity search
type Retriever struct {
	embedder embeddings.Embedder
	index    *vectorindex.Index
	topK     int
}

// NewRetriever creates a new RAG retriever. The embedder must be the one the
// chunks were embedded with.
func NewRetriever(embedder embeddings.Embedder, index *vectorindex.Index, topK int) *Retriever {
	if topK <= 0 {
		topK = 5 // Default
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
	}
}

// TopK is the configured number of chunks retrieved per question
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve finds the chunks of a video most similar to the query, best first.
// A non-positive k uses the configured top k.
func (r *Retriever) Retrieve(ctx context.Context, videoID, query string, k int) ([]vectorindex.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.Validationf("query must not be empty")
	}
	if k <= 0 {
		k = r.topK
	}

	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	hits, err := r.index.Query(ctx, videoID, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	return hits, nil
}

// Sources converts hits into the cited chunk list of an answer
func Sources(hits []vectorindex.Hit) []model.Source {
	out := make([]model.Source, 0, len(hits))
	for _, h := range hits {
		score := h.Score
		if score < 0 {
			score = 0
		}
		out = append(out, model.Source{
			ChunkID:            h.Chunk.ID,
			Index:              h.Chunk.Index,
			Text:               h.Chunk.Text,
			Start:              h.Chunk.Start,
			End:                h.Chunk.End,
			RelevanceScore:     score,
			FormattedTimestamp: h.Chunk.Timestamp(),
		})
	}
	return out
}

// Confidence is the mean relevance of the sources, capped at 0.95
func Confidence(sources []model.Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range sources {
		sum += s.RelevanceScore
	}
	mean := sum / float64(len(sources))
	if mean > 0.95 {
		return 0.95
	}
	return mean
}
