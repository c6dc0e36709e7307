package vectorindex

import (
	"context"
	"math"
	"sync"

	"github.com/lecture-chat/cli/internal/model"
)

// Memory keeps chunk sets in process memory
type Memory struct {
	mu     sync.RWMutex
	videos map[string][]model.Chunk
}

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{videos: make(map[string][]model.Chunk)}
}

// Replace stores a private copy of the chunk set
func (m *Memory) Replace(ctx context.Context, videoID string, chunks []model.Chunk) error {
	cp := make([]model.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		cp[i] = c
	}

	m.mu.Lock()
	m.videos[videoID] = cp
	m.mu.Unlock()
	return nil
}

// Search scores every chunk of the video
func (m *Memory) Search(ctx context.Context, videoID string, vector []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	chunks := m.videos[videoID]
	m.mu.RUnlock()

	hits := make([]Hit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, Hit{Chunk: c, Score: CosineSimilarity(vector, c.Embedding)})
	}
	return hits, nil
}

// Delete drops the chunk set of a video
func (m *Memory) Delete(ctx context.Context, videoID string) error {
	m.mu.Lock()
	delete(m.videos, videoID)
	m.mu.Unlock()
	return nil
}

// Ping always succeeds
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// CosineSimilarity returns the normalised dot product of a and b, or 0 when
// either vector has zero length or the dimensions differ
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
