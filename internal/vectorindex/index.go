// Package vectorindex stores chunk vectors per video and answers cosine
// nearest-neighbour queries.
//
// Every video key has its own reader/writer lock: Upsert and Delete hold it
// exclusively, Query holds it shared. A query therefore sees either the
// previous chunk set of a video or the new one, never a mix, even on backends
// whose replace operation is not atomic on its own.
package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lecture-chat/cli/internal/model"
)

// Hit is one query result
type Hit struct {
	Chunk model.Chunk
	Score float64
}

// Backend is a storage engine for chunk vectors
type Backend interface {
	// Replace swaps the whole chunk set of a video
	Replace(ctx context.Context, videoID string, chunks []model.Chunk) error
	// Search returns at least the top k hits of a video by cosine similarity
	// when that many exist, without any ordering guarantee
	Search(ctx context.Context, videoID string, vector []float32, k int) ([]Hit, error)
	// Delete removes every chunk of a video
	Delete(ctx context.Context, videoID string) error
	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
}

// Index serialises writers per video over a Backend
type Index struct {
	backend Backend

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// New creates an index over a backend
func New(backend Backend) *Index {
	return &Index{
		backend: backend,
		locks:   make(map[string]*sync.RWMutex),
	}
}

func (ix *Index) lock(videoID string) *sync.RWMutex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	l, ok := ix.locks[videoID]
	if !ok {
		l = &sync.RWMutex{}
		ix.locks[videoID] = l
	}
	return l
}

// Upsert replaces the chunk set of a video. All chunks must belong to the video
// and carry embeddings of one dimension.
func (ix *Index) Upsert(ctx context.Context, videoID string, chunks []model.Chunk) error {
	dim := 0
	for i := range chunks {
		c := &chunks[i]
		if c.VideoID != videoID {
			return fmt.Errorf("chunk %s belongs to video %s, not %s", c.ID, c.VideoID, videoID)
		}
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %d has no embedding", c.Index)
		}
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %d has dimension %d, expected %d", c.Index, len(c.Embedding), dim)
		}
	}

	l := ix.lock(videoID)
	l.Lock()
	defer l.Unlock()

	if err := ix.backend.Replace(ctx, videoID, chunks); err != nil {
		return fmt.Errorf("failed to replace chunks of video %s: %w", videoID, err)
	}
	return nil
}

// Query returns up to k chunks of a video ordered by similarity descending,
// ties broken by ascending chunk index
func (ix *Index) Query(ctx context.Context, videoID string, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}

	l := ix.lock(videoID)
	l.RLock()
	hits, err := ix.backend.Search(ctx, videoID, vector, k)
	l.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to search video %s: %w", videoID, err)
	}

	Rank(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes every chunk of a video
func (ix *Index) Delete(ctx context.Context, videoID string) error {
	l := ix.lock(videoID)
	l.Lock()
	defer l.Unlock()

	if err := ix.backend.Delete(ctx, videoID); err != nil {
		return fmt.Errorf("failed to delete chunks of video %s: %w", videoID, err)
	}
	return nil
}

// Ping checks the backend
func (ix *Index) Ping(ctx context.Context) error {
	return ix.backend.Ping(ctx)
}

// Rank orders hits by score descending, then chunk index ascending
func Rank(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})
}
