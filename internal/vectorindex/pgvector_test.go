package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecture-chat/cli/internal/db"
	"github.com/lecture-chat/cli/internal/model"
)

type fakeTable struct {
	replaced map[string][]model.Chunk
	limit    int
}

func (f *fakeTable) ReplaceChunks(ctx context.Context, videoID string, chunks []model.Chunk) error {
	f.replaced[videoID] = chunks
	return nil
}

func (f *fakeTable) SearchChunks(ctx context.Context, videoID string, vector []float32, limit int) ([]db.ScoredChunk, error) {
	f.limit = limit
	var out []db.ScoredChunk
	for _, c := range f.replaced[videoID] {
		out = append(out, db.ScoredChunk{Chunk: c, Similarity: CosineSimilarity(vector, c.Embedding)})
	}
	return out, nil
}

func (f *fakeTable) DeleteChunks(ctx context.Context, videoID string) error {
	delete(f.replaced, videoID)
	return nil
}

func (f *fakeTable) Ping(ctx context.Context) error { return nil }

func TestPgvectorBackend(t *testing.T) {
	ctx := context.Background()
	table := &fakeTable{replaced: map[string][]model.Chunk{}}
	ix := New(NewPgvector(table))

	require.NoError(t, ix.Upsert(ctx, "v", []model.Chunk{chunk("v", 0, 0, 1), chunk("v", 1, 1, 0)}))
	hits, err := ix.Query(ctx, "v", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Chunk.Index)
	assert.GreaterOrEqual(t, table.limit, 1)

	require.NoError(t, ix.Delete(ctx, "v"))
	assert.Empty(t, table.replaced)
	assert.NoError(t, ix.Ping(ctx))
}
