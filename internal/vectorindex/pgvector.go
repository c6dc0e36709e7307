package vectorindex

import (
	"context"

	"github.com/lecture-chat/cli/internal/db"
	"github.com/lecture-chat/cli/internal/model"
)

// ChunkTable is the chunk storage of the Postgres database
type ChunkTable interface {
	ReplaceChunks(ctx context.Context, videoID string, chunks []model.Chunk) error
	SearchChunks(ctx context.Context, videoID string, vector []float32, limit int) ([]db.ScoredChunk, error)
	DeleteChunks(ctx context.Context, videoID string) error
	Ping(ctx context.Context) error
}

// Pgvector stores chunk vectors in a Postgres table with a pgvector column.
// Replace runs in one transaction, so readers outside this process also never
// see a partial chunk set.
type Pgvector struct {
	table ChunkTable
}

// NewPgvector creates a backend over the chunks table
func NewPgvector(table ChunkTable) *Pgvector {
	return &Pgvector{table: table}
}

// Replace swaps the chunk set inside a transaction
func (p *Pgvector) Replace(ctx context.Context, videoID string, chunks []model.Chunk) error {
	return p.table.ReplaceChunks(ctx, videoID, chunks)
}

// Search orders by cosine distance in SQL
func (p *Pgvector) Search(ctx context.Context, videoID string, vector []float32, k int) ([]Hit, error) {
	rows, err := p.table.SearchChunks(ctx, videoID, vector, k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(rows))
	for i, r := range rows {
		hits[i] = Hit{Chunk: r.Chunk, Score: r.Similarity}
	}
	return hits, nil
}

// Delete removes the chunk rows of a video
func (p *Pgvector) Delete(ctx context.Context, videoID string) error {
	return p.table.DeleteChunks(ctx, videoID)
}

// Ping checks the database connection
func (p *Pgvector) Ping(ctx context.Context) error {
	return p.table.Ping(ctx)
}
