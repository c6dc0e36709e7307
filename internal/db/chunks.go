package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/lecture-chat/cli/internal/model"
)

// ReplaceChunks swaps the chunk set of a video inside one transaction
func (db *DB) ReplaceChunks(ctx context.Context, videoID string, chunks []model.Chunk) error {
	vid, err := parseID(videoID)
	if err != nil {
		return err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE video_id = $1`, vid); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		id, err := uuid.Parse(c.ID)
		if err != nil {
			return fmt.Errorf("invalid chunk id %q: %w", c.ID, err)
		}
		batch.Queue(
			`INSERT INTO chunks (id, video_id, chunk_index, content, start_time, end_time, word_count, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, vid, c.Index, c.Text, c.Start, c.End, c.WordCount, pgvector.NewVector(c.Embedding),
		)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// searchChunksSQL materializes the video's chunks before ranking them, so the
// distance sort is exact and sees every chunk of the video
const searchChunksSQL = `
WITH candidates AS MATERIALIZED (
	SELECT id, chunk_index, content, start_time, end_time, word_count, embedding
	FROM chunks
	WHERE video_id = $1 AND embedding IS NOT NULL
)
SELECT id, chunk_index, content, start_time, end_time, word_count,
       1 - (embedding <=> $2::vector) AS similarity
FROM candidates
ORDER BY embedding <=> $2::vector, chunk_index
LIMIT $3`

// SearchChunks finds the chunks of a video closest to the vector by cosine distance
func (db *DB) SearchChunks(ctx context.Context, videoID string, vector []float32, limit int) ([]ScoredChunk, error) {
	vid, err := parseID(videoID)
	if err != nil {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx, searchChunksSQL, vid, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var out []ScoredChunk
	for rows.Next() {
		var (
			id uuid.UUID
			sc ScoredChunk
		)
		if err := rows.Scan(
			&id, &sc.Chunk.Index, &sc.Chunk.Text, &sc.Chunk.Start,
			&sc.Chunk.End, &sc.Chunk.WordCount, &sc.Similarity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		sc.Chunk.ID = id.String()
		sc.Chunk.VideoID = videoID
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ListChunks returns the stored chunks of a video in ordinal order, without embeddings
func (db *DB) ListChunks(ctx context.Context, videoID string) ([]model.Chunk, error) {
	vid, err := parseID(videoID)
	if err != nil {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, chunk_index, content, start_time, end_time, word_count
		 FROM chunks WHERE video_id = $1 ORDER BY chunk_index`,
		vid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		var (
			id uuid.UUID
			c  model.Chunk
		)
		if err := rows.Scan(&id, &c.Index, &c.Text, &c.Start, &c.End, &c.WordCount); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.ID = id.String()
		c.VideoID = videoID
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChunks removes the chunk set of a video
func (db *DB) DeleteChunks(ctx context.Context, videoID string) error {
	vid, err := parseID(videoID)
	if err != nil {
		return nil
	}
	_, err = db.pool.Exec(ctx, `DELETE FROM chunks WHERE video_id = $1`, vid)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}
