package db

import (
	"context"
	"fmt"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS videos (
	id               UUID PRIMARY KEY,
	filename         TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	duration         DOUBLE PRECISION NOT NULL DEFAULT 0,
	file_size        BIGINT NOT NULL DEFAULT 0,
	upload_timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	status           TEXT NOT NULL,
	error_message    TEXT,
	source_path      TEXT NOT NULL DEFAULT '',
	audio_path       TEXT,
	transcript_path  TEXT,
	total_chunks     INTEGER,
	attempt          INTEGER NOT NULL DEFAULT 0,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS videos_status_idx ON videos (status);
`

// chunks are keyed by the chunker's UUIDs; one set per video
const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          UUID PRIMARY KEY,
	video_id    UUID NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	content     TEXT NOT NULL,
	start_time  DOUBLE PRECISION NOT NULL,
	end_time    DOUBLE PRECISION NOT NULL,
	word_count  INTEGER NOT NULL DEFAULT 0,
	embedding   %s,
	UNIQUE (video_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS chunks_video_id_idx ON chunks (video_id);
`

// Migrate creates the tables if they do not exist. With a positive dimension
// the embedding column is typed.
func (db *DB) Migrate(ctx context.Context, dimension int) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create videos table: %w", err)
	}

	column := "vector"
	if dimension > 0 {
		column = fmt.Sprintf("vector(%d)", dimension)
	}
	if _, err := db.pool.Exec(ctx, fmt.Sprintf(chunkSchema, column)); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	// searches rank exactly within one video; an approximate index over all
	// videos would be filtered after its scan
	if _, err := db.pool.Exec(ctx, `DROP INDEX IF EXISTS chunks_embedding_idx`); err != nil {
		return fmt.Errorf("failed to drop embedding index: %w", err)
	}
	return nil
}
