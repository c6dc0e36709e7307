package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lecture-chat/cli/internal/model"
	"github.com/lecture-chat/cli/internal/store"
)

var _ store.Videos = (*DB)(nil)

// parseID maps ids that are not UUIDs to not-found rather than a query error
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, model.ErrNotFound
	}
	return u, nil
}

// CreateVideo inserts a new video record
func (db *DB) CreateVideo(ctx context.Context, v *model.VideoRecord) error {
	id, err := uuid.Parse(v.ID)
	if err != nil {
		return fmt.Errorf("invalid video id %q: %w", v.ID, err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO videos (id, filename, title, duration, file_size, upload_timestamp, status, source_path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, v.Filename, v.Title, v.Duration, v.FileSize, v.UploadedAt, string(v.Status), v.SourcePath,
	)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// GetVideo retrieves a video by id
func (db *DB) GetVideo(ctx context.Context, id string) (*model.VideoRecord, error) {
	u, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var row videoRow
	err = db.pool.QueryRow(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = $1`, u,
	).Scan(row.fields()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return row.record(), nil
}

// ListVideos retrieves all videos, newest first
func (db *DB) ListVideos(ctx context.Context) ([]*model.VideoRecord, error) {
	return db.listVideos(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY upload_timestamp DESC, id`)
}

// ListActive retrieves videos whose attempt is in flight
func (db *DB) ListActive(ctx context.Context) ([]*model.VideoRecord, error) {
	return db.listVideos(ctx,
		`SELECT `+videoColumns+` FROM videos
		 WHERE status IN ('processing', 'transcribing', 'chunking', 'embedding')
		 ORDER BY upload_timestamp DESC, id`)
}

func (db *DB) listVideos(ctx context.Context, query string) ([]*model.VideoRecord, error) {
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get videos: %w", err)
	}
	defer rows.Close()

	var videos []*model.VideoRecord
	for rows.Next() {
		var row videoRow
		if err := rows.Scan(row.fields()...); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, row.record())
	}
	return videos, rows.Err()
}

// ClaimAttempt starts a new attempt with a single conditional update
func (db *DB) ClaimAttempt(ctx context.Context, id string) (*model.VideoRecord, error) {
	u, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var row videoRow
	err = db.pool.QueryRow(ctx,
		`UPDATE videos
		 SET status = 'processing', error_message = NULL, audio_path = NULL,
		     transcript_path = NULL, total_chunks = NULL, attempt = attempt + 1, updated_at = NOW()
		 WHERE id = $1 AND status IN ('uploaded', 'completed', 'failed')
		 RETURNING `+videoColumns, u,
	).Scan(row.fields()...)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := db.GetVideo(ctx, id); err != nil {
			return nil, err
		}
		return nil, model.ErrAttemptActive
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim attempt: %w", err)
	}
	return row.record(), nil
}

// Advance moves a video between stage statuses if it is still in the expected one
func (db *DB) Advance(ctx context.Context, id string, from, to model.Status) error {
	if !model.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, to)
	}
	u, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE videos SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		u, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		v, err := db.GetVideo(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s -> %s (current %s)", model.ErrInvalidTransition, from, to, v.Status)
	}
	return nil
}

// SetArtifacts records artifact paths, leaving empty fields untouched
func (db *DB) SetArtifacts(ctx context.Context, id string, a store.Artifacts) error {
	u, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE videos
		 SET audio_path = COALESCE($2, audio_path), transcript_path = COALESCE($3, transcript_path), updated_at = NOW()
		 WHERE id = $1`,
		u, nullable(a.AudioPath), nullable(a.TranscriptPath),
	)
	if err != nil {
		return fmt.Errorf("failed to set artifacts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SetTotalChunks records the chunk count once per attempt
func (db *DB) SetTotalChunks(ctx context.Context, id string, n int) error {
	u, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE videos SET total_chunks = $2, updated_at = NOW() WHERE id = $1 AND total_chunks IS NULL`,
		u, n,
	)
	if err != nil {
		return fmt.Errorf("failed to set total chunks: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetVideo(ctx, id); err != nil {
			return err
		}
		return store.ErrTotalChunksSet
	}
	return nil
}

// MarkFailed moves an in-flight video to failed and stores the error text
func (db *DB) MarkFailed(ctx context.Context, id string, errMsg string) error {
	u, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE videos SET status = 'failed', error_message = $2, updated_at = NOW()
		 WHERE id = $1 AND status IN ('processing', 'transcribing', 'chunking', 'embedding')`,
		u, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to mark video failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		v, err := db.GetVideo(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, v.Status, model.StatusFailed)
	}
	return nil
}

// DeleteVideo removes a video that has no running attempt; its chunks go with it
func (db *DB) DeleteVideo(ctx context.Context, id string) error {
	u, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM videos WHERE id = $1 AND status IN ('uploaded', 'completed', 'failed')`, u)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetVideo(ctx, id); err != nil {
			return err
		}
		return model.ErrAttemptActive
	}
	return nil
}
