package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/lecture-chat/cli/internal/model"
)

// videoRow mirrors a row of the videos table
type videoRow struct {
	ID             uuid.UUID
	Filename       string
	Title          string
	Duration       float64
	FileSize       int64
	UploadedAt     time.Time
	Status         string
	Error          *string
	SourcePath     string
	AudioPath      *string
	TranscriptPath *string
	TotalChunks    *int
	Attempt        int
	UpdatedAt      time.Time
}

const videoColumns = `id, filename, title, duration, file_size, upload_timestamp, status,
	error_message, source_path, audio_path, transcript_path, total_chunks, attempt, updated_at`

func (r *videoRow) fields() []any {
	return []any{
		&r.ID, &r.Filename, &r.Title, &r.Duration, &r.FileSize, &r.UploadedAt, &r.Status,
		&r.Error, &r.SourcePath, &r.AudioPath, &r.TranscriptPath, &r.TotalChunks, &r.Attempt, &r.UpdatedAt,
	}
}

func (r *videoRow) record() *model.VideoRecord {
	return &model.VideoRecord{
		ID:             r.ID.String(),
		Filename:       r.Filename,
		Title:          r.Title,
		Duration:       r.Duration,
		FileSize:       r.FileSize,
		UploadedAt:     r.UploadedAt,
		Status:         model.Status(r.Status),
		Error:          deref(r.Error),
		SourcePath:     r.SourcePath,
		AudioPath:      deref(r.AudioPath),
		TranscriptPath: deref(r.TranscriptPath),
		TotalChunks:    r.TotalChunks,
		Attempt:        r.Attempt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ScoredChunk is a chunk row with its cosine similarity to a query vector
type ScoredChunk struct {
	Chunk      model.Chunk
	Similarity float64
}
