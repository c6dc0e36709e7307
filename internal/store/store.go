// Package store defines the keyed VideoRecord store used by the pipeline.
package store

import (
	"context"

	"github.com/lecture-chat/cli/internal/model"
)

// Artifacts are the intermediate outputs recorded on a video during an attempt
type Artifacts struct {
	AudioPath      string
	TranscriptPath string
}

// Videos persists VideoRecords. Implementations enforce the status state machine:
// every status change is a compare-and-set against the expected current status.
type Videos interface {
	// CreateVideo inserts a new record in the uploaded state
	CreateVideo(ctx context.Context, v *model.VideoRecord) error
	// GetVideo returns model.ErrNotFound when the id is unknown
	GetVideo(ctx context.Context, id string) (*model.VideoRecord, error)
	// ListVideos returns all records, newest upload first
	ListVideos(ctx context.Context) ([]*model.VideoRecord, error)
	// ClaimAttempt moves an uploaded or terminal record to processing, clears the
	// previous attempt's error, artifacts and chunk count, and bumps the attempt
	// number. It returns model.ErrAttemptActive when an attempt is already running.
	ClaimAttempt(ctx context.Context, id string) (*model.VideoRecord, error)
	// Advance moves a record from one stage status to the next
	Advance(ctx context.Context, id string, from, to model.Status) error
	// SetArtifacts records intermediate artifact paths
	SetArtifacts(ctx context.Context, id string, a Artifacts) error
	// SetTotalChunks records the chunk count; it fails if already set for the attempt
	SetTotalChunks(ctx context.Context, id string, n int) error
	// MarkFailed moves an active record to failed and stores the error text
	MarkFailed(ctx context.Context, id string, errMsg string) error
	// ListActive returns records whose status is an in-flight stage
	ListActive(ctx context.Context) ([]*model.VideoRecord, error)
	// DeleteVideo removes an uploaded or terminal record. It returns
	// model.ErrAttemptActive while an attempt is running.
	DeleteVideo(ctx context.Context, id string) error
}
