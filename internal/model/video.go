package model

import (
	"fmt"
	"time"
)

// Status is the processing state of a video
type Status string

const (
	StatusUploaded     Status = "uploaded"
	StatusProcessing   Status = "processing"
	StatusTranscribing Status = "transcribing"
	StatusChunking     Status = "chunking"
	StatusEmbedding    Status = "embedding"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// stage order of one attempt; failed is reachable from any of these except completed
var nextStatus = map[Status]Status{
	StatusUploaded:     StatusProcessing,
	StatusProcessing:   StatusTranscribing,
	StatusTranscribing: StatusChunking,
	StatusChunking:     StatusEmbedding,
	StatusEmbedding:    StatusCompleted,
}

// IsTerminal reports whether an attempt has finished in this status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether an attempt is running in this status
func (s Status) IsActive() bool {
	switch s {
	case StatusProcessing, StatusTranscribing, StatusChunking, StatusEmbedding:
		return true
	}
	return false
}

// Claimable reports whether a new attempt may start from this status
func (s Status) Claimable() bool {
	return s == StatusUploaded || s.IsTerminal()
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	_, ok := nextStatus[s]
	return ok || s.IsTerminal()
}

// Next returns the status that follows s in a successful attempt
func (s Status) Next() (Status, bool) {
	n, ok := nextStatus[s]
	return n, ok
}

// CanTransition reports whether from -> to is a legal edge of the state machine.
// Terminal and uploaded states may only move to processing, which starts a new attempt.
func CanTransition(from, to Status) bool {
	if to == StatusProcessing {
		return from.Claimable()
	}
	if to == StatusFailed {
		return from.IsActive()
	}
	n, ok := nextStatus[from]
	return ok && n == to && from != StatusUploaded
}

// Progress returns the percentage shown to clients for a status
func (s Status) Progress() float64 {
	switch s {
	case StatusUploaded:
		return 10
	case StatusProcessing:
		return 20
	case StatusTranscribing:
		return 40
	case StatusChunking:
		return 60
	case StatusEmbedding:
		return 80
	case StatusCompleted:
		return 100
	}
	return 0
}

// Message returns a human readable description of a status
func (s Status) Message(errMsg string) string {
	switch s {
	case StatusUploaded:
		return "Waiting to start processing..."
	case StatusProcessing:
		return "Extracting audio from video..."
	case StatusTranscribing:
		return "Transcribing audio with AI..."
	case StatusChunking:
		return "Creating intelligent chunks..."
	case StatusEmbedding:
		return "Generating vector embeddings..."
	case StatusCompleted:
		return "Processing completed successfully!"
	case StatusFailed:
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		return fmt.Sprintf("Processing failed: %s", errMsg)
	}
	return "Unknown processing status"
}

// VideoRecord is the persisted state of one uploaded video
type VideoRecord struct {
	ID             string    `json:"video_id"`
	Filename       string    `json:"filename"`
	Title          string    `json:"title"`
	Duration       float64   `json:"duration"`
	FileSize       int64     `json:"file_size"`
	UploadedAt     time.Time `json:"upload_timestamp"`
	Status         Status    `json:"processing_status"`
	Error          string    `json:"processing_error,omitempty"`
	SourcePath     string    `json:"source_path"`
	AudioPath      string    `json:"audio_path,omitempty"`
	TranscriptPath string    `json:"transcript_path,omitempty"`
	TotalChunks    *int      `json:"total_chunks,omitempty"`
	Attempt        int       `json:"attempt"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the record
func (v *VideoRecord) Clone() *VideoRecord {
	c := *v
	if v.TotalChunks != nil {
		n := *v.TotalChunks
		c.TotalChunks = &n
	}
	return &c
}

// DisplayTitle returns the title, falling back to the filename
func (v *VideoRecord) DisplayTitle() string {
	if v.Title != "" {
		return v.Title
	}
	return v.Filename
}
