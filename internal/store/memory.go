package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lecture-chat/cli/internal/model"
)

// ErrTotalChunksSet is returned when the chunk count of an attempt is written twice
var ErrTotalChunksSet = errors.New("total_chunks already set for this attempt")

// Memory is an in-process Videos implementation
type Memory struct {
	mu     sync.RWMutex
	videos map[string]*model.VideoRecord
	now    func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		videos: make(map[string]*model.VideoRecord),
		now:    time.Now,
	}
}

// CreateVideo inserts a new record
func (m *Memory) CreateVideo(ctx context.Context, v *model.VideoRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.videos[v.ID]; ok {
		return fmt.Errorf("video %s already exists", v.ID)
	}
	c := v.Clone()
	c.UpdatedAt = m.now()
	m.videos[v.ID] = c
	return nil
}

// GetVideo returns a copy of the record
func (m *Memory) GetVideo(ctx context.Context, id string) (*model.VideoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.videos[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return v.Clone(), nil
}

// ListVideos returns copies of all records, newest first
func (m *Memory) ListVideos(ctx context.Context) ([]*model.VideoRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.VideoRecord, 0, len(m.videos))
	for _, v := range m.videos {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

// ListActive returns records with an in-flight stage status
func (m *Memory) ListActive(ctx context.Context) ([]*model.VideoRecord, error) {
	all, _ := m.ListVideos(ctx)
	var out []*model.VideoRecord
	for _, v := range all {
		if v.Status.IsActive() {
			out = append(out, v)
		}
	}
	return out, nil
}

// ClaimAttempt starts a new attempt
func (m *Memory) ClaimAttempt(ctx context.Context, id string) (*model.VideoRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !v.Status.Claimable() {
		return nil, model.ErrAttemptActive
	}
	v.Status = model.StatusProcessing
	v.Error = ""
	v.AudioPath = ""
	v.TranscriptPath = ""
	v.TotalChunks = nil
	v.Attempt++
	v.UpdatedAt = m.now()
	return v.Clone(), nil
}

// Advance performs a compare-and-set status change
func (m *Memory) Advance(ctx context.Context, id string, from, to model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return model.ErrNotFound
	}
	if v.Status != from || !model.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s (current %s)", model.ErrInvalidTransition, from, to, v.Status)
	}
	v.Status = to
	v.UpdatedAt = m.now()
	return nil
}

// SetArtifacts records artifact paths, leaving empty fields untouched
func (m *Memory) SetArtifacts(ctx context.Context, id string, a Artifacts) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return model.ErrNotFound
	}
	if a.AudioPath != "" {
		v.AudioPath = a.AudioPath
	}
	if a.TranscriptPath != "" {
		v.TranscriptPath = a.TranscriptPath
	}
	v.UpdatedAt = m.now()
	return nil
}

// SetTotalChunks records the chunk count once per attempt
func (m *Memory) SetTotalChunks(ctx context.Context, id string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return model.ErrNotFound
	}
	if v.TotalChunks != nil {
		return ErrTotalChunksSet
	}
	v.TotalChunks = &n
	v.UpdatedAt = m.now()
	return nil
}

// MarkFailed moves an active record to failed
func (m *Memory) MarkFailed(ctx context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return model.ErrNotFound
	}
	if !model.CanTransition(v.Status, model.StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, v.Status, model.StatusFailed)
	}
	v.Status = model.StatusFailed
	v.Error = errMsg
	v.UpdatedAt = m.now()
	return nil
}

// DeleteVideo removes a record that has no running attempt
func (m *Memory) DeleteVideo(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.videos[id]
	if !ok {
		return model.ErrNotFound
	}
	if v.Status.IsActive() {
		return model.ErrAttemptActive
	}
	delete(m.videos, id)
	return nil
}
