package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecture-chat/cli/internal/model"
)

func newVideo(id string, at time.Time) *model.VideoRecord {
	return &model.VideoRecord{
		ID:         id,
		Filename:   id + ".mp4",
		UploadedAt: at,
		Status:     model.StatusUploaded,
	}
}

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateVideo(ctx, newVideo("v1", time.Now())))
	assert.Error(t, m.CreateVideo(ctx, newVideo("v1", time.Now())))

	v, err := m.ClaimAttempt(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, v.Status)
	assert.Equal(t, 1, v.Attempt)

	_, err = m.ClaimAttempt(ctx, "v1")
	assert.ErrorIs(t, err, model.ErrAttemptActive)

	require.NoError(t, m.Advance(ctx, "v1", model.StatusProcessing, model.StatusTranscribing))
	err = m.Advance(ctx, "v1", model.StatusProcessing, model.StatusTranscribing)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	require.NoError(t, m.SetArtifacts(ctx, "v1", Artifacts{AudioPath: "/a.wav"}))
	require.NoError(t, m.SetTotalChunks(ctx, "v1", 4))
	assert.ErrorIs(t, m.SetTotalChunks(ctx, "v1", 5), ErrTotalChunksSet)

	require.NoError(t, m.MarkFailed(ctx, "v1", "boom"))
	v, err = m.GetVideo(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, v.Status)
	assert.Equal(t, "boom", v.Error)
	assert.Equal(t, 4, *v.TotalChunks)

	// a failed record cannot fail again
	assert.Error(t, m.MarkFailed(ctx, "v1", "again"))

	v, err = m.ClaimAttempt(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Attempt)
	assert.Empty(t, v.Error)
	assert.Empty(t, v.AudioPath)
	assert.Nil(t, v.TotalChunks)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateVideo(ctx, newVideo("v1", time.Now())))

	v, err := m.GetVideo(ctx, "v1")
	require.NoError(t, err)
	v.Status = model.StatusCompleted

	again, err := m.GetVideo(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, again.Status)
}

func TestMemoryListOrderAndActive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.CreateVideo(ctx, newVideo("old", base)))
	require.NoError(t, m.CreateVideo(ctx, newVideo("new", base.Add(time.Hour))))

	list, err := m.ListVideos(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)

	_, err = m.ClaimAttempt(ctx, "old")
	require.NoError(t, err)
	active, err := m.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "old", active[0].ID)
}

func TestMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.GetVideo(ctx, "nope")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = m.ClaimAttempt(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryDeleteVideo(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.CreateVideo(ctx, &model.VideoRecord{ID: "v", Status: model.StatusUploaded}))

	_, err := m.ClaimAttempt(ctx, "v")
	require.NoError(t, err)
	assert.ErrorIs(t, m.DeleteVideo(ctx, "v"), model.ErrAttemptActive)

	require.NoError(t, m.MarkFailed(ctx, "v", "boom"))
	require.NoError(t, m.DeleteVideo(ctx, "v"))
	_, err = m.GetVideo(ctx, "v")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, m.DeleteVideo(ctx, "v"), model.ErrNotFound)
}
