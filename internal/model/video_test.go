package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusUploaded, StatusProcessing, true},
		{StatusProcessing, StatusTranscribing, true},
		{StatusTranscribing, StatusChunking, true},
		{StatusChunking, StatusEmbedding, true},
		{StatusEmbedding, StatusCompleted, true},
		{StatusFailed, StatusProcessing, true},
		{StatusCompleted, StatusProcessing, true},
		{StatusTranscribing, StatusFailed, true},
		{StatusEmbedding, StatusFailed, true},

		{StatusUploaded, StatusTranscribing, false},
		{StatusProcessing, StatusChunking, false},
		{StatusTranscribing, StatusProcessing, false},
		{StatusChunking, StatusCompleted, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusUploaded, StatusFailed, false},
		{StatusEmbedding, StatusEmbedding, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusProgressAndMessage(t *testing.T) {
	assert.Equal(t, 40.0, StatusTranscribing.Progress())
	assert.Equal(t, 100.0, StatusCompleted.Progress())
	assert.Equal(t, 0.0, StatusFailed.Progress())

	assert.Equal(t, "Processing failed: Unknown error", StatusFailed.Message(""))
	assert.Equal(t, "Processing failed: boom", StatusFailed.Message("boom"))
	assert.Equal(t, "Creating intelligent chunks...", StatusChunking.Message(""))
}

func TestStatusNext(t *testing.T) {
	s := StatusUploaded
	var seen []Status
	for {
		n, ok := s.Next()
		if !ok {
			break
		}
		seen = append(seen, n)
		s = n
	}
	assert.Equal(t, []Status{StatusProcessing, StatusTranscribing, StatusChunking, StatusEmbedding, StatusCompleted}, seen)
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusCompleted.IsActive())
	assert.False(t, Status("bogus").Valid())
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{5.9, "0:05"},
		{83, "1:23"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{5025, "1:23:45"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTimestamp(tt.seconds), "seconds=%v", tt.seconds)
	}
	assert.Equal(t, "0:05 - 1:23", FormatRange(5, 83))
}

func TestStageFailureTimeout(t *testing.T) {
	err := &StageFailure{Stage: StatusTranscribing, Err: fmt.Errorf("whisper: %w", context.DeadlineExceeded)}
	assert.True(t, err.Timeout())
	assert.Equal(t, "transcribing stage timed out: whisper: context deadline exceeded", err.Error())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	plain := &StageFailure{Stage: StatusEmbedding, Err: errors.New("bad dims")}
	assert.False(t, plain.Timeout())
	assert.Equal(t, "embedding stage failed: bad dims", plain.Error())
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsValidation(fmt.Errorf("wrap: %w", Validationf("empty %s", "transcript"))))
	assert.False(t, IsValidation(errors.New("x")))
	assert.True(t, IsNotReady(&NotReadyError{VideoID: "v", Status: StatusTranscribing}))
}
